package launch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/shaiso/Conductor/internal/domain"
)

const sshDialTimeout = time.Minute

// SSH выполняет команды на узлах последовательным обходом по SSH.
//
// Клиент на узел создаётся при первой команде и переиспользуется;
// после ошибки сессии клиент пересоздаётся один раз.
type SSH struct {
	user   string
	port   int
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*ssh.Client
	signers []ssh.Signer
}

// NewSSH создаёт SSH-метод запуска.
func NewSSH(cfg domain.MethodConfig, logger *slog.Logger) *SSH {
	user := cfg.SSHUser
	if user == "" {
		user = os.Getenv("USER")
	}
	port := cfg.SSHPort
	if port == 0 {
		port = 22
	}

	return &SSH{
		user:    user,
		port:    port,
		logger:  logger,
		clients: make(map[string]*ssh.Client),
		signers: loadSigners(logger),
	}
}

// SetSigners задаёт приватные ключи для новых подключений.
func (s *SSH) SetSigners(signers ...ssh.Signer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signers = signers
}

func (s *SSH) Launch(ctx context.Context, targets []Target, cmd Command) []Result {
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		results = append(results, s.run(ctx, t, cmd))
	}
	return results
}

func (s *SSH) Stop(ctx context.Context, targets []Target, pattern string, force bool) error {
	sig := "TERM"
	if force {
		sig = "KILL"
	}
	stop := Command{
		// Код 1 у pkill означает "процессов нет" — на остановке это успех
		Line: fmt.Sprintf("pkill -%s -f %s || [ $? -eq 1 ]", sig, shellQuote(pattern)),
	}

	var firstErr error
	for _, r := range s.Launch(ctx, targets, stop) {
		if r.Err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop on %s: %w", r.Node, r.Err)
		}
	}
	return firstErr
}

func (s *SSH) Status(ctx context.Context, targets []Target, pattern string) map[string]error {
	check := Command{Line: "pgrep -f " + shellQuote(statusPattern(pattern))}
	status := make(map[string]error, len(targets))
	for _, t := range targets {
		r := s.run(ctx, t, check)
		status[t.Node] = r.Err
	}
	return status
}

// Close закрывает все открытые подключения.
func (s *SSH) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, client := range s.clients {
		client.Close()
		delete(s.clients, addr)
	}
}

// run выполняет одну команду на одном узле.
// При ошибке создания сессии подключение пересоздаётся один раз.
func (s *SSH) run(ctx context.Context, t Target, cmd Command) Result {
	session, err := s.newSession(t)
	if err != nil {
		return Result{Node: t.Node, Err: err}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := buildRemoteLine(cmd)
	s.logger.Debug("ssh launch", "node", t.Node, "command", line)

	// Отмена ctx рвёт сессию: Run не блокируется навсегда
	done := make(chan error, 1)
	go func() { done <- session.Run(line) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		session.Close()
		err = ctx.Err()
	}

	return Result{Node: t.Node, Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Err: err}
}

// newSession открывает сессию, при необходимости пересоздавая клиент.
func (s *SSH) newSession(t Target) (*ssh.Session, error) {
	try := func(create bool) (*ssh.Session, error) {
		client, err := s.client(t, create)
		if err != nil {
			return nil, err
		}
		return client.NewSession()
	}
	session, err := try(false)
	if err != nil {
		session, err = try(true)
	}
	return session, err
}

// client возвращает кэшированный клиент узла или создаёт новый.
func (s *SSH) client(t Target, create bool) (*ssh.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[t.Address]; ok && !create {
		return client, nil
	}
	if !create {
		return nil, fmt.Errorf("no client for %s", t.Address)
	}

	if old, ok := s.clients[t.Address]; ok {
		go old.Close()
		delete(s.clients, t.Address)
	}

	addr := t.Address
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(s.port))
	}

	client, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            s.user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(s.signers...)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         sshDialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	s.clients[t.Address] = client
	return client, nil
}

// buildRemoteLine собирает строку с экспортом переменных и cd.
// Setenv по SSH обычно запрещён AcceptEnv, поэтому переменные
// передаются в самой команде.
func buildRemoteLine(cmd Command) string {
	var b strings.Builder
	for k, v := range cmd.Env {
		fmt.Fprintf(&b, "export %s=%s; ", k, shellQuote(v))
	}
	if cmd.Dir != "" {
		fmt.Fprintf(&b, "cd %s && ", shellQuote(cmd.Dir))
	}
	b.WriteString(cmd.Line)
	return b.String()
}

// shellQuote оборачивает значение в одинарные кавычки.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// loadSigners читает приватный ключ из SSH_KEY_PATH или ~/.ssh/id_rsa.
func loadSigners(logger *slog.Logger) []ssh.Signer {
	path := os.Getenv("SSH_KEY_PATH")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".ssh", "id_rsa")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("no ssh key loaded", "path", path, "error", err)
		return nil
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		logger.Warn("failed to parse ssh key", "path", path, "error", err)
		return nil
	}
	return []ssh.Signer{signer}
}
