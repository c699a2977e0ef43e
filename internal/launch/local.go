package launch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// Local запускает команду одним локальным процессом.
// Узлы плана игнорируются: результат всегда приписывается первому.
type Local struct {
	logger *slog.Logger
}

// NewLocal создаёт локальный метод запуска.
func NewLocal(logger *slog.Logger) *Local {
	return &Local{logger: logger}
}

func (l *Local) Launch(ctx context.Context, targets []Target, cmd Command) []Result {
	node := "localhost"
	if len(targets) > 0 {
		node = targets[0].Node
	}

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, "sh", "-c", cmd.Line)
	proc.Dir = cmd.Dir
	proc.Env = mergeEnv(cmd.Env)
	proc.Stdout = &stdout
	proc.Stderr = &stderr
	// Собственная process group: Stop снимает всё дерево процессов
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	l.logger.Debug("local launch", "command", cmd.Line)
	err := proc.Run()

	return []Result{{
		Node:   node,
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
		Err:    err,
	}}
}

func (l *Local) Stop(ctx context.Context, targets []Target, pattern string, force bool) error {
	sig := "-TERM"
	if force {
		sig = "-KILL"
	}

	proc := exec.CommandContext(ctx, "pkill", sig, "-f", pattern)
	err := proc.Run()
	// pkill выходит с кодом 1, когда процессов не нашлось — не ошибка
	var exit *exec.ExitError
	if err != nil && !(errors.As(err, &exit) && exit.ExitCode() == 1) {
		return fmt.Errorf("pkill %s: %w", pattern, err)
	}
	return nil
}

func (l *Local) Status(ctx context.Context, targets []Target, pattern string) map[string]error {
	node := "localhost"
	if len(targets) > 0 {
		node = targets[0].Node
	}

	var err error
	if exec.CommandContext(ctx, "pgrep", "-f", pattern).Run() != nil {
		err = fmt.Errorf("no process matching %q: %w", pattern, os.ErrProcessDone)
	}
	return map[string]error{node: err}
}

func (l *Local) Close() {}

// mergeEnv объединяет окружение процесса с переменными команды.
func mergeEnv(env map[string]string) []string {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, fmt.Sprintf("%s=%s", k, v))
	}
	return merged
}
