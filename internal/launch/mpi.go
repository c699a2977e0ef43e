package launch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shaiso/Conductor/internal/domain"
)

// MPI запускает команду коллективно через mpiexec.
//
// Узлы плана передаются mpiexec списком -hosts; сам mpiexec
// выполняется локально на головном узле.
type MPI struct {
	procsPerNode int
	hostfilePath string
	extraFlags   []string
	logger       *slog.Logger
}

// NewMPI создаёт MPI-метод запуска.
func NewMPI(cfg domain.MethodConfig, logger *slog.Logger) *MPI {
	procs := cfg.ProcsPerNode
	if procs <= 0 {
		procs = 1
	}
	return &MPI{
		procsPerNode: procs,
		hostfilePath: cfg.HostfilePath,
		extraFlags:   cfg.MPIFlags,
		logger:       logger,
	}
}

func (m *MPI) Launch(ctx context.Context, targets []Target, cmd Command) []Result {
	if len(targets) == 0 {
		return []Result{{Node: "localhost", Err: ErrNoTargets}}
	}

	args := m.buildArgs(targets, cmd)

	var stdout, stderr bytes.Buffer
	proc := exec.CommandContext(ctx, "mpiexec", args...)
	proc.Dir = cmd.Dir
	proc.Env = mergeEnv(cmd.Env)
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	m.logger.Debug("mpi launch", "args", strings.Join(args, " "))
	err := proc.Run()

	// mpiexec запускается с головного узла: один результат,
	// приписанный первому узлу плана
	return []Result{{
		Node:   targets[0].Node,
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
		Err:    err,
	}}
}

// buildArgs собирает аргументы mpiexec.
func (m *MPI) buildArgs(targets []Target, cmd Command) []string {
	var args []string

	if m.hostfilePath != "" {
		args = append(args, "-hostfile", m.hostfilePath)
	} else {
		hosts := make([]string, len(targets))
		for i, t := range targets {
			hosts[i] = t.Node
		}
		args = append(args, "-hosts", strings.Join(hosts, ","))
	}

	args = append(args,
		"-n", strconv.Itoa(m.procsPerNode*len(targets)),
		"-ppn", strconv.Itoa(m.procsPerNode),
	)

	// Переменные окружения пробрасываются в ranks через -genv
	for k, v := range cmd.Env {
		args = append(args, "-genv", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args, m.extraFlags...)
	args = append(args, "sh", "-c", cmd.Line)
	return args
}

func (m *MPI) Stop(ctx context.Context, targets []Target, pattern string, force bool) error {
	// mpiexec живёт на головном узле: остановка — локальный pkill,
	// runtime сам снимает удалённые ranks
	local := NewLocal(m.logger)
	if err := local.Stop(ctx, targets, "mpiexec", force); err != nil {
		return err
	}
	return local.Stop(ctx, targets, pattern, force)
}

func (m *MPI) Status(ctx context.Context, targets []Target, pattern string) map[string]error {
	// mpiexec несёт команду ranks в своём argv: pgrep по pattern
	// находит живой запуск на головном узле
	if pattern == "" {
		pattern = "mpiexec"
	}
	alive := exec.CommandContext(ctx, "pgrep", "-f", pattern).Run() == nil

	status := make(map[string]error, len(targets))
	for _, t := range targets {
		if alive {
			status[t.Node] = nil
		} else {
			status[t.Node] = fmt.Errorf("no process matching %q: %w", pattern, os.ErrProcessDone)
		}
	}
	return status
}

func (m *MPI) Close() {}
