package launch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Conductor/internal/domain"
)

// defaultFanout — предел одновременных SSH-сессий при fan-out.
const defaultFanout = 16

// ParallelSSH выполняет команду на узлах параллельно.
//
// Одновременность ограничена семафором: на большом кластере
// неограниченный fan-out исчерпывает файловые дескрипторы и
// забивает головной узел.
type ParallelSSH struct {
	ssh    *SSH
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewParallelSSH создаёт метод параллельного SSH fan-out.
// ProcsPerNode из настроек трактуется как предел одновременности
// (0 — default).
func NewParallelSSH(cfg domain.MethodConfig, logger *slog.Logger) *ParallelSSH {
	fanout := int64(cfg.ProcsPerNode)
	if fanout <= 0 {
		fanout = defaultFanout
	}
	return &ParallelSSH{
		ssh:    NewSSH(cfg, logger),
		sem:    semaphore.NewWeighted(fanout),
		logger: logger,
	}
}

func (p *ParallelSSH) Launch(ctx context.Context, targets []Target, cmd Command) []Result {
	results := make([]Result, len(targets))
	var wg sync.WaitGroup

	for i, t := range targets {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			results[i] = Result{Node: t.Node, Err: err}
			continue
		}

		wg.Add(1)
		go func(i int, t Target) {
			defer wg.Done()
			defer p.sem.Release(1)
			results[i] = p.ssh.run(ctx, t, cmd)
		}(i, t)
	}

	wg.Wait()
	return results
}

func (p *ParallelSSH) Stop(ctx context.Context, targets []Target, pattern string, force bool) error {
	return p.ssh.Stop(ctx, targets, pattern, force)
}

func (p *ParallelSSH) Status(ctx context.Context, targets []Target, pattern string) map[string]error {
	check := Command{Line: "pgrep -f " + shellQuote(statusPattern(pattern))}
	status := make(map[string]error, len(targets))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, t := range targets {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			status[t.Node] = err
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			defer p.sem.Release(1)
			r := p.ssh.run(ctx, t, check)
			mu.Lock()
			status[t.Node] = r.Err
			mu.Unlock()
		}(t)
	}

	wg.Wait()
	return status
}

func (p *ParallelSSH) Close() {
	p.ssh.Close()
}
