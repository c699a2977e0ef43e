package checkpoint

import "errors"

var (
	// ErrNotVerified — checkpoint не прошёл проверку целостности,
	// восстановление из него запрещено.
	ErrNotVerified = errors.New("checkpoint is not verified")

	// ErrNoCheckpoint — у execution нет верифицированных checkpoints.
	ErrNoCheckpoint = errors.New("no verified checkpoint")

	// ErrResourcePlanStale — план исходного execution несовместим с
	// текущим ResourceGraph (узлы исчезли или ёмкость уменьшилась).
	ErrResourcePlanStale = errors.New("resource plan is stale")

	// ErrNotRunning — периодические checkpoints создаются только для
	// execution в статусе RUNNING.
	ErrNotRunning = errors.New("execution is not running")
)
