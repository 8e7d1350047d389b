package reconcile

import (
	"context"
	"time"

	"github.com/riverqueue/river"
)

type SweepArgs struct{}

func (SweepArgs) Kind() string { return "reward_claim_sweep" }

type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	sweeper *Sweeper
}

func NewSweepWorker(s *Sweeper) *SweepWorker {
	return &SweepWorker{sweeper: s}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepArgs]) error {
	_, err := w.sweeper.Sweep(ctx)
	return err
}

// PeriodicJob schedules the sweep every interval, starting at boot.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
