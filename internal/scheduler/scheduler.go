// Package scheduler runs the periodic pool snapshot job.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/elys-network/crabfarm/internal/logger"
	"github.com/elys-network/crabfarm/internal/metrics"
	"github.com/elys-network/crabfarm/internal/types"
)

// SnapshotSource measures every pool at the current block.
type SnapshotSource interface {
	Snapshots(ctx context.Context) ([]types.PoolSnapshot, error)
}

// SnapshotSink persists measured snapshots.
type SnapshotSink interface {
	SaveSnapshots(ctx context.Context, snapshots []types.PoolSnapshot) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	Cron   *cron.Cron
	Source SnapshotSource
	Sink   SnapshotSink
	Ctx    context.Context

	logger zerolog.Logger
}

// NewScheduler creates a new Scheduler. Jobs run with ctx and stop being useful once it is done.
func NewScheduler(ctx context.Context, source SnapshotSource, sink SnapshotSink) *Scheduler {
	return &Scheduler{
		Cron:   cron.New(),
		Source: source,
		Sink:   sink,
		Ctx:    ctx,
		logger: logger.GetForComponent("scheduler"),
	}
}

// RegisterSnapshots schedules the snapshot job on a cron spec such as "@every 10m" or "*/5 * * * *".
func (s *Scheduler) RegisterSnapshots(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	s.logger.Info().Str("schedule", spec).Msg("Snapshot task registered")
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Msg("Scheduler started")
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RecordSnapshots measures and persists one round of snapshots.
func (s *Scheduler) RecordSnapshots(ctx context.Context) (int, error) {
	snapshots, err := s.Source.Snapshots(ctx)
	if err != nil {
		metrics.SnapshotsRecorded.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("measure pools: %w", err)
	}
	if len(snapshots) == 0 {
		metrics.SnapshotsRecorded.WithLabelValues("empty").Inc()
		return 0, nil
	}
	if err := s.Sink.SaveSnapshots(ctx, snapshots); err != nil {
		metrics.SnapshotsRecorded.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("save snapshots: %w", err)
	}
	metrics.SnapshotsRecorded.WithLabelValues("success").Inc()
	return len(snapshots), nil
}

func (s *Scheduler) snapshotTask() {
	if s.Ctx.Err() != nil {
		return
	}
	n, err := s.RecordSnapshots(s.Ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Snapshot task failed")
		return
	}
	s.logger.Debug().Int("pools", n).Msg("Snapshots recorded")
}
