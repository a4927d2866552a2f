// Package scheduler provides unified scheduler management using gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/veil-vpn/veil/internal/shared/biztime"
	"github.com/veil-vpn/veil/internal/shared/config"
	"github.com/veil-vpn/veil/internal/shared/logger"
)

// BatchJob defines the interface for a scheduled batch processing job.
// Each Execute call processes a batch and returns the number of items processed.
type BatchJob interface {
	Execute(ctx context.Context) (int, error)
}

// ExpirySweeper tears down devices whose paid period has ended.
// trialOnly restricts the pass to trial devices so they can be reaped
// on a much tighter interval than the general sweep.
type ExpirySweeper interface {
	Execute(ctx context.Context, trialOnly bool) (int, error)
}

// SchedulerManager manages all scheduled jobs using gocron v2.
// It runs the four maintenance passes of the provisioning subsystem:
// trial expiry, general expiry with warnings, reconciliation with orphan
// pruning, and the daily balance charge.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface

	// Track whether the scheduler has been started
	started   bool
	startedMu sync.RWMutex
}

// NewSchedulerManager creates a new SchedulerManager instance.
// It initializes gocron with the business timezone for cron expressions.
func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(biztime.Location()),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulerManager{
		scheduler: scheduler,
		logger:    log,
	}, nil
}

// RegisterExpiryJobs registers the two expiry passes:
// - trial expiry on a tight interval, so trial accounts stop minutes after
//   their window closes
// - general expiry plus expiring-soon warnings on a wider interval
func (m *SchedulerManager) RegisterExpiryJobs(
	cfg config.SweepConfig,
	expireJob ExpirySweeper,
	warnJob BatchJob,
) error {
	trialInterval := time.Duration(cfg.TrialIntervalMinutes) * time.Minute
	if trialInterval <= 0 {
		trialInterval = time.Minute
	}
	expiryInterval := time.Duration(cfg.ExpiryIntervalMinutes) * time.Minute
	if expiryInterval <= 0 {
		expiryInterval = time.Hour
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(trialInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			m.processExpiry(ctx, expireJob, true)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("expiry", "trial"),
		gocron.WithName("trial-expiry"),
	)
	if err != nil {
		return err
	}

	_, err = m.scheduler.NewJob(
		gocron.DurationJob(expiryInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			m.processExpiry(ctx, expireJob, false)
			m.processWarnings(ctx, warnJob)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("expiry", "warning"),
		gocron.WithName("expiry-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered expiry jobs",
		"trial_interval", trialInterval,
		"expiry_interval", expiryInterval,
	)
	return nil
}

func (m *SchedulerManager) processExpiry(ctx context.Context, job ExpirySweeper, trialOnly bool) {
	startTime := biztime.NowUTC()

	count, err := job.Execute(ctx, trialOnly)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("failed to process expired devices",
			"error", err,
			"trial_only", trialOnly,
			"duration", time.Since(startTime),
		)
		return
	}

	if count > 0 {
		m.logger.Infow("expired devices processed",
			"count", count,
			"trial_only", trialOnly,
			"duration", time.Since(startTime),
		)
	}
}

func (m *SchedulerManager) processWarnings(ctx context.Context, job BatchJob) {
	count, err := job.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("failed to send expiry warnings", "error", err)
		return
	}

	if count > 0 {
		m.logger.Infow("expiry warnings sent", "count", count)
	}
}

// RegisterReconcileJobs registers the reconciliation pass:
// - Deactivate local devices whose remote account has vanished and realign
//   the in-memory node load counters
// - Delete remote accounts no local active device claims
func (m *SchedulerManager) RegisterReconcileJobs(
	cfg config.SweepConfig,
	reconcileJob BatchJob,
	pruneJob BatchJob,
) error {
	interval := time.Duration(cfg.ReconcileIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
			defer cancel()
			m.processReconcile(ctx, reconcileJob, pruneJob)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("reconcile", "orphan"),
		gocron.WithName("reconcile-sweep"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered reconcile jobs", "interval", interval)
	return nil
}

func (m *SchedulerManager) processReconcile(ctx context.Context, reconcileJob, pruneJob BatchJob) {
	startTime := biztime.NowUTC()

	// Step 1: local rows whose remote account vanished
	reconciled, err := reconcileJob.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("failed to reconcile devices",
			"error", err,
			"duration", time.Since(startTime),
		)
	} else if reconciled > 0 {
		m.logger.Infow("vanished remote accounts reconciled",
			"count", reconciled,
			"duration", time.Since(startTime),
		)
	}

	// Step 2: remote accounts no local device claims
	pruned, err := pruneJob.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("failed to prune orphan accounts", "error", err)
		return
	}
	if pruned > 0 {
		m.logger.Infow("orphan accounts pruned", "count", pruned)
	}
}

// RegisterBillingJobs registers the daily charge pass.
// It runs shortly after midnight business time so the debit lands on the
// calendar day it pays for.
func (m *SchedulerManager) RegisterBillingJobs(chargeJob BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.CronJob("1 0 * * *", false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
			defer cancel()
			m.processDailyCharge(ctx, chargeJob)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("billing", "daily-charge"),
		gocron.WithName("daily-charge"),
	)
	if err != nil {
		return err
	}

	m.logger.Infow("registered billing jobs", "schedule", "00:01 business time")
	return nil
}

func (m *SchedulerManager) processDailyCharge(ctx context.Context, chargeJob BatchJob) {
	m.logger.Infow("daily charge pass started")

	startTime := biztime.NowUTC()

	count, err := chargeJob.Execute(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.logger.Errorw("daily charge pass failed",
			"error", err,
			"duration", time.Since(startTime),
		)
		return
	}

	m.logger.Infow("daily charge pass completed",
		"users_charged", count,
		"duration", time.Since(startTime),
	)
}

// Start starts the scheduler and all registered jobs.
func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}

	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop gracefully stops the scheduler.
// It waits for all running jobs to complete before returning.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")

	err := m.scheduler.Shutdown()
	m.started = false

	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}

	m.logger.Infow("scheduler manager stopped")
	return nil
}

// IsStarted returns whether the scheduler is running.
func (m *SchedulerManager) IsStarted() bool {
	m.startedMu.RLock()
	defer m.startedMu.RUnlock()
	return m.started
}

// Jobs returns all registered jobs for inspection.
func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
