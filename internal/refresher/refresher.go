// Package refresher keeps stored profile charts in step with their birth
// data and the running engine.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mombiemala/nefeli-web-sub000/internal/chart"
	"github.com/mombiemala/nefeli-web-sub000/internal/storage"
)

type Store interface {
	GetProfile(ctx context.Context, id string) (*storage.Profile, error)
	GetChart(ctx context.Context, profileID string) (*storage.ChartRecord, error)
	SaveChart(ctx context.Context, rec *storage.ChartRecord) error
	StaleProfiles(ctx context.Context, engineVersion string, limit int) ([]storage.Profile, error)
	MarkRefreshFailed(ctx context.Context, id string, at time.Time) error
}

type Publisher interface {
	PublishChart(profileID, name string, c *chart.Chart) error
}

type Refresher struct {
	store     Store
	engine    *chart.Engine
	publisher Publisher
	interval  time.Duration
	batchSize int
	enabled   bool
	logger    *zap.Logger

	mu      sync.RWMutex
	running bool
	status  Status
}

type Config struct {
	Store     Store
	Engine    *chart.Engine
	Publisher Publisher // optional
	Interval  time.Duration
	BatchSize int
	Enabled   bool
	Logger    *zap.Logger
}

// Status describes the last completed pass.
type Status struct {
	LastRun   time.Time `json:"last_run"`
	Refreshed int       `json:"refreshed"`
	Failed    int       `json:"failed"`
	LastError string    `json:"last_error,omitempty"`
}

func New(cfg Config) *Refresher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Refresher{
		store:     cfg.Store,
		engine:    cfg.Engine,
		publisher: cfg.Publisher,
		interval:  cfg.Interval,
		batchSize: batch,
		enabled:   cfg.Enabled,
		logger:    logger,
	}
}

// Start runs a pass immediately and then every interval until ctx is done.
func (r *Refresher) Start(ctx context.Context) error {
	if !r.enabled {
		r.logger.Info("refresher is disabled")
		return nil
	}
	if r.interval <= 0 {
		return fmt.Errorf("refresher interval must be positive, got %s", r.interval)
	}

	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	r.logger.Info("starting refresher",
		zap.Duration("interval", r.interval),
		zap.String("engine", r.engine.Version()))

	r.pass(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			r.mu.Lock()
			r.running = false
			r.mu.Unlock()
			return nil
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Refresher) pass(ctx context.Context) {
	if _, err := r.RefreshOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("refresh pass failed", zap.Error(err))
	}
}

// RefreshOnce recomputes one batch of stale charts and returns how many
// were refreshed. Profiles whose birth data cannot be charted are logged,
// marked as failed and skipped.
func (r *Refresher) RefreshOnce(ctx context.Context) (int, error) {
	profiles, err := r.store.StaleProfiles(ctx, r.engine.Version(), r.batchSize)
	if err != nil {
		r.record(0, 0, err)
		return 0, fmt.Errorf("list stale profiles: %w", err)
	}

	refreshed, failed := 0, 0
	var lastErr error
	for i := range profiles {
		if ctx.Err() != nil {
			break
		}
		p := &profiles[i]
		if _, err := r.Recompute(ctx, p); err != nil {
			failed++
			lastErr = err
			r.logger.Warn("chart refresh failed",
				zap.String("profile_id", p.ID),
				zap.Error(err))
			if merr := r.store.MarkRefreshFailed(ctx, p.ID, time.Now()); merr != nil {
				r.logger.Warn("failed to mark refresh failure",
					zap.String("profile_id", p.ID),
					zap.Error(merr))
			}
			continue
		}
		refreshed++
	}

	r.record(refreshed, failed, lastErr)
	if refreshed > 0 || failed > 0 {
		r.logger.Info("refreshed charts",
			zap.Int("refreshed", refreshed),
			zap.Int("failed", failed))
	}
	return refreshed, ctx.Err()
}

// Recompute charts p, stores the result and publishes it.
func (r *Refresher) Recompute(ctx context.Context, p *storage.Profile) (*chart.Chart, error) {
	bd, err := p.BirthData()
	if err != nil {
		return nil, err
	}

	c, err := r.engine.Compute(bd)
	if err != nil {
		return nil, err
	}

	rec, err := storage.NewChartRecord(p.ID, bd.Fingerprint(), r.engine.Version(), c)
	if err != nil {
		return nil, err
	}
	if err := r.store.SaveChart(ctx, rec); err != nil {
		return nil, fmt.Errorf("save chart: %w", err)
	}

	if r.publisher != nil {
		if err := r.publisher.PublishChart(p.ID, p.Name, c); err != nil {
			r.logger.Warn("failed to publish chart",
				zap.String("profile_id", p.ID),
				zap.Error(err))
		}
	}

	r.logger.Debug("chart computed",
		zap.String("profile_id", p.ID),
		zap.String("summary", c.Summary()))
	return c, nil
}

// ChartFor returns the stored chart of a profile, recomputing it first
// when it is missing or stale. cached reports whether the stored chart
// was served as is.
func (r *Refresher) ChartFor(ctx context.Context, profileID string) (c *chart.Chart, cached bool, err error) {
	p, err := r.store.GetProfile(ctx, profileID)
	if err != nil {
		return nil, false, err
	}

	bd, err := p.BirthData()
	if err != nil {
		return nil, false, err
	}

	rec, err := r.store.GetChart(ctx, profileID)
	switch {
	case err == nil && !rec.Stale(bd.Fingerprint(), r.engine.Version()):
		decoded, derr := rec.Chart()
		if derr == nil {
			return decoded, true, nil
		}
		r.logger.Warn("discarding undecodable chart", zap.String("profile_id", profileID), zap.Error(derr))
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return nil, false, err
	}

	c, err = r.Recompute(ctx, p)
	if err != nil {
		return nil, false, err
	}
	return c, false, nil
}

func (r *Refresher) record(refreshed, failed int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = Status{
		LastRun:   time.Now(),
		Refreshed: refreshed,
		Failed:    failed,
	}
	if err != nil {
		r.status.LastError = err.Error()
	}
}

func (r *Refresher) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}
