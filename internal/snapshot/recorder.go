package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/avicke/foliotrack/internal/logger"
	"github.com/avicke/foliotrack/internal/storage"
	"github.com/avicke/foliotrack/internal/valuation"
)

// Store is the slice of the repository the recorder needs.
type Store interface {
	ListOwnerIDs() ([]string, error)
	ListPositions(ownerID string) ([]storage.Position, error)
	SaveSnapshot(snapshot *storage.PortfolioSnapshot) error
}

// Recorder periodically values every owner's portfolio and appends a
// snapshot row, feeding the history view.
type Recorder struct {
	store    Store
	engine   *valuation.Engine
	interval time.Duration
	logger   *logger.Logger
}

func NewRecorder(store Store, engine *valuation.Engine, interval time.Duration, log *logger.Logger) *Recorder {
	return &Recorder{
		store:    store,
		engine:   engine,
		interval: interval,
		logger:   log,
	}
}

func (r *Recorder) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("snapshot recorder started", "interval", r.interval.String())

	// Record once on start so a fresh install has a history point.
	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("snapshot recorder stopped")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

func (r *Recorder) runCycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in snapshot cycle", "panic", fmt.Sprint(rec))
		}
	}()

	owners, err := r.store.ListOwnerIDs()
	if err != nil {
		r.logger.Error("list owners", "error", err)
		return
	}

	for _, owner := range owners {
		positions, err := r.store.ListPositions(owner)
		if err != nil {
			r.logger.Error("list positions", "owner", owner, "error", err)
			continue
		}

		pf := r.engine.ValuePortfolio(ctx, positions, valuation.Filter{}, valuation.SortDefault)

		unpriced := 0
		for _, vp := range pf.Positions {
			if !vp.Priced {
				unpriced++
			}
		}

		snap := &storage.PortfolioSnapshot{
			OwnerID:        owner,
			TotalValue:     pf.TotalValue,
			PositionsCount: len(pf.Positions),
			UnpricedCount:  unpriced,
		}
		if err := r.store.SaveSnapshot(snap); err != nil {
			r.logger.Error("save snapshot", "owner", owner, "error", err)
			continue
		}
		r.logger.Debug("snapshot recorded",
			"owner", owner, "total_value", pf.TotalValue.String(), "positions", len(pf.Positions))
	}
}
