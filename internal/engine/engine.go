// Package engine runs the periodic governance job: refresh weight
// snapshots, close voting rounds whose windows have ended, and feed the
// dashboard.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"governance-engine/internal/config"
	"governance-engine/internal/ledger"
	"governance-engine/internal/logger"
	"governance-engine/internal/models"
	"governance-engine/internal/registry"
	"governance-engine/internal/rounds"
	"governance-engine/internal/tally"
	"governance-engine/internal/tui"
	"governance-engine/internal/weights"

	"gorm.io/gorm"
)

const (
	// TUIChannelBufferSize sizes the dashboard update channel
	TUIChannelBufferSize = 16
	// TUICloseDelay gives the TUI a moment to drain on shutdown
	TUICloseDelay = 200 * time.Millisecond
)

type Engine struct {
	cfg   config.Config
	db    *gorm.DB
	led   *ledger.Ledger
	calc  *weights.Calculator
	agg   *tally.Aggregator
	ctrl  *rounds.Controller
	reg   *registry.Registry
	log   *logger.Logger
	tuiCh chan<- interface{}

	mu            sync.RWMutex
	lastRecompute time.Time
}

func New(cfg config.Config, db *gorm.DB, tuiCh chan<- interface{}, log *logger.Logger) (*Engine, error) {
	params := weights.DefaultParams()
	agg := tally.New(db, params, tally.DefaultVetoPolicy())
	return &Engine{
		cfg:   cfg,
		db:    db,
		led:   ledger.New(db),
		calc:  weights.NewCalculator(db, params),
		agg:   agg,
		ctrl:  rounds.NewController(db, agg),
		reg:   registry.New(db),
		log:   log,
		tuiCh: tuiCh,
	}, nil
}

// Ledger exposes the contribution write path for verifier integrations.
func (e *Engine) Ledger() *ledger.Ledger { return e.led }

// Aggregator exposes zap vote ingestion.
func (e *Engine) Aggregator() *tally.Aggregator { return e.agg }

// Controller exposes proposal lifecycle operations.
func (e *Engine) Controller() *rounds.Controller { return e.ctrl }

// Registry exposes economic node registration and signals.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Run drives the recompute/close loop until the context is cancelled.
// The first pass runs immediately so a fresh start is never stale.
func (e *Engine) Run(ctx context.Context) error {
	e.tick(time.Now().UTC())

	ticker := time.NewTicker(e.cfg.RecomputeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.tick(time.Now().UTC())
		}
	}
}

// tick runs one pass: recompute snapshots first, then close due rounds,
// so round closes always see a snapshot newer than their opening.
func (e *Engine) tick(now time.Time) {
	n, err := e.calc.Recompute(now)
	if err != nil {
		e.log.Printf("weight recompute failed: %v", err)
	} else {
		e.mu.Lock()
		e.lastRecompute = now
		e.mu.Unlock()
		e.log.Printf("weight recompute: %d snapshots at %s", n, now.Format(time.RFC3339))
	}

	due, err := e.ctrl.DueProposals(now)
	if err != nil {
		e.log.Printf("list due proposals: %v", err)
		due = nil
	}
	for _, id := range due {
		res, err := e.ctrl.CloseRound(id, now)
		if err != nil {
			if errors.Is(err, tally.ErrStaleSnapshot) {
				// Next tick recomputes first and retries
				e.log.Printf("round close deferred for %s: %v", id, err)
				continue
			}
			e.log.Printf("round close failed for %s: %v", id, err)
			continue
		}
		e.log.Printf("closed round %d of %s: total=%.2f threshold=%.0f met=%t veto=%t",
			res.RoundNumber, id, res.TotalWeight, res.Threshold, res.ThresholdMet, res.VetoBlocked)
	}

	e.pushStatus(now)
}

// pushStatus sends a dashboard refresh without ever blocking the loop.
func (e *Engine) pushStatus(now time.Time) {
	if e.tuiCh == nil {
		return
	}

	snaps, computedAt, systemTotal, ok, err := e.calc.LatestBatch()
	if err != nil {
		e.log.Printf("load snapshots for dashboard: %v", err)
		return
	}
	info := tui.EngineInfo{
		Now:          now,
		DBDialect:    e.cfg.DBDialect,
		Contributors: len(snaps),
	}
	if ok {
		info.LastRecompute = computedAt
		info.SystemTotalWeight = systemTotal
	}

	ps, err := e.ctrl.OpenProposals()
	if err != nil {
		e.log.Printf("load proposals for dashboard: %v", err)
		return
	}
	info.OpenProposals = len(ps)

	rows := make([]tui.ProposalInfo, 0, len(ps))
	for _, p := range ps {
		row := tui.ProposalInfo{
			ID:             p.ID,
			Tier:           p.Tier,
			Status:         p.Status,
			Round:          p.CurrentRound,
			RequiredRounds: p.RequiredRounds,
			RoundClosesAt:  p.RoundClosesAt,
		}
		var last models.RoundResult
		err := e.db.Where("proposal_id = ?", p.ID).Order("round_number DESC").First(&last).Error
		if err == nil {
			row.Support = last.SupportWeight
			row.Veto = last.VetoWeight
			row.Abstain = last.AbstainWeight
			row.Threshold = last.Threshold
			row.HasTally = true
		}
		rows = append(rows, row)
	}

	select {
	case e.tuiCh <- info:
	default:
	}
	select {
	case e.tuiCh <- rows:
	default:
	}
}

func (e *Engine) Close() error {
	return nil
}
