// Package rounds drives the per-proposal voting state machine:
// Scheduled -> Open -> Closed per round, ending in passed, vetoed,
// expired or withdrawn.
package rounds

import (
	"errors"
	"fmt"
	"time"

	"governance-engine/internal/models"
	"governance-engine/internal/tally"

	"gorm.io/gorm"
)

var (
	// ErrProposalNotFound is returned for unknown proposal ids.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrProposalClosed rejects operations on proposals in a terminal state.
	ErrProposalClosed = errors.New("proposal already closed")

	// ErrRoundNotOpen rejects an explicit close before the current round's
	// scheduled opening.
	ErrRoundNotOpen = errors.New("round not open yet")

	// ErrNotOriginator rejects a withdrawal by anyone but the proposal's
	// originator.
	ErrNotOriginator = errors.New("not the proposal originator")

	// ErrAlreadyVoted rejects a withdrawal once any round has closed;
	// closed rounds are immutable history.
	ErrAlreadyVoted = errors.New("a round has already closed")
)

// Result is the read-only view handed to downstream consumers.
type Result struct {
	Status string
	Rounds []models.RoundResult
}

type Controller struct {
	db  *gorm.DB
	agg *tally.Aggregator
}

func NewController(db *gorm.DB, agg *tally.Aggregator) *Controller {
	return &Controller{db: db, agg: agg}
}

// OpenProposal registers a proposal and opens its first round. An
// unrecognized tier is a configuration error and fails immediately.
func (c *Controller) OpenProposal(id string, tier int, originator string, now time.Time) (*models.Proposal, error) {
	sched, err := scheduleForTier(tier)
	if err != nil {
		return nil, err
	}
	p := models.Proposal{
		ID:             id,
		Tier:           tier,
		Originator:     originator,
		Status:         models.ProposalOpen,
		RequiredRounds: sched.rounds,
		CurrentRound:   1,
		RoundOpenedAt:  now,
		RoundClosesAt:  now.AddDate(0, 0, sched.windowDays),
		OpenedAt:       now,
	}
	if err := c.db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("open proposal %s: %w", id, err)
	}
	return &p, nil
}

// CloseRound closes the proposal's current round, tallies it, persists the
// immutable RoundResult and advances the state machine. Reaching the
// scheduled close time and an explicit close command behave the same; an
// explicit close before the scheduled time freezes votes at now.
func (c *Controller) CloseRound(proposalID string, now time.Time) (models.RoundResult, error) {
	var result models.RoundResult
	err := c.db.Transaction(func(tx *gorm.DB) error {
		p, err := load(tx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != models.ProposalOpen {
			return fmt.Errorf("proposal %s is %s: %w", proposalID, p.Status, ErrProposalClosed)
		}
		if now.Before(p.RoundOpenedAt) {
			return fmt.Errorf("round %d of %s opens at %s: %w",
				p.CurrentRound, proposalID, p.RoundOpenedAt.Format(time.RFC3339), ErrRoundNotOpen)
		}

		closeAt := p.RoundClosesAt
		if now.Before(closeAt) {
			closeAt = now
		}

		result, err = c.agg.TallyRound(proposalID, p.CurrentRound, p.Tier, tally.Window{
			Open:  p.RoundOpenedAt,
			Close: closeAt,
		})
		if err != nil {
			return err
		}
		if err := tx.Create(&result).Error; err != nil {
			return fmt.Errorf("persist round result: %w", err)
		}

		return c.advance(tx, p, result, closeAt)
	})
	if err != nil {
		return models.RoundResult{}, err
	}
	return result, nil
}

// advance applies the all-or-nothing multi-round rule: every round must
// independently meet the threshold without a veto block; one failed round
// is terminal.
func (c *Controller) advance(tx *gorm.DB, p *models.Proposal, r models.RoundResult, closedAt time.Time) error {
	passed := r.ThresholdMet && !r.VetoBlocked
	switch {
	case !passed && r.VetoBlocked:
		p.Status = models.ProposalVetoed
	case !passed:
		p.Status = models.ProposalExpired
	case p.CurrentRound >= p.RequiredRounds:
		p.Status = models.ProposalPassed
	default:
		sched, err := scheduleForTier(p.Tier)
		if err != nil {
			return err
		}
		nextOpen := p.RoundOpenedAt.AddDate(0, 0, sched.spacingDays)
		if nextOpen.Before(closedAt) {
			nextOpen = closedAt
		}
		p.CurrentRound++
		p.RoundOpenedAt = nextOpen
		p.RoundClosesAt = nextOpen.AddDate(0, 0, sched.windowDays)
	}
	return tx.Save(p).Error
}

// Withdraw cancels a proposal at its originator's request. Allowed only
// while no round has closed.
func (c *Controller) Withdraw(proposalID, originator string) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		p, err := load(tx, proposalID)
		if err != nil {
			return err
		}
		if p.Status != models.ProposalOpen {
			return fmt.Errorf("proposal %s is %s: %w", proposalID, p.Status, ErrProposalClosed)
		}
		if p.Originator != originator {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrNotOriginator)
		}
		var closed int64
		if err := tx.Model(&models.RoundResult{}).Where("proposal_id = ?", proposalID).Count(&closed).Error; err != nil {
			return err
		}
		if closed > 0 {
			return fmt.Errorf("proposal %s: %w", proposalID, ErrAlreadyVoted)
		}
		p.Status = models.ProposalWithdrawn
		return tx.Save(p).Error
	})
}

// GetLatestResult returns the proposal's status and all closed rounds.
// Read-only and idempotent.
func (c *Controller) GetLatestResult(proposalID string) (Result, error) {
	p, err := load(c.db, proposalID)
	if err != nil {
		return Result{}, err
	}
	var rr []models.RoundResult
	if err := c.db.Where("proposal_id = ?", proposalID).Order("round_number ASC").Find(&rr).Error; err != nil {
		return Result{}, err
	}
	return Result{Status: p.Status, Rounds: rr}, nil
}

// DueProposals lists open proposals whose current round has reached its
// scheduled close time.
func (c *Controller) DueProposals(now time.Time) ([]string, error) {
	var ids []string
	err := c.db.Model(&models.Proposal{}).
		Where("status = ? AND round_closes_at <= ? AND round_opened_at <= ?", models.ProposalOpen, now, now).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// OpenProposals returns every proposal still in the open state, soonest
// close first.
func (c *Controller) OpenProposals() ([]models.Proposal, error) {
	var ps []models.Proposal
	if err := c.db.Where("status = ?", models.ProposalOpen).Order("round_closes_at ASC").Find(&ps).Error; err != nil {
		return nil, err
	}
	return ps, nil
}

func load(tx *gorm.DB, proposalID string) (*models.Proposal, error) {
	var p models.Proposal
	err := tx.Where("id = ?", proposalID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrProposalNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
