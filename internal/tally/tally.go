// Package tally aggregates a proposal round's zap votes and economic node
// signals into a single RoundResult.
package tally

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"governance-engine/internal/models"
	"governance-engine/internal/weights"

	"gorm.io/gorm"
)

var (
	// ErrStaleSnapshot means no weight snapshot batch newer than the
	// round's opening exists. Recoverable: recompute, then retry.
	ErrStaleSnapshot = errors.New("stale weight snapshot")

	// ErrInvalidTier flags an unrecognized proposal tier.
	ErrInvalidTier = errors.New("invalid tier")

	// ErrInvalidVote rejects malformed zap vote submissions.
	ErrInvalidVote = errors.New("invalid vote")
)

// tierThresholds maps proposal tier to its fixed total-weight threshold.
var tierThresholds = map[int]float64{
	1: 100,
	2: 500,
	3: 1000,
	4: 2500,
	5: 5000,
}

// ThresholdForTier returns the fixed vote threshold for a tier.
func ThresholdForTier(tier int) (float64, error) {
	t, ok := tierThresholds[tier]
	if !ok {
		return 0, fmt.Errorf("tier %d: %w", tier, ErrInvalidTier)
	}
	return t, nil
}

// Window is a round's voting window. Votes with occurred_at in
// [Open, Close) count; anything later belongs to a later round.
type Window struct {
	Open  time.Time
	Close time.Time
}

type Aggregator struct {
	db     *gorm.DB
	params weights.Params
	policy VetoPolicy
}

func New(db *gorm.DB, params weights.Params, policy VetoPolicy) *Aggregator {
	return &Aggregator{db: db, params: params, policy: policy}
}

// RecordZapVote appends a directed zap vote. The zap must already be
// matched to a governance event by the Nostr-layer collaborator.
func (a *Aggregator) RecordZapVote(proposalID, governanceEventID, voterID string, amountSat int64, voteType string, occurredAt time.Time) error {
	if proposalID == "" || voterID == "" {
		return fmt.Errorf("missing proposal or voter id: %w", ErrInvalidVote)
	}
	if amountSat <= 0 {
		return fmt.Errorf("amount %d sat: %w", amountSat, ErrInvalidVote)
	}
	switch voteType {
	case models.VoteSupport, models.VoteVeto, models.VoteAbstain:
	default:
		return fmt.Errorf("unknown vote type %q: %w", voteType, ErrInvalidVote)
	}
	return a.db.Create(&models.ZapVote{
		ProposalID:        proposalID,
		GovernanceEventID: governanceEventID,
		VoterID:           voterID,
		AmountSat:         amountSat,
		VoteType:          voteType,
		OccurredAt:        occurredAt,
	}).Error
}

// TallyRound reduces a closed round window to a RoundResult. It requires a
// snapshot batch computed at or after the window opened; the cap on a
// voter's summed zap weight uses that batch's system total. The result is
// not persisted here; the round controller owns RoundResult rows.
func (a *Aggregator) TallyRound(proposalID string, roundNumber, tier int, window Window) (models.RoundResult, error) {
	var res models.RoundResult

	threshold, err := ThresholdForTier(tier)
	if err != nil {
		return res, err
	}

	calc := weights.NewCalculator(a.db, a.params)
	_, computedAt, systemTotal, ok, err := calc.LatestBatch()
	if err != nil {
		return res, err
	}
	if !ok || computedAt.Before(window.Open) {
		return res, fmt.Errorf("round %d of %s: %w", roundNumber, proposalID, ErrStaleSnapshot)
	}

	zap, err := a.tallyZapVotes(proposalID, window, systemTotal)
	if err != nil {
		return res, err
	}
	mining, economic, err := a.tallyNodeSignals(proposalID, window.Close)
	if err != nil {
		return res, err
	}

	// A voter counted both through a zap and through a node signal
	// contributes both: sources are distinct by design.
	support := zap.support + mining.support + economic.support
	veto := zap.veto + mining.veto + economic.veto
	abstain := zap.abstain + mining.abstain + economic.abstain
	total := support + veto + abstain

	return models.RoundResult{
		ProposalID:    proposalID,
		RoundNumber:   roundNumber,
		SupportWeight: support,
		VetoWeight:    veto,
		AbstainWeight: abstain,
		TotalWeight:   total,
		Threshold:     threshold,
		ThresholdMet:  total >= threshold,
		VetoBlocked:   total > 0 && a.policy.Blocked(mining, economic, zap),
		ClosedAt:      window.Close,
	}, nil
}

// tallyZapVotes computes per-vote quadratic weights, then caps each voter's
// summed zap weight for the round at the system cap before adding to the
// buckets. When a voter exceeds the cap their bucket split is scaled down
// proportionally.
func (a *Aggregator) tallyZapVotes(proposalID string, window Window, systemTotal float64) (buckets, error) {
	var votes []models.ZapVote
	err := a.db.
		Where("proposal_id = ? AND occurred_at >= ? AND occurred_at < ?", proposalID, window.Open, window.Close).
		Order("voter_id ASC, occurred_at ASC, id ASC").
		Find(&votes).Error
	if err != nil {
		return buckets{}, err
	}

	perVoter := make(map[string]*buckets)
	var voters []string
	for _, v := range votes {
		w := a.params.ZapWeight(v.AmountSat)
		b, exists := perVoter[v.VoterID]
		if !exists {
			b = &buckets{}
			perVoter[v.VoterID] = b
			voters = append(voters, v.VoterID)
		}
		switch v.VoteType {
		case models.VoteSupport:
			b.support += w
		case models.VoteVeto:
			b.veto += w
		case models.VoteAbstain:
			b.abstain += w
		}
	}
	sort.Strings(voters)

	capLimit := systemTotal * a.params.CapPercentage
	var out buckets
	for _, voter := range voters {
		b := perVoter[voter]
		if t := b.total(); t > capLimit && t > 0 {
			scale := capLimit / t
			b.support *= scale
			b.veto *= scale
			b.abstain *= scale
		}
		out.support += b.support
		out.veto += b.veto
		out.abstain += b.abstain
	}
	return out, nil
}

// tallyNodeSignals folds the economic node signals active as of round
// close, split by the node class recorded on the signal.
func (a *Aggregator) tallyNodeSignals(proposalID string, closeAt time.Time) (mining, economic buckets, err error) {
	var signals []models.EconomicNodeVote
	err = a.db.
		Where("proposal_id = ? AND signed_at < ?", proposalID, closeAt).
		Order("node_id ASC").
		Find(&signals).Error
	if err != nil {
		return
	}

	for _, s := range signals {
		b := &economic
		if s.NodeClass == models.NodeClassMining {
			b = &mining
		}
		switch s.SignalType {
		case models.VoteSupport:
			b.support += s.WeightAtSignalTime
		case models.VoteVeto:
			b.veto += s.WeightAtSignalTime
		case models.VoteAbstain:
			b.abstain += s.WeightAtSignalTime
		}
	}
	return
}
