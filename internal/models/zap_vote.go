package models

import "time"

// Vote types shared by zap votes and economic node signals.
const (
	VoteSupport = "support"
	VoteVeto    = "veto"
	VoteAbstain = "abstain"
)

// ZapVote stores a directed per-proposal zap. Rows are append-only: a later
// zap from the same voter is an additional row, never a replacement.
type ZapVote struct {
	ID                uint      `gorm:"primaryKey"`
	ProposalID        string    `gorm:"size:128;index"`
	GovernanceEventID string    `gorm:"size:128;index"`
	VoterID           string    `gorm:"size:128;index"`
	AmountSat         int64     `gorm:"not null"`
	VoteType          string    `gorm:"size:16;index"` // "support", "veto" or "abstain"
	OccurredAt        time.Time `gorm:"index"`
	CreatedAt         time.Time
}
