package models

import "time"

// Proposal statuses.
const (
	ProposalOpen      = "open"
	ProposalPassed    = "passed"
	ProposalVetoed    = "vetoed"
	ProposalExpired   = "expired"
	ProposalWithdrawn = "withdrawn"
)

// Proposal is a governance proposal under vote. Status transitions happen
// only through the round controller.
type Proposal struct {
	ID             string `gorm:"primaryKey;size:128"`
	Tier           int    `gorm:"not null;index"`
	Originator     string `gorm:"size:128"`
	Status         string `gorm:"size:16;index"`
	RequiredRounds int
	CurrentRound   int       // 1-based; the round currently open or scheduled
	RoundOpenedAt  time.Time // opening instant of the current round
	RoundClosesAt  time.Time `gorm:"index"` // scheduled close of the current round
	OpenedAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
