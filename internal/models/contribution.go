// Package models defines the database models for the governance engine.
package models

import "time"

// Contributor types.
const (
	ContributorMergeMiner   = "merge_miner"
	ContributorFeeForwarder = "fee_forwarder"
	ContributorZapUser      = "zap_user"
	ContributorEconomicNode = "economic_node"
)

// Contribution types.
const (
	ContributionMergeMining   = "merge_mining"
	ContributionFeeForwarding = "fee_forwarding"
	ContributionZap           = "zap"
)

// Contribution is an immutable, externally-verified contribution fact.
// Rows are append-only; a row is never updated after insert.
type Contribution struct {
	ID               string    `gorm:"primaryKey;size:36"`
	ContributorID    string    `gorm:"size:128;index:idx_contrib_by_time;index"`
	ContributorType  string    `gorm:"size:32;index"`
	ContributionType string    `gorm:"size:32;index"`
	AmountSat        int64     `gorm:"not null"`
	OccurredAt       time.Time `gorm:"index:idx_contrib_by_time;index"`
	Verified         bool
	ProofReference   string `gorm:"size:256;uniqueIndex;not null"`
	CreatedAt        time.Time
}
