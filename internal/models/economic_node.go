package models

import "time"

// Node classes for veto bucketing, fixed at registration time.
const (
	NodeClassMining   = "mining"
	NodeClassEconomic = "economic"
)

// Node statuses.
const (
	NodeStatusActive    = "active"
	NodeStatusSuspended = "suspended"
)

// EconomicNode is a registered mining pool, exchange or custodian.
type EconomicNode struct {
	ID           uint   `gorm:"primaryKey"`
	NodeID       string `gorm:"size:128;uniqueIndex;not null"`
	Class        string `gorm:"size:16;index"` // "mining" or "economic"
	Status       string `gorm:"size:16;index"`
	RegisteredAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EconomicNodeVote is a node's active signal on one proposal. One row per
// (proposal, node); a later signal overwrites the row (last-write-wins).
type EconomicNodeVote struct {
	ID                 uint      `gorm:"primaryKey"`
	ProposalID         string    `gorm:"size:128;index:ux_node_vote,unique;index"`
	NodeID             string    `gorm:"size:128;index:ux_node_vote,unique;index"`
	NodeClass          string    `gorm:"size:16"` // copied from the node at signal time
	SignalType         string    `gorm:"size:16;index"`
	WeightAtSignalTime float64
	SignedAt           time.Time `gorm:"index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
