package models

import "time"

// RoundResult is the immutable tally of one closed voting round.
// Rows are append-only and never recomputed once written.
type RoundResult struct {
	ID            uint   `gorm:"primaryKey"`
	ProposalID    string `gorm:"size:128;index:ux_round,unique;index"`
	RoundNumber   int    `gorm:"index:ux_round,unique"`
	SupportWeight float64
	VetoWeight    float64
	AbstainWeight float64
	TotalWeight   float64
	Threshold     float64
	ThresholdMet  bool
	VetoBlocked   bool
	ClosedAt      time.Time `gorm:"index"`
	CreatedAt     time.Time
}
