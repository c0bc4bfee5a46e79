package models

import "time"

// WeightSnapshot is one contributor's weight as of a recompute pass.
// Snapshots are superseded by newer passes, never mutated; all rows of one
// pass share the same ComputedAt.
type WeightSnapshot struct {
	ID                uint      `gorm:"primaryKey"`
	ContributorID     string    `gorm:"size:128;index:ux_snapshot,unique;index"`
	MergeMiningBTC    float64   // decayed merge-mining component
	FeeForwardingBTC  float64   // decayed fee-forwarding component
	CumulativeZapsBTC float64   // decayed zap component
	RawWeight         float64   // sqrt of decayed total, pre-cap
	CappedWeight      float64   // after per-entity cap
	SystemTotalWeight float64   // sum of all raw weights in this pass
	ComputedAt        time.Time `gorm:"index:ux_snapshot,unique;index"`
	CreatedAt         time.Time
}
