package models

import "time"

// ProofAudit records every accepted contribution keyed by its proof
// reference, giving replay protection a durable trail across restarts.
type ProofAudit struct {
	ID             uint   `gorm:"primaryKey"`
	ProofReference string `gorm:"size:256;index"`
	ContributionID string `gorm:"size:36;index"`
	ContributorID  string `gorm:"size:128"`
	AmountSat      int64
	RecordedAt     time.Time `gorm:"index"`
	CreatedAt      time.Time
}
