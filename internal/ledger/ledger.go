// Package ledger implements the append-only contribution fact store.
// It performs no decay, capping or proof verification; contributions
// arrive already verified by external collaborators.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"governance-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is a verified contribution offered for recording.
type Submission struct {
	ContributorID    string
	ContributorType  string
	ContributionType string
	AmountSat        int64
	OccurredAt       time.Time
	Verified         bool
	ProofReference   string
}

type Ledger struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends a contribution and its audit row. Replays of an already
// recorded proof return the original contribution ID with ErrDuplicateProof;
// a replay with different fields returns ErrProofConflict.
func (l *Ledger) Record(sub Submission) (string, error) {
	if err := validate(sub); err != nil {
		return "", err
	}

	id := uuid.NewString()
	err := l.db.Transaction(func(tx *gorm.DB) error {
		// Atomic check-and-insert keyed by proof_reference; the unique
		// index backstops concurrent writers racing on the same proof.
		if dupErr := checkExisting(tx, sub); dupErr != nil {
			return dupErr
		}

		rec := models.Contribution{
			ID:               id,
			ContributorID:    sub.ContributorID,
			ContributorType:  sub.ContributorType,
			ContributionType: sub.ContributionType,
			AmountSat:        sub.AmountSat,
			OccurredAt:       sub.OccurredAt,
			Verified:         sub.Verified,
			ProofReference:   sub.ProofReference,
		}
		if err := tx.Create(&rec).Error; err != nil {
			// Lost a race on the unique index; re-check to classify
			if dupErr := checkExisting(tx, sub); dupErr != nil {
				return dupErr
			}
			return fmt.Errorf("record contribution: %w", err)
		}

		audit := models.ProofAudit{
			ProofReference: sub.ProofReference,
			ContributionID: id,
			ContributorID:  sub.ContributorID,
			AmountSat:      sub.AmountSat,
			RecordedAt:     time.Now().UTC(),
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		// Surface the original ID on idempotent replays
		var dup *duplicateError
		if errors.As(err, &dup) {
			if dup.conflict {
				return "", fmt.Errorf("proof %s: %w", sub.ProofReference, ErrProofConflict)
			}
			return dup.existingID, ErrDuplicateProof
		}
		return "", err
	}
	return id, nil
}

// Query returns the contributor's contributions inside [from, to], ordered
// by occurred_at ascending (id as tie-break) so decay sums are deterministic.
// contributionType may be empty to select all types.
func (l *Ledger) Query(contributorID, contributionType string, from, to time.Time) ([]models.Contribution, error) {
	q := l.db.Where("contributor_id = ? AND occurred_at >= ? AND occurred_at <= ?", contributorID, from, to)
	if contributionType != "" {
		q = q.Where("contribution_type = ?", contributionType)
	}
	var out []models.Contribution
	if err := q.Order("occurred_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Contributors returns every contributor id present in the ledger.
func (l *Ledger) Contributors() ([]string, error) {
	var ids []string
	err := l.db.Model(&models.Contribution{}).
		Distinct("contributor_id").
		Order("contributor_id ASC").
		Pluck("contributor_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func validate(sub Submission) error {
	if sub.AmountSat <= 0 {
		return fmt.Errorf("amount %d sat: %w", sub.AmountSat, ErrInvalidContribution)
	}
	if !sub.Verified {
		return fmt.Errorf("unverified proof: %w", ErrInvalidContribution)
	}
	if sub.ContributorID == "" || sub.ProofReference == "" {
		return fmt.Errorf("missing contributor or proof reference: %w", ErrInvalidContribution)
	}
	switch sub.ContributionType {
	case models.ContributionMergeMining, models.ContributionFeeForwarding, models.ContributionZap:
	default:
		return fmt.Errorf("unknown contribution type %q: %w", sub.ContributionType, ErrInvalidContribution)
	}
	return nil
}

// duplicateError carries the classification of a proof replay out of the
// transaction closure.
type duplicateError struct {
	existingID string
	conflict   bool
}

func (e *duplicateError) Error() string {
	if e.conflict {
		return "proof already consumed with different fields"
	}
	return "proof already consumed"
}

func checkExisting(tx *gorm.DB, sub Submission) error {
	var existing models.Contribution
	err := tx.Where("proof_reference = ?", sub.ProofReference).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ContributorID == sub.ContributorID &&
		existing.ContributionType == sub.ContributionType &&
		existing.AmountSat == sub.AmountSat &&
		existing.OccurredAt.Equal(sub.OccurredAt) {
		return &duplicateError{existingID: existing.ID}
	}
	return &duplicateError{conflict: true}
}
