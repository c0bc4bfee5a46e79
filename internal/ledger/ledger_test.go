package ledger

import (
	"fmt"
	"testing"
	"time"

	dbpkg "governance-engine/internal/db"
	"governance-engine/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(
		sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	require.NoError(t, err)
	require.NoError(t, dbpkg.AutoMigrate(db))
	return db
}

func validSubmission(proof string) Submission {
	return Submission{
		ContributorID:    "miner-1",
		ContributorType:  models.ContributorMergeMiner,
		ContributionType: models.ContributionMergeMining,
		AmountSat:        5_000_000,
		OccurredAt:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Verified:         true,
		ProofReference:   proof,
	}
}

func TestRecordAndQuery(t *testing.T) {
	led := New(testDB(t))

	id, err := led.Record(validSubmission("proof-1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	sub2 := validSubmission("proof-2")
	sub2.OccurredAt = sub2.OccurredAt.Add(-24 * time.Hour)
	_, err = led.Record(sub2)
	require.NoError(t, err)

	got, err := led.Query("miner-1", "", time.Time{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Stable order: occurred_at ascending
	require.True(t, got[0].OccurredAt.Before(got[1].OccurredAt))
	require.Equal(t, "proof-2", got[0].ProofReference)
}

func TestRecordRejectsInvalid(t *testing.T) {
	led := New(testDB(t))

	sub := validSubmission("proof-neg")
	sub.AmountSat = 0
	_, err := led.Record(sub)
	require.ErrorIs(t, err, ErrInvalidContribution)

	sub = validSubmission("proof-unverified")
	sub.Verified = false
	_, err = led.Record(sub)
	require.ErrorIs(t, err, ErrInvalidContribution)

	sub = validSubmission("proof-badtype")
	sub.ContributionType = "donation"
	_, err = led.Record(sub)
	require.ErrorIs(t, err, ErrInvalidContribution)
}

func TestDuplicateProofIsIdempotent(t *testing.T) {
	db := testDB(t)
	led := New(db)

	first, err := led.Record(validSubmission("proof-dup"))
	require.NoError(t, err)

	again, err := led.Record(validSubmission("proof-dup"))
	require.ErrorIs(t, err, ErrDuplicateProof)
	require.Equal(t, first, again)

	var count int64
	require.NoError(t, db.Model(&models.Contribution{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestProofConflictIsFatal(t *testing.T) {
	led := New(testDB(t))

	_, err := led.Record(validSubmission("proof-conflict"))
	require.NoError(t, err)

	sub := validSubmission("proof-conflict")
	sub.AmountSat = 9_999_999
	_, err = led.Record(sub)
	require.ErrorIs(t, err, ErrProofConflict)
}

func TestRecordAppendsAudit(t *testing.T) {
	db := testDB(t)
	led := New(db)

	id, err := led.Record(validSubmission("proof-audit"))
	require.NoError(t, err)

	var audit models.ProofAudit
	require.NoError(t, db.Where("proof_reference = ?", "proof-audit").First(&audit).Error)
	require.Equal(t, id, audit.ContributionID)
	require.EqualValues(t, 5_000_000, audit.AmountSat)

	// A rejected replay must not add a second audit row
	_, err = led.Record(validSubmission("proof-audit"))
	require.ErrorIs(t, err, ErrDuplicateProof)
	var count int64
	require.NoError(t, db.Model(&models.ProofAudit{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestQueryFiltersByType(t *testing.T) {
	led := New(testDB(t))

	_, err := led.Record(validSubmission("proof-mm"))
	require.NoError(t, err)
	zap := validSubmission("proof-zap")
	zap.ContributionType = models.ContributionZap
	zap.ContributorType = models.ContributorZapUser
	_, err = led.Record(zap)
	require.NoError(t, err)

	got, err := led.Query("miner-1", models.ContributionZap, time.Time{}, time.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, models.ContributionZap, got[0].ContributionType)
}

func TestContributors(t *testing.T) {
	led := New(testDB(t))

	a := validSubmission("proof-a")
	a.ContributorID = "bob"
	_, err := led.Record(a)
	require.NoError(t, err)
	b := validSubmission("proof-b")
	b.ContributorID = "alice"
	_, err = led.Record(b)
	require.NoError(t, err)

	ids, err := led.Contributors()
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, ids)
}
