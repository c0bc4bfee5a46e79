package weights

import (
	"errors"
	"fmt"
	"time"

	"governance-engine/internal/ledger"
	"governance-engine/internal/models"

	"gorm.io/gorm"
)

// Calculator runs the periodic two-pass weight recompute over the ledger.
type Calculator struct {
	db     *gorm.DB
	params Params
}

func NewCalculator(db *gorm.DB, params Params) *Calculator {
	return &Calculator{db: db, params: params}
}

func (c *Calculator) Params() Params {
	return c.params
}

// contributorTotals is one contributor's pass-1 state.
type contributorTotals struct {
	id            string
	mergeMining   float64
	feeForwarding float64
	zaps          float64
	raw           float64
}

// Recompute produces a fresh snapshot batch stamped computedAt. Pass 1
// computes every contributor's decayed totals and raw weight; pass 2 caps
// each raw weight against the pass-1 system total. The whole batch runs in
// one transaction so the cap never observes a half-written ledger.
// Returns the number of snapshot rows written.
func (c *Calculator) Recompute(computedAt time.Time) (int, error) {
	var rows []models.WeightSnapshot

	err := c.db.Transaction(func(tx *gorm.DB) error {
		led := ledger.New(tx)
		ids, err := led.Contributors()
		if err != nil {
			return fmt.Errorf("list contributors: %w", err)
		}

		// Pass 1: decayed totals and raw weights
		totals := make([]contributorTotals, 0, len(ids))
		systemTotal := 0.0
		for _, id := range ids {
			ct, err := c.passOne(led, id, computedAt)
			if err != nil {
				return err
			}
			systemTotal += ct.raw
			totals = append(totals, ct)
		}

		// Pass 2: apply the per-entity cap against the pass-1 total.
		// Never re-normalize after capping.
		rows = rows[:0]
		for _, ct := range totals {
			rows = append(rows, models.WeightSnapshot{
				ContributorID:     ct.id,
				MergeMiningBTC:    ct.mergeMining,
				FeeForwardingBTC:  ct.feeForwarding,
				CumulativeZapsBTC: ct.zaps,
				RawWeight:         ct.raw,
				CappedWeight:      c.params.CapWeight(ct.raw, systemTotal),
				SystemTotalWeight: systemTotal,
				ComputedAt:        computedAt,
			})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (c *Calculator) passOne(led *ledger.Ledger, contributorID string, now time.Time) (contributorTotals, error) {
	ct := contributorTotals{id: contributorID}

	contribs, err := led.Query(contributorID, "", time.Time{}, now)
	if err != nil {
		return ct, fmt.Errorf("query contributions for %s: %w", contributorID, err)
	}

	var windowBTC float64
	var windowCount int
	for _, contrib := range contribs {
		age := AgeDays(contrib.OccurredAt, now)
		effective := c.params.EffectiveBTC(contrib.ContributionType, contrib.AmountSat, age)
		switch contrib.ContributionType {
		case models.ContributionMergeMining:
			ct.mergeMining += effective
		case models.ContributionFeeForwarding:
			ct.feeForwarding += effective
		case models.ContributionZap:
			ct.zaps += effective
		}
		if age <= c.params.QualifyWindowDays {
			windowBTC += BTC(contrib.AmountSat)
			windowCount++
		}
	}

	// A contributor failing both qualification legs carries no weight;
	// a qualified one is floored even if everything is still cooling off.
	qualified := windowBTC >= c.params.QualifyMinBTC || windowCount >= c.params.QualifyMinCount
	if qualified {
		ct.raw = c.params.RawWeight(ct.mergeMining + ct.feeForwarding + ct.zaps)
		if ct.raw < c.params.MinWeightFloor {
			ct.raw = c.params.MinWeightFloor
		}
	}
	return ct, nil
}

// LatestBatch returns the snapshot rows of the most recent recompute pass
// keyed by contributor, with the pass timestamp and system total weight.
// ok is false when no pass has ever run.
func (c *Calculator) LatestBatch() (map[string]models.WeightSnapshot, time.Time, float64, bool, error) {
	var latest models.WeightSnapshot
	err := c.db.Order("computed_at DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, time.Time{}, 0, false, nil
	}
	if err != nil {
		return nil, time.Time{}, 0, false, err
	}

	var rows []models.WeightSnapshot
	if err := c.db.Where("computed_at = ?", latest.ComputedAt).Find(&rows).Error; err != nil {
		return nil, time.Time{}, 0, false, err
	}
	byID := make(map[string]models.WeightSnapshot, len(rows))
	for _, r := range rows {
		byID[r.ContributorID] = r
	}
	return byID, latest.ComputedAt, latest.SystemTotalWeight, true, nil
}
