// Package weights turns contribution history into capped, decayed,
// quadratic voting weight.
package weights

import (
	"math"
	"time"
)

// BTC converts a satoshi amount to BTC.
func BTC(sat int64) float64 {
	return float64(sat) / SatsPerBTC
}

// AgeDays returns the fractional age of a contribution at evaluation time.
func AgeDays(occurredAt, now time.Time) float64 {
	return now.Sub(occurredAt).Hours() / 24
}

// EffectiveBTC returns the decayed value of a single contribution, in BTC.
// A contribution at or above the cooling-off threshold contributes nothing
// until it is CoolingOffDays old. At exactly the decay period the retention
// floor holds the value at MinRetention of the original, not zero.
func (p Params) EffectiveBTC(contributionType string, amountSat int64, ageDays float64) float64 {
	if amountSat >= p.CoolingOffThresholdSat && ageDays < p.CoolingOffDays {
		return 0
	}
	tp, ok := p.Types[contributionType]
	if !ok {
		// Unregistered types carry no weight
		return 0
	}
	retention := 1 - ageDays/tp.DecayPeriodDays
	if retention < tp.MinRetention {
		retention = tp.MinRetention
	}
	return BTC(amountSat) * retention
}

// RawWeight is the quadratic base weight: sqrt of the decayed total across
// all contribution types. The total is summed before the sqrt; summing
// per-type sqrt weights would overstate multi-type contributors.
func (p Params) RawWeight(decayedTotalBTC float64) float64 {
	if decayedTotalBTC <= 0 {
		return 0
	}
	return math.Sqrt(decayedTotalBTC / p.NormalizationBTC)
}

// ZapWeight is the per-vote weight of a single proposal zap. Not decayed
// and not individually capped; the per-voter sum within a round is capped
// by the aggregator.
func (p Params) ZapWeight(amountSat int64) float64 {
	if amountSat <= 0 {
		return 0
	}
	return math.Sqrt(BTC(amountSat) / p.NormalizationBTC)
}

// CapWeight applies the per-entity cap against the system total computed
// in the same pass.
func (p Params) CapWeight(rawWeight, systemTotalWeight float64) float64 {
	limit := systemTotalWeight * p.CapPercentage
	if rawWeight > limit {
		return limit
	}
	return rawWeight
}
