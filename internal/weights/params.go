package weights

import "governance-engine/internal/models"

// SatsPerBTC converts satoshi-denominated ledger amounts to BTC.
const SatsPerBTC = 100_000_000

// TypeParams holds the decay schedule for one contribution type. The type
// set is an open registry: adding a type means adding an entry here, never
// touching the weight formula.
type TypeParams struct {
	DecayPeriodDays float64
	MinRetention    float64
}

// Params holds every tunable of the weight model.
type Params struct {
	Types map[string]TypeParams

	NormalizationBTC float64 // denominator under the sqrt
	MinWeightFloor   float64 // floor for qualified contributors
	CapPercentage    float64 // per-entity share of system total weight

	CoolingOffThresholdSat int64   // single contributions at/above this wait out the cooling-off
	CoolingOffDays         float64 // days before a large contribution counts

	QualifyWindowDays float64 // rolling window for the qualification rule
	QualifyMinBTC     float64 // total over window, or...
	QualifyMinCount   int     // ...distinct verified contributions over window
}

// DefaultParams returns the production weight model: 180-day decay for
// mining and fee-forwarding, 365-day for zaps, 10% retention floor,
// 5% per-entity cap, 30-day cooling-off above 0.1 BTC.
func DefaultParams() Params {
	return Params{
		Types: map[string]TypeParams{
			models.ContributionMergeMining:   {DecayPeriodDays: 180, MinRetention: 0.10},
			models.ContributionFeeForwarding: {DecayPeriodDays: 180, MinRetention: 0.10},
			models.ContributionZap:           {DecayPeriodDays: 365, MinRetention: 0.10},
		},
		NormalizationBTC:       1.0,
		MinWeightFloor:         0.01,
		CapPercentage:          0.05,
		CoolingOffThresholdSat: 10_000_000, // 0.1 BTC
		CoolingOffDays:         30,
		QualifyWindowDays:      90,
		QualifyMinBTC:          0.05,
		QualifyMinCount:        3,
	}
}
