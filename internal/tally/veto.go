package tally

// VetoPolicy holds the per-bucket veto thresholds. Each bucket is judged
// against its own total: mining vetoes against mining-classified weight,
// economic vetoes against economic-classified weight, zap vetoes against
// zap weight. Buckets are never diluted by one another.
type VetoPolicy struct {
	MiningVetoPct   float64
	EconomicVetoPct float64
	ZapVetoPct      float64
}

// DefaultVetoPolicy: 30% mining, 40% economic, 40% zap.
func DefaultVetoPolicy() VetoPolicy {
	return VetoPolicy{
		MiningVetoPct:   0.30,
		EconomicVetoPct: 0.40,
		ZapVetoPct:      0.40,
	}
}

// buckets accumulates one vote source's weight split.
type buckets struct {
	support float64
	veto    float64
	abstain float64
}

func (b buckets) total() float64 {
	return b.support + b.veto + b.abstain
}

// Blocked evaluates the veto rules. An empty bucket never blocks: no votes
// is not a veto.
func (vp VetoPolicy) Blocked(mining, economic, zap buckets) bool {
	if t := mining.total(); t > 0 && mining.veto >= vp.MiningVetoPct*t {
		return true
	}
	if t := economic.total(); t > 0 && economic.veto >= vp.EconomicVetoPct*t {
		return true
	}
	if t := zap.total(); t > 0 && zap.veto >= vp.ZapVetoPct*t {
		return true
	}
	return false
}
