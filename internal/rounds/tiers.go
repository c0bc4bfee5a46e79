package rounds

import (
	"fmt"

	"governance-engine/internal/tally"
)

// tierSchedule fixes a tier's round structure: how many rounds must each
// independently pass, how long one round's voting window stays open, and
// how far apart round openings are spaced.
type tierSchedule struct {
	rounds      int
	windowDays  int
	spacingDays int
}

var tierSchedules = map[int]tierSchedule{
	1: {rounds: 1, windowDays: 7},
	2: {rounds: 1, windowDays: 30},
	3: {rounds: 1, windowDays: 90},
	4: {rounds: 2, windowDays: 7, spacingDays: 30},
	5: {rounds: 3, windowDays: 30, spacingDays: 60},
}

func scheduleForTier(tier int) (tierSchedule, error) {
	s, ok := tierSchedules[tier]
	if !ok {
		return s, fmt.Errorf("tier %d: %w", tier, tally.ErrInvalidTier)
	}
	return s, nil
}
