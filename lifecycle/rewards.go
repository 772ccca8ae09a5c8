package lifecycle

import (
	"fmt"

	"civicsync/models"
)

// RewardTable is the coin amount paid to a reporter when an issue of the
// given priority is resolved.
type RewardTable map[models.IssuePriority]int64

func DefaultRewards() RewardTable {
	return RewardTable{
		models.Urgent: 100,
		models.High:   75,
		models.Medium: 50,
		models.Low:    25,
	}
}

// Validate requires a positive amount for every priority.
func (t RewardTable) Validate() error {
	for _, p := range []models.IssuePriority{models.Low, models.Medium, models.High, models.Urgent} {
		if t[p] <= 0 {
			return fmt.Errorf("reward for priority %q must be positive, got %d", p, t[p])
		}
	}
	return nil
}

func (t RewardTable) For(p models.IssuePriority) (int64, error) {
	amount, ok := t[p]
	if !ok || amount <= 0 {
		return 0, fmt.Errorf("no reward configured for priority %q", p)
	}
	return amount, nil
}
