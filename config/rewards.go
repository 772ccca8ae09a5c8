package config

import (
	"fmt"
	"os"

	"civicsync/ledger"
	"civicsync/lifecycle"
	"civicsync/models"

	"gopkg.in/yaml.v3"
)

// RewardsFile is the on-disk shape of REWARDS_CONFIG:
//
//	priorities:
//	  urgent: 100
//	  high: 75
//	ranks:
//	  - name: bronze
//	    minCoins: 0
//	  - name: silver
//	    minCoins: 500
type RewardsFile struct {
	Priorities map[string]int64 `yaml:"priorities"`
	Ranks      []struct {
		Name     string `yaml:"name"`
		MinCoins int64  `yaml:"minCoins"`
	} `yaml:"ranks"`
}

// LoadRewards returns the reward and rank tables, starting from the defaults
// and overriding whatever the file at path sets. An empty path means
// defaults only.
func LoadRewards(path string) (lifecycle.RewardTable, ledger.RankTable, error) {
	rewards := lifecycle.DefaultRewards()
	ranks := ledger.DefaultRankTable()
	if path == "" {
		return rewards, ranks, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ledger.RankTable{}, fmt.Errorf("read rewards config: %w", err)
	}
	return ParseRewards(raw)
}

func ParseRewards(raw []byte) (lifecycle.RewardTable, ledger.RankTable, error) {
	rewards := lifecycle.DefaultRewards()
	ranks := ledger.DefaultRankTable()

	var file RewardsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, ledger.RankTable{}, fmt.Errorf("parse rewards config: %w", err)
	}

	for name, amount := range file.Priorities {
		p := models.IssuePriority(name)
		if !p.Valid() {
			return nil, ledger.RankTable{}, fmt.Errorf("rewards config: unknown priority %q", name)
		}
		rewards[p] = amount
	}
	if err := rewards.Validate(); err != nil {
		return nil, ledger.RankTable{}, fmt.Errorf("rewards config: %w", err)
	}

	if len(file.Ranks) > 0 {
		tiers := make([]ledger.Tier, 0, len(file.Ranks))
		for _, r := range file.Ranks {
			tiers = append(tiers, ledger.Tier{Rank: models.Rank(r.Name), MinCoins: r.MinCoins})
		}
		ranks, err := ledger.NewRankTable(tiers)
		if err != nil {
			return nil, ledger.RankTable{}, fmt.Errorf("rewards config: %w", err)
		}
		return rewards, ranks, nil
	}
	return rewards, ranks, nil
}
