package ledger

import (
	"fmt"
	"sort"

	"civicsync/models"
)

// Tier is the lowest balance at which a rank applies.
type Tier struct {
	Rank     models.Rank
	MinCoins int64
}

// RankTable maps balances to ranks. The zero value is not usable; build one
// with NewRankTable or DefaultRankTable.
type RankTable struct {
	tiers []Tier
}

// DefaultRankTable is used when no rewards file is configured.
func DefaultRankTable() RankTable {
	t, _ := NewRankTable([]Tier{
		{Rank: models.Bronze, MinCoins: 0},
		{Rank: models.Silver, MinCoins: 500},
		{Rank: models.Gold, MinCoins: 1500},
		{Rank: models.Platinum, MinCoins: 3500},
		{Rank: models.Diamond, MinCoins: 10000},
	})
	return t
}

// NewRankTable validates tiers: at least one tier, one of them starting at
// zero, only known rank names, no duplicate thresholds or names.
func NewRankTable(tiers []Tier) (RankTable, error) {
	if len(tiers) == 0 {
		return RankTable{}, fmt.Errorf("rank table is empty")
	}
	sorted := append([]Tier(nil), tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].MinCoins < sorted[j].MinCoins })

	if sorted[0].MinCoins != 0 {
		return RankTable{}, fmt.Errorf("lowest rank must start at 0 coins, got %d", sorted[0].MinCoins)
	}
	seen := make(map[models.Rank]bool, len(sorted))
	for i, tier := range sorted {
		if tier.Rank == "" {
			return RankTable{}, fmt.Errorf("rank at %d coins has no name", tier.MinCoins)
		}
		if !tier.Rank.Valid() {
			return RankTable{}, fmt.Errorf("unknown rank %q", tier.Rank)
		}
		if seen[tier.Rank] {
			return RankTable{}, fmt.Errorf("rank %q listed twice", tier.Rank)
		}
		seen[tier.Rank] = true
		if i > 0 && tier.MinCoins == sorted[i-1].MinCoins {
			return RankTable{}, fmt.Errorf("ranks %q and %q share threshold %d", sorted[i-1].Rank, tier.Rank, tier.MinCoins)
		}
	}
	return RankTable{tiers: sorted}, nil
}

// RankFor returns the highest tier whose threshold balance reaches.
func (t RankTable) RankFor(balance int64) models.Rank {
	rank := t.tiers[0].Rank
	for _, tier := range t.tiers {
		if balance < tier.MinCoins {
			break
		}
		rank = tier.Rank
	}
	return rank
}

func (t RankTable) Tiers() []Tier {
	return append([]Tier(nil), t.tiers...)
}
