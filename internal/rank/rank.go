// AngelaMos | 2026
// rank.go

// Package rank maps XP onto leagues. Ranks are derived, never stored.
package rank

type Rank string

const (
	Bronze   Rank = "BRONZE"
	Silver   Rank = "SILVER"
	Gold     Rank = "GOLD"
	Platinum Rank = "PLATINUM"
	Diamond  Rank = "DIAMOND"
)

type Threshold struct {
	Rank  Rank  `json:"rank"`
	MinXP int64 `json:"min_xp"`
}

// thresholds is ascending by MinXP and starts at 0.
var thresholds = []Threshold{
	{Rank: Bronze, MinXP: 0},
	{Rank: Silver, MinXP: 1000},
	{Rank: Gold, MinXP: 3000},
	{Rank: Platinum, MinXP: 6000},
	{Rank: Diamond, MinXP: 10000},
}

func Thresholds() []Threshold {
	out := make([]Threshold, len(thresholds))
	copy(out, thresholds)
	return out
}

// Calculate is total: negative XP clamps to Bronze.
func Calculate(xp int64) Rank {
	return thresholds[indexFor(xp)].Rank
}

func indexFor(xp int64) int {
	idx := 0
	for i, t := range thresholds {
		if xp >= t.MinXP {
			idx = i
		}
	}
	return idx
}

func (r Rank) Ordinal() int {
	for i, t := range thresholds {
		if t.Rank == r {
			return i
		}
	}
	return -1
}

func (r Rank) Valid() bool {
	return r.Ordinal() >= 0
}

type Standing struct {
	Rank     Rank  `json:"rank"`
	MinXP    int64 `json:"min_xp"`
	NextRank *Rank `json:"next_rank,omitempty"`
	XPToNext int64 `json:"xp_to_next"`
}

func StandingFor(xp int64) Standing {
	idx := indexFor(xp)
	s := Standing{Rank: thresholds[idx].Rank, MinXP: thresholds[idx].MinXP}

	if idx+1 < len(thresholds) {
		next := thresholds[idx+1]
		s.NextRank = &next.Rank
		s.XPToNext = next.MinXP - max(xp, 0)
	}

	return s
}

type Change struct {
	Previous    Rank `json:"previous"`
	New         Rank `json:"new"`
	IsPromotion bool `json:"is_promotion"`
	IsDemotion  bool `json:"is_demotion"`
}

func (c Change) Changed() bool {
	return c.IsPromotion || c.IsDemotion
}

func CheckRankChange(previousXP, newXP int64) Change {
	prev := indexFor(previousXP)
	next := indexFor(newXP)

	return Change{
		Previous:    thresholds[prev].Rank,
		New:         thresholds[next].Rank,
		IsPromotion: next > prev,
		IsDemotion:  next < prev,
	}
}
