package waitlist

import (
	"sort"
	"time"
)

// ScoreConfig fixes the ranking weights. The defaults are load-bearing:
// dashboards and patient-facing copy assume a platinum entry with three
// ignored offers ranks below a fresh gold entry.
type ScoreConfig struct {
	TierWeights           map[Tier]float64
	WaitBonusPerDay       float64
	WaitBonusCapDays      int
	FastResponderBonus    float64
	FastResponseThreshold time.Duration
	OfferPenalty          float64
}

// DefaultScoreConfig returns the production weights.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		TierWeights: map[Tier]float64{
			TierPlatinum: 2.0,
			TierGold:     1.5,
			TierSilver:   1.0,
		},
		WaitBonusPerDay:       0.02,
		WaitBonusCapDays:      30,
		FastResponderBonus:    0.1,
		FastResponseThreshold: 10 * time.Minute,
		OfferPenalty:          0.3,
	}
}

// Score computes the ranking score for an entry at the given instant.
// It is pure: identical inputs always produce the same number.
//
//	score = tier weight
//	      + capped wait-time bonus
//	      + fast-responder bonus
//	      - offer-count penalty
func (c ScoreConfig) Score(e *Entry, now time.Time) float64 {
	score := c.TierWeights[e.Tier]

	waitDays := now.Sub(e.WaitingSince).Hours() / 24
	if waitDays < 0 {
		waitDays = 0
	}
	if cap := float64(c.WaitBonusCapDays); waitDays > cap {
		waitDays = cap
	}
	score += waitDays * c.WaitBonusPerDay

	if e.ResponseCount > 0 && e.AvgResponseSeconds() <= c.FastResponseThreshold.Seconds() {
		score += c.FastResponderBonus
	}

	score -= float64(e.OfferCount) * c.OfferPenalty
	return score
}

// Rank orders entries by descending score, breaking ties by earlier
// WaitingSince (FIFO among equals). The input slice is not modified.
func (c ScoreConfig) Rank(entries []*Entry, now time.Time) []*Entry {
	ranked := make([]*Entry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := c.Score(ranked[i], now), c.Score(ranked[j], now)
		if si != sj {
			return si > sj
		}
		return ranked[i].WaitingSince.Before(ranked[j].WaitingSince)
	})
	return ranked
}
