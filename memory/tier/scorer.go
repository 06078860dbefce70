// Package tier implements memory tier scoring and the optimization sweep
// that migrates records between hot, warm and cold tiers.
package tier

import (
	"math"
	"time"

	"github.com/ptattershall/pjais/store"
)

// ScorerConfig holds the tier scoring policy. Weights must sum to 1.0.
type ScorerConfig struct {
	// ImportanceWeight scales the normalized importance component.
	ImportanceWeight float64
	// RecencyWeight scales the exponential-decay recency component.
	RecencyWeight float64
	// FrequencyWeight scales the log-scaled access frequency component.
	FrequencyWeight float64

	// RecencyHalfLife is the elapsed time since last access at which the
	// recency component halves.
	RecencyHalfLife time.Duration
	// FrequencyCap is the access count at which the frequency component
	// saturates at 1.0.
	FrequencyCap int

	// HotThreshold and WarmThreshold are the score bands on a 0-100 scale:
	// score >= HotThreshold -> hot, >= WarmThreshold -> warm, else cold.
	HotThreshold  float64
	WarmThreshold float64
	// HysteresisMargin is the minimum distance past a threshold a score must
	// travel before a record changes tier. Prevents thrashing at the
	// boundary.
	HysteresisMargin float64
}

// DefaultScorerConfig returns the default scoring policy.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		ImportanceWeight: 0.4,
		RecencyWeight:    0.35,
		FrequencyWeight:  0.25,
		RecencyHalfLife:  7 * 24 * time.Hour,
		FrequencyCap:     100,
		HotThreshold:     70,
		WarmThreshold:    40,
		HysteresisMargin: 5,
	}
}

// Scorer maps a memory's attributes to a scalar score and a recommended tier.
// Scoring is pure: it never mutates the record.
type Scorer struct {
	config ScorerConfig

	// now is injectable for tests.
	now func() time.Time
}

// NewScorer creates a scorer with the given policy.
func NewScorer(config ScorerConfig) *Scorer {
	if config.ImportanceWeight+config.RecencyWeight+config.FrequencyWeight == 0 {
		config = DefaultScorerConfig()
	}
	if config.RecencyHalfLife <= 0 {
		config.RecencyHalfLife = 7 * 24 * time.Hour
	}
	if config.FrequencyCap <= 0 {
		config.FrequencyCap = 100
	}
	return &Scorer{config: config, now: time.Now}
}

// Decision is the outcome of scoring a single memory.
type Decision struct {
	Score float64
	// Recommended is the raw score band, ignoring hysteresis.
	Recommended store.Tier
	// Target is the tier the record should move to once hysteresis is
	// applied. Equal to the current tier when no move is warranted.
	Target store.Tier
	// ShouldMove is true when Target differs from the current tier.
	ShouldMove bool
}

// Score computes the scalar score and raw recommended tier for a memory.
func (s *Scorer) Score(m *store.Memory) (float64, store.Tier) {
	importance := m.Importance
	// Out-of-range importance is treated as neutral rather than failing the
	// record.
	if importance < 0 || importance > 100 {
		importance = 50
	}
	importanceNorm := float64(importance) / 100

	recency := 0.0
	if m.LastAccessedTs > 0 {
		elapsed := s.now().Sub(time.Unix(m.LastAccessedTs, 0))
		if elapsed < 0 {
			elapsed = 0
		}
		recency = math.Exp2(-elapsed.Hours() / s.config.RecencyHalfLife.Hours())
	}

	count := m.AccessCount
	if count < 0 {
		count = 0
	}
	frequency := math.Log1p(float64(count)) / math.Log1p(float64(s.config.FrequencyCap))
	if frequency > 1 {
		frequency = 1
	}

	score := 100 * (s.config.ImportanceWeight*importanceNorm +
		s.config.RecencyWeight*recency +
		s.config.FrequencyWeight*frequency)

	return score, s.band(score)
}

// Decide scores a memory and applies hysteresis against its current tier.
// A record moves only when the raw recommendation differs from the current
// tier AND the score clears the crossed threshold by the configured margin.
func (s *Scorer) Decide(m *store.Memory) Decision {
	score, recommended := s.Score(m)
	current := m.Tier
	if !current.Valid() {
		current = store.TierWarm
	}

	decision := Decision{
		Score:       score,
		Recommended: recommended,
		Target:      current,
	}
	if recommended == current {
		return decision
	}

	if tierRank(recommended) > tierRank(current) {
		// Promotion: the score must exceed the target band's threshold by
		// the margin.
		if score >= s.bandThreshold(recommended)+s.config.HysteresisMargin {
			decision.Target = recommended
			decision.ShouldMove = true
		}
	} else {
		// Demotion: the score must fall below the current band's threshold
		// by the margin.
		if score < s.bandThreshold(current)-s.config.HysteresisMargin {
			decision.Target = recommended
			decision.ShouldMove = true
		}
	}

	return decision
}

func (s *Scorer) band(score float64) store.Tier {
	switch {
	case score >= s.config.HotThreshold:
		return store.TierHot
	case score >= s.config.WarmThreshold:
		return store.TierWarm
	default:
		return store.TierCold
	}
}

// bandThreshold returns the lower score bound of a tier's band.
func (s *Scorer) bandThreshold(t store.Tier) float64 {
	switch t {
	case store.TierHot:
		return s.config.HotThreshold
	case store.TierWarm:
		return s.config.WarmThreshold
	default:
		return 0
	}
}

func tierRank(t store.Tier) int {
	switch t {
	case store.TierHot:
		return 2
	case store.TierWarm:
		return 1
	default:
		return 0
	}
}
