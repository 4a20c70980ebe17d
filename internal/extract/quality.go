package extract

import (
	"strings"
	"unicode"

	"github.com/ayodeji-martins/gradeflow/constants"
)

// QualityConfig holds the tunable scoring thresholds. The cutoffs are
// configuration, not contract; defaults come from DefaultQualityConfig.
type QualityConfig struct {
	ValidCutoff      float32 // score at or above this -> valid
	LowQualityCutoff float32 // score at or above this -> low_quality
	HighConfidence   float32 // chain stops early at or above this
	MinLength        int     // below this, length contributes nothing
	GoodLength       int     // at or above this, full length credit
}

func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		ValidCutoff:      0.55,
		LowQualityCutoff: 0.30,
		HighConfidence:   0.85,
		MinLength:        50,
		GoodLength:       200,
	}
}

// Scorer grades extracted text. The score combines alphabetic-character
// ratio, average token length, control-character presence, and length.
type Scorer struct {
	cfg QualityConfig
}

func NewScorer(cfg QualityConfig) *Scorer {
	if cfg.ValidCutoff <= 0 {
		cfg = DefaultQualityConfig()
	}
	return &Scorer{cfg: cfg}
}

// Score returns a quality score in [0,1] for the given text.
func (s *Scorer) Score(text string) float32 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}

	var letters, controls, total int
	for _, r := range trimmed {
		total++
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' && r != '\f':
			controls++
		}
	}

	alphaRatio := float32(letters) / float32(total)
	score := 0.45 * alphaRatio

	// Average token length: natural language sits roughly in 3..9 runes.
	tokens := strings.Fields(trimmed)
	if len(tokens) > 0 {
		var runes int
		for _, t := range tokens {
			runes += len([]rune(t))
		}
		avg := float32(runes) / float32(len(tokens))
		if avg >= 3 && avg <= 9 {
			score += 0.25
		} else if avg > 1.5 && avg < 15 {
			score += 0.12
		}
	}

	// Control characters indicate binary noise.
	ctrlRatio := float32(controls) / float32(total)
	switch {
	case ctrlRatio == 0:
		score += 0.10
	case ctrlRatio > 0.05:
		score -= 0.25
	}

	switch {
	case len(trimmed) >= s.cfg.GoodLength:
		score += 0.20
	case len(trimmed) >= s.cfg.MinLength:
		score += 0.10
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Status maps a score to a validation status.
func (s *Scorer) Status(text string, score float32) constants.ValidationStatus {
	if strings.TrimSpace(text) == "" {
		return constants.ValidationEmpty
	}
	switch {
	case score >= s.cfg.ValidCutoff:
		return constants.ValidationValid
	case score >= s.cfg.LowQualityCutoff:
		return constants.ValidationLowQuality
	default:
		return constants.ValidationInvalid
	}
}

// HighConfidence reports whether a score clears the early-stop bar.
func (s *Scorer) HighConfidence(score float32) bool {
	return score >= s.cfg.HighConfidence
}
