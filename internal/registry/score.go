package registry

import "github.com/sahilm/fuzzy"

// NormalizeFuzzyScore maps a sahilm/fuzzy raw integer score (the same
// Skim-style positive integer spec.md section 4.3 describes) into [0, 1]
// by dividing by 1000 and clamping.
func NormalizeFuzzyScore(raw int) float64 {
	score := float64(raw) / 1000.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// PositionalPenalty discourages late items in a result set from dominating
// after merges (spec.md section 4.3: "0.01 * rank").
func PositionalPenalty(rank int) float64 {
	return 0.01 * float64(rank)
}

// FuzzyScoreTitleDescription scores a candidate against both its title and
// description using sahilm/fuzzy, per spec.md section 4.3: title matches
// use the full normalized score, description matches use it halved. rank is
// the candidate's position among its source's pre-scored catalogue, used
// only for the positional penalty. Returns 0 if neither matches.
func FuzzyScoreTitleDescription(queryText, title, description string, rank int) float64 {
	if queryText == "" {
		return clamp01(1 - PositionalPenalty(rank))
	}

	best := 0.0
	if matches := fuzzy.Find(queryText, []string{title}); len(matches) > 0 {
		best = NormalizeFuzzyScore(matches[0].Score)
	}
	if matches := fuzzy.Find(queryText, []string{description}); len(matches) > 0 {
		halved := NormalizeFuzzyScore(matches[0].Score) / 2
		if halved > best {
			best = halved
		}
	}
	return clamp01(best - PositionalPenalty(rank))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
