package assessment

import (
	"math"
	"strconv"
)

// T-score convention: mean 50, SD 10 over the theta scale.
const (
	tScoreSlope     = 10
	tScoreIntercept = 50
)

// tScoreExtractors are tried in fixed priority order; the first one that
// yields a finite number wins. Keeping them in one auditable list replaces
// scattered field probing.
var tScoreExtractors = []func(map[string]any) (float64, bool){
	topLevelField("tScore"),
	topLevelField("TScore"),
	topLevelField("T-Score"),
	topLevelField("t_score"),
	nestedField("Score", "TScore"),
	nestedField("Score", "tScore"),
	nestedField("Score", "T-Score"),
	nestedField("Results", "TScore"),
	nestedField("Results", "tScore"),
	nestedField("Results", "T-Score"),
}

// DeriveTScore extracts the standardized score from a scoring payload, or
// derives it from theta (theta*10+50, rounded to 4 decimals) when only the
// latent trait estimate is present. Pure: the payload is never mutated.
func DeriveTScore(payload map[string]any) (float64, bool) {
	for _, extract := range tScoreExtractors {
		if v, ok := extract(payload); ok {
			return v, true
		}
	}
	if theta, ok := Theta(payload); ok {
		return math.Round((theta*tScoreSlope+tScoreIntercept)*1e4) / 1e4, true
	}
	return 0, false
}

// Theta returns the latent trait estimate when present.
func Theta(payload map[string]any) (float64, bool) {
	if v, ok := numericField(payload, "Theta"); ok {
		return v, true
	}
	return numericField(payload, "theta")
}

// StdError returns the standard error when present.
func StdError(payload map[string]any) (float64, bool) {
	if v, ok := numericField(payload, "StdError"); ok {
		return v, true
	}
	return numericField(payload, "stdError")
}

func topLevelField(key string) func(map[string]any) (float64, bool) {
	return func(p map[string]any) (float64, bool) {
		return numericField(p, key)
	}
}

func nestedField(outer, inner string) func(map[string]any) (float64, bool) {
	return func(p map[string]any) (float64, bool) {
		sub, ok := p[outer].(map[string]any)
		if !ok {
			return 0, false
		}
		return numericField(sub, inner)
	}
}

// numericField accepts both numeric and numeric-string representations.
func numericField(p map[string]any, key string) (float64, bool) {
	raw, ok := p[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
