package geo

import (
	"math"
	"strings"
)

// Overlap scores how much of list a is covered by list b. Labels are
// normalized by lower-casing and trimming whitespace; matching is exact.
// The score is (|a∩b| / max(|a|,1)) * 100 rounded to one decimal, and the
// returned slice is the intersection in unspecified order.
//
// The denominator is the size of a only, so the function is deliberately
// asymmetric: a is the solicitation's requested categories and the score is
// the fraction of the request the organization covers. This holds even when
// b is much smaller than a; do not symmetrize without product sign-off.
func Overlap(a, b []string) (float64, []string) {
	if len(a) == 0 || len(b) == 0 {
		return 0, nil
	}
	setA := normalize(a)
	setB := normalize(b)
	if len(setA) == 0 {
		return 0, nil
	}

	var overlap []string
	for label := range setA {
		if _, ok := setB[label]; ok {
			overlap = append(overlap, label)
		}
	}
	score := float64(len(overlap)) / float64(len(setA)) * 100
	return round1(score), overlap
}

func normalize(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l != "" {
			set[l] = struct{}{}
		}
	}
	return set
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
