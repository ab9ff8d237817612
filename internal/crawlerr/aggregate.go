package crawlerr

import "sort"

// Summary rolls a set of typed errors up into per-kind counts with a small
// number of representative examples per kind.
type Summary struct {
	Total      int              `json:"total_errors"`
	Counts     map[Kind]int     `json:"error_counts"`
	Examples   map[Kind][]*Error `json:"error_examples"`
	MostCommon Kind             `json:"most_common,omitempty"`
}

const maxExamplesPerKind = 3

// Aggregate summarizes errs. Ties for the most common kind break towards the
// lexically smaller kind name so the result is stable.
func Aggregate(errs []*Error) Summary {
	s := Summary{
		Counts:   make(map[Kind]int),
		Examples: make(map[Kind][]*Error),
	}
	for _, e := range errs {
		if e == nil {
			continue
		}
		s.Total++
		s.Counts[e.Kind]++
		if len(s.Examples[e.Kind]) < maxExamplesPerKind {
			s.Examples[e.Kind] = append(s.Examples[e.Kind], e)
		}
	}

	kinds := make([]Kind, 0, len(s.Counts))
	for k := range s.Counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	best := 0
	for _, k := range kinds {
		if s.Counts[k] > best {
			best = s.Counts[k]
			s.MostCommon = k
		}
	}
	return s
}
