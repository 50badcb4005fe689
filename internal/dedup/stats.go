package dedup

import "fmt"

// Stats summarizes one dedup run. TotalItems always equals GroupedItems +
// StandaloneItems; Verify enforces it before results are published.
type Stats struct {
	TotalItems       int      `json:"total_items"`
	GroupedItems     int      `json:"grouped_items"`
	StandaloneItems  int      `json:"standalone_items"`
	ClustersCreated  int      `json:"clusters_created"`
	HistoricalMerged int      `json:"historical_merged"`
	MarkedDuplicate  int      `json:"marked_duplicate"`
	KeptSeparate     int      `json:"kept_separate"`
	Warnings         []string `json:"warnings,omitempty"`
	ProcessingMs     int64    `json:"processing_ms"`
}

// Collect derives run statistics from clustering and matching output.
func Collect(r *Result, decisions []MatchDecision) Stats {
	s := Stats{Warnings: r.Warnings}

	for _, c := range r.Clusters {
		s.TotalItems += c.Size()
		if c.Size() >= 2 {
			s.GroupedItems += c.Size()
			s.ClustersCreated++
		} else {
			s.StandaloneItems++
		}
	}

	for _, d := range decisions {
		switch d.Outcome {
		case OutcomeMerged:
			s.HistoricalMerged++
		case OutcomeMarkedDuplicate:
			s.MarkedDuplicate++
		case OutcomeKeptSeparate:
			s.KeptSeparate++
		}
	}

	return s
}

// Verify checks the count reconciliation invariant.
func (s Stats) Verify() error {
	if s.TotalItems != s.GroupedItems+s.StandaloneItems {
		return fmt.Errorf("stats do not reconcile: %d total != %d grouped + %d standalone",
			s.TotalItems, s.GroupedItems, s.StandaloneItems)
	}
	return nil
}
