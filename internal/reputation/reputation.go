// Package reputation tracks per-channel reliability signals across runs.
package reputation

import (
	"sort"
	"sync"
)

// Reputation is the long-lived aggregate for one source channel.
type Reputation struct {
	SourceID           string         `json:"source_id"`
	ReliabilityScore   float64        `json:"reliability_score"`
	AvgResponseHours   float64        `json:"avg_response_hours"`
	Specialization     map[string]int `json:"specialization,omitempty"`
	HistoricalAccuracy float64        `json:"historical_accuracy"`
	TotalItems         int            `json:"total_items"`
	FirstReports       int            `json:"first_reports"`
}

// Outcome records one validated item for a source.
type Outcome struct {
	WasFirstReport   bool
	PassedValidation bool
	ResponseHours    float64
	Entities         []string
}

// Tracker holds reputation state for one pipeline run. It is loaded from the
// store at run start, mutated in place, and flushed at run end. Updates for
// different sources may arrive concurrently; a single mutex serializes them
// (batches are small, contention is irrelevant).
type Tracker struct {
	mu      sync.Mutex
	sources map[string]*Reputation
	dirty   map[string]bool
}

// NewTracker creates a tracker seeded with previously persisted reputations.
func NewTracker(loaded map[string]*Reputation) *Tracker {
	if loaded == nil {
		loaded = make(map[string]*Reputation)
	}
	return &Tracker{
		sources: loaded,
		dirty:   make(map[string]bool),
	}
}

// Get returns the reputation for a source. Unseen sources get a neutral
/// default: reliability 0.5, no history.
func (t *Tracker) Get(sourceID string) Reputation {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.sources[sourceID]; ok {
		return *r
	}
	return Reputation{SourceID: sourceID, ReliabilityScore: 0.5, HistoricalAccuracy: 0.5}
}

// RecordOutcome applies one item outcome to a source's running aggregates.
func (t *Tracker) RecordOutcome(sourceID string, o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.sources[sourceID]
	if !ok {
		r = &Reputation{
			SourceID:           sourceID,
			ReliabilityScore:   0.5,
			HistoricalAccuracy: 0.5,
			Specialization:     make(map[string]int),
		}
		t.sources[sourceID] = r
	}
	if r.Specialization == nil {
		r.Specialization = make(map[string]int)
	}

	n := float64(r.TotalItems)
	pass := 0.0
	if o.PassedValidation {
		pass = 1.0
	}
	// Running pass rate; reliability starts from the neutral prior.
	r.ReliabilityScore = (r.ReliabilityScore*n + pass) / (n + 1)
	r.HistoricalAccuracy = (r.HistoricalAccuracy*n + pass) / (n + 1)
	r.AvgResponseHours = (r.AvgResponseHours*n + o.ResponseHours) / (n + 1)

	r.TotalItems++
	if o.WasFirstReport {
		r.FirstReports++
	}
	for _, e := range o.Entities {
		r.Specialization[e]++
	}

	t.dirty[sourceID] = true
}

// Snapshot returns all reputations for persistence, keyed by source id.
func (t *Tracker) Snapshot() map[string]*Reputation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]*Reputation, len(t.sources))
	for id, r := range t.sources {
		cp := *r
		cp.Specialization = make(map[string]int, len(r.Specialization))
		for k, v := range r.Specialization {
			cp.Specialization[k] = v
		}
		out[id] = &cp
	}
	return out
}

// TopSpecializations returns a source's most reported entities, up to n.
func (t *Tracker) TopSpecializations(sourceID string, n int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.sources[sourceID]
	if !ok || len(r.Specialization) == 0 {
		return nil
	}

	type kv struct {
		entity string
		count  int
	}
	pairs := make([]kv, 0, len(r.Specialization))
	for e, c := range r.Specialization {
		pairs = append(pairs, kv{e, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].entity < pairs[j].entity
	})

	if n > len(pairs) {
		n = len(pairs)
	}
	top := make([]string, n)
	for i := 0; i < n; i++ {
		top[i] = pairs[i].entity
	}
	return top
}
