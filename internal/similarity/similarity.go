// Package similarity computes multi-factor pairwise similarity between
// extracted items.
package similarity

import (
	"errors"
	"math"
	"time"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
)

// ErrNoEmbedding is returned when either side of a comparison has no
// embedding vector. The clustering engine routes such items standalone.
var ErrNoEmbedding = errors.New("embedding unavailable for similarity computation")

// Item is the view of a decorated item the scorer needs.
type Item struct {
	Embedding   []float64
	Entities    []string
	EventType   string
	PublishedAt time.Time
	Sentiment   float64 // lexicon score in [-1, 1]
}

// Result is the pairwise similarity breakdown between two items.
type Result struct {
	Embedding float64 `json:"embedding"`
	Entity    float64 `json:"entity"`
	EventType float64 `json:"event_type"`
	Temporal  float64 `json:"temporal"`
	Sentiment float64 `json:"sentiment"`
	Overall   float64 `json:"overall"`
}

// Scorer computes weighted multi-factor similarity. It is pure: all inputs
// arrive precomputed on the items.
type Scorer struct {
	cfg        config.Similarity
	compatible map[[2]string]bool
}

// NewScorer creates a scorer from validated configuration.
func NewScorer(cfg config.Similarity) *Scorer {
	compat := make(map[[2]string]bool, len(cfg.CompatibleTypes)*2)
	for _, p := range cfg.CompatibleTypes {
		compat[[2]string{p.A, p.B}] = true
		compat[[2]string{p.B, p.A}] = true
	}
	return &Scorer{cfg: cfg, compatible: compat}
}

// Score computes the weighted similarity between two items. Symmetric:
// Score(a,b) == Score(b,a). Fails only when an embedding is missing.
func (s *Scorer) Score(a, b Item) (Result, error) {
	if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
		return Result{}, ErrNoEmbedding
	}

	r := Result{
		Embedding: Cosine(a.Embedding, b.Embedding),
		Entity:    Jaccard(a.Entities, b.Entities),
		EventType: s.eventTypeScore(a.EventType, b.EventType),
		Temporal:  s.temporalProximity(a.PublishedAt, b.PublishedAt),
		Sentiment: sentimentAlignment(a.Sentiment, b.Sentiment),
	}

	w := s.cfg.Weights
	r.Overall = clamp01(w.Embedding*r.Embedding +
		w.Entity*r.Entity +
		w.EventType*r.EventType +
		w.Temporal*r.Temporal +
		w.Sentiment*r.Sentiment)
	return r, nil
}

// Cosine returns the cosine similarity of two vectors, clamped to [0,1].
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Jaccard returns |A∩B| / |A∪B| over normalized entity sets. Two items with
// no entities at all score 0, not 1: absence of evidence is not a match.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, e := range a {
		setA[NormalizeEntity(e)] = true
	}
	setB := make(map[string]bool, len(b))
	for _, e := range b {
		setB[NormalizeEntity(e)] = true
	}

	intersection := 0
	union := len(setB)
	for e := range setA {
		if setB[e] {
			intersection++
		} else {
			union++
		}
	}
	return float64(intersection) / float64(union)
}

// eventTypeScore is 1 for matching types, a configured partial score for
// compatible types, else 0. Unknown types never match.
func (s *Scorer) eventTypeScore(a, b string) float64 {
	if a == "" || b == "" || a == EventOther || b == EventOther {
		return 0
	}
	if a == b {
		return 1
	}
	if s.compatible[[2]string{a, b}] {
		return s.cfg.PartialTypeScore
	}
	return 0
}

// temporalProximity decays exponentially with the publication delta:
// same-hour pairs score near 1, a half-life apart scores 0.5, a week apart
// is effectively 0 at the default half-life. Monotonically non-increasing
// in |Δt|.
func (s *Scorer) temporalProximity(a, b time.Time) float64 {
	if a.IsZero() || b.IsZero() {
		return 0
	}
	deltaHours := math.Abs(a.Sub(b).Hours())
	return math.Pow(0.5, deltaHours/s.cfg.DecayHalfLifeHrs)
}

// sentimentAlignment maps the distance between two [-1,1] lexicon scores
// onto [0,1]: identical sentiment scores 1, opposite poles score 0.
func sentimentAlignment(a, b float64) float64 {
	return clamp01(1 - math.Abs(a-b)/2)
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
