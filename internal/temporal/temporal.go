// Package temporal derives story-phase context from item timestamps.
package temporal

import (
	"errors"
	"fmt"
	"time"

	"github.com/araddon/dateparse"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
)

// ErrMalformedTimestamp is returned when an item's published_at cannot be
// parsed. Callers recover by treating the item as historical.
var ErrMalformedTimestamp = errors.New("malformed published_at timestamp")

// Phase classifies an item's temporal relationship to its underlying event.
type Phase string

const (
	PhaseBreaking   Phase = "breaking"
	PhaseFollowUp   Phase = "follow_up"
	PhaseAnalysis   Phase = "analysis"
	PhaseHistorical Phase = "historical"
)

// Window is the coarse age bucket an item falls into.
type Window string

const (
	Window24h Window = "24h"
	Window7d  Window = "7d"
	Window30d Window = "30d"
	Window90d Window = "90d"
)

// Context is the derived temporal context for one item. Recomputed per run,
// never persisted on its own.
type Context struct {
	PublishedAt  time.Time
	DiscoveredAt time.Time
	AgeHours     float64
	Phase        Phase
	Window       Window
}

// Builder computes temporal contexts using configured phase windows.
type Builder struct {
	cfg config.Temporal
}

// NewBuilder creates a temporal context builder.
func NewBuilder(cfg config.Temporal) *Builder {
	return &Builder{cfg: cfg}
}

// Build derives the temporal context for an item published at the given
// timestamp string, discovered at the given run time. Channel metadata
// carries timestamps in several formats, so parsing is lenient.
// On a malformed timestamp it returns a historical-phase context together
// with ErrMalformedTimestamp so the caller can log and continue.
func (b *Builder) Build(publishedAt string, discoveredAt time.Time) (Context, error) {
	pub, err := dateparse.ParseAny(publishedAt)
	if err != nil || pub.IsZero() {
		return Context{
			DiscoveredAt: discoveredAt,
			Phase:        PhaseHistorical,
			Window:       Window90d,
		}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, publishedAt)
	}

	age := discoveredAt.Sub(pub).Hours()
	if age < 0 {
		// Clock skew between the platform and us; treat as just published.
		age = 0
	}

	return Context{
		PublishedAt:  pub.UTC(),
		DiscoveredAt: discoveredAt,
		AgeHours:     age,
		Phase:        b.phase(age),
		Window:       window(age),
	}, nil
}

func (b *Builder) phase(ageHours float64) Phase {
	switch {
	case ageHours <= b.cfg.BreakingHours:
		return PhaseBreaking
	case ageHours <= b.cfg.FollowUpHours:
		return PhaseFollowUp
	case ageHours <= b.cfg.AnalysisHours:
		return PhaseAnalysis
	default:
		return PhaseHistorical
	}
}

func window(ageHours float64) Window {
	switch {
	case ageHours <= 24:
		return Window24h
	case ageHours <= 24*7:
		return Window7d
	case ageHours <= 24*30:
		return Window30d
	default:
		return Window90d
	}
}

// Restrictive returns the more restrictive of two phases, i.e. the one whose
// join threshold is higher. Breaking news is the strictest.
func Restrictive(a, b Phase) Phase {
	if rank(a) <= rank(b) {
		return a
	}
	return b
}

func rank(p Phase) int {
	switch p {
	case PhaseBreaking:
		return 0
	case PhaseFollowUp:
		return 1
	case PhaseAnalysis:
		return 2
	default:
		return 3
	}
}
