package models

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ItemType classifies what kind of fact an extracted item describes.
type ItemType string

const (
	TypeNews   ItemType = "news"
	TypeDebate ItemType = "debate"
	TypeDev    ItemType = "dev"
)

// Confidence is the upstream consensus confidence for an extraction.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// ParsedItem is one validated fact extracted from a channel transcript.
// Items are produced by the upstream extraction/consensus stage and are
// read-only to the dedup engine.
type ParsedItem struct {
	ID             string     `json:"id"`
	VideoID        string     `json:"video_id"`
	Source         string     `json:"source"`
	Timestamp      *int       `json:"timestamp,omitempty"` // in-video offset, seconds
	Type           ItemType   `json:"type"`
	Title          string     `json:"title"`
	Summary        string     `json:"summary,omitempty"`
	Topic          string     `json:"topic,omitempty"`       // debate items
	WhatChanged    string     `json:"what_changed,omitempty"` // dev items
	Entities       []string   `json:"entities"`
	Confidence     Confidence `json:"confidence"`
	RelevanceScore float64    `json:"relevance_score"`
	RawContext     string     `json:"raw_context,omitempty"`
	PublishedAt    string     `json:"published_at"`
}

// Key returns a stable identifier for the item. Upstream extraction assigns
// IDs; older exports only carry video_id + offset, so fall back to that.
func (p *ParsedItem) Key() string {
	if p.ID != "" {
		return p.ID
	}
	ts := 0
	if p.Timestamp != nil {
		ts = *p.Timestamp
	}
	return fmt.Sprintf("%s@%d", p.VideoID, ts)
}

// Text returns the item's free-text content for embedding and classification.
func (p *ParsedItem) Text() string {
	switch p.Type {
	case TypeDebate:
		if p.Topic != "" {
			return p.Title + " " + p.Topic
		}
	case TypeDev:
		if p.WhatChanged != "" {
			return p.Title + " " + p.WhatChanged
		}
	}
	if p.Summary != "" {
		return p.Title + " " + p.Summary
	}
	return p.Title
}

// Batch is one pipeline run's worth of input items.
type Batch struct {
	RunID        string       `json:"run_id,omitempty"`
	DiscoveredAt time.Time    `json:"discovered_at"`
	Items        []ParsedItem `json:"items"`
}

// LoadBatch reads a batch of parsed items from a JSON file.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading items file: %w", err)
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		// Older exports are a bare item array.
		var items []ParsedItem
		if err2 := json.Unmarshal(data, &items); err2 != nil {
			return nil, fmt.Errorf("parsing items file: %w", err)
		}
		batch.Items = items
	}

	if batch.DiscoveredAt.IsZero() {
		batch.DiscoveredAt = time.Now().UTC()
	}
	return &batch, nil
}
