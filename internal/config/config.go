package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// ErrInvalidWeights is returned when the similarity weights do not sum to 1.
var ErrInvalidWeights = errors.New("similarity weights must sum to 1.0")

type Config struct {
	Temporal   Temporal   `yaml:"temporal"`
	Similarity Similarity `yaml:"similarity"`
	Clustering Clustering `yaml:"clustering"`
	Historical Historical `yaml:"historical"`
	Grouping   Grouping   `yaml:"grouping"`
	Embedding  Embedding  `yaml:"embedding"`
	Output     Output     `yaml:"output"`
	Logging    Logging    `yaml:"logging"`
}

// Temporal holds the story-phase windows, in hours since publication.
type Temporal struct {
	BreakingHours float64 `yaml:"breaking_hours"`
	FollowUpHours float64 `yaml:"follow_up_hours"`
	AnalysisHours float64 `yaml:"analysis_hours"`
}

// Similarity holds the five factor weights and factor tuning.
type Similarity struct {
	Weights          Weights    `yaml:"weights"`
	DecayHalfLifeHrs float64    `yaml:"decay_half_life_hours"`
	CompatibleTypes  []TypePair `yaml:"compatible_event_types"`
	PartialTypeScore float64    `yaml:"partial_type_score"`
}

type Weights struct {
	Embedding float64 `yaml:"embedding"`
	Entity    float64 `yaml:"entity"`
	EventType float64 `yaml:"event_type"`
	Temporal  float64 `yaml:"temporal"`
	Sentiment float64 `yaml:"sentiment"`
}

// Sum returns the total of all five weights.
func (w Weights) Sum() float64 {
	return w.Embedding + w.Entity + w.EventType + w.Temporal + w.Sentiment
}

type TypePair struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Clustering holds join thresholds per story phase plus engine tuning.
type Clustering struct {
	BreakingThreshold   float64 `yaml:"breaking_threshold"`
	FollowUpThreshold   float64 `yaml:"follow_up_threshold"`
	AnalysisThreshold   float64 `yaml:"analysis_threshold"`
	HistoricalThreshold float64 `yaml:"historical_threshold"`
	MinEntities         int     `yaml:"min_entities"`
}

// Historical configures cross-run matching.
type Historical struct {
	WindowDays       int     `yaml:"window_days"`
	MatchThreshold   float64 `yaml:"match_threshold"`
	MergeWindowHours float64 `yaml:"merge_window_hours"`
}

// Grouping configures entity/topic grouping and TL;DR selection.
type Grouping struct {
	MinGroupSize   int             `yaml:"min_group_size"`
	TLDRMax        int             `yaml:"tldr_max"`
	BreakingCutoff float64         `yaml:"breaking_cutoff"`
	MajorCutoff    float64         `yaml:"major_cutoff"`
	Entities       []EntityPattern `yaml:"entities"`
}

// EntityPattern maps a surface form to a canonical entity. Patterns are
// matched most-specific first (longest pattern wins).
type EntityPattern struct {
	Pattern string `yaml:"pattern"`
	Entity  string `yaml:"entity"`
	Type    string `yaml:"type"`
}

type Embedding struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	OllamaURL      string  `yaml:"ollama_url"`
	OpenAIModel    string  `yaml:"openai_model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for nyhetsagent.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "nyhetsagent")
}

// DataDir returns the XDG data directory for nyhetsagent.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "nyhetsagent")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/nyhetsagent/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'nyhetsagent init' to create a default config",
		xdgConfig,
	)
}

// Load reads, parses and validates a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults, then validates.
func parse(data []byte) (*Config, error) {
	cfg := Defaults()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns a Config populated with built-in defaults.
func Defaults() *Config {
	return &Config{
		Temporal: Temporal{
			BreakingHours: 24,
			FollowUpHours: 96,
			AnalysisHours: 336,
		},
		Similarity: Similarity{
			Weights: Weights{
				Embedding: 0.45,
				Entity:    0.25,
				EventType: 0.10,
				Temporal:  0.15,
				Sentiment: 0.05,
			},
			DecayHalfLifeHrs: 24,
			PartialTypeScore: 0.5,
			CompatibleTypes: []TypePair{
				{A: "product_launch", B: "company_announcement"},
				{A: "model_release", B: "product_launch"},
				{A: "research", B: "model_release"},
			},
		},
		Clustering: Clustering{
			BreakingThreshold:   0.80,
			FollowUpThreshold:   0.72,
			AnalysisThreshold:   0.65,
			HistoricalThreshold: 0.60,
			MinEntities:         1,
		},
		Historical: Historical{
			WindowDays:       90,
			MatchThreshold:   0.62,
			MergeWindowHours: 48,
		},
		Grouping: Grouping{
			MinGroupSize:   2,
			TLDRMax:        5,
			BreakingCutoff: 0.85,
			MajorCutoff:    0.65,
		},
		Embedding: Embedding{
			Provider:       "ollama",
			Model:          "nomic-embed-text",
			OllamaURL:      "http://localhost:11434",
			OpenAIModel:    "text-embedding-3-small",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 30,
			RatePerSecond:  4,
		},
		Logging: Logging{Level: "INFO"},
	}
}

// Validate checks invariants that must hold before a run starts.
// Weight misconfiguration is fatal: renormalizing silently would shift every
// similarity score and with it every dedup decision.
func (c *Config) Validate() error {
	if math.Abs(c.Similarity.Weights.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("%w (got %.4f)", ErrInvalidWeights, c.Similarity.Weights.Sum())
	}

	thresholds := map[string]float64{
		"breaking_threshold":   c.Clustering.BreakingThreshold,
		"follow_up_threshold":  c.Clustering.FollowUpThreshold,
		"analysis_threshold":   c.Clustering.AnalysisThreshold,
		"historical_threshold": c.Clustering.HistoricalThreshold,
		"match_threshold":      c.Historical.MatchThreshold,
	}
	for name, v := range thresholds {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config %s must be in (0,1], got %v", name, v)
		}
	}

	if c.Temporal.BreakingHours <= 0 ||
		c.Temporal.FollowUpHours <= c.Temporal.BreakingHours ||
		c.Temporal.AnalysisHours <= c.Temporal.FollowUpHours {
		return fmt.Errorf("temporal windows must be increasing: breaking < follow_up < analysis")
	}

	if c.Similarity.DecayHalfLifeHrs <= 0 {
		return fmt.Errorf("decay_half_life_hours must be positive")
	}
	if c.Grouping.MinGroupSize < 1 {
		return fmt.Errorf("min_group_size must be at least 1")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
