package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/config"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/database"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/llm"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/models"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/pipeline"
	"github.com/sander-arti/AI-nyhetsagent-sub001/internal/reputation"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "nyhetsagent",
	Short:   "Dedup and entity grouping for transcribed AI news items",
	Long:    "nyhetsagent collapses near-duplicate news items extracted from channel transcripts into canonical clusters and groups them by entity for briefing.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(clustersCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("nyhetsagent", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/nyhetsagent/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to tune thresholds, weights, and the entity table.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Path())
		fmt.Println("Clusters:")
		fmt.Printf("  Total: %d\n", stats.Clusters)
		fmt.Printf("  Multi-source: %d\n", stats.MultiSource)
		fmt.Printf("  Items tracked: %d\n", stats.ItemsTracked)
		fmt.Println("\nHistory:")
		fmt.Printf("  Runs: %d\n", stats.Runs)
		fmt.Printf("  Cross-run decisions: %d\n", stats.MatchesRecorded)
		fmt.Println("\nSources:")
		fmt.Printf("  Tracked: %d\n", stats.SourcesTracked)

		reps, err := db.LoadReputations()
		if err != nil {
			return fmt.Errorf("loading reputations: %w", err)
		}
		ids := make([]string, 0, len(reps))
		for id := range reps {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if reps[ids[i]].ReliabilityScore != reps[ids[j]].ReliabilityScore {
				return reps[ids[i]].ReliabilityScore > reps[ids[j]].ReliabilityScore
			}
			return ids[i] < ids[j]
		})
		if len(ids) > 5 {
			ids = ids[:5]
		}
		tracker := reputation.NewTracker(reps)
		for _, id := range ids {
			r := reps[id]
			line := fmt.Sprintf("  %-24s reliability=%.2f first_reports=%d", id, r.ReliabilityScore, r.FirstReports)
			if focus := tracker.TopSpecializations(id, 3); len(focus) > 0 {
				line += "  focus=" + strings.Join(focus, ", ")
			}
			fmt.Println(line)
		}
		return nil
	},
}

// --- run command ---

var (
	inputPath  string
	outputPath string
	runID      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deduplicate and group a batch of extracted items",
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := models.LoadBatch(inputPath)
		if err != nil {
			return err
		}
		if runID != "" {
			batch.RunID = runID
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		embedder := llm.CreateEmbedder(cfg.Embedding)
		p := pipeline.New(cfg, db, embedder)

		result, err := p.Run(cmd.Context(), batch)
		for _, step := range result.Steps {
			if step.Err != nil {
				fmt.Printf("  %-8s FAILED: %v\n", step.Name, step.Err)
			} else {
				fmt.Printf("  %-8s %s\n", step.Name, step.Summary)
			}
		}
		if err != nil {
			return fmt.Errorf("run %s failed: %w", result.RunID, err)
		}

		for _, w := range result.Stats.Warnings {
			log.Printf("warning: %s", w)
		}
		fmt.Printf("\nRun %s: %d items -> %d grouped, %d standalone\n",
			result.RunID, result.Stats.TotalItems,
			result.Stats.GroupedItems, result.Stats.StandaloneItems)

		return writeBrief(result)
	},
}

func writeBrief(result *pipeline.Result) error {
	data, err := json.MarshalIndent(result.Brief, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding brief: %w", err)
	}

	if outputPath == "" || outputPath == "-" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing brief: %w", err)
	}
	fmt.Printf("Brief written to %s\n", outputPath)
	return nil
}

// --- clusters command ---

var clusterLimit int

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List recently persisted clusters",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		summaries, err := db.ListClusters(clusterLimit)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No clusters stored yet. Run 'nyhetsagent run' first.")
			return nil
		}

		for _, s := range summaries {
			fmt.Printf("%s  members=%d  quality=%.2f  first=%s (%s)\n",
				s.ID[:8], s.MemberCount, s.QualityScore, s.FirstReportedBy, s.FirstReportedAt)
			if s.CommonEntities != "" && s.CommonEntities != "null" {
				fmt.Printf("         entities=%s  type=%s\n", s.CommonEntities, s.EventType)
			}
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Path to parsed items JSON (required)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the brief JSON to this path (default stdout)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Override the run identifier")
	runCmd.MarkFlagRequired("input")

	clustersCmd.Flags().IntVarP(&clusterLimit, "limit", "n", 20, "Maximum clusters to list")
}

func openDB() (*database.DB, error) {
	dbPath := filepath.Join(cfg.GetDataDir(), "nyhetsagent.db")
	return database.Open(dbPath)
}
