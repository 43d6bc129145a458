// Package main provides the docid CLI for document identity resolution.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dan-solli/docid/pkg/docid"
)

var rootCmd = &cobra.Command{
	Use:   "docid",
	Short: "Document identity and deduplication engine",
	Long: `CLI for resolving document identity against a fingerprint repository.

Configuration comes from the environment (a .env file is loaded if present):
  DOCID_DB_PATH             SQLite database path (default: docid.db)
  DOCID_EMBEDDING_DIM       expected embedding dimensionality (default: 1536)
  DOCID_INDEX_BACKEND       similarity index backend, memory or qdrant (default: memory)
  DOCID_QDRANT_HOST         Qdrant hostname (default: localhost)
  DOCID_QDRANT_PORT         Qdrant gRPC port (default: 6334)
  DOCID_LOG_MODE            dev or prod logging (default: prod)
  DOCID_TRACE_FILE          JSONL operation trace output (default: disabled)`,
}

var (
	confirmAction string
	matchedID     string
)

var submitCmd = &cobra.Command{
	Use:   "submit <envelope.json>",
	Short: "Resolve the identity of one document",
	Long: `Reads a JSON envelope and resolves it against the repository.

The envelope carries the document and its optional embedding:
  {"content": "...", "embedding": [0.12, ...], "filename": "notes.md"}

A "similar" decision persists nothing. Once a human has reviewed the match,
rerun with --confirm update --matched-id <id> to supersede the matched
document, or --confirm create to register the document as new.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var lineageCmd = &cobra.Command{
	Use:   "lineage <document-id>",
	Short: "Print the version chain a document belongs to",
	Args:  cobra.ExactArgs(1),
	RunE:  runLineage,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document, its version chain, and its duplicates",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var jobID string

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Deduplicate all Active documents in one resumable pass",
	Long: `Walks every Active document and collapses groups that share a layout
or sit in one semantic cluster, keeping the newest member of each group.

Progress is checkpointed under the job id: an interrupted run resumes
where it stopped when rerun with the same --job value.`,
	RunE: runDedup,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print repository and index counters",
	RunE:  runStats,
}

func init() {
	submitCmd.Flags().StringVar(&confirmAction, "confirm", "", "confirmed action for a similar decision: update or create")
	submitCmd.Flags().StringVar(&matchedID, "matched-id", "", "matched document id to supersede (required with --confirm update)")
	dedupCmd.Flags().StringVar(&jobID, "job", "bulk-dedup", "job id for checkpointing and resume")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(dedupCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openEngine() (*docid.Engine, error) {
	cfg, err := docid.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	eng, err := docid.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return eng, nil
}

// envelope is the JSON input accepted by the submit command.
type envelope struct {
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Filename  string    `json:"filename,omitempty"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read envelope: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse envelope: %w", err)
	}

	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx := context.Background()
	start := time.Now()

	var res *docid.Result
	if confirmAction != "" {
		res, err = eng.Confirm(ctx, env.Content, env.Embedding, env.Filename,
			docid.Action(confirmAction), matchedID)
	} else {
		res, err = eng.SubmitForIdentity(ctx, env.Content, env.Embedding, env.Filename)
	}
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	fmt.Printf("Decision: %s (confidence %.2f)\n", res.Decision.Action, res.Decision.Confidence)
	for _, reason := range res.Decision.Reasons {
		fmt.Printf("  - %s\n", reason)
	}
	if res.Decision.MatchedDocumentID != "" {
		fmt.Printf("Matched: %s\n", res.Decision.MatchedDocumentID)
	}
	if res.Record != nil {
		fmt.Printf("Record:  %s (version %d, %s)\n",
			res.Record.DocumentID, res.Record.Version, res.Record.State)
	} else {
		fmt.Println("Nothing persisted; rerun with --confirm update|create once reviewed.")
	}
	fmt.Printf("Took %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runLineage(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	chain, err := eng.Lineage(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("resolve lineage: %w", err)
	}
	if len(chain) == 0 {
		fmt.Println("No document found.")
		return nil
	}

	for _, rec := range chain {
		marker := " "
		if rec.DocumentID == args[0] {
			marker = "*"
		}
		fmt.Printf("%s v%-3d %-10s %s  %s  %s\n",
			marker, rec.Version, rec.State, rec.DocumentID,
			rec.CreatedAt.Format(time.RFC3339), rec.Source)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	affected, err := eng.Delete(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if len(affected) == 0 {
		fmt.Println("Nothing to delete.")
		return nil
	}

	fmt.Printf("Deleted %d document(s):\n", len(affected))
	for _, id := range affected {
		fmt.Printf("  - %s\n", id)
	}
	return nil
}

func runDedup(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	start := time.Now()
	fmt.Printf("Running bulk dedup (job %q)...\n", jobID)

	res, err := eng.BulkDedup(context.Background(), jobID)
	if res != nil {
		if res.Resumed {
			fmt.Println("Resumed from checkpoint.")
		}
		fmt.Printf("  Scanned: %d\n", res.Scanned)
		fmt.Printf("  Marked:  %d\n", res.Marked)
		fmt.Printf("  Skipped: %d\n", res.Skipped)
	}
	if err != nil {
		return fmt.Errorf("bulk dedup interrupted (rerun with --job %s to resume): %w", jobID, err)
	}

	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	eng, err := openEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	stats, err := eng.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("collect stats: %w", err)
	}

	fmt.Println("Documents:")
	for _, state := range []docid.DocumentState{
		docid.StateActive, docid.StateSuperseded, docid.StateDuplicate, docid.StateDeleted,
	} {
		fmt.Printf("  %-10s %d\n", state, stats.States[state])
	}
	if stats.IndexSize >= 0 {
		fmt.Printf("Index vectors: %d\n", stats.IndexSize)
	}
	fmt.Printf("Cache: %d hits, %d misses\n", stats.CacheHits, stats.CacheMisses)
	return nil
}
