// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/poiesic/docket"
	"github.com/poiesic/docket/core"
	"github.com/poiesic/docket/extract"
	"github.com/urfave/cli/v2"
)

const defaultConfigPath = "docket.toml"

func main() {
	// Load .env file if it exists (for host and model settings)
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "docket",
		Usage: "Legal document ingestion and hybrid retrieval engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Upload documents and process them into the indexes",
				ArgsUsage: "<file> [<file>...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Owner user ID; omit to ingest into the public partition",
					},
					&cli.StringFlag{
						Name:  "mime",
						Usage: "Override MIME type detection",
					},
				},
			},
			{
				Name:      "query",
				Usage:     "Ask a question against the indexed documents",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "user",
						Aliases: []string{"u"},
						Usage:   "Query as this user, including their private partition",
					},
					&cli.BoolFlag{
						Name:  "no-public",
						Usage: "Exclude the public partition (requires --user)",
					},
					&cli.IntFlag{
						Name:    "max-hits",
						Aliases: []string{"k"},
						Usage:   "Maximum number of passages to return",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:  "ask",
						Usage: "Synthesize a prose answer from the passages",
					},
					&cli.BoolFlag{
						Name:    "verbose",
						Aliases: []string{"v"},
						Usage:   "Print per-branch retrieval details",
					},
				},
			},
			{
				Name:   "status",
				Usage:  "Show processing task counts, or tasks in one state",
				Action: statusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "state",
						Usage: "List tasks in this state (queued, running, succeeded, failed)",
					},
				},
			},
			{
				Name:      "rm",
				Usage:     "Remove a document and everything indexed from it",
				ArgsUsage: "<document-id>",
				Action:    removeCommand,
			},
			{
				Name:      "reprocess",
				Usage:     "Re-run ingestion for a failed or indexed document",
				ArgsUsage: "<document-id>",
				Action:    reprocessCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openService builds the service from config file, environment and flags.
func openService(c *cli.Context) (*docket.Service, error) {
	configPath := c.String("config")
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath
	}

	config, err := loadConfig(configPath, explicit)
	if err != nil {
		return nil, err
	}
	config.applyEnv()

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = config.DB
	}
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required (--db, DOCKET_DB, or config file)")
	}

	return docket.New(dbPath, docket.WithAIConfig(config.aiConfig()))
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	partition := core.PartitionPublic
	if user := c.String("user"); user != "" {
		partition = core.UserPartition(user)
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()
	ids := make([]core.ID, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		filename := filepath.Base(path)
		mimeType := c.String("mime")
		if mimeType == "" {
			mimeType = sniffMime(filename, data)
		}

		id, err := service.Upload(ctx, filename, mimeType, data, partition)
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		ids = append(ids, id)
		fmt.Fprintf(os.Stderr, "Uploaded %s as document %d (%s)\n", filename, id, mimeType)
	}

	service.WaitForIngestion()

	failures := 0
	for _, id := range ids {
		doc, err := service.Document(ctx, id)
		if err != nil {
			return err
		}
		if doc.Status == core.StatusIndexed {
			fmt.Printf("Document %d (%s): indexed\n", doc.Id, doc.Filename)
		} else {
			failures++
			fmt.Printf("Document %d (%s): %s: %s\n", doc.Id, doc.Filename, doc.Status, doc.Error)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d documents failed", failures, len(ids))
	}
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	set, err := partitionSet(c)
	if err != nil {
		return err
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()

	if c.Bool("ask") {
		answer, passages, askErr := service.Ask(ctx, set, question, c.Int("max-hits"))
		if askErr != nil {
			return askErr
		}
		if len(passages) == 0 {
			fmt.Println("No relevant passages found.")
			return nil
		}
		fmt.Println(answer)
		fmt.Println()
		printCitations(passages)
		return nil
	}

	var monitor *verboseMonitor
	if c.Bool("verbose") {
		monitor = newVerboseMonitor(os.Stderr)
	}

	var passages []core.Passage
	if monitor != nil {
		passages, err = service.QueryWithMonitor(ctx, set, question, c.Int("max-hits"), monitor)
	} else {
		passages, err = service.Query(ctx, set, question, c.Int("max-hits"))
	}
	if err != nil {
		return err
	}
	if len(passages) == 0 {
		fmt.Println("No relevant passages found.")
		return nil
	}

	for i, passage := range passages {
		fmt.Printf("[%d] doc %d chunk %d (%s, score %.3f, %s)\n",
			i+1, passage.DocId, passage.Seq, string(passage.Partition),
			passage.Score, sourceName(passage.Source))
		if len(passage.EntityPath) > 0 {
			fmt.Printf("    via %s\n", strings.Join(passage.EntityPath, " -> "))
		}
		fmt.Printf("    %s\n", passage.Text)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()

	if stateName := c.String("state"); stateName != "" {
		state, parseErr := parseTaskState(stateName)
		if parseErr != nil {
			return parseErr
		}

		tasks, listErr := service.Tasks(ctx, state)
		if listErr != nil {
			return listErr
		}
		if len(tasks) == 0 {
			fmt.Printf("No %s tasks.\n", state)
			return nil
		}
		for _, task := range tasks {
			doc := fmt.Sprintf("doc %d", task.DocId)
			if task.DocDeleted {
				doc += " (deleted)"
			}
			line := fmt.Sprintf("%s  %s  %s  stage=%s retries=%d",
				task.CreatedAt.Format("2006-01-02 15:04:05"), task.Id, doc,
				task.Stage, task.Retries)
			if task.LastError != "" {
				line += "  error=" + task.LastError
			}
			fmt.Println(line)
		}
		return nil
	}

	counts, err := service.Status(ctx)
	if err != nil {
		return err
	}
	for _, state := range core.TaskStates {
		fmt.Printf("%-10s %d\n", state.String(), counts[state])
	}
	return nil
}

func removeCommand(c *cli.Context) error {
	id, err := parseDocID(c)
	if err != nil {
		return err
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	if err := service.Remove(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("Document %d removed.\n", id)
	return nil
}

func reprocessCommand(c *cli.Context) error {
	id, err := parseDocID(c)
	if err != nil {
		return err
	}

	service, err := openService(c)
	if err != nil {
		return err
	}
	defer service.Close()

	ctx := context.Background()
	if _, err := service.Reprocess(ctx, id); err != nil {
		return err
	}
	service.WaitForIngestion()

	doc, err := service.Document(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != core.StatusIndexed {
		return fmt.Errorf("document %d ended in %s: %s", id, doc.Status, doc.Error)
	}
	fmt.Printf("Document %d reindexed.\n", id)
	return nil
}

// partitionSet resolves the caller's visible partitions from flags.
func partitionSet(c *cli.Context) (core.PartitionSet, error) {
	user := c.String("user")
	if user == "" {
		if c.Bool("no-public") {
			return core.PartitionSet{}, fmt.Errorf("--no-public requires --user")
		}
		return core.PublicOnly(), nil
	}
	return core.ForUser(user, !c.Bool("no-public"))
}

// sniffMime detects a MIME type from the filename extension, falling back to
// content sniffing for unknown extensions.
func sniffMime(filename string, data []byte) string {
	if mimeType := extract.DetectMimeType(filename); mimeType != "" {
		return mimeType
	}
	return http.DetectContentType(data)
}

func parseDocID(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, fmt.Errorf("exactly one document ID is required")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid document ID %q", c.Args().First())
	}
	return core.ID(id), nil
}

func parseTaskState(name string) (core.TaskState, error) {
	for _, state := range core.TaskStates {
		if state.String() == strings.ToLower(name) {
			return state, nil
		}
	}
	return 0, fmt.Errorf("invalid task state %q: must be one of queued, running, succeeded, failed", name)
}

func sourceName(source core.PassageSource) string {
	switch source {
	case core.SourceVector:
		return "vector"
	case core.SourceGraph:
		return "graph"
	case core.SourceBoth:
		return "vector+graph"
	default:
		return "unknown"
	}
}

func printCitations(passages []core.Passage) {
	fmt.Println("Sources:")
	for i, passage := range passages {
		fmt.Printf("  [%d] doc %d chunk %d (%s)\n",
			i+1, passage.DocId, passage.Seq, string(passage.Partition))
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
