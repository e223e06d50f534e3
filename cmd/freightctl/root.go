package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/freightdoc/internal/app"
	"github.com/dgallion1/freightdoc/internal/chunker"
	"github.com/dgallion1/freightdoc/internal/config"
	"github.com/dgallion1/freightdoc/internal/logging"
	"github.com/dgallion1/freightdoc/internal/parser"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "freightctl",
		Short: "Run the freight document pipeline on local files",
		Long: `freightctl chunks, questions and extracts shipment data from a local
logistics document without a server. Configuration is read from the same
environment variables as the server; the store is always in memory.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log pipeline activity to stderr")

	cmd.AddCommand(newChunkCmd(), newAskCmd(opts), newExtractCmd(opts))
	return cmd
}

func newChunkCmd() *cobra.Command {
	var size, overlap int
	cmd := &cobra.Command{
		Use:   "chunk FILE",
		Short: "Print the retrieval chunks of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(args[0])
			if err != nil {
				return err
			}
			chunks := chunker.Split(text, chunker.Config{ChunkSize: size, ChunkOverlap: overlap})
			type out struct {
				Index int    `json:"chunk_index"`
				Text  string `json:"text"`
			}
			res := make([]out, len(chunks))
			for i, c := range chunks {
				res[i] = out{Index: i, Text: c}
			}
			return printJSON(cmd, res)
		},
	}
	def := chunker.DefaultConfig()
	cmd.Flags().IntVar(&size, "size", def.ChunkSize, "chunk size in characters")
	cmd.Flags().IntVar(&overlap, "overlap", def.ChunkOverlap, "overlap for character splits")
	return cmd
}

func newAskCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask FILE QUESTION",
		Short: "Answer a question about a document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDocument(cmd, root, args[0], func(ctx context.Context, a *app.App, id string) error {
				ans, err := a.Service.Ask(ctx, id, args[1])
				if err != nil {
					return err
				}
				return printJSON(cmd, ans)
			})
		},
	}
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract shipment fields from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDocument(cmd, root, args[0], func(ctx context.Context, a *app.App, id string) error {
				rec, err := a.Service.Extract(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			})
		},
	}
}

// withDocument ingests path into a fresh in-memory pipeline and runs fn
// against it.
func withDocument(cmd *cobra.Command, root *rootOptions, path string, fn func(context.Context, *app.App, string) error) error {
	text, err := readText(path)
	if err != nil {
		return err
	}

	cfg := config.Load()
	cfg.StoreBackend = "memory"
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if root.verbose {
		log = logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.Service.Ingest(ctx, filepath.Base(path), text)
	if err != nil {
		return err
	}
	return fn(ctx, a, doc.ID)
}

func readText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	text, err := parser.ExtractText(f, path, parser.Options{
		PDFFallbackPdftotext: config.Load().PDFFallbackPdftotext,
	})
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return text, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
