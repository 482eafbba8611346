package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grove-sh/grove/internal/event"
)

// NewLogCommand creates the log command group.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Export and import the raw event log",
	}
	cmd.AddCommand(newLogExportCommand(rootOpts))
	cmd.AddCommand(newLogImportCommand(rootOpts))
	return cmd
}

// LogExportOptions holds flags for log export.
type LogExportOptions struct {
	*RootOptions
	Output string
}

func newLogExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full event log",
		Long: `Export every event as a JSON or YAML document.

The format follows the output file extension (.json, .yaml, .yml);
without --out the log is written to stdout as JSON. The export is a
faithful wire-format dump: importing it into an empty garden derives
the identical state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogExport(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Output, "out", "", "output file (default stdout, JSON)")

	return cmd
}

func runLogExport(opts *LogExportOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	events, err := e.store.All(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "read event log", err)
	}

	docs := make([]json.RawMessage, 0, len(events))
	for _, ev := range events {
		data, err := event.Marshal(ev)
		if err != nil {
			return WrapExitError(ExitCommandError, "encode event", err)
		}
		docs = append(docs, data)
	}

	if opts.Output == "" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(docs)
	}

	var out []byte
	switch strings.ToLower(filepath.Ext(opts.Output)) {
	case ".yaml", ".yml":
		out, err = yamlDump(docs)
	default:
		out, err = json.MarshalIndent(docs, "", "  ")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "encode export", err)
	}
	if err := os.WriteFile(opts.Output, out, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "write export file", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d event(s) to %s\n", len(docs), opts.Output)
	return nil
}

// yamlDump renders the JSON documents as a YAML sequence.
func yamlDump(docs []json.RawMessage) ([]byte, error) {
	items := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		var m map[string]any
		if err := json.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return yaml.Marshal(items)
}

// LogImportOptions holds flags for log import.
type LogImportOptions struct {
	*RootOptions
	Replace bool
}

// LogImportResult is the JSON payload for log import.
type LogImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func newLogImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import events from an export file",
		Args:  cobra.ExactArgs(1),
		Long: `Import events from a JSON or YAML export.

Events already present (same client id) are skipped; import is
idempotent. With --replace the local log is replaced wholesale in one
transaction.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogImport(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Replace, "replace", false, "replace the local log instead of merging")

	return cmd
}

func runLogImport(opts *LogImportOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()
	e, err := openEnv(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer e.close()

	raw, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read import file", err)
	}

	docs, err := decodeImport(path, raw)
	if err != nil {
		return WrapExitError(ExitCommandError, "parse import file", err)
	}

	events := make([]event.Event, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		ev, err := event.Unmarshal(doc)
		if err != nil {
			e.log.Warn().Err(err).Msg("skipping unreadable event")
			skipped++
			continue
		}
		events = append(events, ev)
	}

	imported := 0
	if opts.Replace {
		if err := e.store.ReplaceAll(ctx, events); err != nil {
			return WrapExitError(ExitCommandError, "replace event log", err)
		}
		imported = len(events)
	} else {
		for _, ev := range events {
			inserted, err := e.store.Append(ctx, ev)
			if err != nil {
				return WrapExitError(ExitCommandError, "append imported event", err)
			}
			if inserted {
				imported++
			} else {
				skipped++
			}
		}
	}

	if opts.Format == "json" {
		return outputJSON(cmd.OutOrStdout(), LogImportResult{Imported: imported, Skipped: skipped})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d event(s), skipped %d.\n", imported, skipped)
	return nil
}

// decodeImport parses an export file into per-event JSON documents,
// accepting both JSON and YAML by extension.
func decodeImport(path string, raw []byte) ([]json.RawMessage, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var items []map[string]any
		if err := yaml.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		docs := make([]json.RawMessage, 0, len(items))
		for _, item := range items {
			doc, err := json.Marshal(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	default:
		var docs []json.RawMessage
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, err
		}
		return docs, nil
	}
}
