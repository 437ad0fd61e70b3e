package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wallgarden/wallgarden/internal/core"
	"github.com/wallgarden/wallgarden/internal/store"
	"github.com/wallgarden/wallgarden/internal/ui"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// listEntry is the exported shape of a record for json and yaml output.
type listEntry struct {
	Path            string `json:"path" yaml:"path"`
	Pinned          bool   `json:"pinned" yaml:"pinned"`
	Hidden          bool   `json:"hidden" yaml:"hidden"`
	AttemptDownload bool   `json:"attempt_download" yaml:"attempt_download"`
	IsSet           bool   `json:"is_set" yaml:"is_set"`
	Exists          bool   `json:"exists" yaml:"exists"`
}

// newListCmd creates the list command.
func newListCmd() *cobra.Command {
	var (
		pinned bool
		hidden bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloaded wallpapers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			initOutput()

			if err := validateFormat(format); err != nil {
				out.Error("%v", err)
				return err
			}

			engine, err := engineOrFail()
			if err != nil {
				return err
			}

			var filter store.Fields
			if pinned {
				filter.Pinned = store.Bool(true)
			}
			if hidden {
				filter.Hidden = store.Bool(true)
			}

			infos, err := engine.List(filter)
			if err != nil {
				out.Error("Failed to list wallpapers: %v", err)
				return err
			}

			if format == formatTable {
				if len(infos) == 0 {
					out.Info("No wallpapers found")
					return nil
				}
				printTable(out, infos)
				return nil
			}

			return writeList(out.Writer(), format, infos)
		},
	}

	cmd.Flags().BoolVar(&pinned, "pinned", false, "only pinned wallpapers")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "only hidden wallpapers")
	cmd.Flags().StringVar(&format, "format", formatTable, "output format (table|json|yaml)")

	return cmd
}

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("invalid format: %s (must be one of %s)", format,
		strings.Join([]string{formatTable, formatJSON, formatYAML}, ", "))
}

func printTable(o *ui.Output, infos []core.ImageInfo) {
	headers := []string{"Path", "Current", "Pinned", "Hidden", "Status"}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			shortenPath(info.Path),
			o.Flag(info.IsSet),
			o.Flag(info.Pinned),
			o.Flag(info.Hidden),
			status(info),
		})
	}

	o.Print("")
	o.Table(headers, rows)
	o.Print("")
}

func status(info core.ImageInfo) string {
	switch {
	case !info.AttemptDownload:
		return "rejected"
	case !info.Exists:
		return "missing"
	default:
		return "ok"
	}
}

// writeList encodes infos as json or yaml.
func writeList(w io.Writer, format string, infos []core.ImageInfo) error {
	entries := make([]listEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, listEntry{
			Path:            info.Path,
			Pinned:          info.Pinned,
			Hidden:          info.Hidden,
			AttemptDownload: info.AttemptDownload,
			IsSet:           info.IsSet,
			Exists:          info.Exists,
		})
	}

	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	}
	return validateFormat(format)
}
