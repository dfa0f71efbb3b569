// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rtpx/rtpx/internal/rterr"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatText outputFormat = "text"
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

type outputFormat string

func addFormatFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", string(formatText), "output format: text, json or yaml")
}

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatText, formatJSON, formatYAML:
		return f, nil
	default:
		return "", rterr.InvalidArgument("output format", s, "expected text, json or yaml")
	}
}

// writeStructured encodes v as JSON or YAML. Text output is left to the caller.
func writeStructured(w io.Writer, f outputFormat, v any) error {
	switch f {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("no structured encoding for %q", f)
	}
}

// printField writes one "key: value" line of text output.
func printField(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "%s: %v\n", KeyStyle.Render(key), value)
}
