// Package format renders command output.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output, indented when Indent is set.
type JSONFormatter struct {
	Indent bool
}

// Write writes payload to w. A json.RawMessage is re-indented rather than
// re-encoded so upstream documents pass through untouched.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	if raw, ok := payload.(json.RawMessage); ok {
		return f.writeRaw(w, raw)
	}
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

func (f JSONFormatter) writeRaw(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	var err error
	if f.Indent {
		err = json.Indent(&buf, raw, "", "  ")
	} else {
		err = json.Compact(&buf, raw)
	}
	if err != nil {
		return fmt.Errorf("format json: %w", err)
	}
	buf.WriteByte('\n')
	_, err = w.Write(buf.Bytes())
	return err
}

// Table writes tab-aligned rows under a header.
func Table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
