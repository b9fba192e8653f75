package util

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/pretty"
)

// PrintPrettyJSON writes raw JSON with two-space indentation, keeping the
// original key order. An empty body prints as {}.
func PrintPrettyJSON(w io.Writer, raw []byte) error {
	if len(raw) == 0 {
		_, err := fmt.Fprintln(w, "{}")
		return err
	}
	if !json.Valid(raw) {
		return fmt.Errorf("invalid JSON")
	}
	_, err := w.Write(pretty.Pretty(raw))
	return err
}

// PrintJSON marshals v and writes it with indentation.
func PrintJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	return PrintPrettyJSON(w, b)
}
