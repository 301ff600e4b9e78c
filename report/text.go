// Package report writes aggregated file summaries.
package report

import (
	"bufio"
	"fmt"
	"io"

	"tocscan/selection"
)

// hintWidth right-aligns the two hint values so the location column lines up.
const hintWidth = len(selection.HintNoPPOFound)

// WriteText writes one "<ein> <hint> <location>" line per entry.
func WriteText(w io.Writer, entries []selection.Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if _, err := fmt.Fprintf(bw, "%s %*s %s\n", e.ExampleEIN, hintWidth, e.Hint, e.Location); err != nil {
			return fmt.Errorf("write line: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
