package formatter

import (
	"encoding/json"
	"io"

	"github.com/gnolang/scrunch/pack"
)

// WriteJSON writes the summaries as an indented JSON array.
func WriteJSON(w io.Writer, summaries []pack.Summary) error {
	if summaries == nil {
		summaries = []pack.Summary{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
