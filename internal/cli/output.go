package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/forgo/nemesis/api/internal/model"
)

// writeResult prints v as indented JSON, or calls text for the text format
func writeResult(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func printMatch(w io.Writer, m model.MatchResponse) {
	fmt.Fprintf(w, "%-38s %-24s score=%3d cycle=%s at=%s\n",
		m.ID, m.EnemyUsername, m.MatchScore, m.CycleID, m.MatchedAt.Format("2006-01-02T15:04:05Z07:00"))
}
