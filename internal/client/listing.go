package client

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/arborfs/arbor/internal/cli/output"
	"github.com/arborfs/arbor/internal/cli/timeutil"
)

// printListing parses the Directory's VIEW/VIEWFOLDER CSV payload
// (internal/directory.FormatListing's header plus one row per line) and
// re-tabulates it with the Client's own table renderer.
func printListing(w io.Writer, csv string) error {
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) == 0 {
		fmt.Fprintln(w, "(empty)")
		return nil
	}

	table := output.NewTableData("TYPE", "NAME", "WORDS", "CHARS", "LAST ACCESSED", "OWNER")
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 6)
		if len(fields) != 6 {
			continue
		}
		fields[4] = formatUnixField(fields[4])
		table.AddRow(fields...)
	}
	return output.PrintTable(w, table)
}

func formatUnixField(raw string) string {
	var sec int64
	if _, err := fmt.Sscanf(raw, "%d", &sec); err != nil || sec == 0 {
		return raw
	}
	return time.Unix(sec, 0).Local().Format(timeutil.LocalTimeFormat)
}
