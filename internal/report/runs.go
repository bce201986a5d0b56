package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rewired-gh/walletrisk/internal/models"
)

// WriteRuns prints stored runs as a table, newest first as given.
func WriteRuns(w io.Writer, runs []models.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tAS OF\tMETHOD\tWALLETS\tNO DATA\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.AsOf.UTC().Format(time.RFC3339), r.Method, r.WalletCount, r.FailedCount,
			r.CreatedAt.UTC().Format(time.RFC3339))
	}
	return tw.Flush()
}
