package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/imagelist"
	"github.com/kozaktomas/photo-report/internal/pipeline"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List the monitoring records of a project",
	Long: `List the monitoring records of a project with their image counts.
Records without images are shown but can never appear in a report.

Example:
  photo-report records --project p-102 --type calor`,
	RunE: runRecords,
}

func init() {
	rootCmd.AddCommand(recordsCmd)

	recordsCmd.Flags().String("project", "", "Project ID (required)")
	recordsCmd.Flags().String("type", "", "Only records of this monitoring type")
	_ = recordsCmd.MarkFlagRequired("project")
}

func runRecords(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger(cfg)

	closeBackends, err := openBackends(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closeBackends()

	ctx := cmd.Context()
	reader, err := database.GetRecordReader(ctx)
	if err != nil {
		return fmt.Errorf("record store: %w", err)
	}

	records, err := reader.ListRecords(ctx, database.RecordFilter{
		ProjectID:      mustGetString(cmd, "project"),
		MonitoringType: mustGetString(cmd, "type"),
	})
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}
	return printRecords(os.Stdout, records)
}

func printRecords(w io.Writer, records []database.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tAREA\tWORKSTATION\tMEASURED\tIMAGES\tPREFERRED")
	eligible := 0
	for _, r := range records {
		n := imagelist.Count(r)
		if n > 0 {
			eligible++
		}
		preferred := "-"
		if r.PreferredImageIndex != nil {
			preferred = fmt.Sprintf("%d", *r.PreferredImageIndex+1)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.MonitoringType, r.Area, r.Workstation, pipeline.FormatTimestamp(r.MeasuredAt), n, preferred)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}
	fmt.Fprintf(w, "\n%d records, %d with images\n", len(records), eligible)
	return nil
}
