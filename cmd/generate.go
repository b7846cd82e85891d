package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-report/internal/config"
	"github.com/kozaktomas/photo-report/internal/constants"
	"github.com/kozaktomas/photo-report/internal/database"
	"github.com/kozaktomas/photo-report/internal/document"
	"github.com/kozaktomas/photo-report/internal/imagelist"
	"github.com/kozaktomas/photo-report/internal/layout"
	"github.com/kozaktomas/photo-report/internal/pipeline"
	"github.com/kozaktomas/photo-report/internal/selection"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a photographic report without the web UI",
	Long: `Generate a photographic report for one project and monitoring type.

Every record with at least one image is included unless excluded with
--exclude. Each record contributes its preferred image (or the first one).
The report is written as a print-ready HTML document.

Example:
  photo-report generate --project p-102 --type calor --layout 2x4 --out calor.html
  photo-report generate --project p-102 --type ruido --exclude r-17,r-18 --out -`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().String("project", "", "Project ID (required)")
	generateCmd.Flags().String("type", "", "Monitoring type, e.g. calor (required)")
	generateCmd.Flags().String("layout", "", "Grid as <columns>x<rows> (default REPORT_DEFAULT_LAYOUT)")
	generateCmd.Flags().String("orientation", "", "portrait or landscape (default REPORT_ORIENTATION)")
	generateCmd.Flags().Int("batch-size", 0, "Images transcoded concurrently (default PIPELINE_BATCH_SIZE)")
	generateCmd.Flags().String("out", "report.html", "Output file, - for stdout")
	generateCmd.Flags().StringSlice("exclude", nil, "Record IDs to leave out")
	generateCmd.Flags().Bool("no-progress", false, "Disable the progress bar")
	_ = generateCmd.MarkFlagRequired("project")
	_ = generateCmd.MarkFlagRequired("type")
}

// generateOptions are the inputs of one headless report run.
type generateOptions struct {
	ProjectID      string
	MonitoringType string
	Layout         string
	Orientation    string
	BatchSize      int
	Exclude        []string
	OnStart        func(total int)
	OnProgress     func(pipeline.Progress)
}

// generateReport loads the records, runs the pipeline and renders the
// document to out.
func generateReport(
	ctx context.Context, reader database.RecordReader, t pipeline.Transcoder,
	cfg *config.Config, log logrus.FieldLogger, opts generateOptions, out io.Writer,
) (*document.Summary, error) {
	layoutToken := opts.Layout
	if layoutToken == "" {
		layoutToken = cfg.Report.DefaultLayout
	}
	spec, err := layout.ParseSpec(layoutToken)
	if err != nil {
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = cfg.Pipeline.BatchSize
	}
	batchSize = min(max(batchSize, 1), constants.MaxBatchSize)

	project, err := reader.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	records, err := reader.ListRecords(ctx, database.RecordFilter{ProjectID: opts.ProjectID, MonitoringType: opts.MonitoringType})
	if err != nil {
		return nil, fmt.Errorf("loading records: %w", err)
	}

	candidates := make([]selection.Candidate, 0, len(records))
	for _, r := range records {
		candidates = append(candidates, selection.Candidate{
			RecordID:       r.ID,
			ImageCount:     imagelist.Count(r),
			PreferredIndex: r.PreferredImageIndex,
		})
	}
	store := selection.Open(candidates)
	for _, id := range opts.Exclude {
		if err := store.SetIncluded(id, false); err != nil {
			log.WithField("record_id", id).Warn("Excluded record is not part of the selection")
		}
	}

	eligible := pipeline.Eligible(records, store)
	if len(eligible) == 0 {
		return nil, pipeline.ErrEmptySelection
	}
	if opts.OnStart != nil {
		opts.OnStart(len(eligible))
	}

	rt := cfg.ReportType(opts.MonitoringType)
	result, err := pipeline.New(t, log).Run(ctx, records, store, pipeline.Options{
		BatchSize:  batchSize,
		Prefix:     rt.Prefix,
		Pause:      cfg.Pipeline.BatchPause,
		OnProgress: opts.OnProgress,
	})
	if err != nil {
		return nil, err
	}

	pages, err := layout.Paginate(result.Entries, spec)
	if err != nil {
		return nil, err
	}

	orientation := opts.Orientation
	if orientation == "" {
		orientation = cfg.Report.Orientation
	}
	doc := document.Document{
		Header: document.Header{
			ProjectName: project.Name,
			Client:      project.Client,
			Location:    project.Location,
			TypeTitle:   rt.Title,
			GeneratedAt: time.Now(),
		},
		Spec:     spec,
		Geometry: layout.DefaultGeometry(layout.ParseOrientation(orientation)),
		Pages:    pages,
	}
	if err := document.Render(out, doc); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return document.Summarize(doc, result.Degraded), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	log := newLogger(cfg)

	closeBackends, err := openBackends(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer closeBackends()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := database.GetRecordReader(ctx)
	if err != nil {
		return fmt.Errorf("record store: %w", err)
	}

	outPath := mustGetString(cmd, "out")
	var out io.Writer = os.Stdout
	if outPath != "-" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", outPath, err)
		}
		defer f.Close()
		out = f
	}

	var bar *progressbar.ProgressBar
	showProgress := !mustGetBool(cmd, "no-progress")
	opts := generateOptions{
		ProjectID:      mustGetString(cmd, "project"),
		MonitoringType: mustGetString(cmd, "type"),
		Layout:         mustGetString(cmd, "layout"),
		Orientation:    mustGetString(cmd, "orientation"),
		BatchSize:      mustGetInt(cmd, "batch-size"),
		Exclude:        mustGetStringSlice(cmd, "exclude"),
		OnStart: func(total int) {
			if !showProgress {
				return
			}
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Processing photos"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("photos"),
				progressbar.OptionShowElapsedTimeOnFinish(),
				progressbar.OptionSetPredictTime(true),
				progressbar.OptionFullWidth(),
			)
		},
		OnProgress: func(p pipeline.Progress) {
			if bar != nil {
				_ = bar.Set(p.Processed)
			}
		},
	}

	summary, err := generateReport(ctx, reader, newTranscoder(cfg, log), cfg, log, opts, out)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		if outPath != "-" {
			_ = os.Remove(outPath)
		}
		if errors.Is(err, pipeline.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "Report generation cancelled")
		}
		return err
	}

	printSummary(os.Stderr, summary, outPath)
	return nil
}

func printSummary(w io.Writer, s *document.Summary, outPath string) {
	fmt.Fprintf(w, "%s: %d photos on %d pages (%s)\n", s.Title, s.PhotoCount, s.PageCount, s.Layout)
	for _, p := range s.Pages {
		fmt.Fprintf(w, "  Page %d: %v", p.PageNumber, p.Codes)
		if p.EmptyCells > 0 {
			fmt.Fprintf(w, " (%d empty)", p.EmptyCells)
		}
		fmt.Fprintln(w)
	}
	if len(s.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings (%d):\n", len(s.Warnings))
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "  - %s\n", warning)
		}
	}
	if outPath != "-" {
		fmt.Fprintf(w, "Report written to %s\n", outPath)
	}
}
