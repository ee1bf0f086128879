package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"source-seeker/internal/database"
	"source-seeker/internal/logging"
	"source-seeker/internal/memory"
	"source-seeker/internal/scanner"
	"source-seeker/internal/startup"
)

// drainInterval is how often the scan mailboxes are emptied.
const drainInterval = 100 * time.Millisecond

// exitCancelled follows the shell convention for SIGINT.
const exitCancelled = 130

type scanOptions struct {
	threshold  int
	hashSize   int
	workers    int
	flushBatch int
	noProgress bool
	jsonOutput bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan <folder> <image>",
		Short: "Scan a folder for images similar to a reference image",
		Long: `Scan walks <folder> recursively and prints every supported image whose
fingerprint is within the match threshold of <image>. Matches are printed in
walk order as they are found. Ctrl+C stops the scan; fingerprints computed so
far are kept in the cache.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScanCommand(cmd, opts, args[0], args[1])
		},
	}

	opts.bind(cmd.Flags())
	return cmd
}

func (o *scanOptions) bind(f *pflag.FlagSet) {
	defaults := scanner.DefaultConfig()
	f.IntVarP(&o.threshold, "threshold", "t", defaults.Threshold, "largest fingerprint distance reported as a match (env MATCH_THRESHOLD)")
	f.IntVar(&o.hashSize, "hash-size", defaults.GridSize, "fingerprint grid size, a multiple of 8 (env HASH_SIZE)")
	f.IntVarP(&o.workers, "workers", "w", 0, "concurrent fingerprint computations, 0 for one per CPU (env SCAN_WORKERS)")
	f.IntVar(&o.flushBatch, "flush-batch", defaults.FlushEvery, "fingerprints written per transaction (env FLUSH_BATCH)")
	f.BoolVar(&o.noProgress, "no-progress", false, "print status lines instead of a progress bar")
	f.BoolVar(&o.jsonOutput, "json", false, "print matches as JSON lines")
}

// apply overrides cfg with the flags set on the command line.
func (o *scanOptions) apply(flags *pflag.FlagSet, cfg *startup.Config) {
	if flags.Changed("threshold") {
		cfg.Threshold = o.threshold
	}
	if flags.Changed("hash-size") {
		cfg.HashSize = o.hashSize
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("flush-batch") {
		cfg.FlushBatch = o.flushBatch
	}
}

func runScanCommand(cmd *cobra.Command, opts *scanOptions, folder, image string) error {
	memory.ConfigureFromEnv()

	cfg, err := startup.ReadConfig()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	opts.apply(cmd.Flags(), cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn("Failed to close cache: %v", err)
		}
	}()

	engine, err := scanner.NewEngine(db, cfg.ScanConfig())
	if err != nil {
		return fmt.Errorf("invalid scan settings: %w", err)
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()
	engine.SetThrottle(monitor)

	interactive := !opts.noProgress && term.IsTerminal(int(os.Stderr.Fd()))
	printer := newScanPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), interactive, opts.jsonOutput)

	scan := engine.Start(ctx, folder, image)
	outcome, scanErr := follow(scan, printer)
	printer.summary(scan.Summary())

	switch outcome {
	case scanner.OutcomeCompleted:
		return nil
	case scanner.OutcomeCancelled:
		return &exitError{code: exitCancelled, err: fmt.Errorf("scan cancelled")}
	default:
		return scanErr
	}
}

// follow drains the scan mailboxes into p until the scan finishes.
func follow(s *scanner.Scan, p *scanPrinter) (scanner.Outcome, error) {
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.handle(s.Events().Drain(), s.Results().Drain())
		case <-s.Done():
			p.handle(s.Events().Drain(), s.Results().Drain())
			return s.Wait()
		}
	}
}

// scanPrinter renders scan output. Matches go to out; status, progress and
// the summary go to status.
type scanPrinter struct {
	out    io.Writer
	status io.Writer
	bar    *progressbar.ProgressBar
	enc    *json.Encoder
}

func newScanPrinter(out, status io.Writer, interactive, jsonOutput bool) *scanPrinter {
	p := &scanPrinter{out: out, status: status}
	if jsonOutput {
		p.enc = json.NewEncoder(out)
	}
	if interactive {
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(status),
			progressbar.OptionSetDescription("Starting..."),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionFullWidth(),
			progressbar.OptionThrottle(drainInterval),
		)
	}
	return p
}

func (p *scanPrinter) handle(events []scanner.Event, matches []scanner.Match) {
	if len(matches) > 0 && p.bar != nil {
		_ = p.bar.Clear()
	}
	for _, m := range matches {
		p.match(m)
	}
	for _, ev := range events {
		p.event(ev)
	}
}

func (p *scanPrinter) match(m scanner.Match) {
	if p.enc != nil {
		if err := p.enc.Encode(m); err != nil {
			logging.Warn("Failed to write match: %v", err)
		}
		return
	}
	fmt.Fprintf(p.out, "%3d  %10s  %s\n", m.Distance, m.SizeLabel, m.Path)
}

func (p *scanPrinter) event(ev scanner.Event) {
	switch ev.Kind {
	case scanner.EventStatus:
		if p.bar != nil {
			p.bar.Describe(ev.Text)
			return
		}
		fmt.Fprintln(p.status, ev.Text)
	case scanner.EventProgress:
		if p.bar != nil {
			_ = p.bar.Set(ev.Percent)
		}
	case scanner.EventDone:
		if p.bar != nil {
			if ev.Outcome == scanner.OutcomeCompleted {
				_ = p.bar.Finish()
			} else {
				_ = p.bar.Exit()
			}
			fmt.Fprintln(p.status)
		}
		if ev.Err != nil {
			fmt.Fprintf(p.status, "Scan %s: %v\n", ev.Outcome, ev.Err)
		}
	}
}

func (p *scanPrinter) summary(sum scanner.Summary) {
	fmt.Fprintf(p.status, "%d images processed (%d cached, %d computed, %d skipped), %d matches\n",
		sum.Processed, sum.CacheHits, sum.Computed, sum.Skipped, sum.Matches)
}
