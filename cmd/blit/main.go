package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bamsammich/blit/internal/config"
	"github.com/bamsammich/blit/internal/engine"
	"github.com/bamsammich/blit/internal/event"
	"github.com/bamsammich/blit/internal/job"
	"github.com/bamsammich/blit/internal/stats"
	"github.com/bamsammich/blit/internal/ui"
	"github.com/bamsammich/blit/internal/units"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

//nolint:gocyclo // the root command orchestrates all flag parsing and wiring
func newRootCmd() *cobra.Command {
	var (
		inputPath    string
		outputPath   string
		blockSizeStr string
		count        int64
		skipBlocks   int64
		seekBlocks   int64
		threads      int
		hashName     string
		expectDigest string
		directIO     bool
		useIOURing   bool
		noProgress   bool
		quiet        bool
		verbose      bool
		bwLimitStr   string
		logFile      string
		showVersion  bool
	)

	rootCmd := &cobra.Command{
		Use:   "blit [flags]",
		Short: "Safe, fast block-level copy with on-the-fly verification",
		Long: "blit moves a fixed number of fixed-size blocks between files or block " +
			"devices, honoring skip/seek offsets, optionally hashing the transferred " +
			"bytes and optionally sharding the copy across parallel I/O paths.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// --version wins over every other flag, including the
			// otherwise-mandatory endpoints.
			if showVersion {
				fmt.Fprintf(cmd.OutOrStdout(), "blit %s\n", version)
				return nil
			}
			if inputPath == "" || outputPath == "" {
				return fmt.Errorf("%w: --input and --output are required", job.ErrConfig)
			}

			// Load optional config file.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfg.Defaults,
				&blockSizeStr, &threads, &hashName, &noProgress, &bwLimitStr, &directIO)

			// Configure logging before anything that can fail.
			logLevel := slog.LevelWarn
			if verbose {
				logLevel = slog.LevelDebug
			} else if !quiet {
				logLevel = slog.LevelInfo
			}
			textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: logLevel,
			})
			var logHandler slog.Handler = textHandler
			if logFile != "" {
				lf, lfErr := os.Create(logFile)
				if lfErr != nil {
					return fmt.Errorf("%w: open log file: %v", job.ErrConfig, lfErr)
				}
				defer lf.Close()
				jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})
				logHandler = ui.NewMultiHandler(textHandler, jsonHandler)
			}
			jobID := uuid.New().String()[:8]
			slog.SetDefault(slog.New(logHandler).With("job", jobID))

			// Validate sizes and build the job descriptor. All of this is
			// configuration-class: nothing has been opened yet.
			blockSize, err := units.ParseSize(blockSizeStr)
			if err != nil {
				return fmt.Errorf("%w: invalid --bs: %v", job.ErrConfig, err)
			}
			hashAlgo, err := job.ParseHash(hashName)
			if err != nil {
				return err
			}
			var bwLimit uint
			if bwLimitStr != "" {
				bwLimit, err = units.ParseSize(bwLimitStr)
				if err != nil {
					return fmt.Errorf("%w: invalid --bwlimit: %v", job.ErrConfig, err)
				}
			}

			d, err := job.New(job.Params{
				Input:      inputPath,
				Output:     outputPath,
				BlockSize:  blockSize,
				Count:      count,
				SkipBlocks: skipBlocks,
				SeekBlocks: seekBlocks,
				Threads:    threads,
				Hash:       hashAlgo,
				Expect:     expectDigest,
				DirectIO:   directIO,
				UseIOURing: useIOURing,
				Progress:   !noProgress,
				BWLimit:    int64(bwLimit),
			})
			if err != nil {
				return err
			}

			slog.Debug("starting copy",
				"input", d.Input,
				"output", d.Output,
				"bs", d.BlockSize,
				"count", d.Count,
				"threads", d.Threads,
				"hash", d.Hash.String(),
				"direct", d.DirectIO,
			)

			// Set up context with signal handling; interrupts are honored
			// at block boundaries.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			collector := stats.NewCollector()
			events := make(chan event.Event, 256)

			// When --log is set, tee events through a logging goroutine that
			// writes structured records before forwarding to the presenter.
			presenterEvents := (<-chan event.Event)(events)
			if logFile != "" {
				teed := make(chan event.Event, 256)
				go func() {
					for ev := range events {
						attrs := []slog.Attr{
							slog.String("type", ev.Type.String()),
							slog.Int("shard", ev.Shard),
							slog.Int64("blocks", ev.Blocks),
							slog.Int64("bytes", ev.Bytes),
						}
						if ev.Error != nil {
							attrs = append(attrs, slog.String("error", ev.Error.Error()))
						}
						slog.LogAttrs(context.Background(), slog.LevelDebug, "blit.event", attrs...)
						teed <- ev
					}
					close(teed)
				}()
				presenterEvents = teed
			}

			presenter := ui.NewPresenter(ui.Config{
				Writer:     os.Stdout,
				ErrWriter:  os.Stderr,
				Stats:      collector,
				IsTTY:      ui.IsTTY(os.Stderr.Fd()),
				Quiet:      quiet,
				NoProgress: noProgress,
			})

			// Presenter in background, engine in foreground.
			var presenterErr error
			var presenterWg sync.WaitGroup
			presenterWg.Add(1)
			go func() {
				defer presenterWg.Done()
				presenterErr = presenter.Run(presenterEvents)
			}()

			result := engine.Run(ctx, d, engine.Options{
				Stats:  collector,
				Events: events,
			})
			stop()
			close(events)
			presenterWg.Wait()
			if presenterErr != nil {
				fmt.Fprintf(os.Stderr, "presenter: %v\n", presenterErr)
			}

			if !quiet {
				if summary := presenter.Summary(); summary != "" {
					fmt.Fprintln(os.Stderr, summary)
				}
				if result.Digest != "" {
					// The digest goes to stdout so scripts can capture it.
					fmt.Fprintln(os.Stdout, result.Digest)
				}
			}

			if result.Err != nil {
				slog.Error("copy failed",
					"error", result.Err,
					"blocks_copied", result.BlocksCopied,
					"bytes_copied", result.BytesCopied,
				)
				return &exitError{code: 2}
			}
			slog.Info("copy complete",
				"blocks", result.BlocksCopied,
				"bytes", result.BytesCopied,
			)
			if result.VerifyErr != nil {
				// The copy itself succeeded; the mismatch gets its own code.
				slog.Error("verification failed", "error", result.VerifyErr)
				return &exitError{code: 1}
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")

	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "", "input file or device")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "output file or device")
	rootCmd.Flags().
		StringVarP(&blockSizeStr, "bs", "b", "512k", "block size (supports k/m/g/t suffixes, e.g. 4k, 128M)")
	rootCmd.Flags().
		Int64VarP(&count, "count", "c", 0, "number of blocks to copy (0 = until end of input)")
	rootCmd.Flags().Int64Var(&skipBlocks, "skip", 0, "skip N blocks at the start of the input")
	rootCmd.Flags().Int64Var(&seekBlocks, "seek", 0, "seek N blocks at the start of the output")
	rootCmd.Flags().
		IntVarP(&threads, "threads", "t", 1, "parallel I/O paths (1 = single-threaded)")
	rootCmd.Flags().
		StringVar(&hashName, "hash", "", "hash the transferred bytes (sha256, blake3 or xxh64)")
	rootCmd.Flags().
		StringVar(&expectDigest, "expect", "", "expected digest (hex); exit 1 on mismatch")
	rootCmd.Flags().
		BoolVar(&directIO, "direct", false, "bypass the page cache with O_DIRECT (Linux; block size must match device alignment)")
	rootCmd.Flags().
		BoolVar(&useIOURing, "iouring", false, "use io_uring for block I/O (Linux 5.6+)")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress display")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&bwLimitStr, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	rootCmd.Flags().StringVar(&logFile, "log", "", "write structured JSON log to FILE")

	rootCmd.AddCommand(docsCmd)

	return rootCmd
}

// applyConfigDefaults applies config file defaults for flags not explicitly
// set on the CLI.
func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	blockSizeStr *string,
	threads *int,
	hashName *string,
	noProgress *bool,
	bwLimitStr *string,
	directIO *bool,
) {
	if !cmd.Flags().Changed("bs") && defaults.BlockSize != nil {
		*blockSizeStr = *defaults.BlockSize
	}
	if !cmd.Flags().Changed("threads") && defaults.Threads != nil {
		*threads = *defaults.Threads
	}
	if !cmd.Flags().Changed("hash") && defaults.Hash != nil {
		*hashName = *defaults.Hash
	}
	if !cmd.Flags().Changed("no-progress") && defaults.Progress != nil {
		*noProgress = !*defaults.Progress
	}
	if !cmd.Flags().Changed("bwlimit") && defaults.BWLimit != nil {
		*bwLimitStr = *defaults.BWLimit
	}
	if !cmd.Flags().Changed("direct") && defaults.DirectIO != nil {
		*directIO = *defaults.DirectIO
	}
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
