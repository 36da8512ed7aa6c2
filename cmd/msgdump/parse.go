package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"msgdump/internal/downloader"
	"msgdump/pkg/archive"
	"msgdump/pkg/auth"
	"msgdump/pkg/config"
	"msgdump/pkg/logger"
	"msgdump/pkg/messenger"
	"msgdump/pkg/parser"
	"msgdump/pkg/ratelimit"
	"msgdump/pkg/report"
	"msgdump/pkg/retry"
	"msgdump/pkg/storage"
	"msgdump/pkg/ui"
)

var (
	// Parse command flags
	parseMode    string
	parseData    []string
	parseInfiles []string
	parseWorkers int
	parseOutput  string
)

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Extract artifacts from dumped archives",
	Long: `Extract messages, pictures, gifs, videos, files and links from dumped
conversation archives.

Without --infile every archived conversation in the output directory is
parsed. Each conversation gets one text report per data type next to its
archive. In dl mode the referenced media is also downloaded into kind
subdirectories, skipping files that are already on disk.

Parsing works entirely offline; only dl mode talks to the CDN.`,
	Example: `  # Write reports for everything that was dumped
  msgdump parse

  # Only extract links and shared files
  msgdump parse --data links --data files

  # Download pictures and videos with 8 workers
  msgdump parse --mode dl --data pictures --data videos --workers 8

  # Parse one archive file directly
  msgdump parse --infile "output/1234 - Jane Doe/complete.json"`,
	Args: cobra.NoArgs,
	Run:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	// Local flags for parse command
	parseCmd.Flags().StringVarP(&parseMode, "mode", "m", "", "report writes text reports, dl also downloads media")
	parseCmd.Flags().StringArrayVarP(&parseData, "data", "d", nil, "data type to extract (repeatable: all, messages, pictures, gifs, videos, files, links)")
	parseCmd.Flags().StringArrayVar(&parseInfiles, "infile", nil, "parse a specific archive file instead of the whole dump")
	parseCmd.Flags().IntVarP(&parseWorkers, "workers", "w", 0, "concurrent download workers in dl mode")
	parseCmd.Flags().StringVarP(&parseOutput, "output", "o", "", "output directory holding the dump")
}

// parseJob pairs one archived conversation with the directory its
// reports and media land in.
type parseJob struct {
	conv *archive.Conversation
	dir  string
}

func runParse(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if parseMode != "" {
		flags["mode"] = parseMode
	}
	if len(parseData) > 0 {
		flags["data"] = parseData
	}
	if parseWorkers > 0 {
		flags["workers"] = parseWorkers
	}
	if parseOutput != "" {
		flags["output"] = parseOutput
	}
	if logLevel != "info" {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		os.Exit(1)
	}

	types, err := requestedTypes(cfg.Parse.DataTypes)
	if err != nil {
		ui.PrintError("Invalid data type", err.Error())
		os.Exit(1)
	}

	store, err := archive.NewStore(cfg.Output.BaseDirectory)
	if err != nil {
		ui.PrintError("Failed to open output directory", err.Error())
		os.Exit(1)
	}

	// The listing resolves sender names. Archives passed with --infile
	// parse without it, falling back to raw fbids.
	listing, err := store.LoadListing()
	if err != nil && len(parseInfiles) == 0 {
		ui.PrintError("No dump found in "+store.OutputDir(), "run 'msgdump dump' before parsing")
		os.Exit(1)
	}

	names := map[string]string{}
	if listing != nil {
		names = listing.Participants
	}

	jobs, err := collectJobs(store, listing, parseInfiles)
	if err != nil {
		ui.PrintError("Failed to load archives", err.Error())
		os.Exit(1)
	}
	if len(jobs) == 0 {
		ui.PrintWarning("Nothing to parse", "no archived conversations found")
		return
	}

	dlMode := strings.EqualFold(cfg.Parse.Mode, "dl")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// dl mode fetches straight from the CDN, which needs no session
	// cookie, only a browser-looking user agent
	var client *messenger.Client
	var limiter ratelimit.Limiter
	if dlMode {
		client = messenger.NewClient(&auth.Bundle{UserAgent: cfg.Credentials.UserAgent}, cfg.Download.Timeout, logger.GetLogger())
		if cfg.RateLimit.MaxRetries > 0 {
			backoff := retry.NewErrorTypeBackoffWithBase(cfg.RateLimit.RetryDelay, cfg.RateLimit.BackoffMultiplier)
			client.SetRetrier(retry.NewHTTPRetrierWithBackoff(cfg.RateLimit.MaxRetries, backoff, logger.GetLogger()))
		}
		limiter = ratelimit.NewLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	}

	p := parser.New(names, logger.GetLogger())

	expired := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			ui.PrintWarning("Parse interrupted")
			os.Exit(1)
		}

		result, err := p.Parse(job.conv, types)
		if err != nil {
			logger.WithError(err).WithField("conversation_id", job.conv.Meta.ID).Error("Parse failed")
			ui.PrintError("Failed to parse "+job.conv.Meta.ID, err.Error())
			continue
		}

		rep := report.New(result, types)
		if err := rep.Write(job.dir); err != nil {
			ui.PrintError("Failed to write reports", err.Error())
			os.Exit(1)
		}

		ui.PrintLine(job.conv.Meta.DisplayLine())
		ui.PrintLine("[+]     - Data report : " + rep.Summary())

		if dlMode {
			expired += downloadArtifacts(ctx, cfg, client, limiter, job.dir, job.conv.Meta.Name, result.Artifacts)
		}
	}

	if expired > 0 {
		ui.PrintWarning(fmt.Sprintf("%d media URLs had expired", expired), "re-dump those conversations to refresh them")
	}
}

// requestedTypes turns configured type names into data types, expanding
// "all" and dropping duplicates.
func requestedTypes(typeNames []string) ([]parser.DataType, error) {
	types := make([]parser.DataType, 0, len(typeNames))
	for _, name := range typeNames {
		t, err := parser.ParseDataType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return parser.NormalizeTypes(types), nil
}

// collectJobs builds the parse workload: the named archive files when
// --infile was given, otherwise every conversation in the listing.
func collectJobs(store *archive.Store, listing *archive.Listing, infiles []string) ([]parseJob, error) {
	if len(infiles) > 0 {
		jobs := make([]parseJob, 0, len(infiles))
		for _, path := range infiles {
			records, err := archive.LoadRecords(path)
			if err != nil {
				return nil, err
			}
			id, err := parser.ConversationID(records)
			if err != nil {
				return nil, fmt.Errorf("cannot identify the conversation in %s: %w", path, err)
			}
			meta := archive.Metadata{ID: id, Name: id}
			if listing != nil {
				if found, ok := listing.Find(id); ok {
					meta = found
				}
			}
			jobs = append(jobs, parseJob{
				conv: &archive.Conversation{Meta: meta, Records: records},
				dir:  filepath.Dir(path),
			})
		}
		return jobs, nil
	}

	jobs := make([]parseJob, 0, len(listing.Conversations))
	for _, meta := range listing.Conversations {
		conv, err := store.LoadConversation(meta)
		if err != nil {
			logger.WithError(err).WithField("conversation_id", meta.ID).Warn("Skipping conversation without archive")
			continue
		}
		jobs = append(jobs, parseJob{conv: conv, dir: store.ConversationDir(meta)})
	}
	return jobs, nil
}

// downloadArtifacts fetches every downloadable artifact into kind
// subdirectories under dir. It returns the number of expired URLs.
func downloadArtifacts(ctx context.Context, cfg *config.Config, client *messenger.Client, limiter ratelimit.Limiter, dir, name string, artifacts []parser.Artifact) int {
	eligible := make([]parser.Artifact, 0, len(artifacts))
	for _, artifact := range artifacts {
		if artifact.Kind.Downloadable() && artifact.URL != "" {
			eligible = append(eligible, artifact)
		}
	}
	if len(eligible) == 0 {
		return 0
	}

	manager, err := storage.NewManager(dir)
	if err != nil {
		ui.PrintError("Failed to prepare media directories", err.Error())
		return 0
	}

	pool := downloader.NewWorkerPool(ctx, cfg.Download.Workers, client, manager, limiter, logger.GetLogger())
	pool.SetOverwrite(cfg.Download.OverwriteExisting)

	progress := ui.NewProgressDisplay(name, len(eligible), verbose)

	pool.Start()

	expired := 0
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range pool.Results() {
			switch result.Outcome {
			case downloader.OutcomeSaved:
				progress.CompleteDownload(string(result.Artifact.Kind), result.Artifact.Filename, int64(result.Size))
			case downloader.OutcomeSkipped:
				progress.SkipDownload(result.Artifact.Filename)
			default:
				progress.FailDownload(result.Artifact.Filename, result.Err)
				if result.Expired {
					expired++
				}
			}
		}
	}()

	for _, artifact := range eligible {
		progress.StartDownload(artifact.Filename)
		if err := pool.Submit(artifact); err != nil {
			break
		}
	}

	pool.Stop()
	wg.Wait()
	progress.Complete()

	return expired
}
