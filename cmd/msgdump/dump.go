package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"msgdump/pkg/auth"
	"msgdump/pkg/config"
	"msgdump/pkg/dumper"
	"msgdump/pkg/logger"
	"msgdump/pkg/ui"
)

var (
	// Dump command flags
	dumpIDs      []string
	pageSize     int
	metadataOnly bool
	resumeDump   bool
	forceRestart bool
	outputDir    string
	accountName  string
	requestFile  string
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Download conversation archives from Messenger",
	Long: `Download complete message histories from your Messenger account.

Without --id the dumper enumerates every conversation in the inbox and
archived folders and dumps them all. Each conversation lands in its own
directory under the output directory as a complete.json archive, with
the oldest message first.

Interrupted runs leave a ledger behind; rerun with --resume to skip the
conversations that were already dumped.

This command needs a stored session (see 'msgdump auth login') or a
copied-request file passed with --request-file.`,
	Example: `  # Dump every conversation
  msgdump dump

  # Dump two specific conversations
  msgdump dump --id 1234567890 --id 9876543210

  # List conversations without dumping anything
  msgdump dump --metadata

  # Resume an interrupted dump
  msgdump dump --resume

  # Throw away the ledger and start over
  msgdump dump --force-restart`,
	Args: cobra.NoArgs,
	Run:  runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	// Local flags for dump command
	dumpCmd.Flags().StringArrayVarP(&dumpIDs, "id", "i", nil, "conversation id to dump (repeatable; default: all)")
	dumpCmd.Flags().IntVarP(&pageSize, "page-size", "s", 0, "messages fetched per history request")
	dumpCmd.Flags().BoolVar(&metadataOnly, "metadata", false, "list conversations without dumping anything")
	dumpCmd.Flags().BoolVar(&resumeDump, "resume", false, "resume the last interrupted dump")
	dumpCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard the dump ledger and start fresh")
	dumpCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory for archives")
	dumpCmd.Flags().StringVarP(&accountName, "account", "a", "", "use specific stored account")
	dumpCmd.Flags().StringVarP(&requestFile, "request-file", "r", "", "read the session from a copied-request file")
}

func runDump(cmd *cobra.Command, args []string) {
	// Build flags map from command line
	flags := make(map[string]interface{})
	if requestFile != "" {
		flags["request-file"] = requestFile
	}
	if accountName != "" {
		flags["account"] = accountName
	}
	if pageSize > 0 {
		flags["page-size"] = pageSize
	}
	if resumeDump {
		flags["resume"] = true
	}
	if outputDir != "" {
		flags["output"] = outputDir
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
	logger.WithField("version", version).Info("msgdump starting")

	bundle := resolveBundle(cfg)

	d, err := dumper.New(cfg, bundle)
	if err != nil {
		ui.PrintError("Failed to initialize dumper", err.Error())
		os.Exit(1)
	}

	// A first Ctrl-C cancels the batch between conversations, a second
	// one kills the process the usual way
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if metadataOnly {
		listing, err := d.Enumerate(ctx)
		if err != nil {
			logger.WithError(err).Error("Enumeration failed")
			ui.PrintError("ENUMERATION FAILED", err.Error())
			os.Exit(1)
		}
		if err := d.Store().SaveListing(listing); err != nil {
			ui.PrintError("Failed to save conversation listing", err.Error())
			os.Exit(1)
		}
		// The listing is the requested output, so it ignores quiet mode
		fmt.Println(listing.FormatListing())
		return
	}

	if !quiet {
		d.EnableProgress()
	}

	ui.PrintHighlight("[INITIATING DUMP SEQUENCE]")

	result, err := d.DumpAllWithResume(ctx, dumpIDs, cfg.Dump.PageSize, cfg.Dump.Resume, forceRestart)
	if err != nil {
		if ctx.Err() != nil {
			ui.PrintWarning("Dump interrupted", "rerun with --resume to pick up where you left off")
			os.Exit(1)
		}
		logger.WithError(err).Error("Dump failed")
		ui.PrintError("DUMP FAILED", err.Error())
		if notifications {
			ui.NewNotifier().SendError("msgdump", "Dump failed: "+err.Error())
		}
		os.Exit(1)
	}

	for _, outcome := range result.Outcomes {
		if outcome.Err != nil {
			ui.PrintWarning("Failed: "+outcome.Meta.ID, outcome.Err.Error())
		}
	}

	logger.WithField("run_id", result.RunID).Info("Dump completed")
	ui.PrintSuccess("[DUMP COMPLETED: " + result.Summary() + "]")
	if notifications {
		ui.NewNotifier().SendSuccess("msgdump", result.Summary())
	}
}

// resolveBundle picks the session bundle for authenticated commands: the
// configured request file when present, otherwise the credential store.
func resolveBundle(cfg *config.Config) *auth.Bundle {
	if cfg.Credentials.RequestFile != "" {
		bundle, err := auth.ParseRawRequestFile(cfg.Credentials.RequestFile)
		if err != nil {
			ui.PrintError("Failed to parse request file", err.Error())
			os.Exit(1)
		}
		logger.WithField("request_file", cfg.Credentials.RequestFile).Info("Using session from request file")
		return bundle
	}

	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var bundle *auth.Bundle
	if cfg.Credentials.Account != "" {
		bundle, err = manager.Retrieve(cfg.Credentials.Account)
		if err != nil {
			ui.PrintError("Account not found", cfg.Credentials.Account)
			ui.PrintInfo("Available accounts", "Use 'msgdump auth list' to see stored accounts")
			os.Exit(1)
		}
	} else {
		bundle, err = manager.RetrieveDefault()
		if err != nil {
			logger.Error("No session bundle found")
			ui.PrintError("No Messenger session found")
			fmt.Println("\nTo capture and store a session, run:")
			fmt.Println("  msgdump auth login")
			fmt.Println("\nOr pass a copied-request file directly:")
			fmt.Println("  msgdump dump --request-file request.txt")
			os.Exit(1)
		}
	}

	if bundle.UserAgent == "" {
		bundle.UserAgent = cfg.Credentials.UserAgent
	}
	logger.WithField("account", bundle.Account).Info("Using stored session")
	ui.PrintInfo("Using account", bundle.Account)
	return bundle
}
