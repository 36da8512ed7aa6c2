package dumper

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"msgdump/pkg/archive"
	"msgdump/pkg/auth"
	"msgdump/pkg/config"
	errs "msgdump/pkg/errors"
	"msgdump/pkg/logger"
	"msgdump/pkg/messenger"
	"msgdump/pkg/ratelimit"
	"msgdump/pkg/retry"
	"msgdump/pkg/state"
	"msgdump/pkg/ui"
)

// Dumper orchestrates the conversation dump process: it enumerates the
// account's conversations, walks each one's history page by page and
// hands the assembled archives to the store.
type Dumper struct {
	client       MercuryClient
	store        *archive.Store
	rateLimiter  ratelimit.Limiter
	config       *config.Config
	logger       logger.Logger
	progress     *ui.DumpTracker
	showProgress bool
}

// New creates a Dumper wired from the configuration and session bundle
func New(cfg *config.Config, bundle *auth.Bundle) (*Dumper, error) {
	log := logger.GetLogger()

	client := messenger.NewClient(bundle, cfg.Download.Timeout, log)
	if cfg.RateLimit.MaxRetries > 0 {
		backoff := retry.NewErrorTypeBackoffWithBase(cfg.RateLimit.RetryDelay, cfg.RateLimit.BackoffMultiplier)
		client.SetRetrier(retry.NewHTTPRetrierWithBackoff(cfg.RateLimit.MaxRetries, backoff, log))
	}

	store, err := archive.NewStore(cfg.Output.BaseDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive store: %w", err)
	}
	store.SetPrettyJSON(cfg.Output.PrettyJSON)

	rpm := cfg.RateLimit.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &Dumper{
		client:      client,
		store:       store,
		rateLimiter: ratelimit.NewLimiter(rpm, cfg.RateLimit.BurstSize),
		config:      cfg,
		logger:      log,
	}, nil
}

// Store returns the archive store the dumper writes into
func (d *Dumper) Store() *archive.Store {
	return d.store
}

// EnableProgress turns on per-conversation terminal progress for batch
// dumps
func (d *Dumper) EnableProgress() {
	d.showProgress = true
}

// Enumerate walks the conversation listing across every folder
func (d *Dumper) Enumerate(ctx context.Context) (*archive.Listing, error) {
	enum := NewEnumerator(d.client, d.config.Dump.ThreadPageSize, d.rateLimiter, d.logger)
	return enum.Conversations(ctx)
}

// DumpConversation fetches one conversation's complete history. Pages
// arrive newest first and each fetched page is older than everything
// before it, so prepending keeps the archive oldest first. One request
// is in flight at a time, paced by the rate limiter.
func (d *Dumper) DumpConversation(ctx context.Context, meta archive.Metadata, pageSize int) (*archive.Conversation, error) {
	if pageSize <= 0 {
		pageSize = messenger.DefaultPageSize
	}
	thread := meta.Ref()

	d.logger.InfoWithFields("dumping conversation", map[string]interface{}{
		"conversation_id": meta.ID,
		"name":            meta.Name,
		"page_size":       pageSize,
	})

	var records []json.RawMessage
	cursor := messenger.Cursor{}
	pages := 0
	start := time.Now()

	for {
		if !d.rateLimiter.Allow() {
			if err := d.rateLimiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		page, err := d.client.FetchHistoryPage(ctx, thread, cursor, pageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch history page: %w", err)
		}
		pages++

		records = append(append([]json.RawMessage{}, page.Records...), records...)

		if page.End {
			break
		}
		cursor = page.Cursor
	}

	d.logger.InfoWithFields("conversation dumped", map[string]interface{}{
		"conversation_id": meta.ID,
		"records":         len(records),
		"pages":           pages,
		"duration":        time.Since(start),
	})

	return &archive.Conversation{Meta: meta, Records: records}, nil
}

// Outcome is one conversation's result within a batch dump
type Outcome struct {
	Meta    archive.Metadata
	Dir     string
	Records int
	Skipped bool
	Err     error
}

// BatchResult aggregates a batch dump
type BatchResult struct {
	RunID    string
	Listing  *archive.Listing
	Outcomes []Outcome
}

// Succeeded counts conversations dumped and persisted
func (r *BatchResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil && !o.Skipped {
			n++
		}
	}
	return n
}

// Skipped counts conversations left alone because the resumed run
// already dumped them
func (r *BatchResult) Skipped() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}

// Failed counts conversations that could not be dumped
func (r *BatchResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Summary renders the batch outcome as one line
func (r *BatchResult) Summary() string {
	return fmt.Sprintf("%d conversations dumped, %d skipped, %d failed",
		r.Succeeded(), r.Skipped(), r.Failed())
}

// DumpAll dumps the given conversations, or every conversation the
// account can see when ids is empty
func (d *Dumper) DumpAll(ctx context.Context, ids []string, pageSize int) (*BatchResult, error) {
	return d.dumpAllWithOptions(ctx, ids, pageSize, false, false)
}

// DumpAllWithResume is DumpAll with ledger support: resume skips
// conversations the interrupted run already dumped, forceRestart wipes
// the ledger first
func (d *Dumper) DumpAllWithResume(ctx context.Context, ids []string, pageSize int, resume, forceRestart bool) (*BatchResult, error) {
	return d.dumpAllWithOptions(ctx, ids, pageSize, resume, forceRestart)
}

func (d *Dumper) dumpAllWithOptions(ctx context.Context, ids []string, pageSize int, resume, forceRestart bool) (*BatchResult, error) {
	ledger, err := state.OpenFile(d.store.OutputDir(), d.config.Output.LedgerFile, d.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open dump ledger: %w", err)
	}
	defer ledger.Close()

	if forceRestart {
		if err := ledger.Reset(); err != nil {
			return nil, fmt.Errorf("failed to reset dump ledger: %w", err)
		}
		d.logger.Info("dump ledger cleared, starting fresh")
	}

	runID := ""
	resumed := false
	if resume && !forceRestart {
		runID, resumed, err = ledger.ResumeRun()
		if err != nil {
			return nil, err
		}
	}
	if runID == "" {
		runID, err = ledger.BeginRun()
		if err != nil {
			return nil, err
		}
	}

	listing, err := d.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate conversations: %w", err)
	}

	if err := d.store.SaveListing(listing); err != nil {
		return nil, err
	}

	targets, missing := selectConversations(listing, ids)
	if d.showProgress {
		d.progress = ui.NewDumpTracker(len(targets))
	}

	result := &BatchResult{RunID: runID, Listing: listing}
	for _, id := range missing {
		result.Outcomes = append(result.Outcomes, Outcome{
			Meta: archive.Metadata{ID: id},
			Err: &errs.Error{
				Type:    errs.ErrorTypeNotFound,
				Message: fmt.Sprintf("conversation %s is not in the listing", id),
			},
		})
		d.logger.WarnWithFields("requested conversation is not in the listing", map[string]interface{}{
			"conversation_id": id,
		})
	}

	interrupted := false
	for _, meta := range targets {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		result.Outcomes = append(result.Outcomes, d.dumpOne(ctx, ledger, runID, resumed, meta, pageSize))
	}

	if interrupted {
		// Leave the run unfinished so --resume can pick it up
		d.logger.WarnWithFields("batch dump interrupted", map[string]interface{}{
			"run_id": runID,
			"dumped": result.Succeeded(),
		})
		return result, ctx.Err()
	}

	if err := ledger.FinishRun(runID); err != nil {
		d.logger.WithError(err).Warn("failed to finish dump run")
	}

	d.logger.InfoWithFields("batch dump finished", map[string]interface{}{
		"run_id":    runID,
		"succeeded": result.Succeeded(),
		"skipped":   result.Skipped(),
		"failed":    result.Failed(),
	})
	d.progress.PrintSummary()

	return result, nil
}

// dumpOne dumps and persists a single conversation. Failures land in the
// outcome; they never stop the batch.
func (d *Dumper) dumpOne(ctx context.Context, ledger *state.Ledger, runID string, resumed bool, meta archive.Metadata, pageSize int) Outcome {
	outcome := Outcome{Meta: meta}

	if resumed {
		done, err := ledger.WasDumpedInRun(meta.ID, runID)
		if err != nil {
			d.logger.WithError(err).Warn("failed to consult dump ledger")
		} else if done {
			outcome.Skipped = true
			if last, lerr := ledger.LastDump(meta.ID); lerr == nil && last != nil {
				outcome.Dir = filepath.Dir(last.ArchivePath)
				outcome.Records = last.Records
			}
			d.logger.InfoWithFields("conversation already dumped in this run, skipping", map[string]interface{}{
				"conversation_id": meta.ID,
			})
			d.progress.ConversationSkipped(meta.Name)
			return outcome
		}
	}

	d.progress.StartConversation(meta.Name, meta.ID)

	conv, err := d.DumpConversation(ctx, meta, pageSize)
	if err != nil {
		outcome.Err = err
		logger.LogDump(meta.ID, 0, false, err)
		d.progress.ConversationFailed(meta.Name, err)
		return outcome
	}

	dir, err := d.store.SaveConversation(conv)
	if err != nil {
		outcome.Err = err
		logger.LogDump(meta.ID, conv.RecordCount(), false, err)
		d.progress.ConversationFailed(meta.Name, err)
		return outcome
	}

	outcome.Dir = dir
	outcome.Records = conv.RecordCount()
	logger.LogDump(meta.ID, conv.RecordCount(), true, nil)
	d.progress.ConversationDumped(meta.Name, conv.RecordCount())

	if err := ledger.RecordDump(runID, state.DumpRecord{
		ConversationID: meta.ID,
		Records:        conv.RecordCount(),
		ArchivePath:    d.store.ArchivePath(meta),
	}); err != nil {
		d.logger.WithError(err).Warn("failed to record dump in ledger")
	}

	return outcome
}

// selectConversations resolves requested ids against the listing. Empty
// ids selects everything. Unknown ids come back in missing.
func selectConversations(listing *archive.Listing, ids []string) ([]archive.Metadata, []string) {
	if len(ids) == 0 {
		return listing.Conversations, nil
	}

	var targets []archive.Metadata
	var missing []string
	for _, raw := range ids {
		id := messenger.SanitizeThreadID(raw)
		meta, ok := listing.Find(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		targets = append(targets, meta)
	}

	return targets, missing
}
