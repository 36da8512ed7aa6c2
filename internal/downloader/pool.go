// Package downloader runs the bounded worker pool that fetches media
// artifacts to disk.
package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sync"
	"time"

	errs "msgdump/pkg/errors"
	"msgdump/pkg/logger"
	"msgdump/pkg/parser"
	"msgdump/pkg/ratelimit"
)

// ResourceFetcher fetches one media URL
type ResourceFetcher interface {
	DownloadResource(ctx context.Context, url string) ([]byte, error)
}

// MediaStore persists fetched media and knows what is already on disk
type MediaStore interface {
	IsDownloaded(kind parser.DataType, filename string) bool
	PathFor(kind parser.DataType, filename string) (string, error)
	Save(kind parser.DataType, filename string, r io.Reader) (string, error)
}

// Outcome classifies one artifact's download result
type Outcome string

const (
	// OutcomeSaved means the artifact was fetched and written
	OutcomeSaved Outcome = "saved"

	// OutcomeSkipped means the file was already on disk
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed means the artifact could not be downloaded. Failed
	// artifacts are reported and never retried; siblings keep going.
	OutcomeFailed Outcome = "failed"
)

// Result is one artifact's download outcome
type Result struct {
	Artifact parser.Artifact
	Outcome  Outcome
	Path     string

	// Expired marks failures caused by a dead CDN URL. The remedy is
	// re-dumping the conversation, not retrying the download.
	Expired bool

	Err      error
	Size     int
	Duration time.Duration
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan parser.Artifact
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     ResourceFetcher
	store       MediaStore
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
	overwrite   bool
}

// NewWorkerPool creates a download worker pool. The pool stops early
// when ctx is cancelled.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	fetcher ResourceFetcher,
	store MediaStore,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if numWorkers <= 0 {
		numWorkers = 1
	}

	poolCtx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan parser.Artifact, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         poolCtx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// SetOverwrite makes the pool re-fetch artifacts that are already on
// disk instead of skipping them. Call before Start.
func (wp *WorkerPool) SetOverwrite(overwrite bool) {
	wp.overwrite = overwrite
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("starting download workers", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for in-flight jobs and closes the result
// channel
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("download workers stopped")
}

// Submit queues one artifact for download
func (wp *WorkerPool) Submit(artifact parser.Artifact) error {
	select {
	case wp.jobQueue <- artifact:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the channel download outcomes arrive on
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// worker is the main worker loop
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for artifact := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("worker stopping, context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.processJob(artifact, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob downloads a single artifact
func (wp *WorkerPool) processJob(artifact parser.Artifact, workerID int) Result {
	start := time.Now()
	result := Result{Artifact: artifact, Outcome: OutcomeFailed}

	if !artifact.Kind.Downloadable() {
		result.Err = fmt.Errorf("%s artifacts are not downloadable", artifact.Kind)
		result.Duration = time.Since(start)
		return result
	}

	filename := downloadFilename(artifact)
	if filename == "" {
		result.Err = fmt.Errorf("artifact carries no usable file name")
		result.Duration = time.Since(start)
		return result
	}

	if !wp.overwrite && wp.store.IsDownloaded(artifact.Kind, filename) {
		result.Outcome = OutcomeSkipped
		if path, err := wp.store.PathFor(artifact.Kind, filename); err == nil {
			result.Path = path
		}
		result.Duration = time.Since(start)

		wp.logger.DebugWithFields("artifact already on disk", map[string]interface{}{
			"worker_id": workerID,
			"kind":      string(artifact.Kind),
			"filename":  filename,
		})
		return result
	}

	if !wp.rateLimiter.Allow() {
		if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result
		}
	}

	data, err := wp.fetcher.DownloadResource(wp.ctx, artifact.URL)
	if err != nil {
		result.Err = fmt.Errorf("download failed: %w", err)
		result.Expired = errs.IsExpired(err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("failed to download artifact", map[string]interface{}{
			"worker_id": workerID,
			"kind":      string(artifact.Kind),
			"url":       artifact.URL,
			"expired":   result.Expired,
			"error":     err.Error(),
		})
		return result
	}
	result.Size = len(data)

	savedPath, err := wp.store.Save(artifact.Kind, filename, bytes.NewReader(data))
	if err != nil {
		result.Err = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)

		wp.logger.ErrorWithFields("failed to save artifact", map[string]interface{}{
			"worker_id": workerID,
			"kind":      string(artifact.Kind),
			"filename":  filename,
			"error":     err.Error(),
		})
		return result
	}

	result.Outcome = OutcomeSaved
	result.Path = savedPath
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("artifact saved", map[string]interface{}{
		"worker_id": workerID,
		"kind":      string(artifact.Kind),
		"filename":  filename,
		"size":      result.Size,
		"duration":  result.Duration,
	})

	return result
}

// downloadFilename picks the name an artifact is stored under: the
// attachment's own name, falling back to the URL path base
func downloadFilename(artifact parser.Artifact) string {
	if artifact.Filename != "" {
		return artifact.Filename
	}

	parsed, err := url.Parse(artifact.URL)
	if err != nil {
		return ""
	}

	base := path.Base(parsed.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// Workers returns the pool size
func (wp *WorkerPool) Workers() int {
	return wp.numWorkers
}
