package dumper

import (
	"context"
	"fmt"
	"time"

	"msgdump/pkg/archive"
	"msgdump/pkg/logger"
	"msgdump/pkg/messenger"
	"msgdump/pkg/ratelimit"
)

// Pager walks the conversation listing one page at a time, inbox first,
// then archived. Next returns nil once every folder is exhausted.
type Pager struct {
	client    MercuryClient
	limit     int
	folders   []messenger.Folder
	folderIdx int
	offset    int
	logger    logger.Logger
}

// NewPager creates a pager positioned at the first folder's first page
func NewPager(client MercuryClient, limit int, log logger.Logger) *Pager {
	return NewPagerAt(client, messenger.Folders[0], 0, limit, log)
}

// NewPagerAt creates a pager positioned at the given folder and offset,
// for restarting an interrupted walk
func NewPagerAt(client MercuryClient, folder messenger.Folder, offset, limit int, log logger.Logger) *Pager {
	if log == nil {
		log = logger.GetLogger()
	}
	if limit <= 0 {
		limit = messenger.ThreadListPageSize
	}

	folderIdx := 0
	for i, f := range messenger.Folders {
		if f == folder {
			folderIdx = i
			break
		}
	}

	return &Pager{
		client:    client,
		limit:     limit,
		folders:   messenger.Folders,
		folderIdx: folderIdx,
		offset:    offset,
		logger:    log,
	}
}

// Position returns the folder and offset the next page would be fetched at
func (p *Pager) Position() (messenger.Folder, int) {
	if p.folderIdx >= len(p.folders) {
		return "", 0
	}
	return p.folders[p.folderIdx], p.offset
}

// Next fetches the next listing page, or nil when every folder is done.
// A short page ends its folder; empty pages are consumed silently.
func (p *Pager) Next(ctx context.Context) (*messenger.ThreadPage, error) {
	for p.folderIdx < len(p.folders) {
		folder := p.folders[p.folderIdx]

		page, err := p.client.FetchThreadPage(ctx, folder, p.offset, p.limit)
		if err != nil {
			return nil, err
		}

		if page.Last {
			p.folderIdx++
			p.offset = 0
		} else {
			p.offset += p.limit
		}

		if len(page.Threads) == 0 && len(page.Participants) == 0 {
			continue
		}
		return page, nil
	}

	return nil, nil
}

// Enumerator discovers every conversation the account can see
type Enumerator struct {
	client      MercuryClient
	pageSize    int
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewEnumerator creates an enumerator listing pageSize threads per request.
// The rate limiter may be nil.
func NewEnumerator(client MercuryClient, pageSize int, limiter ratelimit.Limiter, log logger.Logger) *Enumerator {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Enumerator{
		client:      client,
		pageSize:    pageSize,
		rateLimiter: limiter,
		logger:      log,
	}
}

// Conversations walks every folder and returns the complete listing.
// Participants arrive alongside each page and accumulate into the
// listing's id to name map; each conversation appears exactly once.
func (e *Enumerator) Conversations(ctx context.Context) (*archive.Listing, error) {
	listing := &archive.Listing{
		DumpedAt:     time.Now(),
		Participants: make(map[string]string),
	}
	seen := make(map[string]bool)

	pager := NewPager(e.client, e.pageSize, e.logger)
	for {
		if e.rateLimiter != nil && !e.rateLimiter.Allow() {
			if err := e.rateLimiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		page, err := pager.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list conversations: %w", err)
		}
		if page == nil {
			break
		}

		// Names must land in the map before the page's threads are
		// resolved against it.
		for _, participant := range page.Participants {
			if participant.Name == "" {
				continue
			}
			listing.Participants[messenger.StripFBIDPrefix(participant.FBID)] = participant.Name
		}

		for _, thread := range page.Threads {
			meta := archive.MetadataFromThread(thread, page.Folder, listing.Participants)
			if seen[meta.ID] {
				continue
			}
			seen[meta.ID] = true
			listing.Conversations = append(listing.Conversations, meta)
		}

		e.logger.DebugWithFields("listing page consumed", map[string]interface{}{
			"folder":        string(page.Folder),
			"threads":       len(page.Threads),
			"conversations": len(listing.Conversations),
		})
	}

	e.logger.InfoWithFields("conversation listing complete", map[string]interface{}{
		"conversations": len(listing.Conversations),
		"participants":  len(listing.Participants),
	})

	return listing, nil
}
