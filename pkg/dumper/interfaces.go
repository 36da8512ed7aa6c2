package dumper

import (
	"context"

	"msgdump/pkg/messenger"
)

// MercuryClient defines the interface for mercury API operations
type MercuryClient interface {
	FetchThreadPage(ctx context.Context, folder messenger.Folder, offset, limit int) (*messenger.ThreadPage, error)
	FetchHistoryPage(ctx context.Context, thread messenger.ThreadRef, cursor messenger.Cursor, pageSize int) (*messenger.HistoryPage, error)
}
