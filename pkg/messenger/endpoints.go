package messenger

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	// BaseURL is the base URL for Facebook
	BaseURL = "https://www.facebook.com"

	// ThreadListEndpoint is the endpoint for listing conversations
	ThreadListEndpoint = "/ajax/mercury/threadlist_info.php"

	// ThreadInfoEndpoint is the endpoint for fetching conversation history
	ThreadInfoEndpoint = "/ajax/mercury/thread_info.php"

	// ClientName identifies the caller on every mercury form
	ClientName = "web_messenger"

	// DefaultPageSize is the default number of messages to fetch per request
	DefaultPageSize = 2000

	// ThreadListPageSize is the fixed page size for listing conversations
	ThreadListPageSize = 1000
)

// Folder is a conversation folder on the remote side
type Folder string

const (
	FolderInbox    Folder = "inbox"
	FolderArchived Folder = "archived"
)

// Folders lists every folder a dump walks, in walk order
var Folders = []Folder{FolderInbox, FolderArchived}

// formPrefix returns the folder's form key prefix. Archived listing keys
// carry an action: prefix on the wire, inbox keys do not.
func (f Folder) formPrefix() string {
	if f == FolderInbox {
		return string(FolderInbox)
	}
	return "action:" + string(f)
}

// ThreadKind distinguishes direct conversations from group conversations
type ThreadKind string

const (
	ThreadKindUser  ThreadKind = "user"
	ThreadKindGroup ThreadKind = "group"
)

// wireKey returns the form key segment the kind maps to
func (k ThreadKind) wireKey() string {
	if k == ThreadKindGroup {
		return "thread_fbids"
	}
	return "user_ids"
}

// KindOfThreadType maps a wire thread_type to a ThreadKind
func KindOfThreadType(threadType int) ThreadKind {
	if threadType == ThreadTypeGroup {
		return ThreadKindGroup
	}
	return ThreadKindUser
}

// ThreadRef identifies one conversation for history requests
type ThreadRef struct {
	ID   string
	Kind ThreadKind
}

// Cursor is the continuation state of a history walk. The zero value
// addresses the newest page; each page returns the cursor for the next
// older one.
type Cursor struct {
	Offset    int
	Timestamp int64
}

// ThreadListForm builds the form for one thread-listing page
func ThreadListForm(folder Folder, offset, limit int) url.Values {
	prefix := folder.formPrefix()
	form := url.Values{}
	form.Set(prefix+"[offset]", strconv.Itoa(offset))
	form.Set(prefix+"[limit]", strconv.Itoa(limit))
	form.Set(prefix+"[filter]", "")
	form.Set("client", ClientName)
	return form
}

// HistoryForm builds the form for one conversation-history page
func HistoryForm(thread ThreadRef, cursor Cursor, pageSize int) url.Values {
	prefix := fmt.Sprintf("messages[%s][%s]", thread.Kind.wireKey(), thread.ID)
	form := url.Values{}
	form.Set(prefix+"[offset]", strconv.Itoa(cursor.Offset))
	form.Set(prefix+"[limit]", strconv.Itoa(pageSize))
	form.Set(prefix+"[timestamp]", strconv.FormatInt(cursor.Timestamp, 10))
	form.Set("client", ClientName)
	return form
}

// IsValidThreadID checks that an id looks like a conversation fbid
func IsValidThreadID(id string) bool {
	if id == "" {
		return false
	}
	for _, char := range id {
		if char < '0' || char > '9' {
			return false
		}
	}
	return true
}

// SanitizeThreadID strips decoration users paste along with an id: the
// fbid: prefix, surrounding spaces and trailing slashes
func SanitizeThreadID(id string) string {
	id = strings.TrimSpace(id)
	id = StripFBIDPrefix(id)
	return strings.TrimRight(id, "/ ")
}
