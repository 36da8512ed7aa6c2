package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"msgdump/pkg/messenger"
)

// Metadata describes one conversation as the remote listed it
type Metadata struct {
	// Core identifiers
	ID   string               `json:"id"`
	Name string               `json:"name"`
	Kind messenger.ThreadKind `json:"kind"`

	// Folder the conversation was listed under, inbox or archived
	Status messenger.Folder `json:"status"`

	// Participants holds resolved display names
	Participants []string `json:"participants"`

	// LastMessageTimestamp is epoch milliseconds
	LastMessageTimestamp int64 `json:"last_message_timestamp"`
}

// MetadataFromThread builds Metadata from a listed thread and the
// accumulated participant name map. Direct conversations take the other
// participant's name, groups keep their own. Ids without a known name
// fall back to the bare fbid.
func MetadataFromThread(thread messenger.Thread, folder messenger.Folder, names map[string]string) Metadata {
	kind := messenger.KindOfThreadType(thread.ThreadType)

	name := thread.Name
	if kind == messenger.ThreadKindUser {
		name = resolveName(thread.OtherUserFBID, names)
	}

	participants := make([]string, 0, len(thread.Participants))
	for _, raw := range thread.Participants {
		participants = append(participants, resolveName(raw, names))
	}

	return Metadata{
		ID:                   thread.ThreadFBID,
		Name:                 name,
		Kind:                 kind,
		Status:               folder,
		Participants:         participants,
		LastMessageTimestamp: thread.LastMessageTimestamp,
	}
}

func resolveName(fbid string, names map[string]string) string {
	id := messenger.StripFBIDPrefix(fbid)
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}

// Ref returns the thread reference history requests address
func (m Metadata) Ref() messenger.ThreadRef {
	return messenger.ThreadRef{ID: m.ID, Kind: m.Kind}
}

// LastMessageTime converts the listing timestamp to local time
func (m Metadata) LastMessageTime() time.Time {
	return time.UnixMilli(m.LastMessageTimestamp)
}

// DisplayLine renders the one-line human readable listing entry
func (m Metadata) DisplayLine() string {
	return fmt.Sprintf("[+] - ID: '%s' - Name: '%s' - Last msg: '%s' - Type: '%s' - Status: '%s' - Users: '%s'",
		m.ID,
		m.Name,
		m.LastMessageTime().Format("2006-01-02 15:04:05"),
		m.Kind,
		m.Status,
		strings.Join(m.Participants, " | "))
}

// Conversation pairs a conversation's metadata with its dumped records.
// Records hold the raw JSON of each message action exactly as the remote
// sent it, oldest first.
type Conversation struct {
	Meta    Metadata
	Records []json.RawMessage
}

// RecordCount returns the number of dumped records
func (c *Conversation) RecordCount() int {
	return len(c.Records)
}

// Listing is the conversations.json index written once per dump run.
// Participants maps every fbid seen during the run to its display name so
// a later parse can attribute messages without talking to the remote.
type Listing struct {
	DumpedAt      time.Time         `json:"dumped_at"`
	Participants  map[string]string `json:"participants"`
	Conversations []Metadata        `json:"conversations"`
}

// Find looks a conversation up by id
func (l *Listing) Find(id string) (Metadata, bool) {
	for _, meta := range l.Conversations {
		if meta.ID == id {
			return meta, true
		}
	}
	return Metadata{}, false
}

// IDs returns every listed conversation id in listing order
func (l *Listing) IDs() []string {
	ids := make([]string, 0, len(l.Conversations))
	for _, meta := range l.Conversations {
		ids = append(ids, meta.ID)
	}
	return ids
}

// FormatListing renders every entry as display lines, one per conversation
func (l *Listing) FormatListing() string {
	lines := make([]string, 0, len(l.Conversations))
	for _, meta := range l.Conversations {
		lines = append(lines, meta.DisplayLine())
	}
	return strings.Join(lines, "\n")
}
