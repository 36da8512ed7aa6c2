package messenger

import (
	"encoding/json"
	"strings"
)

// Response is the decoded envelope of a mercury endpoint reply, after the
// anti-hijacking guard has been stripped. A non-nil Error means the request
// was rejected; ErrorSummary carries the human readable reason.
type Response struct {
	Error            *int    `json:"error"`
	ErrorSummary     string  `json:"errorSummary"`
	ErrorDescription string  `json:"errorDescription"`
	Payload          Payload `json:"payload"`
}

// Payload carries the useful part of a mercury reply. Thread listing
// replies fill Threads and Participants; history replies fill Actions.
// The end_of_history key is only present on the final history page.
type Payload struct {
	Actions      []json.RawMessage `json:"actions"`
	Threads      []Thread          `json:"threads"`
	Participants []Participant     `json:"participants"`
	EndOfHistory *bool             `json:"end_of_history"`
}

// Thread is one conversation entry from the thread listing
type Thread struct {
	ThreadFBID           string   `json:"thread_fbid"`
	OtherUserFBID        string   `json:"other_user_fbid"`
	ThreadType           int      `json:"thread_type"`
	Name                 string   `json:"name"`
	Participants         []string `json:"participants"`
	LastMessageTimestamp int64    `json:"last_message_timestamp"`
	MessageCount         int      `json:"message_count"`
}

// Thread types on the wire
const (
	ThreadTypeUser  = 1
	ThreadTypeGroup = 2
)

// Participant maps a profile id to a display name
type Participant struct {
	FBID string `json:"fbid"`
	Name string `json:"name"`
}

// Action is the typed view of one raw history record. Records are archived
// as raw bytes; this struct only decodes the fields the parser classifies on.
type Action struct {
	ActionType    string       `json:"action_type"`
	Author        string       `json:"author"`
	Body          string       `json:"body"`
	ThreadFBID    string       `json:"thread_fbid"`
	OtherUserFBID string       `json:"other_user_fbid"`
	MessageID     string       `json:"message_id"`
	Timestamp     int64        `json:"timestamp"`
	Attachments   []Attachment `json:"attachments"`
	Ranges        []Range      `json:"ranges"`
}

// ActionTypeUserMessage marks records generated by a user. Everything else
// (renames, calls, other log entries) is conversation bookkeeping.
const ActionTypeUserMessage = "ma-type:user-generated-message"

// IsUserMessage reports whether the record is a user generated message
func (a *Action) IsUserMessage() bool {
	return a.ActionType == ActionTypeUserMessage
}

// AuthorID returns the author's profile id without the fbid: prefix
func (a *Action) AuthorID() string {
	return StripFBIDPrefix(a.Author)
}

// DecodeAction decodes one raw history record into its typed view
func DecodeAction(raw json.RawMessage) (*Action, error) {
	var action Action
	if err := json.Unmarshal(raw, &action); err != nil {
		return nil, err
	}
	return &action, nil
}

// Attachment types on the wire
const (
	AttachTypePhoto         = "photo"
	AttachTypeAnimatedImage = "animated_image"
	AttachTypeVideo         = "video"
	AttachTypeFile          = "file"
	AttachTypeShare         = "share"
	AttachTypeError         = "error"
)

// Attachment is one attachment entry of a history record. Which URL field
// is populated depends on AttachType: photos and animated images carry
// PreviewURL, videos and files carry URL, shares carry Share.URI.
type Attachment struct {
	AttachType string `json:"attach_type"`
	Name       string `json:"name"`
	PreviewURL string `json:"preview_url"`
	URL        string `json:"url"`
	Share      *Share `json:"share"`
}

// Share is the payload of a share attachment
type Share struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// Range marks an inline link inside a message body
type Range struct {
	Entity Entity `json:"entity"`
}

// Entity is the target of an inline link
type Entity struct {
	URL string `json:"url"`
}

// StripFBIDPrefix removes the fbid: prefix participant and author ids
// arrive with
func StripFBIDPrefix(id string) string {
	return strings.TrimPrefix(id, "fbid:")
}
