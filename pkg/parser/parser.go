// Package parser turns raw conversation archives into typed artifacts.
//
// One pass over the records: user generated messages are classified into
// message, picture, gif, video, file and link artifacts, anything
// malformed or system generated is counted and skipped. Parsing never
// touches the network, so archives parse the same way years after the
// dump that produced them.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"msgdump/pkg/archive"
	"msgdump/pkg/logger"
	"msgdump/pkg/messenger"
)

// redirectPattern matches the l.php tracking redirector wrapped around
// shared links
var redirectPattern = regexp.MustCompile(`https://l\.facebook\.com/l\.php\?u=(.*?)&h=`)

// Parser extracts artifacts from dumped conversations
type Parser struct {
	names  map[string]string
	logger logger.Logger
}

// Result is the outcome of parsing one conversation
type Result struct {
	Meta      archive.Metadata
	Artifacts []Artifact

	// Total is the number of records inspected
	Total int

	// Malformed counts records that failed to decode
	Malformed int

	// System counts records that decoded but were not user messages
	System int
}

// New creates a parser. The names map resolves participant fbids to
// display names and may be nil.
func New(names map[string]string, log logger.Logger) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	if names == nil {
		names = map[string]string{}
	}

	return &Parser{
		names:  names,
		logger: log,
	}
}

// Parse runs one pass over the conversation's records and extracts every
// requested data type. Passing DataAll extracts everything.
func (p *Parser) Parse(conv *archive.Conversation, types []DataType) (*Result, error) {
	wanted := NormalizeTypes(types)
	if len(wanted) == 0 {
		return nil, errors.New("no data types requested")
	}

	want := make(map[DataType]bool, len(wanted))
	for _, t := range wanted {
		want[t] = true
	}

	result := &Result{Meta: conv.Meta, Total: len(conv.Records)}
	for i, record := range conv.Records {
		action, err := messenger.DecodeAction(record)
		if err != nil {
			result.Malformed++
			p.logger.DebugWithFields("skipping malformed record", map[string]interface{}{
				"conversation_id": conv.Meta.ID,
				"record_index":    i,
				"error":           err.Error(),
			})
			continue
		}

		if !action.IsUserMessage() {
			result.System++
			continue
		}

		p.collect(result, action, want)
	}

	p.logger.DebugWithFields("conversation parsed", map[string]interface{}{
		"conversation_id": conv.Meta.ID,
		"records":         result.Total,
		"artifacts":       len(result.Artifacts),
		"malformed":       result.Malformed,
		"system":          result.System,
	})

	return result, nil
}

// collect classifies one user message into every requested artifact type,
// in report order
func (p *Parser) collect(result *Result, action *messenger.Action, want map[DataType]bool) {
	senderID := action.AuthorID()
	header := Artifact{
		MessageID:  action.MessageID,
		Timestamp:  time.UnixMilli(action.Timestamp),
		SenderID:   senderID,
		SenderName: p.names[senderID],
	}

	if want[DataMessages] {
		artifact := header
		artifact.Kind = DataMessages
		artifact.Text = messageLine(action, header.SenderName, header.Timestamp)
		result.Artifacts = append(result.Artifacts, artifact)
	}

	if want[DataPictures] {
		p.collectMedia(result, action, header, DataPictures, messenger.AttachTypePhoto)
	}
	if want[DataGifs] {
		p.collectMedia(result, action, header, DataGifs, messenger.AttachTypeAnimatedImage)
	}
	if want[DataVideos] {
		p.collectMedia(result, action, header, DataVideos, messenger.AttachTypeVideo)
	}
	if want[DataFiles] {
		p.collectMedia(result, action, header, DataFiles, messenger.AttachTypeFile)
	}

	if want[DataLinks] {
		p.collectLinks(result, action, header)
	}
}

// collectMedia extracts every attachment of one media type. Attachments
// without a source URL are dropped uncounted.
func (p *Parser) collectMedia(result *Result, action *messenger.Action, header Artifact, kind DataType, attachType string) {
	for _, att := range action.Attachments {
		if att.AttachType != attachType {
			continue
		}

		source := att.URL
		if kind == DataPictures || kind == DataGifs {
			source = att.PreviewURL
		}
		if source == "" {
			continue
		}

		artifact := header
		artifact.Kind = kind
		artifact.URL = source
		artifact.Filename = att.Name
		result.Artifacts = append(result.Artifacts, artifact)
	}
}

// collectLinks extracts shared links and inline link ranges
func (p *Parser) collectLinks(result *Result, action *messenger.Action, header Artifact) {
	for _, att := range action.Attachments {
		if att.AttachType != messenger.AttachTypeShare || att.Share == nil || att.Share.URI == "" {
			continue
		}

		artifact := header
		artifact.Kind = DataLinks
		artifact.URL = UnwrapRedirect(att.Share.URI)
		result.Artifacts = append(result.Artifacts, artifact)
	}

	for _, rng := range action.Ranges {
		if rng.Entity.URL == "" {
			continue
		}

		artifact := header
		artifact.Kind = DataLinks
		artifact.URL = rng.Entity.URL
		result.Artifacts = append(result.Artifacts, artifact)
	}
}

// messageLine renders one message report line
func messageLine(action *messenger.Action, senderName string, ts time.Time) string {
	names := make([]string, 0, len(action.Attachments))
	for _, att := range action.Attachments {
		if att.AttachType != messenger.AttachTypeError {
			names = append(names, att.Name)
		}
	}

	return fmt.Sprintf("Message body: %s - attachments {%s} - sent by: '%s' (%s) - the %s",
		strconv.Quote(action.Body),
		strings.Join(names, " "),
		senderName,
		action.AuthorID(),
		ts.Format("2006-01-02 15:04:05"))
}

// UnwrapRedirect resolves the l.facebook.com tracking redirector to the
// target it wraps. URIs that are not redirector links pass through
// untouched.
func UnwrapRedirect(uri string) string {
	match := redirectPattern.FindStringSubmatch(uri)
	if match == nil {
		return uri
	}

	decoded, err := url.PathUnescape(match[1])
	if err != nil {
		return match[1]
	}
	return decoded
}

// ConversationID extracts the conversation id the records belong to.
// Direct conversations are identified by the other participant's fbid,
// groups by the thread fbid.
func ConversationID(records []json.RawMessage) (string, error) {
	if len(records) == 0 {
		return "", errors.New("archive holds no records")
	}

	action, err := messenger.DecodeAction(records[0])
	if err != nil {
		return "", fmt.Errorf("failed to decode first record: %w", err)
	}

	if action.OtherUserFBID != "" {
		return action.OtherUserFBID, nil
	}
	if action.ThreadFBID != "" {
		return action.ThreadFBID, nil
	}

	return "", errors.New("records carry no conversation id")
}
