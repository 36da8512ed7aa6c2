package parser

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgdump/pkg/archive"
	"msgdump/pkg/logger"
	"msgdump/pkg/messenger"
)

func testNames() map[string]string {
	return map[string]string{
		"1": "Alice",
		"2": "Bob",
	}
}

func record(s string) json.RawMessage {
	return json.RawMessage(s)
}

func testConversation(records ...json.RawMessage) *archive.Conversation {
	return &archive.Conversation{
		Meta: archive.Metadata{
			ID:     "111",
			Name:   "Weekend Trip",
			Kind:   messenger.ThreadKindGroup,
			Status: messenger.FolderInbox,
		},
		Records: records,
	}
}

const (
	textRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.001","author":"fbid:1","body":"hello there","timestamp":1500000000000,"attachments":[]}`

	photoRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.002","author":"fbid:2","body":"","timestamp":1500000001000,"attachments":[{"attach_type":"photo","name":"12345_n.jpg","preview_url":"https://scontent.xx.fbcdn.net/v/t1.0-9/12345_n.jpg?oh=abc&oe=def"}]}`

	gifRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.003","author":"fbid:1","body":"","timestamp":1500000002000,"attachments":[{"attach_type":"animated_image","name":"fun.gif","preview_url":"https://cdn.example.com/fun.gif"}]}`

	videoRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.004","author":"fbid:2","body":"","timestamp":1500000003000,"attachments":[{"attach_type":"video","name":"clip.mp4","url":"https://video.example.com/clip.mp4"}]}`

	fileRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.005","author":"fbid:1","body":"","timestamp":1500000004000,"attachments":[{"attach_type":"file","name":"notes.pdf","url":"https://cdn.example.com/notes.pdf"}]}`

	shareRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.006","author":"fbid:2","body":"look at this","timestamp":1500000005000,"attachments":[{"attach_type":"share","name":"","share":{"uri":"https://l.facebook.com/l.php?u=https%3A%2F%2Fexample.com%2Farticle&h=ATxyz"}}]}`

	rangeRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.007","author":"fbid:1","body":"see https://example.org/page","timestamp":1500000006000,"attachments":[],"ranges":[{"entity":{"url":"https://example.org/page"}}]}`

	systemRecord = `{"action_type":"ma-type:log-message","message_id":"mid.008","author":"fbid:1","body":"Alice named the conversation Weekend Trip","timestamp":1500000007000}`

	malformedRecord = `{"action_type":42,"author":[],"timestamp":"not a number"}`

	nullPreviewRecord = `{"action_type":"ma-type:user-generated-message","message_id":"mid.009","author":"fbid:2","body":"","timestamp":1500000008000,"attachments":[{"attach_type":"photo","name":"gone.jpg","preview_url":null}]}`
)

func allRecords() []json.RawMessage {
	return []json.RawMessage{
		record(textRecord),
		record(photoRecord),
		record(gifRecord),
		record(videoRecord),
		record(fileRecord),
		record(shareRecord),
		record(rangeRecord),
		record(systemRecord),
		record(malformedRecord),
		record(nullPreviewRecord),
	}
}

func tally(artifacts []Artifact) map[DataType]int {
	counts := map[DataType]int{}
	for _, a := range artifacts {
		counts[a.Kind]++
	}
	return counts
}

func TestParseAll(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	result, err := p.Parse(testConversation(allRecords()...), []DataType{DataAll})
	require.NoError(t, err)

	assert.Equal(t, 10, result.Total)
	assert.Equal(t, 1, result.Malformed)
	assert.Equal(t, 1, result.System)

	counts := tally(result.Artifacts)
	assert.Equal(t, 8, counts[DataMessages], "every user message yields a message artifact")
	assert.Equal(t, 1, counts[DataPictures], "null preview urls are dropped uncounted")
	assert.Equal(t, 1, counts[DataGifs])
	assert.Equal(t, 1, counts[DataVideos])
	assert.Equal(t, 1, counts[DataFiles])
	assert.Equal(t, 2, counts[DataLinks], "one share, one inline range")
}

func TestParseArtifactFields(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	result, err := p.Parse(testConversation(record(photoRecord)), []DataType{DataPictures})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)

	artifact := result.Artifacts[0]
	assert.Equal(t, DataPictures, artifact.Kind)
	assert.Equal(t, "mid.002", artifact.MessageID)
	assert.Equal(t, "2", artifact.SenderID)
	assert.Equal(t, "Bob", artifact.SenderName)
	assert.Equal(t, time.UnixMilli(1500000001000), artifact.Timestamp)
	assert.Equal(t, "https://scontent.xx.fbcdn.net/v/t1.0-9/12345_n.jpg?oh=abc&oe=def", artifact.URL)
	assert.Equal(t, "12345_n.jpg", artifact.Filename)
	assert.Empty(t, artifact.Text)
}

func TestParseSelectedTypes(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	result, err := p.Parse(testConversation(allRecords()...), []DataType{DataMessages, DataLinks})
	require.NoError(t, err)

	counts := tally(result.Artifacts)
	assert.Equal(t, 8, counts[DataMessages])
	assert.Equal(t, 2, counts[DataLinks])
	assert.Zero(t, counts[DataPictures])
	assert.Zero(t, counts[DataVideos])
}

func TestParseLinksOnly(t *testing.T) {
	secondShare := `{"action_type":"ma-type:user-generated-message","message_id":"mid.011","author":"fbid:1","body":"","timestamp":1500000009000,"attachments":[{"attach_type":"share","name":"","share":{"uri":"https://example.net/post"}}]}`

	records := make([]json.RawMessage, 0, 15)
	for i := 0; i < 10; i++ {
		records = append(records, record(textRecord))
	}
	records = append(records, record(photoRecord), record(photoRecord))
	records = append(records, record(shareRecord), record(rangeRecord), record(secondShare))

	p := New(testNames(), logger.NewNopLogger())
	result, err := p.Parse(testConversation(records...), []DataType{DataLinks})
	require.NoError(t, err)

	assert.Equal(t, 15, result.Total)
	require.Len(t, result.Artifacts, 3, "only link artifacts survive the filter")
	for _, artifact := range result.Artifacts {
		assert.Equal(t, DataLinks, artifact.Kind)
	}
}

func TestParseIdempotence(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	conv := testConversation(allRecords()...)

	first, err := p.Parse(conv, []DataType{DataAll})
	require.NoError(t, err)
	second, err := p.Parse(conv, []DataType{DataAll})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestParseNoTypes(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	_, err := p.Parse(testConversation(record(textRecord)), nil)
	assert.Error(t, err)
}

func TestParseUnknownSender(t *testing.T) {
	p := New(nil, logger.NewNopLogger())
	result, err := p.Parse(testConversation(record(textRecord)), []DataType{DataMessages})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)

	assert.Equal(t, "1", result.Artifacts[0].SenderID)
	assert.Empty(t, result.Artifacts[0].SenderName)
}

func TestMessageLineFormat(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())

	withAttachment := `{"action_type":"ma-type:user-generated-message","message_id":"mid.010","author":"fbid:1","body":"check these","timestamp":1500000000000,"attachments":[{"attach_type":"photo","name":"a.jpg","preview_url":"https://cdn.example.com/a.jpg"},{"attach_type":"error","name":"broken"},{"attach_type":"photo","name":"b.jpg","preview_url":"https://cdn.example.com/b.jpg"}]}`

	result, err := p.Parse(testConversation(record(withAttachment)), []DataType{DataMessages})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)

	date := time.UnixMilli(1500000000000).Format("2006-01-02 15:04:05")
	want := fmt.Sprintf(`Message body: "check these" - attachments {a.jpg b.jpg} - sent by: 'Alice' (1) - the %s`, date)
	assert.Equal(t, want, result.Artifacts[0].Text)
}

func TestMessageLineNoAttachments(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	result, err := p.Parse(testConversation(record(textRecord)), []DataType{DataMessages})
	require.NoError(t, err)

	date := time.UnixMilli(1500000000000).Format("2006-01-02 15:04:05")
	want := fmt.Sprintf(`Message body: "hello there" - attachments {} - sent by: 'Alice' (1) - the %s`, date)
	assert.Equal(t, want, result.Artifacts[0].Text)
}

func TestParseUnwrapsSharedLinks(t *testing.T) {
	p := New(testNames(), logger.NewNopLogger())
	result, err := p.Parse(testConversation(record(shareRecord)), []DataType{DataLinks})
	require.NoError(t, err)
	require.Len(t, result.Artifacts, 1)

	assert.Equal(t, "https://example.com/article", result.Artifacts[0].URL)
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{
			"wrapped link",
			"https://l.facebook.com/l.php?u=https%3A%2F%2Fexample.com%2Fpage%3Fid%3D7&h=ATxyz",
			"https://example.com/page?id=7",
		},
		{
			"plain link passes through",
			"https://example.com/direct",
			"https://example.com/direct",
		},
		{
			"redirector without trailing hash passes through",
			"https://l.facebook.com/l.php?u=https%3A%2F%2Fexample.com",
			"https://l.facebook.com/l.php?u=https%3A%2F%2Fexample.com",
		},
		{
			"bad escape keeps the inner string",
			"https://l.facebook.com/l.php?u=https%ZZbroken&h=AT1",
			"https%ZZbroken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, UnwrapRedirect(tt.uri))
		})
	}
}

func TestNormalizeTypes(t *testing.T) {
	assert.Equal(t, ReportTypes, NormalizeTypes([]DataType{DataAll}))
	assert.Equal(t, ReportTypes, NormalizeTypes([]DataType{DataLinks, DataAll, DataMessages}))

	assert.Equal(t,
		[]DataType{DataMessages, DataVideos},
		NormalizeTypes([]DataType{DataVideos, DataMessages, DataVideos}),
		"duplicates collapse and report order wins")

	assert.Empty(t, NormalizeTypes(nil))
}

func TestParseDataType(t *testing.T) {
	for _, valid := range []string{"all", "messages", "pictures", "gifs", "videos", "files", "links"} {
		parsed, err := ParseDataType(valid)
		require.NoError(t, err)
		assert.Equal(t, DataType(valid), parsed)
	}

	parsed, err := ParseDataType("  Pictures ")
	require.NoError(t, err)
	assert.Equal(t, DataPictures, parsed)

	_, err = ParseDataType("photos")
	assert.Error(t, err)
}

func TestDownloadable(t *testing.T) {
	assert.True(t, DataPictures.Downloadable())
	assert.True(t, DataGifs.Downloadable())
	assert.True(t, DataVideos.Downloadable())
	assert.True(t, DataFiles.Downloadable())
	assert.False(t, DataMessages.Downloadable())
	assert.False(t, DataLinks.Downloadable())
	assert.False(t, DataAll.Downloadable())
}

func TestConversationID(t *testing.T) {
	t.Run("direct conversation", func(t *testing.T) {
		records := []json.RawMessage{record(`{"other_user_fbid":"42","thread_fbid":"999"}`)}
		id, err := ConversationID(records)
		require.NoError(t, err)
		assert.Equal(t, "42", id)
	})

	t.Run("group conversation", func(t *testing.T) {
		records := []json.RawMessage{record(`{"thread_fbid":"999"}`)}
		id, err := ConversationID(records)
		require.NoError(t, err)
		assert.Equal(t, "999", id)
	})

	t.Run("no id", func(t *testing.T) {
		_, err := ConversationID([]json.RawMessage{record(`{"body":"hi"}`)})
		assert.Error(t, err)
	})

	t.Run("empty archive", func(t *testing.T) {
		_, err := ConversationID(nil)
		assert.Error(t, err)
	})

	t.Run("malformed first record", func(t *testing.T) {
		_, err := ConversationID([]json.RawMessage{record(`{broken`)})
		assert.Error(t, err)
	})
}

func BenchmarkParseAll(b *testing.B) {
	records := make([]json.RawMessage, 0, 2000)
	for i := 0; i < 2000; i++ {
		records = append(records, record(textRecord))
	}
	conv := testConversation(records...)
	p := New(testNames(), logger.NewNopLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Parse(conv, []DataType{DataAll}); err != nil {
			b.Fatal(err)
		}
	}
}
