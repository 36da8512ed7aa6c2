package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"msgdump/pkg/messenger"
)

func testMetadata() Metadata {
	return Metadata{
		ID:                   "1234567890",
		Name:                 "Weekend Trip",
		Kind:                 messenger.ThreadKindGroup,
		Status:               messenger.FolderInbox,
		Participants:         []string{"Alice", "Bob", "Carol"},
		LastMessageTimestamp: 1500000000000,
	}
}

func testRecords() []json.RawMessage {
	return []json.RawMessage{
		json.RawMessage(`{"action_type":"ma-type:user-generated-message","author":"fbid:1","body":"hello","timestamp":1000}`),
		json.RawMessage(`{"action_type":"ma-type:user-generated-message","author":"fbid:2","body":"hi there","timestamp":2000}`),
	}
}

func TestSaveAndLoadConversation(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	conv := &Conversation{Meta: testMetadata(), Records: testRecords()}
	dir, err := store.SaveConversation(conv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.OutputDir(), "1234567890 - Weekend Trip"), dir)

	raw, err := os.ReadFile(filepath.Join(dir, RawArchiveName))
	require.NoError(t, err)
	assert.Equal(t, string(EncodeRecords(conv.Records)), string(raw),
		"archive bytes must be the records verbatim")

	pretty, err := os.ReadFile(filepath.Join(dir, PrettyArchiveName))
	require.NoError(t, err)
	assert.True(t, json.Valid(pretty))
	assert.Contains(t, string(pretty), "    ")

	loaded, err := store.LoadConversation(conv.Meta)
	require.NoError(t, err)
	require.Equal(t, conv.RecordCount(), loaded.RecordCount())
	for i := range conv.Records {
		assert.JSONEq(t, string(conv.Records[i]), string(loaded.Records[i]))
	}
}

func TestSaveConversationLeavesNoTempFiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	dir, err := store.SaveConversation(&Conversation{Meta: testMetadata(), Records: testRecords()})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotEqual(t, ".tmp", filepath.Ext(entry.Name()))
	}
	assert.Len(t, entries, 2)
}

func TestSaveConversationWithoutPrettyCopy(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	store.SetPrettyJSON(false)

	dir, err := store.SaveConversation(&Conversation{Meta: testMetadata(), Records: testRecords()})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, RawArchiveName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, PrettyArchiveName))
	assert.True(t, os.IsNotExist(err), "pretty copy is skipped when disabled")
}

func TestConversationDirWithUnusableName(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	meta := testMetadata()
	meta.Name = "///"
	assert.Equal(t, filepath.Join(store.OutputDir(), meta.ID), store.ConversationDir(meta))
}

func TestHasArchive(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	meta := testMetadata()
	assert.False(t, store.HasArchive(meta))

	_, err = store.SaveConversation(&Conversation{Meta: meta, Records: testRecords()})
	require.NoError(t, err)
	assert.True(t, store.HasArchive(meta))
}

func TestLoadRecordsFromPrettyArchive(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	conv := &Conversation{Meta: testMetadata(), Records: testRecords()}
	dir, err := store.SaveConversation(conv)
	require.NoError(t, err)

	records, err := LoadRecords(filepath.Join(dir, PrettyArchiveName))
	require.NoError(t, err)
	require.Len(t, records, 2)

	action, err := messenger.DecodeAction(records[0])
	require.NoError(t, err)
	assert.Equal(t, "hello", action.Body)
}

func TestLoadRecordsMissingFile(t *testing.T) {
	_, err := LoadRecords(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestEncodeRecords(t *testing.T) {
	records := []json.RawMessage{
		json.RawMessage(`{"b":2,"a":1}`),
		json.RawMessage(`{"ts":1500000000001}`),
	}

	encoded := EncodeRecords(records)
	assert.Equal(t, `[{"b":2,"a":1},{"ts":1500000000001}]`, string(encoded),
		"key order and number literals stay untouched")

	assert.Equal(t, "[]", string(EncodeRecords(nil)))
}

func TestListingRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	other := testMetadata()
	other.ID = "555"
	other.Name = "Bob"
	other.Kind = messenger.ThreadKindUser
	other.Status = messenger.FolderArchived

	listing := &Listing{
		DumpedAt:      time.Now().Truncate(time.Second),
		Participants:  map[string]string{"1": "Alice", "2": "Bob"},
		Conversations: []Metadata{testMetadata(), other},
	}
	require.NoError(t, store.SaveListing(listing))

	loaded, err := store.LoadListing()
	require.NoError(t, err)
	require.Len(t, loaded.Conversations, 2)
	assert.Equal(t, []string{"1234567890", "555"}, loaded.IDs())
	assert.Equal(t, "Alice", loaded.Participants["1"])

	meta, ok := loaded.Find("555")
	require.True(t, ok)
	assert.Equal(t, "Bob", meta.Name)
	assert.Equal(t, messenger.FolderArchived, meta.Status)

	_, ok = loaded.Find("999")
	assert.False(t, ok)
}

func TestLoadListingMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.LoadListing()
	assert.Error(t, err)
}

func TestMetadataFromThread(t *testing.T) {
	names := map[string]string{
		"1": "Alice",
		"2": "Bob",
	}

	t.Run("group keeps its own name", func(t *testing.T) {
		thread := messenger.Thread{
			ThreadFBID:           "111",
			ThreadType:           messenger.ThreadTypeGroup,
			Name:                 "Camping",
			Participants:         []string{"fbid:1", "fbid:2", "fbid:3"},
			LastMessageTimestamp: 1500000000000,
		}

		meta := MetadataFromThread(thread, messenger.FolderInbox, names)
		assert.Equal(t, "111", meta.ID)
		assert.Equal(t, "Camping", meta.Name)
		assert.Equal(t, messenger.ThreadKindGroup, meta.Kind)
		assert.Equal(t, messenger.FolderInbox, meta.Status)
		assert.Equal(t, []string{"Alice", "Bob", "3"}, meta.Participants,
			"unknown participant falls back to the bare fbid")
	})

	t.Run("direct takes the other participant's name", func(t *testing.T) {
		thread := messenger.Thread{
			ThreadFBID:    "222",
			OtherUserFBID: "2",
			ThreadType:    messenger.ThreadTypeUser,
			Participants:  []string{"fbid:1", "fbid:2"},
		}

		meta := MetadataFromThread(thread, messenger.FolderArchived, names)
		assert.Equal(t, "Bob", meta.Name)
		assert.Equal(t, messenger.ThreadKindUser, meta.Kind)
		assert.Equal(t, messenger.FolderArchived, meta.Status)
	})
}

func TestMetadataRef(t *testing.T) {
	meta := testMetadata()
	ref := meta.Ref()
	assert.Equal(t, "1234567890", ref.ID)
	assert.Equal(t, messenger.ThreadKindGroup, ref.Kind)
}

func TestDisplayLine(t *testing.T) {
	meta := testMetadata()
	date := time.UnixMilli(meta.LastMessageTimestamp).Format("2006-01-02 15:04:05")
	want := fmt.Sprintf("[+] - ID: '1234567890' - Name: 'Weekend Trip' - Last msg: '%s' - Type: 'group' - Status: 'inbox' - Users: 'Alice | Bob | Carol'", date)
	assert.Equal(t, want, meta.DisplayLine())
}

func TestFormatListing(t *testing.T) {
	listing := &Listing{Conversations: []Metadata{testMetadata(), testMetadata()}}
	out := listing.FormatListing()
	assert.Equal(t, 1, countRune(out, '\n'))

	empty := &Listing{}
	assert.Empty(t, empty.FormatListing())
}

func countRune(s string, r rune) int {
	n := 0
	for _, c := range s {
		if c == r {
			n++
		}
	}
	return n
}

func BenchmarkEncodeRecords(b *testing.B) {
	records := make([]json.RawMessage, 2000)
	for i := range records {
		records[i] = json.RawMessage(`{"action_type":"ma-type:user-generated-message","author":"fbid:1","body":"benchmark message body","timestamp":1500000000000}`)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EncodeRecords(records)
	}
}
