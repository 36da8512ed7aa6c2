// Package archive persists dumped conversations to disk and loads them
// back for parsing.
//
// Each conversation gets its own directory under the output root, named
// "<id> - <sanitized name>", holding the raw record archive and an
// indented copy of it. A conversations.json listing at the output root
// indexes every conversation seen during a dump run. All files are
// written to a temp file first and renamed into place, so an interrupted
// dump never leaves a truncated archive behind.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// RawArchiveName is the archive holding records exactly as received
	RawArchiveName = "complete.json"

	// PrettyArchiveName is the indented copy of the archive
	PrettyArchiveName = "complete.pretty.json"

	// ListingName is the conversation index at the output root
	ListingName = "conversations.json"
)

// Store reads and writes conversation archives under one output root
type Store struct {
	outputDir string
	pretty    bool
}

// NewStore creates a store rooted at outputDir, creating it if needed
func NewStore(outputDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Store{outputDir: outputDir, pretty: true}, nil
}

// SetPrettyJSON controls whether SaveConversation writes the indented
// archive copy alongside the raw one. On by default.
func (s *Store) SetPrettyJSON(pretty bool) {
	s.pretty = pretty
}

// OutputDir returns the output root path
func (s *Store) OutputDir() string {
	return s.outputDir
}

// ConversationDir returns the directory a conversation's files live in
func (s *Store) ConversationDir(meta Metadata) string {
	name := SanitizeName(meta.Name)
	if name == "" {
		return filepath.Join(s.outputDir, meta.ID)
	}
	return filepath.Join(s.outputDir, meta.ID+" - "+name)
}

// ArchivePath returns the path of a conversation's raw archive
func (s *Store) ArchivePath(meta Metadata) string {
	return filepath.Join(s.ConversationDir(meta), RawArchiveName)
}

// SaveConversation writes the raw archive and its indented copy into the
// conversation's directory. Returns the directory path.
func (s *Store) SaveConversation(conv *Conversation) (string, error) {
	dir := s.ConversationDir(conv.Meta)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create conversation directory: %w", err)
	}

	raw := EncodeRecords(conv.Records)

	if err := writeFileAtomic(filepath.Join(dir, RawArchiveName), raw); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	if s.pretty {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "    "); err != nil {
			return "", fmt.Errorf("failed to indent archive: %w", err)
		}
		if err := writeFileAtomic(filepath.Join(dir, PrettyArchiveName), pretty.Bytes()); err != nil {
			return "", fmt.Errorf("failed to write pretty archive: %w", err)
		}
	}

	return dir, nil
}

// LoadConversation reads a conversation's raw archive back
func (s *Store) LoadConversation(meta Metadata) (*Conversation, error) {
	records, err := LoadRecords(s.ArchivePath(meta))
	if err != nil {
		return nil, err
	}

	return &Conversation{Meta: meta, Records: records}, nil
}

// HasArchive reports whether a conversation's raw archive exists on disk
func (s *Store) HasArchive(meta Metadata) bool {
	_, err := os.Stat(s.ArchivePath(meta))
	return err == nil
}

// SaveListing writes the conversations.json index at the output root
func (s *Store) SaveListing(listing *Listing) error {
	data, err := json.MarshalIndent(listing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal listing: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.outputDir, ListingName), data); err != nil {
		return fmt.Errorf("failed to write listing: %w", err)
	}

	return nil
}

// LoadListing reads the conversations.json index back
func (s *Store) LoadListing() (*Listing, error) {
	data, err := os.ReadFile(filepath.Join(s.outputDir, ListingName))
	if err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}

	var listing Listing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listing: %w", err)
	}

	return &listing, nil
}

// LoadRecords reads one archive file into its raw records. Both the raw
// and the pretty form decode, so a parse can point at either.
func LoadRecords(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal archive: %w", err)
	}

	return records, nil
}

// EncodeRecords builds the archive body. Records are concatenated
// verbatim so the bytes on disk stay exactly what the remote sent.
func EncodeRecords(records []json.RawMessage) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, record := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(record)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place, syncing before the rename
func writeFileAtomic(path string, data []byte) error {
	tempFile := path + ".tmp"

	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, writeErr := out.Write(data)
	syncErr := out.Sync()
	closeErr := out.Close()

	if writeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", writeErr)
	}
	if syncErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync file: %w", syncErr)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
