// Package state tracks dump completion across runs.
//
// A small bolt database at the output root records, per conversation,
// the last completed dump and which run produced it. Batch dumps consult
// it to resume an interrupted run without re-dumping what that run
// already finished.
package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"msgdump/pkg/logger"
)

// LedgerFileName is the bolt database file at the output root
const LedgerFileName = "msgdump.db"

var (
	bucketDumps = []byte("dumps")
	bucketRuns  = []byte("runs")
)

// DumpRecord is one conversation's last completed dump
type DumpRecord struct {
	ConversationID string    `json:"conversation_id"`
	RunID          string    `json:"run_id"`
	Records        int       `json:"records"`
	ArchivePath    string    `json:"archive_path"`
	CompletedAt    time.Time `json:"completed_at"`
}

// RunRecord describes one dump run
type RunRecord struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Completed  bool      `json:"completed"`
}

// Ledger is the dump ledger. Safe for concurrent use; bolt serializes
// writers internally.
type Ledger struct {
	db     *bolt.DB
	logger logger.Logger
}

// Open opens the ledger at the output root, creating it if needed
func Open(outputDir string, log logger.Logger) (*Ledger, error) {
	return OpenFile(outputDir, LedgerFileName, log)
}

// OpenFile opens the ledger under a custom file name. An empty name
// falls back to LedgerFileName.
func OpenFile(outputDir, fileName string, log logger.Logger) (*Ledger, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if fileName == "" {
		fileName = LedgerFileName
	}

	path := filepath.Join(outputDir, fileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open dump ledger: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDumps); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketRuns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare dump ledger: %w", err)
	}

	return &Ledger{db: db, logger: log}, nil
}

// Close closes the underlying database
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun starts a new dump run and returns its id
func (l *Ledger) BeginRun() (string, error) {
	run := RunRecord{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}

	if err := l.putRun(run); err != nil {
		return "", err
	}

	l.logger.InfoWithFields("dump run started", map[string]interface{}{
		"run_id": run.ID,
	})

	return run.ID, nil
}

func (l *Ledger) putRun(run RunRecord) error {
	encoded, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	err = l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(run.ID), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to store run record: %w", err)
	}

	return nil
}

// ResumeRun returns the most recent unfinished run, if any
func (l *Ledger) ResumeRun() (string, bool, error) {
	var latest RunRecord
	found := false

	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run RunRecord
			if err := json.Unmarshal(v, &run); err != nil {
				// Skip malformed entries instead of failing the whole scan
				return nil
			}
			if run.Completed {
				return nil
			}
			if !found || run.StartedAt.After(latest.StartedAt) {
				latest = run
				found = true
			}
			return nil
		})
	})
	if err != nil {
		return "", false, fmt.Errorf("failed to scan dump ledger: %w", err)
	}

	if !found {
		return "", false, nil
	}

	l.logger.InfoWithFields("resuming interrupted dump run", map[string]interface{}{
		"run_id":     latest.ID,
		"started_at": latest.StartedAt,
	})

	return latest.ID, true, nil
}

// FinishRun marks a run completed
func (l *Ledger) FinishRun(runID string) error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRuns)
		raw := bucket.Get([]byte(runID))
		if raw == nil {
			return fmt.Errorf("unknown run %s", runID)
		}

		var run RunRecord
		if err := json.Unmarshal(raw, &run); err != nil {
			return err
		}

		run.Completed = true
		run.FinishedAt = time.Now()

		encoded, err := json.Marshal(run)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(runID), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	l.logger.DebugWithFields("dump run finished", map[string]interface{}{
		"run_id": runID,
	})

	return nil
}

// RecordDump stores a conversation's completed dump under the given run
func (l *Ledger) RecordDump(runID string, record DumpRecord) error {
	record.RunID = runID
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now()
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal dump record: %w", err)
	}

	err = l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDumps).Put([]byte(record.ConversationID), encoded)
	})
	if err != nil {
		return fmt.Errorf("failed to record dump: %w", err)
	}

	l.logger.DebugWithFields("dump recorded", map[string]interface{}{
		"conversation_id": record.ConversationID,
		"run_id":          runID,
		"records":         record.Records,
	})

	return nil
}

// LastDump returns a conversation's last completed dump, or nil when the
// conversation was never dumped
func (l *Ledger) LastDump(conversationID string) (*DumpRecord, error) {
	var record *DumpRecord

	err := l.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketDumps).Get([]byte(conversationID))
		if raw == nil {
			return nil
		}

		var decoded DumpRecord
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("failed to decode dump record: %w", err)
		}
		record = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// WasDumpedInRun reports whether a conversation was already dumped by
// the given run
func (l *Ledger) WasDumpedInRun(conversationID, runID string) (bool, error) {
	record, err := l.LastDump(conversationID)
	if err != nil {
		return false, err
	}
	return record != nil && record.RunID == runID, nil
}

// Dumps returns every recorded dump
func (l *Ledger) Dumps() ([]DumpRecord, error) {
	var records []DumpRecord

	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDumps).ForEach(func(k, v []byte) error {
			var record DumpRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return nil
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list dumps: %w", err)
	}

	return records, nil
}

// Reset clears every run and dump record
func (l *Ledger) Reset() error {
	err := l.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketDumps, bucketRuns} {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset dump ledger: %w", err)
	}

	l.logger.Info("dump ledger cleared")
	return nil
}
