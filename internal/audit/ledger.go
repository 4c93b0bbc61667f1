// Package audit implements DeliveryLedger: an append-only, snappy
// compressed JSONL log of every notification the engine actually sent,
// for postmortems. It is purely observational: nothing in the poll engine
// reads it back, and a nil ledger is always safe to use.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/snappy"
)

// Entry is one delivered-notification record.
type Entry struct {
	SentAt    time.Time `json:"sent_at"`
	ChannelID int64     `json:"channel_id"`
	Account   string    `json:"account"`
	EntryID   string    `json:"entry_id"`
	Link      string    `json:"link"`
}

// Ledger streams Entry records to a snappy-compressed JSONL file. Safe for
// concurrent use by multiple goroutines, though the engine only ever
// writes from its single tick task.
type Ledger struct {
	mu     sync.Mutex
	file   *os.File
	stream *snappy.Writer
	now    func() time.Time
}

// Open creates (or appends to a fresh) delivery ledger file under dir. A
// new file is created per process start, named by the start time, so
// restarts never corrupt a partially-flushed snappy stream.
func Open(dir string) (*Ledger, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit: ledger directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create %s: %w", dir, err)
	}

	name := fmt.Sprintf("delivery-%s.jsonl.sz", time.Now().UTC().Format("20060102T150405Z"))
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("audit: create %s: %w", path, err)
	}

	return &Ledger{
		file:   f,
		stream: snappy.NewBufferedWriter(f),
		now:    time.Now,
	}, nil
}

// Record appends one delivery event and flushes it immediately, so a
// crash never loses more than the in-flight write.
func (l *Ledger) Record(channelID int64, account, entryID, link string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(Entry{
		SentAt:    l.now().UTC(),
		ChannelID: channelID,
		Account:   account,
		EntryID:   entryID,
		Link:      link,
	})
	if err != nil {
		return fmt.Errorf("audit: encode entry: %w", err)
	}
	if _, err := l.stream.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return l.stream.Flush()
}

// Close flushes and releases the underlying file handle.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	if err := l.stream.Close(); err != nil {
		firstErr = err
	}
	if err := l.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
