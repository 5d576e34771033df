// Package wal provides the append-only JSON log backing the in-memory
// store. Every accepted transaction is written and fsynced before the
// balance mutation becomes visible, so a restart replays to the same
// state.
package wal

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

type WAL struct {
	mu   sync.Mutex
	file *os.File
}

// Open opens or creates the log at path. Writes always go to the end of
// the file.
func Open(path string) (*WAL, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &WAL{file: file}, nil
}

// Write encodes v as one JSON line and forces it to disk before
// returning. An error means nothing may be considered committed.
func (w *WAL) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := json.NewEncoder(w.file).Encode(v); err != nil {
		return err
	}
	return w.file.Sync()
}

// ReadAll streams every record to fn in write order, one raw JSON
// message at a time, so replay never loads the whole log into memory.
func (w *WAL) ReadAll(fn func(raw []byte) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	dec := json.NewDecoder(w.file)
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
