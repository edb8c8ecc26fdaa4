// Package manifest maintains a durable per-item outcome log for copy runs.
//
// The log is a CSV file keyed by the expanded source URL. When an existing
// file is opened its rows feed the skip decision for the new run: items
// already recorded as copied or skipped are not transferred again, which
// makes an interrupted multi-item operation safe to re-run.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// Result tags recorded in the manifest's Result column.
const (
	ResultOK    = "OK"
	ResultSkip  = "skip"
	ResultError = "error"
)

// header is the fixed column layout. Existing files are appended to
// without rewriting the header.
var header = []string{
	"Source",
	"Destination",
	"Start",
	"End",
	"Md5",
	"UploadId",
	"Source Size",
	"Bytes Transferred",
	"Result",
	"Description",
}

// entry accumulates per-item attributes between Initialize and SetResult.
type entry struct {
	destination string
	start       time.Time
	md5         string
	uploadID    string
	sourceSize  int64
}

// Manifest is a durable, append-only per-item outcome log. All methods are
// safe for concurrent use; appends are serialized by an internal mutex.
type Manifest struct {
	mu sync.Mutex

	file fs.File
	w    *csv.Writer

	// handled holds source URLs whose latest recorded result was OK or
	// skip, loaded from a pre-existing file plus rows written this run.
	handled map[string]bool

	// pending holds items initialized but not yet finalized this run.
	pending map[string]*entry
}

// Open opens (or creates) the manifest file at path. Rows already present
// are read so WasHandled can answer for prior runs' outcomes. New rows are
// appended; previously written rows are never modified.
func Open(path string, fsys fs.Filesystem) (*Manifest, error) {
	handled := make(map[string]bool)

	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: stat %q: %w", path, err)
	}
	if exists {
		if err := loadHandled(path, fsys, handled); err != nil {
			return nil, err
		}
	}

	file, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("manifest: open %q: %w", path, err)
	}

	m := &Manifest{
		file:    file,
		w:       csv.NewWriter(file),
		handled: handled,
		pending: make(map[string]*entry),
	}
	if !exists {
		if err := m.writeRow(header); err != nil {
			file.Close()
			return nil, err
		}
	}
	return m, nil
}

// loadHandled reads prior rows into the handled set. The last row for a
// source wins, so an item recorded as error and later as OK counts as done.
func loadHandled(path string, fsys fs.Filesystem, handled map[string]bool) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("manifest: read %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("manifest: parse %q: %w", path, err)
		}
		if len(row) < len(header) || row[0] == header[0] {
			continue
		}
		result := row[8]
		handled[row[0]] = result == ResultOK || result == ResultSkip
	}
	return nil
}

// WasHandled reports whether a prior run (or this one) already recorded a
// successful or skipped outcome for the given source URL.
func (m *Manifest) WasHandled(src string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handled[src]
}

// Initialize registers an item before its transfer is attempted, recording
// the destination, source size and start timestamp for the eventual row.
func (m *Manifest) Initialize(src, dst string, sourceSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[src] = &entry{
		destination: dst,
		start:       time.Now().UTC(),
		sourceSize:  sourceSize,
	}
}

// SetChecksum records the content checksum for an initialized item.
func (m *Manifest) SetChecksum(src, md5 string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pending[src]; ok {
		e.md5 = md5
	}
}

// SetSessionID records the resumable-session (multipart upload) identifier
// for an initialized item.
func (m *Manifest) SetSessionID(src, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.pending[src]; ok {
		e.uploadID = id
	}
}

// SetResult finalizes an item: the row is appended and flushed so a crash
// later in the run cannot lose it. At most one row is written per source
// URL per run.
func (m *Manifest) SetResult(src string, bytesTransferred int64, result, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.pending[src]
	if !ok {
		e = &entry{start: time.Now().UTC()}
	}
	delete(m.pending, src)

	row := []string{
		src,
		e.destination,
		e.start.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
		e.md5,
		e.uploadID,
		strconv.FormatInt(e.sourceSize, 10),
		strconv.FormatInt(bytesTransferred, 10),
		result,
		description,
	}
	if err := m.writeRow(row); err != nil {
		return err
	}
	if result == ResultOK || result == ResultSkip {
		m.handled[src] = true
	}
	return nil
}

func (m *Manifest) writeRow(row []string) error {
	if err := m.w.Write(row); err != nil {
		return fmt.Errorf("manifest: write row: %w", err)
	}
	m.w.Flush()
	if err := m.w.Error(); err != nil {
		return fmt.Errorf("manifest: flush: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.w.Flush()
	if err := m.w.Error(); err != nil {
		m.file.Close()
		return fmt.Errorf("manifest: flush on close: %w", err)
	}
	return m.file.Close()
}
