package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// Ext is the file extension of series files.
const Ext = ".csv"

// tailChunk is the block size used when scanning a file backwards for its
// last line.
const tailChunk = 4096

// FileStore is the on-disk series store rooted at one directory.
type FileStore struct {
	dir    string
	logger *slog.Logger

	mu   sync.Mutex
	last map[model.Instrument]model.Row // watermark cache
}

// NewFileStore creates a store rooted at dir, creating the directory if needed.
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger.With("component", "store"),
		last:   make(map[model.Instrument]model.Row),
	}, nil
}

// Dir returns the root directory.
func (s *FileStore) Dir() string { return s.dir }

// Path returns the series file of inst.
func (s *FileStore) Path(inst model.Instrument) string {
	return filepath.Join(s.dir, inst.String()+Ext)
}

// Exists reports whether inst has a series file.
func (s *FileStore) Exists(inst model.Instrument) (bool, error) {
	_, err := os.Stat(s.Path(inst))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat series %s: %w", inst, err)
}

// Last returns the final stored row of inst. ok is false when there is no
// file or the file holds only the header.
func (s *FileStore) Last(inst model.Instrument) (model.Row, bool, error) {
	s.mu.Lock()
	row, cached := s.last[inst]
	s.mu.Unlock()
	if cached {
		return row, true, nil
	}

	row, ok, err := s.tail(inst)
	if err != nil || !ok {
		return model.Row{}, false, err
	}

	s.mu.Lock()
	s.last[inst] = row
	s.mu.Unlock()
	return row, true, nil
}

// Watermark returns the maximum stored epoch of inst. Sentinel rows count.
func (s *FileStore) Watermark(inst model.Instrument) (int64, bool, error) {
	row, ok, err := s.Last(inst)
	if err != nil || !ok {
		return 0, false, err
	}
	return row.Epoch, true, nil
}

// Append writes rows to the end of inst's series. Rows must be strictly
// increasing and lie after the current watermark. With firstWrite the header
// line is written first. The batch goes out in a single write followed by
// fsync; I/O failures are returned as *WriteError and the file is truncated
// back to its last complete line.
func (s *FileStore) Append(inst model.Instrument, rows []model.Row, firstWrite bool) error {
	if len(rows) == 0 {
		return nil
	}

	wm, hasWM, err := s.Watermark(inst)
	if err != nil {
		return err
	}
	for i, r := range rows {
		if (i > 0 && r.Epoch <= rows[i-1].Epoch) || (i == 0 && hasWM && r.Epoch <= wm) {
			return fmt.Errorf("append %s: %w: epoch %d at position %d", inst, ErrOutOfOrder, r.Epoch, i)
		}
	}

	path := s.Path(inst)
	f, end, err := openAppend(path)
	if err != nil {
		s.Invalidate(inst)
		return &WriteError{Instrument: inst.String(), Path: path, Err: err}
	}

	// An empty file, or one whose only content was a torn header, needs the
	// header again.
	header := firstWrite || end == 0
	data, err := encodeRows(rows, header)
	if err != nil {
		f.Close()
		return fmt.Errorf("encode rows %s: %w", inst, err)
	}

	if err := writeSynced(f, end, data); err != nil {
		s.Invalidate(inst)
		return &WriteError{Instrument: inst.String(), Path: path, Err: err}
	}

	s.mu.Lock()
	s.last[inst] = rows[len(rows)-1]
	s.mu.Unlock()

	s.logger.Debug("appended rows",
		"instrument", inst.String(),
		"rows", len(rows),
		"first_epoch", rows[0].Epoch,
		"last_epoch", rows[len(rows)-1].Epoch,
		"header", header,
	)
	return nil
}

// openAppend opens path for appending and returns the offset just past its
// last complete line. A trailing fragment without a newline, left by an
// interrupted write, is cut off.
func openAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	end, err := completeEnd(f, info.Size())
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	if end < info.Size() {
		if err := f.Truncate(end); err != nil {
			f.Close()
			return nil, 0, fmt.Errorf("truncate torn line: %w", err)
		}
	}
	return f, end, nil
}

// writeSynced writes data at the end of f and fsyncs. On failure the file is
// truncated back to end so no partial batch remains.
func writeSynced(f *os.File, end int64, data []byte) error {
	_, err := f.Write(data)
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		if terr := f.Truncate(end); terr != nil {
			err = errors.Join(err, fmt.Errorf("truncate after failed write: %w", terr))
		}
		f.Close()
		return err
	}
	return f.Close()
}

// ReadAll returns inst's full series.
func (s *FileStore) ReadAll(inst model.Instrument) (model.Series, error) {
	series := model.Series{Instrument: inst}

	f, err := os.Open(s.Path(inst))
	if errors.Is(err, fs.ErrNotExist) {
		return series, fmt.Errorf("read series %s: %w", inst, ErrNotFound)
	}
	if err != nil {
		return series, fmt.Errorf("read series %s: %w", inst, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return series, fmt.Errorf("read series %s: %w", inst, err)
	}
	end, err := completeEnd(f, info.Size())
	if err != nil {
		return series, fmt.Errorf("read series %s: %w", inst, err)
	}
	if end < info.Size() {
		s.logger.Warn("ignoring torn trailing line", "instrument", inst.String(), "bytes", info.Size()-end)
	}

	r := csv.NewReader(io.NewSectionReader(f, 0, end))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	for line := 1; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return series, fmt.Errorf("read series %s line %d: %w: %v", inst, line, ErrCorrupt, err)
		}
		if isHeader(record) {
			continue
		}
		row, err := decodeRow(record)
		if err != nil {
			return series, fmt.Errorf("read series %s line %d: %w", inst, line, err)
		}
		series.Rows = append(series.Rows, row)
	}

	if last, ok := series.Last(); ok {
		s.mu.Lock()
		s.last[inst] = last
		s.mu.Unlock()
	}
	return series, nil
}

// List returns the instruments that have a series file, in name order.
// Files whose names are not instrument ids are ignored.
func (s *FileStore) List() ([]model.Instrument, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	var out []model.Instrument
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, Ext) {
			continue
		}
		inst, err := model.ParseInstrument(strings.TrimSuffix(name, Ext))
		if err != nil {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// Invalidate drops the cached watermark of inst.
func (s *FileStore) Invalidate(inst model.Instrument) {
	s.mu.Lock()
	delete(s.last, inst)
	s.mu.Unlock()
}

// tail reads the last data row of inst's file by scanning backwards.
func (s *FileStore) tail(inst model.Instrument) (model.Row, bool, error) {
	f, err := os.Open(s.Path(inst))
	if errors.Is(err, fs.ErrNotExist) {
		return model.Row{}, false, nil
	}
	if err != nil {
		return model.Row{}, false, fmt.Errorf("open series %s: %w", inst, err)
	}
	defer f.Close()

	line, err := lastLine(f)
	if err != nil {
		return model.Row{}, false, fmt.Errorf("tail series %s: %w", inst, err)
	}
	if len(line) == 0 {
		return model.Row{}, false, nil
	}

	record, err := decodeLine(line)
	if err != nil {
		return model.Row{}, false, fmt.Errorf("tail series %s: %w", inst, err)
	}
	if isHeader(record) {
		return model.Row{}, false, nil
	}
	row, err := decodeRow(record)
	if err != nil {
		return model.Row{}, false, fmt.Errorf("tail series %s: %w", inst, err)
	}
	return row, true, nil
}

// completeEnd returns the offset just past the last newline of the first
// size bytes of f, or 0 when there is none.
func completeEnd(f *os.File, size int64) (int64, error) {
	buf := make([]byte, tailChunk)
	for off := size; off > 0; {
		n := min(int64(tailChunk), off)
		off -= n
		if _, err := f.ReadAt(buf[:n], off); err != nil && err != io.EOF {
			return 0, err
		}
		if i := bytes.LastIndexByte(buf[:n], '\n'); i >= 0 {
			return off + int64(i) + 1, nil
		}
	}
	return 0, nil
}

// lastLine returns the final non-empty complete line of f without reading
// the whole file. A trailing fragment without a newline is ignored.
func lastLine(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	end, err := completeEnd(f, info.Size())
	if err != nil {
		return nil, err
	}

	var buf []byte
	for off := end; off > 0; {
		n := min(int64(tailChunk), off)
		off -= n

		chunk := make([]byte, n, n+int64(len(buf)))
		if _, err := f.ReadAt(chunk, off); err != nil && err != io.EOF {
			return nil, err
		}
		buf = append(chunk, buf...)

		trimmed := bytes.TrimRight(buf, "\r\n")
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return trimmed[i+1:], nil
		}
		if off == 0 {
			return trimmed, nil
		}
	}
	return nil, nil
}
