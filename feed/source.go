// Package feed supplies the simulator's market data: per-instrument tick
// sources merged into one time-ordered flow on a virtual clock.
package feed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/rustyeddy/tradecore/market"
)

// Source is a lazy, restartable sequence of ticks in non-decreasing time
// order for one instrument.
type Source interface {
	// Next returns the next tick, or ok=false when the source is drained.
	Next() (p market.Point, ok bool, err error)
	// Reset rewinds the source to its beginning.
	Reset() error
	Close() error
}

// FileSource reads the canonical tick text format, one tick per line:
//
//	<unixSeconds> <bid> <bidSize> <ask> <askSize>
//
// Files ending in .xz are decompressed transparently. Lines that fail to
// parse are skipped; OnSkip, when set, sees each skipped line.
type FileSource struct {
	Instrument string
	Path       string

	// OnSkip is called for every malformed line that was dropped.
	OnSkip func(line string, err error)

	f  *os.File
	sc *bufio.Scanner
}

// NewFileSource builds a source for one tick file. The instrument name is
// the base file name with compression and data extensions stripped.
func NewFileSource(path string) *FileSource {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".xz")
	name = strings.TrimSuffix(name, ".ticks")
	return &FileSource{Instrument: name, Path: path}
}

func (s *FileSource) open() error {
	f, err := os.Open(s.Path)
	if err != nil {
		return fmt.Errorf("open tick file: %w", err)
	}

	var r io.Reader = f
	if strings.HasSuffix(s.Path, ".xz") {
		xr, err := xz.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("open xz tick file: %w", err)
		}
		r = xr
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s.f = f
	s.sc = sc
	return nil
}

func (s *FileSource) Next() (market.Point, bool, error) {
	if s.sc == nil {
		if err := s.open(); err != nil {
			return market.Point{}, false, err
		}
	}

	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" {
			continue
		}
		p, err := market.ParsePoint(s.Instrument, line)
		if err != nil {
			if s.OnSkip != nil {
				s.OnSkip(line, err)
			}
			continue
		}
		return p, true, nil
	}
	if err := s.sc.Err(); err != nil {
		return market.Point{}, false, err
	}
	return market.Point{}, false, nil
}

func (s *FileSource) Reset() error {
	if err := s.Close(); err != nil {
		return err
	}
	return s.open()
}

func (s *FileSource) Close() error {
	s.sc = nil
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Dir builds one FileSource per tick file under dir, keyed by instrument
// name. Every entry that is not a directory is treated as a tick file; the
// instrument name is the file name with the .xz and .ticks suffixes
// stripped, as in NewFileSource.
func Dir(dir string) (map[string]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read tick dir: %w", err)
	}

	sources := make(map[string]Source)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := NewFileSource(filepath.Join(dir, e.Name()))
		sources[src.Instrument] = src
	}
	return sources, nil
}

// SliceSource replays an in-memory tick slice. Tests use it in place of
// files.
type SliceSource struct {
	Points []market.Point
	next   int
}

func (s *SliceSource) Next() (market.Point, bool, error) {
	if s.next >= len(s.Points) {
		return market.Point{}, false, nil
	}
	p := s.Points[s.next]
	s.next++
	return p, true, nil
}

func (s *SliceSource) Reset() error {
	s.next = 0
	return nil
}

func (s *SliceSource) Close() error { return nil }
