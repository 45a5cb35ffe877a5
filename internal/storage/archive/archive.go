// Package archive persists pipeline products as MessagePack snapshots on
// disk. Snapshots are the interchange format between processing runs and
// between sites: a shore-side pipeline can archive its reconciled
// instrument sets and gridded products, and a later run or another host
// can load them without a database.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oceanobs/moorproc/internal/types"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	// KindSet marks a snapshot of a reconciled instrument set
	KindSet = "set"
	// KindGridded marks a snapshot of a gridded mooring product
	KindGridded = "gridded"

	snapshotExt = ".msgpack"
)

// Entry describes one snapshot file in the archive
type Entry struct {
	Path    string
	Mooring string
	RunID   string
	Kind    string
	ModTime time.Time
}

// Archive holds a directory of MessagePack snapshots
type Archive struct {
	dir string
}

// New opens an archive rooted at dir, creating it if needed
func New(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{dir: dir}, nil
}

// Dir returns the archive root directory
func (a *Archive) Dir() string {
	return a.dir
}

// WriteSet archives a reconciled instrument set under the given run ID
// and returns the snapshot path
func (a *Archive) WriteSet(runID string, set *types.MooringInstrumentSet) (string, error) {
	return a.write(set.Name, runID, KindSet, set)
}

// WriteGridded archives a gridded mooring product under the given run ID
// and returns the snapshot path
func (a *Archive) WriteGridded(runID string, g *types.GriddedMooring) (string, error) {
	return a.write(g.Mooring, runID, KindGridded, g)
}

// ReadSet loads an instrument set snapshot
func (a *Archive) ReadSet(path string) (*types.MooringInstrumentSet, error) {
	var set types.MooringInstrumentSet
	if err := a.read(path, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// ReadGridded loads a gridded product snapshot
func (a *Archive) ReadGridded(path string) (*types.GriddedMooring, error) {
	var g types.GriddedMooring
	if err := a.read(path, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// LatestSet loads the most recently written instrument set snapshot for a
// mooring, returning the snapshot path alongside it
func (a *Archive) LatestSet(mooring string) (*types.MooringInstrumentSet, string, error) {
	entry, err := a.latest(mooring, KindSet)
	if err != nil {
		return nil, "", err
	}
	set, err := a.ReadSet(entry.Path)
	if err != nil {
		return nil, "", err
	}
	return set, entry.Path, nil
}

// LatestGridded loads the most recently written gridded snapshot for a
// mooring, returning the snapshot path alongside it
func (a *Archive) LatestGridded(mooring string) (*types.GriddedMooring, string, error) {
	entry, err := a.latest(mooring, KindGridded)
	if err != nil {
		return nil, "", err
	}
	g, err := a.ReadGridded(entry.Path)
	if err != nil {
		return nil, "", err
	}
	return g, entry.Path, nil
}

// List returns the snapshots stored for a mooring, newest first. An empty
// mooring lists the whole archive.
func (a *Archive) List(mooring string) ([]Entry, error) {
	dirents, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var entries []Entry
	for _, d := range dirents {
		if d.IsDir() {
			continue
		}
		entry, ok := parseSnapshotName(d.Name())
		if !ok {
			continue
		}
		if mooring != "" && entry.Mooring != mooring {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		entry.Path = filepath.Join(a.dir, d.Name())
		entry.ModTime = info.ModTime()
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

func (a *Archive) latest(mooring, kind string) (Entry, error) {
	entries, err := a.List(mooring)
	if err != nil {
		return Entry{}, err
	}
	for _, entry := range entries {
		if entry.Kind == kind {
			return entry, nil
		}
	}
	return Entry{}, fmt.Errorf("no %v snapshot archived for mooring %v", kind, mooring)
}

func (a *Archive) write(mooring, runID, kind string, v interface{}) (string, error) {
	if mooring == "" {
		return "", fmt.Errorf("cannot archive snapshot without a mooring name")
	}

	path := filepath.Join(a.dir, snapshotName(mooring, runID, kind))

	// Write to a temp file and rename so readers never see a partial snapshot
	tmp, err := os.CreateTemp(a.dir, "."+kind+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot file: %w", err)
	}

	enc := msgpack.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	return path, nil
}

func (a *Archive) read(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode snapshot %v: %w", filepath.Base(path), err)
	}
	return nil
}

func snapshotName(mooring, runID, kind string) string {
	return fmt.Sprintf("%v_%v_%v%v", sanitize(mooring), sanitize(runID), kind, snapshotExt)
}

func parseSnapshotName(name string) (Entry, bool) {
	if !strings.HasSuffix(name, snapshotExt) {
		return Entry{}, false
	}
	base := strings.TrimSuffix(name, snapshotExt)
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return Entry{}, false
	}
	kind := parts[len(parts)-1]
	if kind != KindSet && kind != KindGridded {
		return Entry{}, false
	}
	runID := parts[len(parts)-2]
	mooring := strings.Join(parts[:len(parts)-2], "_")
	if mooring == "" || runID == "" {
		return Entry{}, false
	}
	return Entry{Mooring: mooring, RunID: runID, Kind: kind}, true
}

// sanitize keeps snapshot names path-safe. Underscores survive because
// parseSnapshotName reassembles mooring names around them.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '.', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
