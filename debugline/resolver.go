package debugline

import (
	"io/fs"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSourceUnavailable is returned from SourceLine when the source file cannot be read
	ErrSourceUnavailable = errors.New("source file could not be opened")
	// ErrLineOutOfRange is returned from SourceLine when the file has fewer lines than requested
	ErrLineOutOfRange = errors.New("line is past the end of the source file")
)

// Location is a resolved source position
type Location struct {
	Address uint64
	Path    string
	Line    int
}

// Resolver maps program counters to source positions and reads the source text they point at
type Resolver struct {
	table   *Table
	sources fs.FS
}

// NewResolver creates a Resolver. sources is searched for the paths recorded in table, with any
// leading slash removed.
func NewResolver(table *Table, sources fs.FS) *Resolver {
	return &Resolver{
		table:   table,
		sources: sources,
	}
}

func (r *Resolver) Table() *Table { return r.table }

// Resolve finds the source position of pc
func (r *Resolver) Resolve(pc uint64) (Location, error) {
	record, err := r.table.Lookup(pc)
	if err != nil {
		return Location{}, err
	}

	filePath, err := r.table.FilePath(record)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Address: pc,
		Path:    filePath,
		Line:    record.Line,
	}, nil
}

// SourceLine returns the text of the line at loc, without its line terminator. Lines are numbered
// from 1.
func (r *Resolver) SourceLine(loc Location) (string, error) {
	name := strings.TrimPrefix(path.Clean(loc.Path), "/")
	if !fs.ValidPath(name) {
		return "", errors.Wrapf(ErrSourceUnavailable, "%q is not a valid source path", loc.Path)
	}

	data, err := fs.ReadFile(r.sources, name)
	if err != nil {
		return "", errors.Wrapf(ErrSourceUnavailable, "%s: %v", loc.Path, err)
	}

	if loc.Line < 1 {
		return "", errors.Wrapf(ErrLineOutOfRange, "%s:%d", loc.Path, loc.Line)
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	if loc.Line > len(lines) {
		return "", errors.Wrapf(ErrLineOutOfRange, "%s:%d, but the file has %d lines", loc.Path, loc.Line, len(lines))
	}

	line := strings.TrimSuffix(lines[loc.Line-1], "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
