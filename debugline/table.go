package debugline

import (
	"github.com/cockroachdb/errors"
)

// ErrNoLineRecord is returned from Lookup when no line record carries the requested address
var ErrNoLineRecord = errors.New("no line record for address")

// LineRecord ties one instruction address to a line of source
type LineRecord struct {
	Address uint64
	Line    int
	// File is an index into Table.Files
	File int
}

// FileEntry names a source file relative to one of the table's directories
type FileEntry struct {
	// Dir is an index into Table.Dirs
	Dir  int
	Name string
}

// Table is the line-number information of one program, in the shape produced by the DWARF line
// program: a directory table, a file table that refers to it, and address/line records that refer
// to the file table.
type Table struct {
	Lines []LineRecord
	Files []FileEntry
	Dirs  []string
}

// Lookup returns the record whose address is exactly pc. Records are scanned in order and the
// first match wins; a pc in the middle of a record's range does not match.
func (t *Table) Lookup(pc uint64) (LineRecord, error) {
	for _, record := range t.Lines {
		if record.Address == pc {
			return record, nil
		}
	}

	return LineRecord{}, errors.Wrapf(ErrNoLineRecord, "pc %#x", pc)
}

// FilePath builds the path of the file a record belongs to, joining its directory and file name
// with a single slash
func (t *Table) FilePath(record LineRecord) (string, error) {
	if record.File < 0 || record.File >= len(t.Files) {
		return "", errors.Newf("line record for %#x refers to file %d, but the table has %d files", record.Address, record.File, len(t.Files))
	}

	file := t.Files[record.File]
	if file.Dir < 0 || file.Dir >= len(t.Dirs) {
		return "", errors.Newf("file %q refers to directory %d, but the table has %d directories", file.Name, file.Dir, len(t.Dirs))
	}

	return t.Dirs[file.Dir] + "/" + file.Name, nil
}
