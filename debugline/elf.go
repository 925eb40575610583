package debugline

import (
	"debug/dwarf"
	"debug/elf"
	"io"
	"path"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

type tableBuilder struct {
	table Table
	dirs  *swiss.Map[string, int]
	files *swiss.Map[string, int]
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{
		dirs:  swiss.NewMap[string, int](16),
		files: swiss.NewMap[string, int](64),
	}
}

func (b *tableBuilder) fileIndex(fullPath string) int {
	index, ok := b.files.Get(fullPath)
	if ok {
		return index
	}

	dir, name := path.Split(fullPath)
	dir = path.Clean(dir)

	dirIndex, ok := b.dirs.Get(dir)
	if !ok {
		dirIndex = len(b.table.Dirs)
		b.table.Dirs = append(b.table.Dirs, dir)
		b.dirs.Put(dir, dirIndex)
	}

	index = len(b.table.Files)
	b.table.Files = append(b.table.Files, FileEntry{Dir: dirIndex, Name: name})
	b.files.Put(fullPath, index)

	return index
}

func (b *tableBuilder) addUnit(data *dwarf.Data, unit *dwarf.Entry) error {
	lineReader, err := data.LineReader(unit)
	if err != nil {
		return errors.Wrap(err, "could not read line program")
	}
	if lineReader == nil {
		return nil
	}

	var entry dwarf.LineEntry
	for {
		err = lineReader.Next(&entry)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "could not read line program row")
		}

		if entry.EndSequence || entry.File == nil {
			continue
		}

		b.table.Lines = append(b.table.Lines, LineRecord{
			Address: entry.Address,
			Line:    entry.Line,
			File:    b.fileIndex(entry.File.Name),
		})
	}
}

// LoadELF builds a Table from the DWARF line programs of every compilation unit in file
func LoadELF(file *elf.File) (*Table, error) {
	data, err := file.DWARF()
	if err != nil {
		return nil, errors.Wrap(err, "could not load DWARF data")
	}

	builder := newTableBuilder()
	reader := data.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, errors.Wrap(err, "could not read debug info")
		}
		if entry == nil {
			break
		}

		if entry.Tag == dwarf.TagCompileUnit {
			err = builder.addUnit(data, entry)
			if err != nil {
				return nil, errors.Wrapf(err, "compile unit at offset %#x", entry.Offset)
			}
		}

		reader.SkipChildren()
	}

	return &builder.table, nil
}
