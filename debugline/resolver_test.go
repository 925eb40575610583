package debugline_test

import (
	"testing"
	"testing/fstest"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/pke/debugline"
)

const appSource = `#include "user_lib.h"

int main(void) {
  printu("Going to hack the system by running privilege instructions.\n");
  asm volatile("csrw sscratch, 0");
  exit(0);
}
`

func sampleTable() *debugline.Table {
	return &debugline.Table{
		Dirs: []string{"user", "/abs/include"},
		Files: []debugline.FileEntry{
			{Dir: 0, Name: "app_errorline.c"},
			{Dir: 1, Name: "user_lib.h"},
			{Dir: 5, Name: "broken.c"},
		},
		Lines: []debugline.LineRecord{
			{Address: 0x81000000, Line: 3, File: 0},
			{Address: 0x81000008, Line: 4, File: 0},
			{Address: 0x81000010, Line: 5, File: 0},
			{Address: 0x81000010, Line: 6, File: 0},
			{Address: 0x81000018, Line: 1, File: 1},
			{Address: 0x81000020, Line: 1, File: 2},
			{Address: 0x81000028, Line: 1, File: 7},
			{Address: 0x81000030, Line: 40, File: 0},
		},
	}
}

func sampleSources() fstest.MapFS {
	return fstest.MapFS{
		"user/app_errorline.c": &fstest.MapFile{Data: []byte(appSource)},
	}
}

func TestLookupExactMatch(t *testing.T) {
	table := sampleTable()

	record, err := table.Lookup(0x81000008)
	require.NoError(t, err)
	require.Equal(t, 4, record.Line)

	// Duplicate addresses resolve to the first record
	record, err = table.Lookup(0x81000010)
	require.NoError(t, err)
	require.Equal(t, 5, record.Line)

	_, err = table.Lookup(0x81000004)
	require.True(t, errors.Is(err, debugline.ErrNoLineRecord))
}

func TestFilePath(t *testing.T) {
	table := sampleTable()

	path, err := table.FilePath(table.Lines[0])
	require.NoError(t, err)
	require.Equal(t, "user/app_errorline.c", path)

	path, err = table.FilePath(table.Lines[4])
	require.NoError(t, err)
	require.Equal(t, "/abs/include/user_lib.h", path)

	_, err = table.FilePath(table.Lines[5])
	require.Error(t, err)

	_, err = table.FilePath(table.Lines[6])
	require.Error(t, err)
}

func TestResolveAndReadSourceLine(t *testing.T) {
	resolver := debugline.NewResolver(sampleTable(), sampleSources())

	loc, err := resolver.Resolve(0x81000010)
	require.NoError(t, err)
	require.Equal(t, debugline.Location{Address: 0x81000010, Path: "user/app_errorline.c", Line: 5}, loc)

	line, err := resolver.SourceLine(loc)
	require.NoError(t, err)
	require.Equal(t, `  asm volatile("csrw sscratch, 0");`, line)

	loc, err = resolver.Resolve(0x81000000)
	require.NoError(t, err)
	line, err = resolver.SourceLine(loc)
	require.NoError(t, err)
	require.Equal(t, "int main(void) {", line)
}

func TestSourceLineFailures(t *testing.T) {
	resolver := debugline.NewResolver(sampleTable(), sampleSources())

	loc, err := resolver.Resolve(0x81000030)
	require.NoError(t, err)
	_, err = resolver.SourceLine(loc)
	require.True(t, errors.Is(err, debugline.ErrLineOutOfRange))

	// Absolute paths are looked up with the leading slash removed
	loc, err = resolver.Resolve(0x81000018)
	require.NoError(t, err)
	_, err = resolver.SourceLine(loc)
	require.True(t, errors.Is(err, debugline.ErrSourceUnavailable))

	_, err = resolver.SourceLine(debugline.Location{Path: "../etc/passwd", Line: 1})
	require.True(t, errors.Is(err, debugline.ErrSourceUnavailable))

	_, err = resolver.SourceLine(debugline.Location{Path: "user/app_errorline.c", Line: 0})
	require.True(t, errors.Is(err, debugline.ErrLineOutOfRange))

	// The last line has a terminator, so there is no eighth line
	_, err = resolver.SourceLine(debugline.Location{Path: "user/app_errorline.c", Line: 8})
	require.True(t, errors.Is(err, debugline.ErrLineOutOfRange))

	line, err := resolver.SourceLine(debugline.Location{Path: "/user/app_errorline.c", Line: 7})
	require.NoError(t, err)
	require.Equal(t, "}", line)
}

func TestSourceLineWithoutTrailingNewline(t *testing.T) {
	resolver := debugline.NewResolver(&debugline.Table{}, fstest.MapFS{
		"crlf.c": &fstest.MapFile{Data: []byte("first\r\nsecond")},
	})

	line, err := resolver.SourceLine(debugline.Location{Path: "crlf.c", Line: 1})
	require.NoError(t, err)
	require.Equal(t, "first", line)

	line, err = resolver.SourceLine(debugline.Location{Path: "crlf.c", Line: 2})
	require.NoError(t, err)
	require.Equal(t, "second", line)
}
