package vm

import "strings"

// Protection is the access a mapping grants, independent of the page table format
type Protection uint32

const (
	ProtRead Protection = 1 << iota
	ProtWrite
	ProtExec
)

// PTEFlags are the low bits of an Sv39 page table entry
type PTEFlags uint64

const (
	PTEValid PTEFlags = 1 << iota
	PTERead
	PTEWrite
	PTEExec
	PTEUser
	PTEGlobal
	PTEAccessed
	PTEDirty
)

var pteFlagNames = []struct {
	flag PTEFlags
	name string
}{
	{PTEValid, "V"},
	{PTERead, "R"},
	{PTEWrite, "W"},
	{PTEExec, "X"},
	{PTEUser, "U"},
	{PTEGlobal, "G"},
	{PTEAccessed, "A"},
	{PTEDirty, "D"},
}

func (f PTEFlags) String() string {
	var sb strings.Builder
	for _, entry := range pteFlagNames {
		if f&entry.flag != 0 {
			sb.WriteString(entry.name)
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// PTEFlags converts a protection into page table entry permission bits. A mapping with no
// protection at all is made readable, and user mappings carry the U bit.
func (p Protection) PTEFlags(user bool) PTEFlags {
	var perm PTEFlags

	if p&ProtRead != 0 {
		perm |= PTERead | PTEAccessed
	}
	if p&ProtWrite != 0 {
		perm |= PTEWrite | PTEDirty
	}
	if p&ProtExec != 0 {
		perm |= PTEExec | PTEAccessed
	}
	if perm == 0 {
		perm = PTERead
	}
	if user {
		perm |= PTEUser
	}

	return perm
}
