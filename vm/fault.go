package vm

import "fmt"

type AccessKind uint32

const (
	AccessLoad AccessKind = iota
	AccessStore
)

var accessKindMapping = map[AccessKind]string{
	AccessLoad:  "load",
	AccessStore: "store",
}

func (k AccessKind) String() string {
	return accessKindMapping[k]
}

// AccessFault is returned when a user address is not mapped or its mapping does not allow the access
type AccessFault struct {
	Kind    AccessKind
	Address uint64
	Flags   PTEFlags
}

func (f *AccessFault) Error() string {
	if f.Flags&PTEValid == 0 {
		return fmt.Sprintf("%s access fault at unmapped address %#x", f.Kind, f.Address)
	}
	return fmt.Sprintf("%s access fault at %#x (pte %s)", f.Kind, f.Address, f.Flags)
}
