package syscalls

import "fmt"

// ID is a syscall number, passed in a0. The values are shared with the user runtime and must not
// change.
type ID uint64

const (
	SysUserBase      ID = 64
	SysUserPrint     ID = SysUserBase
	SysUserExit      ID = SysUserBase + 1
	SysUserBacktrace ID = SysUserBase + 2
)

var idMapping = map[ID]string{
	SysUserPrint:     "SysUserPrint",
	SysUserExit:      "SysUserExit",
	SysUserBacktrace: "SysUserBacktrace",
}

func (id ID) String() string {
	name, ok := idMapping[id]
	if !ok {
		return fmt.Sprintf("ID(%d)", uint64(id))
	}
	return name
}
