package heap

import "strconv"

func hex(address uint64) string {
	return "0x" + strconv.FormatUint(address, 16)
}
