package symtab

import (
	"debug/elf"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

const noSymbol = -1

// Symbol is a function in the user program image
type Symbol struct {
	Name  string
	Start uint64
	Size  uint64
}

func (s Symbol) contains(address uint64) bool {
	if s.Size == 0 {
		return address == s.Start
	}
	return address >= s.Start && address-s.Start < s.Size
}

// Table resolves code addresses to the function containing them
type Table struct {
	symbols []Symbol

	cacheLock sync.Mutex
	cache     *swiss.Map[uint64, int]
}

func NewTable(symbols []Symbol) *Table {
	sorted := make([]Symbol, len(symbols))
	copy(sorted, symbols)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	return &Table{
		symbols: sorted,
		cache:   swiss.NewMap[uint64, int](uint32(len(sorted))),
	}
}

func (t *Table) Len() int { return len(t.symbols) }

func (t *Table) find(address uint64) int {
	// Symbols from end onward start past address
	end := sort.Search(len(t.symbols), func(i int) bool {
		return t.symbols[i].Start > address
	})
	if end == 0 {
		return noSymbol
	}

	start := t.symbols[end-1].Start
	for index := end - 1; index >= 0 && t.symbols[index].Start == start; index-- {
		if t.symbols[index].contains(address) {
			return index
		}
	}

	return noSymbol
}

// Lookup returns the name of the function whose range contains address
func (t *Table) Lookup(address uint64) (string, bool) {
	t.cacheLock.Lock()
	defer t.cacheLock.Unlock()

	index, ok := t.cache.Get(address)
	if !ok {
		index = t.find(address)
		t.cache.Put(address, index)
	}

	if index == noSymbol {
		return "", false
	}
	return t.symbols[index].Name, true
}

// LoadELF builds a Table from the function symbols of file
func LoadELF(file *elf.File) (*Table, error) {
	elfSymbols, err := file.Symbols()
	if err != nil {
		return nil, errors.Wrap(err, "could not read symbol table")
	}

	var symbols []Symbol
	for _, symbol := range elfSymbols {
		if elf.ST_TYPE(symbol.Info) != elf.STT_FUNC || symbol.Name == "" {
			continue
		}

		symbols = append(symbols, Symbol{
			Name:  symbol.Name,
			Start: symbol.Value,
			Size:  symbol.Size,
		})
	}

	return NewTable(symbols), nil
}
