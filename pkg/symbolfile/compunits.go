package symbolfile

import "fmt"

// CompUnits holds the compile units of a symbol file. It is sized once to
// the number of units of the backend and filled on demand.
type CompUnits struct {
	units []*CompileUnit
	sized bool
}

// Resize sets the number of slots, it has effect only on the first call.
func (c *CompUnits) Resize(n int) {
	if c.sized {
		return
	}
	c.units = make([]*CompileUnit, n)
	c.sized = true
}

func (c *CompUnits) Len() int { return len(c.units) }

// Get returns the unit at idx, nil if it has not been parsed yet.
func (c *CompUnits) Get(idx int) *CompileUnit {
	if idx < 0 || idx >= len(c.units) {
		return nil
	}
	return c.units[idx]
}

// Set stores cu at idx. Overwriting a unit is an error: it means the same
// unit was parsed twice.
func (c *CompUnits) Set(idx int, cu *CompileUnit) error {
	if idx < 0 || idx >= len(c.units) {
		return fmt.Errorf("compile unit index %d out of range", idx)
	}
	if c.units[idx] != nil {
		return fmt.Errorf("compile unit %d already set", idx)
	}
	c.units[idx] = cu
	return nil
}
