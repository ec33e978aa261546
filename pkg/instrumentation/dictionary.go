package instrumentation

// Dictionary is the structured report an instrumentation runtime attaches
// to a stop. Values are uint64, int64, bool, string, []uint64 for traces,
// []Dictionary or nested Dictionary values.
type Dictionary map[string]interface{}

// Uint returns the integer at key, 0 if it is missing.
func (d Dictionary) Uint(key string) uint64 {
	switch v := d[key].(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case int:
		return uint64(v)
	}
	return 0
}

// String returns the string at key, "" if it is missing.
func (d Dictionary) String(key string) string {
	s, _ := d[key].(string)
	return s
}

func (d Dictionary) Bool(key string) bool {
	b, _ := d[key].(bool)
	return b
}

// Array returns the array of dictionaries at key.
func (d Dictionary) Array(key string) []Dictionary {
	a, _ := d[key].([]Dictionary)
	return a
}

// Trace returns the program counters at key.
func (d Dictionary) Trace(key string) []uint64 {
	t, _ := d[key].([]uint64)
	return t
}

// Has returns true if key is set.
func (d Dictionary) Has(key string) bool {
	_, ok := d[key]
	return ok
}
