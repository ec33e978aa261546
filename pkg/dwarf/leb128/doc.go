// Package leb128 reads and writes the variable length integers used by
// every DWARF section, see section 7.6 of the DWARF 5 standard.
package leb128
