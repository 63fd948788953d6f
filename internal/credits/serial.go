package credits

import "fmt"

// Serial number prefix for carbon registry units
const serialPrefix = "CRU"

// FormatSerialNumber builds the globally unique serial of a credit
// entry: prefix, vintage year, registry project sequence, and the
// per-project-per-vintage credit sequence. Example: CRU-2026-0042-003.
//
// Uniqueness is enforced by the serial_number unique index; the
// sequence itself comes from the store, not from a hash fallback.
func FormatSerialNumber(vintage, projectSequence, creditSequence int) string {
	return fmt.Sprintf("%s-%d-%04d-%03d", serialPrefix, vintage, projectSequence, creditSequence)
}
