package decoder

import "fmt"

// ErrUnsupportedVersion is returned when the SNMP version field names a
// value this decoder has no grammar for (anything other than 0, 1, or 3).
var ErrUnsupportedVersion = fmt.Errorf("decoder: unsupported version")

// ErrVersionMismatch is returned when a PDU kind appears under a version
// that does not permit it, e.g. a GetBulk-PDU under SNMPv1.
var ErrVersionMismatch = fmt.Errorf("decoder: version mismatch")
