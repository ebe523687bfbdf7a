// Package oid converts between an object identifier's dotted decimal text
// form and its decoded []uint32 sub-identifier form. Parsing follows the
// semantics of the C-language snmpdump this project's textual format is
// compatible with: a leading optional dot is ignored, at most 128
// sub-identifiers are accepted, the first sub-identifier must be in [0,2],
// and the value is considered present only if the entire string was
// consumed by the parse.
package oid

import (
	"strconv"
	"strings"

	"github.com/quyenlv/snmpdump/models"
)

// Format renders sub-identifiers in dot-separated decimal form.
func Format(ids []uint32) string {
	return models.FormatOID(ids)
}

// Parse decodes a dotted decimal object identifier string, e.g.
// "1.3.6.1.2.1.1.3.0" or ".1.3.6.1.2.1.1.3.0". The bool result is false
// (matching the textual reader's "clear value_present, keep any declared
// lengths" rule for malformed numeric text) when the string does not fully
// parse as a well-formed OID: a non-numeric component, a first component
// outside [0,2], or more than 128 components.
func Parse(s string) ([]uint32, bool) {
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	if len(parts) > 128 {
		return nil, false
	}
	out := make([]uint32, 0, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, false
		}
		if i == 0 && v > 2 {
			return nil, false
		}
		out = append(out, uint32(v))
	}
	return out, true
}
