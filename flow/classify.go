// Package flow correlates decoded packets into flows: SNMP command
// exchanges (a request and its eventual response, matched by request ID and
// role-swapped endpoints) and notifications (traps, and informs, whose
// Response is matched back onto the inform's own flow). Each flow is
// written to its own file through a Sink, with an
// MRU-ordered cache bounding how many flow files stay open at once.
package flow

import "github.com/quyenlv/snmpdump/models"

// Classification names which correlation family a packet belongs to.
type Classification int

const (
	// None is returned for a packet with no decoded PDU at all, or one
	// whose PDU kind is Response or Report — these only ever correlate by
	// matching back onto a cached request, never by establishing a flow
	// of their own.
	None Classification = iota
	// Command is a request-style exchange: Get, GetNext, GetBulk, Set.
	Command
	// Notify is a standalone notification: an SNMPv1 Trap, an SNMPv2/v3
	// Trap2, or an Inform (which, unlike a Trap, does elicit a Response).
	Notify
)

// Classify determines which correlation family pkt's PDU belongs to.
func Classify(pkt *models.Packet) Classification {
	if pkt == nil || pkt.Message.PDU == nil {
		return None
	}
	switch pkt.Message.PDU.Kind {
	case models.PDUGet, models.PDUGetNext, models.PDUGetBulk, models.PDUSet:
		return Command
	case models.PDUTrap1, models.PDUTrap2, models.PDUInform:
		return Notify
	default: // Response, Report
		return None
	}
}
