// Package models defines the core data structures shared across all layers of
// snmpdump. These types represent the canonical in-memory form of a decoded
// SNMP packet; every other package depends on this package and nothing here
// depends on any other internal package.
package models

import "fmt"

// Leaf carries a decoded value together with the three independent presence
// flags every node in a decoded packet may carry: whether the value itself is
// present, whether the on-wire byte length (tag+length+content) is known, and
// whether the content length is known. A node may have length metadata with
// no value at all — a "known-present placeholder" left behind by filtering.
type Leaf[T any] struct {
	Value        T
	ValuePresent bool
	Blen         uint32
	BlenPresent  bool
	Vlen         uint32
	VlenPresent  bool
}

// Set marks the leaf present and records both the value and its lengths.
func (l *Leaf[T]) Set(v T, blen, vlen uint32) {
	l.Value = v
	l.ValuePresent = true
	l.Blen, l.BlenPresent = blen, true
	l.Vlen, l.VlenPresent = vlen, true
}

// ClearValue drops the value while leaving any recorded length metadata in
// place, matching the textual reader's behaviour on a numeric parse failure
// and the filter's clear mode.
func (l *Leaf[T]) ClearValue() {
	var zero T
	l.Value = zero
	l.ValuePresent = false
}

// ─────────────────────────────────────────────────────────────────────────────
// Endpoint
// ─────────────────────────────────────────────────────────────────────────────

// Endpoint is one side of a packet's UDP conversation. At most one of V4/V6
// is ever present; Port is independent of address family.
type Endpoint struct {
	V4   Leaf[[4]byte]
	V6   Leaf[[16]byte]
	Port Leaf[uint16]
}

// String renders whichever address family is present, or "" if neither is.
// It never includes the port — flow names are built from address only.
func (e Endpoint) String() string {
	switch {
	case e.V4.ValuePresent:
		a := e.V4.Value
		return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
	case e.V6.ValuePresent:
		return formatIPv6(e.V6.Value)
	default:
		return ""
	}
}

// Equal reports whether two endpoints carry the same present address family
// and value. Port is not compared — flow and cache correlation key on address
// alone.
func (e Endpoint) Equal(o Endpoint) bool {
	if e.V4.ValuePresent != o.V4.ValuePresent || e.V6.ValuePresent != o.V6.ValuePresent {
		return false
	}
	if e.V4.ValuePresent && e.V4.Value != o.V4.Value {
		return false
	}
	if e.V6.ValuePresent && e.V6.Value != o.V6.Value {
		return false
	}
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Value kinds (the VarBind tagged variant)
// ─────────────────────────────────────────────────────────────────────────────

// ValueKind identifies which alternative of the VarBind value variant a
// VarBindValue holds.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueInt32
	ValueUint32
	ValueUint64
	ValueIPAddr
	ValueOctets
	ValueOid
	ValueNoSuchObject
	ValueNoSuchInstance
	ValueEndOfMibView
)

// VarBindValue is the tagged value carried by a VarBind. Exactly one of the
// typed fields is meaningful, selected by Kind; the rest are zero. Presence
// metadata describes the value as a whole, including exception markers
// (NoSuchObject etc.), which carry length metadata but no payload.
type VarBindValue struct {
	Kind ValueKind

	Int32   int32
	Uint32  uint32
	Uint64  uint64
	IPAddr  [4]byte
	Octets  []byte
	Oid     []uint32

	ValuePresent bool
	Blen         uint32
	BlenPresent  bool
	Vlen         uint32
	VlenPresent  bool
}

// String renders the canonical textual form of the value per its kind.
// Exception markers and Null render as "".
func (v VarBindValue) String() string {
	switch v.Kind {
	case ValueInt32:
		return fmt.Sprintf("%d", v.Int32)
	case ValueUint32:
		return fmt.Sprintf("%d", v.Uint32)
	case ValueUint64:
		return fmt.Sprintf("%d", v.Uint64)
	case ValueIPAddr:
		a := v.IPAddr
		return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
	case ValueOctets:
		return octetsHex(v.Octets)
	case ValueOid:
		return FormatOID(v.Oid)
	default:
		return ""
	}
}

func octetsHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// FormatOID renders an object identifier in dot-separated decimal form, e.g.
// "1.3.6.1.2.1.1.3.0".
func FormatOID(oid []uint32) string {
	if len(oid) == 0 {
		return ""
	}
	out := make([]byte, 0, len(oid)*4)
	for i, sub := range oid {
		if i > 0 {
			out = append(out, '.')
		}
		out = appendUint(out, uint64(sub))
	}
	return string(out)
}

func appendUint(b []byte, v uint64) []byte {
	if v == 0 {
		return append(b, '0')
	}
	start := len(b)
	for v > 0 {
		b = append(b, byte('0'+v%10))
		v /= 10
	}
	// reverse the digits just appended
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}

// ─────────────────────────────────────────────────────────────────────────────
// VarBind
// ─────────────────────────────────────────────────────────────────────────────

// VarBind is one name/value pair from a PDU's variable-bindings list.
type VarBind struct {
	Name  Leaf[[]uint32]
	Value VarBindValue
}

// ─────────────────────────────────────────────────────────────────────────────
// PDU
// ─────────────────────────────────────────────────────────────────────────────

// PDUKind identifies which SNMP operation a PDU carries.
type PDUKind int

const (
	PDUGet PDUKind = iota
	PDUGetNext
	PDUGetBulk
	PDUSet
	PDUResponse
	PDUTrap1
	PDUTrap2
	PDUInform
	PDUReport
)

// String names the PDU kind the way the textual serializer names its element.
func (k PDUKind) String() string {
	switch k {
	case PDUGet:
		return "get-request"
	case PDUGetNext:
		return "get-next-request"
	case PDUGetBulk:
		return "get-bulk-request"
	case PDUSet:
		return "set-request"
	case PDUResponse:
		return "response"
	case PDUTrap1:
		return "trap"
	case PDUTrap2:
		return "trap2"
	case PDUInform:
		return "inform"
	case PDUReport:
		return "report"
	default:
		return "unknown"
	}
}

// PDU is the tagged variant over every SNMP PDU shape. Trap1 alone uses
// Enterprise/AgentAddr/GenericTrap/SpecificTrap/TimeStamp in place of
// RequestID/ErrorStatus/ErrorIndex; GetBulk aliases ErrorStatus/ErrorIndex's
// wire positions as NonRepeaters/MaxRepetitions.
type PDU struct {
	Kind PDUKind

	RequestID   Leaf[int32]
	ErrorStatus Leaf[int32]
	ErrorIndex  Leaf[int32]

	NonRepeaters   Leaf[int32]
	MaxRepetitions Leaf[int32]

	Enterprise   Leaf[[]uint32]
	AgentAddr    Leaf[[4]byte]
	GenericTrap  Leaf[int32]
	SpecificTrap Leaf[int32]
	TimeStamp    Leaf[uint32]

	VarBinds []VarBind
}

// ─────────────────────────────────────────────────────────────────────────────
// SnmpMessage
// ─────────────────────────────────────────────────────────────────────────────

// USMParameters is the v3 user-based security model security header.
type USMParameters struct {
	AuthEngineID    Leaf[[]byte]
	AuthEngineBoots Leaf[int32]
	AuthEngineTime  Leaf[int32]
	User            Leaf[[]byte]
	AuthParams      Leaf[[]byte]
	PrivParams      Leaf[[]byte]
}

// V3Envelope carries the msgGlobalData and msgSecurityParameters fields that
// wrap a v3 scoped PDU, plus the scoped PDU's own context fields.
type V3Envelope struct {
	MsgID            Leaf[int32]
	MsgMaxSize       Leaf[int32]
	MsgFlags         Leaf[byte]
	MsgSecurityModel Leaf[int32]
	USM              USMParameters
	ContextEngineID  Leaf[[]byte]
	ContextName      Leaf[[]byte]
}

// SnmpMessage is the decoded SNMP message envelope: a version number, then
// either a community string (v1/v2c) or a v3 envelope, wrapping the PDU.
type SnmpMessage struct {
	Version   Leaf[int32]
	Community Leaf[[]byte]
	V3        *V3Envelope
	PDU       *PDU
}

// ─────────────────────────────────────────────────────────────────────────────
// Packet
// ─────────────────────────────────────────────────────────────────────────────

// Packet is the top-level decoded unit: a captured UDP datagram's timestamp,
// endpoints, and decoded SNMP message.
type Packet struct {
	TimeSec  Leaf[uint32]
	TimeUsec Leaf[uint32]
	Src      Endpoint
	Dst      Endpoint
	Message  SnmpMessage
}

// Clone returns a deep copy of p. The flow correlator's request cache keeps
// cloned packets so that later mutation of the live decode buffer (or of the
// packet the caller goes on to filter) cannot corrupt a cached request.
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Message = p.Message.clone()
	return &cp
}

func (m SnmpMessage) clone() SnmpMessage {
	cp := m
	cp.Community.Value = append([]byte(nil), m.Community.Value...)
	if m.V3 != nil {
		v3 := *m.V3
		v3.USM = m.V3.USM
		v3.USM.AuthEngineID.Value = append([]byte(nil), m.V3.USM.AuthEngineID.Value...)
		v3.USM.User.Value = append([]byte(nil), m.V3.USM.User.Value...)
		v3.USM.AuthParams.Value = append([]byte(nil), m.V3.USM.AuthParams.Value...)
		v3.USM.PrivParams.Value = append([]byte(nil), m.V3.USM.PrivParams.Value...)
		v3.ContextEngineID.Value = append([]byte(nil), m.V3.ContextEngineID.Value...)
		v3.ContextName.Value = append([]byte(nil), m.V3.ContextName.Value...)
		cp.V3 = &v3
	}
	if m.PDU != nil {
		pdu := *m.PDU
		pdu.Enterprise.Value = append([]uint32(nil), m.PDU.Enterprise.Value...)
		pdu.VarBinds = make([]VarBind, len(m.PDU.VarBinds))
		for i, vb := range m.PDU.VarBinds {
			cpvb := vb
			cpvb.Name.Value = append([]uint32(nil), vb.Name.Value...)
			cpvb.Value.Octets = append([]byte(nil), vb.Value.Octets...)
			cpvb.Value.Oid = append([]uint32(nil), vb.Value.Oid...)
			pdu.VarBinds[i] = cpvb
		}
		cp.PDU = &pdu
	}
	return cp
}

func formatIPv6(a [16]byte) string {
	// RFC 5952 canonical form: lowercase hex, longest run of zero groups
	// compressed once with "::", no leading zeros within a group.
	var groups [8]uint16
	for i := range groups {
		groups[i] = uint16(a[i*2])<<8 | uint16(a[i*2+1])
	}

	bestStart, bestLen := -1, 0
	curStart, curLen := -1, 0
	for i, g := range groups {
		if g == 0 {
			if curStart == -1 {
				curStart = i
			}
			curLen++
			if curLen > bestLen {
				bestStart, bestLen = curStart, curLen
			}
		} else {
			curStart, curLen = -1, 0
		}
	}
	if bestLen < 2 {
		bestStart = -1
	}

	out := make([]byte, 0, 40)
	i := 0
	for i < 8 {
		if i == bestStart {
			out = append(out, ':', ':')
			i += bestLen
			continue
		}
		if i > 0 && i != bestStart+bestLen {
			out = append(out, ':')
		}
		out = appendHex16(out, groups[i])
		i++
	}
	return string(out)
}

func appendHex16(b []byte, v uint16) []byte {
	if v == 0 {
		return append(b, '0')
	}
	const hexDigits = "0123456789abcdef"
	start := len(b)
	for v > 0 {
		b = append(b, hexDigits[v&0xf])
		v >>= 4
	}
	for i, j := start, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
