// Package decoder drives the ber package top-down over an SNMP message's
// grammar, producing a models.Packet with presence metadata attached to
// every node it manages to decode. It never panics on malformed input:
// failures below the message envelope abandon only the affected subtree,
// letting a caller keep
// processing a corrupt capture one packet at a time.
package decoder

import (
	"fmt"

	"github.com/quyenlv/snmpdump/ber"
	"github.com/quyenlv/snmpdump/models"
)

// Decoder decodes one SNMP message per call to Decode. It is a plain value
// type — no package-level or process-wide state — so it may be constructed
// once and reused, or constructed fresh per call, without any coordination.
type Decoder struct {
	Mode ber.Mode
}

// New constructs a Decoder with the given truncation mode.
func New(mode ber.Mode) Decoder {
	return Decoder{Mode: mode}
}

// Decode parses payload as one SNMP message and returns the resulting
// Packet, which is never nil. The returned error is non-nil when the
// version is unsupported (ErrUnsupportedVersion), when the PDU kind is not
// legal for the version (ErrVersionMismatch), or when a structural element
// (the top-level sequence, version, community, a v3 header section, a
// context field, the PDU element or one of its header fields) could not be
// parsed. In every case the returned Packet still carries whatever was
// decoded before the failure. A malformed individual varbind or leaf value
// is absorbed into the Packet's presence flags; Decode does not fail
// because of it.
func (d Decoder) Decode(timeSec, timeUsec uint32, src, dst models.Endpoint, payload []byte) (*models.Packet, error) {
	pkt := &models.Packet{Src: src, Dst: dst}
	pkt.TimeSec.Set(timeSec, 4, 4)
	pkt.TimeUsec.Set(timeUsec, 4, 4)

	p := ber.New(d.Mode)

	top, _, err := p.ParseOne(payload)
	if err != nil {
		return pkt, fmt.Errorf("decoder: top-level sequence: %w", err)
	}
	if top.Tag != tagSequence || top.Class != ber.Universal {
		return pkt, fmt.Errorf("decoder: top-level element: %w", ber.ErrUnexpectedTag)
	}

	rest := top.Content

	verEl, n, err := p.ParseOne(rest)
	if err != nil {
		return pkt, fmt.Errorf("decoder: version: %w", err)
	}
	version, ok := decodeInt32(verEl)
	if ok {
		pkt.Message.Version.Set(version, uint32(verEl.Consumed()), uint32(len(verEl.Content)))
	} else {
		pkt.Message.Version.BlenPresent, pkt.Message.Version.Blen = true, uint32(verEl.Consumed())
	}
	rest = rest[n:]

	switch version {
	case 0, 1:
		return pkt, d.decodeCommunity(p, pkt, rest)
	case 3:
		return pkt, d.decodeV3(p, pkt, rest)
	default:
		return pkt, fmt.Errorf("decoder: version %d: %w", version, ErrUnsupportedVersion)
	}
}

func (d Decoder) decodeCommunity(p ber.Parser, pkt *models.Packet, rest []byte) error {
	commEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: community: %w", err)
	}
	pkt.Message.Community.Set(append([]byte(nil), commEl.Content...), uint32(commEl.Consumed()), uint32(len(commEl.Content)))
	rest = rest[n:]

	pduEl, _, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: pdu: %w", err)
	}
	kind, ok := pduKindFromTag(pduEl.Tag)
	if !ok {
		return fmt.Errorf("decoder: pdu tag %d: %w", pduEl.Tag, ber.ErrUnexpectedTag)
	}
	version := pkt.Message.Version.Value
	if !pduLegalForVersion(kind, version) {
		return fmt.Errorf("decoder: pdu %s illegal for version %d: %w", kind, version, ErrVersionMismatch)
	}

	pdu, err := d.decodePDU(p, kind, pduEl.Content)
	pkt.Message.PDU = pdu
	return err
}

func (d Decoder) decodeV3(p ber.Parser, pkt *models.Packet, rest []byte) error {
	globalEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: v3 global data: %w", err)
	}
	v3 := &models.V3Envelope{}
	pkt.Message.V3 = v3
	d.decodeV3GlobalData(p, v3, globalEl.Content)
	rest = rest[n:]

	secEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: v3 security parameters: %w", err)
	}
	d.decodeUSM(p, &v3.USM, secEl.Content)
	rest = rest[n:]

	scopedEl, _, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: v3 scoped pdu: %w", err)
	}
	if scopedEl.Tag != tagSequence || scopedEl.Class != ber.Universal {
		// Encrypted scoped PDU (OCTET STRING): no plaintext PDU to decode,
		// not an error — the envelope alone is a valid, complete result.
		return nil
	}

	sRest := scopedEl.Content
	ctxIDEl, n, err := p.ParseOne(sRest)
	if err != nil {
		return fmt.Errorf("decoder: context engine id: %w", err)
	}
	v3.ContextEngineID.Set(append([]byte(nil), ctxIDEl.Content...), uint32(ctxIDEl.Consumed()), uint32(len(ctxIDEl.Content)))
	sRest = sRest[n:]

	ctxNameEl, n, err := p.ParseOne(sRest)
	if err != nil {
		return fmt.Errorf("decoder: context name: %w", err)
	}
	v3.ContextName.Set(append([]byte(nil), ctxNameEl.Content...), uint32(ctxNameEl.Consumed()), uint32(len(ctxNameEl.Content)))
	sRest = sRest[n:]

	if len(sRest) == 0 {
		// A scoped PDU carrying only context fields and no PDU: a valid
		// terminal state (e.g. an engine-ID discovery Report), not an error.
		return nil
	}

	pduEl, _, err := p.ParseOne(sRest)
	if err != nil {
		return fmt.Errorf("decoder: v3 pdu: %w", err)
	}
	kind, ok := pduKindFromTag(pduEl.Tag)
	if !ok {
		return fmt.Errorf("decoder: pdu tag %d: %w", pduEl.Tag, ber.ErrUnexpectedTag)
	}
	if kind == models.PDUTrap1 {
		return fmt.Errorf("decoder: trap-v1 illegal under v3: %w", ErrVersionMismatch)
	}

	pdu, err := d.decodePDU(p, kind, pduEl.Content)
	pkt.Message.PDU = pdu
	return err
}

func (d Decoder) decodeV3GlobalData(p ber.Parser, v3 *models.V3Envelope, content []byte) {
	msgIDEl, n, err := p.ParseOne(content)
	if err != nil {
		return
	}
	if v, ok := decodeInt32(msgIDEl); ok {
		v3.MsgID.Set(v, uint32(msgIDEl.Consumed()), uint32(len(msgIDEl.Content)))
	}
	content = content[n:]

	maxSizeEl, n, err := p.ParseOne(content)
	if err != nil {
		return
	}
	if v, ok := decodeInt32(maxSizeEl); ok {
		v3.MsgMaxSize.Set(v, uint32(maxSizeEl.Consumed()), uint32(len(maxSizeEl.Content)))
	}
	content = content[n:]

	flagsEl, n, err := p.ParseOne(content)
	if err != nil {
		return
	}
	if len(flagsEl.Content) == 1 {
		v3.MsgFlags.Set(flagsEl.Content[0], uint32(flagsEl.Consumed()), uint32(len(flagsEl.Content)))
	}
	content = content[n:]

	modelEl, _, err := p.ParseOne(content)
	if err != nil {
		return
	}
	if v, ok := decodeInt32(modelEl); ok {
		v3.MsgSecurityModel.Set(v, uint32(modelEl.Consumed()), uint32(len(modelEl.Content)))
	}
}

func (d Decoder) decodeUSM(p ber.Parser, usm *models.USMParameters, secParams []byte) {
	// secParams is the OCTET STRING content wrapping a USM SEQUENCE; when
	// the security model is not USM this will simply fail to parse as one
	// and usm is left with nothing present, which is a valid result.
	usmSeq, _, err := p.ParseOne(secParams)
	if err != nil || usmSeq.Tag != tagSequence || usmSeq.Class != ber.Universal {
		return
	}
	rest := usmSeq.Content

	engineIDEl, n, err := p.ParseOne(rest)
	if err != nil {
		return
	}
	usm.AuthEngineID.Set(append([]byte(nil), engineIDEl.Content...), uint32(engineIDEl.Consumed()), uint32(len(engineIDEl.Content)))
	rest = rest[n:]

	bootsEl, n, err := p.ParseOne(rest)
	if err != nil {
		return
	}
	if v, ok := decodeInt32(bootsEl); ok {
		usm.AuthEngineBoots.Set(v, uint32(bootsEl.Consumed()), uint32(len(bootsEl.Content)))
	}
	rest = rest[n:]

	timeEl, n, err := p.ParseOne(rest)
	if err != nil {
		return
	}
	if v, ok := decodeInt32(timeEl); ok {
		usm.AuthEngineTime.Set(v, uint32(timeEl.Consumed()), uint32(len(timeEl.Content)))
	}
	rest = rest[n:]

	userEl, n, err := p.ParseOne(rest)
	if err != nil {
		return
	}
	usm.User.Set(append([]byte(nil), userEl.Content...), uint32(userEl.Consumed()), uint32(len(userEl.Content)))
	rest = rest[n:]

	authEl, n, err := p.ParseOne(rest)
	if err != nil {
		return
	}
	usm.AuthParams.Set(append([]byte(nil), authEl.Content...), uint32(authEl.Consumed()), uint32(len(authEl.Content)))
	rest = rest[n:]

	privEl, _, err := p.ParseOne(rest)
	if err != nil {
		return
	}
	usm.PrivParams.Set(append([]byte(nil), privEl.Content...), uint32(privEl.Consumed()), uint32(len(privEl.Content)))
}

// decodePDU decodes a PDU's content given its already-classified kind. It
// never returns an error for malformed varbinds — those are skipped
// individually — only for a malformed top-level field list, which abandons
// the remainder of the PDU while keeping whatever was decoded so far.
func (d Decoder) decodePDU(p ber.Parser, kind models.PDUKind, content []byte) (*models.PDU, error) {
	pdu := &models.PDU{Kind: kind}

	if kind == models.PDUTrap1 {
		return pdu, d.decodeTrap1Fields(p, pdu, content)
	}

	rest := content

	reqEl, n, err := p.ParseOne(rest)
	if err != nil {
		return pdu, fmt.Errorf("decoder: request-id: %w", err)
	}
	if v, ok := decodeInt32(reqEl); ok {
		pdu.RequestID.Set(v, uint32(reqEl.Consumed()), uint32(len(reqEl.Content)))
	}
	rest = rest[n:]

	field2El, n, err := p.ParseOne(rest)
	if err != nil {
		return pdu, fmt.Errorf("decoder: second field: %w", err)
	}
	if v, ok := decodeInt32(field2El); ok {
		if kind == models.PDUGetBulk {
			pdu.NonRepeaters.Set(v, uint32(field2El.Consumed()), uint32(len(field2El.Content)))
		} else {
			pdu.ErrorStatus.Set(v, uint32(field2El.Consumed()), uint32(len(field2El.Content)))
		}
	}
	rest = rest[n:]

	field3El, n, err := p.ParseOne(rest)
	if err != nil {
		return pdu, fmt.Errorf("decoder: third field: %w", err)
	}
	if v, ok := decodeInt32(field3El); ok {
		if kind == models.PDUGetBulk {
			pdu.MaxRepetitions.Set(v, uint32(field3El.Consumed()), uint32(len(field3El.Content)))
		} else {
			pdu.ErrorIndex.Set(v, uint32(field3El.Consumed()), uint32(len(field3El.Content)))
		}
	}
	rest = rest[n:]

	vbListEl, _, err := p.ParseOne(rest)
	if err != nil {
		return pdu, fmt.Errorf("decoder: variable-bindings: %w", err)
	}
	pdu.VarBinds = d.decodeVarBindList(p, vbListEl.Content)
	return pdu, nil
}

func (d Decoder) decodeTrap1Fields(p ber.Parser, pdu *models.PDU, content []byte) error {
	rest := content

	entEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: enterprise: %w", err)
	}
	if oidVal, oerr := ber.DecodeOID(entEl.Content); oerr == nil {
		pdu.Enterprise.Set(oidVal, uint32(entEl.Consumed()), uint32(len(entEl.Content)))
	}
	rest = rest[n:]

	agentEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: agent-addr: %w", err)
	}
	if len(agentEl.Content) == 4 {
		var addr [4]byte
		copy(addr[:], agentEl.Content)
		pdu.AgentAddr.Set(addr, uint32(agentEl.Consumed()), uint32(len(agentEl.Content)))
	}
	rest = rest[n:]

	genEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: generic-trap: %w", err)
	}
	if v, ok := decodeInt32(genEl); ok {
		pdu.GenericTrap.Set(v, uint32(genEl.Consumed()), uint32(len(genEl.Content)))
	}
	rest = rest[n:]

	specEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: specific-trap: %w", err)
	}
	if v, ok := decodeInt32(specEl); ok {
		pdu.SpecificTrap.Set(v, uint32(specEl.Consumed()), uint32(len(specEl.Content)))
	}
	rest = rest[n:]

	tsEl, n, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: time-stamp: %w", err)
	}
	if v, ok := decodeUint32(tsEl); ok {
		pdu.TimeStamp.Set(v, uint32(tsEl.Consumed()), uint32(len(tsEl.Content)))
	}
	rest = rest[n:]

	vbListEl, _, err := p.ParseOne(rest)
	if err != nil {
		return fmt.Errorf("decoder: variable-bindings: %w", err)
	}
	pdu.VarBinds = d.decodeVarBindList(p, vbListEl.Content)
	return nil
}

func (d Decoder) decodeVarBindList(p ber.Parser, content []byte) []models.VarBind {
	var out []models.VarBind
	rest := content
	for len(rest) > 0 {
		vbEl, n, err := p.ParseOne(rest)
		if err != nil {
			break
		}
		rest = rest[n:]
		if vbEl.Tag != tagSequence || vbEl.Class != ber.Universal {
			continue
		}
		if vb, ok := d.decodeVarBind(p, vbEl.Content); ok {
			out = append(out, vb)
		}
	}
	return out
}

func (d Decoder) decodeVarBind(p ber.Parser, content []byte) (models.VarBind, bool) {
	var vb models.VarBind

	nameEl, n, err := p.ParseOne(content)
	if err != nil {
		return vb, false
	}
	if oidVal, oerr := ber.DecodeOID(nameEl.Content); oerr == nil {
		vb.Name.Set(oidVal, uint32(nameEl.Consumed()), uint32(len(nameEl.Content)))
	} else {
		vb.Name.BlenPresent, vb.Name.Blen = true, uint32(nameEl.Consumed())
	}
	content = content[n:]

	valEl, _, err := p.ParseOne(content)
	if err != nil {
		return vb, false
	}
	vb.Value = decodeValue(valEl)
	return vb, true
}

func pduKindFromTag(tag uint64) (models.PDUKind, bool) {
	switch tag {
	case 0:
		return models.PDUGet, true
	case 1:
		return models.PDUGetNext, true
	case 2:
		return models.PDUResponse, true
	case 3:
		return models.PDUSet, true
	case 4:
		return models.PDUTrap1, true
	case 5:
		return models.PDUGetBulk, true
	case 6:
		return models.PDUInform, true
	case 7:
		return models.PDUTrap2, true
	case 8:
		return models.PDUReport, true
	default:
		return 0, false
	}
}

// pduLegalForVersion enforces which PDU kinds may appear under which SNMP
// version: Trap1 is v1-only; GetBulk, Inform, Trap2, and Report require
// v2c or v3.
func pduLegalForVersion(kind models.PDUKind, version int32) bool {
	switch kind {
	case models.PDUTrap1:
		return version == 0
	case models.PDUGetBulk, models.PDUInform, models.PDUTrap2, models.PDUReport:
		return version != 0
	default:
		return true
	}
}

const tagSequence = 0x10

func decodeInt32(el ber.Element) (int32, bool) {
	if el.Truncated || len(el.Content) == 0 || len(el.Content) > 4 {
		return 0, false
	}
	v := int64(int8(el.Content[0]))
	for _, b := range el.Content[1:] {
		v = v<<8 | int64(b)
	}
	return int32(v), true
}

func decodeUint32(el ber.Element) (uint32, bool) {
	if el.Truncated || len(el.Content) == 0 || len(el.Content) > 5 {
		return 0, false
	}
	var v uint64
	for _, b := range el.Content {
		v = v<<8 | uint64(b)
	}
	if v > 0xffffffff {
		return 0, false
	}
	return uint32(v), true
}

func decodeValue(el ber.Element) models.VarBindValue {
	v := models.VarBindValue{
		BlenPresent: true,
		Blen:        uint32(el.Consumed()),
		VlenPresent: true,
		Vlen:        uint32(len(el.Content)),
	}

	switch {
	case el.Class == ber.Universal && el.Tag == 0x05: // NULL
		v.Kind = models.ValueNull
		v.ValuePresent = true

	case el.Class == ber.Universal && el.Tag == 0x02: // INTEGER
		if n, ok := decodeInt32(el); ok {
			v.Kind = models.ValueInt32
			v.Int32 = n
			v.ValuePresent = true
		}

	case el.Class == ber.Universal && el.Tag == 0x04: // OCTET STRING
		v.Kind = models.ValueOctets
		v.Octets = append([]byte(nil), el.Content...)
		v.ValuePresent = true

	case el.Class == ber.Universal && el.Tag == 0x06: // OBJECT IDENTIFIER
		if oidVal, err := ber.DecodeOID(el.Content); err == nil {
			v.Kind = models.ValueOid
			v.Oid = oidVal
			v.ValuePresent = true
		}

	case el.Class == ber.Application && el.Tag == 0x00: // IpAddress
		if len(el.Content) == 4 {
			v.Kind = models.ValueIPAddr
			copy(v.IPAddr[:], el.Content)
			v.ValuePresent = true
		}

	case el.Class == ber.Application && (el.Tag == 0x01 || el.Tag == 0x02): // Counter32 / Gauge32
		if n, ok := decodeUint32(el); ok {
			v.Kind = models.ValueUint32
			v.Uint32 = n
			v.ValuePresent = true
		}

	case el.Class == ber.Application && el.Tag == 0x03: // TimeTicks
		if n, ok := decodeUint32(el); ok {
			v.Kind = models.ValueUint32
			v.Uint32 = n
			v.ValuePresent = true
		}

	case el.Class == ber.Application && el.Tag == 0x04: // Opaque
		v.Kind = models.ValueOctets
		v.Octets = append([]byte(nil), el.Content...)
		v.ValuePresent = true

	case el.Class == ber.Application && el.Tag == 0x06: // Counter64
		if !el.Truncated && len(el.Content) <= 8 {
			var n uint64
			for _, b := range el.Content {
				n = n<<8 | uint64(b)
			}
			v.Kind = models.ValueUint64
			v.Uint64 = n
			v.ValuePresent = true
		}

	case el.Class == ber.ContextSpecific && el.Tag == 0x00: // noSuchObject
		v.Kind = models.ValueNoSuchObject

	case el.Class == ber.ContextSpecific && el.Tag == 0x01: // noSuchInstance
		v.Kind = models.ValueNoSuchInstance

	case el.Class == ber.ContextSpecific && el.Tag == 0x02: // endOfMibView
		v.Kind = models.ValueEndOfMibView
	}

	return v
}
