package text

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/quyenlv/snmpdump/models"
	"github.com/quyenlv/snmpdump/snmp/oid"
)

// Reader parses the textual dump format back into models.Packet values.
// Unknown elements are skipped together with their entire subtree; the
// reader treats the element name, not position, as authoritative.
type Reader struct {
	dec *xml.Decoder
}

// NewReader wraps r, expecting a <snmp-trace> document.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// ErrNoMorePackets is returned by Next when the document has no more
// <packet> elements.
var ErrNoMorePackets = fmt.Errorf("format/text: no more packets")

// Next reads and decodes the next <packet> element. It returns
// ErrNoMorePackets at end of document.
func (r *Reader) Next() (*models.Packet, error) {
	for {
		tok, err := r.dec.Token()
		if err == io.EOF {
			return nil, ErrNoMorePackets
		}
		if err != nil {
			return nil, fmt.Errorf("format/text: token: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "snmp-trace" {
			// Descend into the document root to reach its packets.
			continue
		}
		if start.Name.Local != FieldPacket {
			if err := r.dec.Skip(); err != nil {
				return nil, fmt.Errorf("format/text: skip: %w", err)
			}
			continue
		}
		return r.readPacket()
	}
}

func (r *Reader) readPacket() (*models.Packet, error) {
	pkt := &models.Packet{}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return pkt, fmt.Errorf("format/text: packet body: %w", err)
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == FieldPacket {
				return pkt, nil
			}
		case xml.StartElement:
			switch t.Name.Local {
			case FieldTimeSec:
				readUint32Leaf(r.dec, t, &pkt.TimeSec)
			case FieldTimeUsec:
				readUint32Leaf(r.dec, t, &pkt.TimeUsec)
			case FieldSrc:
				readEndpoint(r.dec, t, &pkt.Src)
			case FieldDst:
				readEndpoint(r.dec, t, &pkt.Dst)
			case FieldSnmp:
				r.readSnmp(t, &pkt.Message)
			default:
				_ = r.dec.Skip()
			}
		}
	}
}

func attrValue(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func applyLenAttrs[T any](start xml.StartElement, l *models.Leaf[T]) {
	if s, ok := attrValue(start, "blen"); ok {
		if v, err := strconv.ParseUint(s, 10, 32); err == nil {
			l.Blen, l.BlenPresent = uint32(v), true
		}
	}
	if s, ok := attrValue(start, "vlen"); ok {
		if v, err := strconv.ParseUint(s, 10, 32); err == nil {
			l.Vlen, l.VlenPresent = uint32(v), true
		}
	}
}

// readCharData collects character data up to the matching end element,
// skipping any nested elements (none are expected for leaves, but a
// malformed document should not desynchronise the reader).
func readCharData(dec *xml.Decoder, name string) (string, error) {
	var text []byte
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return string(text), nil
			}
			depth--
		}
	}
}

func readUint32Leaf(dec *xml.Decoder, start xml.StartElement, l *models.Leaf[uint32]) {
	applyLenAttrs(start, l)
	text, err := readCharData(dec, start.Name.Local)
	if err != nil {
		return
	}
	if text == "" {
		return
	}
	if v, err := strconv.ParseUint(text, 10, 32); err == nil {
		l.Value, l.ValuePresent = uint32(v), true
	}
	// A numeric parse failure clears value_present but keeps blen/vlen,
	// which are already set above.
}

func readInt32Leaf(dec *xml.Decoder, start xml.StartElement, l *models.Leaf[int32]) {
	applyLenAttrs(start, l)
	text, err := readCharData(dec, start.Name.Local)
	if err != nil {
		return
	}
	if text == "" {
		return
	}
	if v, err := strconv.ParseInt(text, 10, 32); err == nil {
		l.Value, l.ValuePresent = int32(v), true
	}
}

func readBytesHexLeaf(dec *xml.Decoder, start xml.StartElement, l *models.Leaf[[]byte]) {
	applyLenAttrs(start, l)
	text, err := readCharData(dec, start.Name.Local)
	if err != nil {
		return
	}
	if text == "" {
		return
	}
	if b, ok := hexDecode(text); ok {
		l.Value, l.ValuePresent = b, true
	}
}

func readOIDLeaf(dec *xml.Decoder, start xml.StartElement, l *models.Leaf[[]uint32]) {
	applyLenAttrs(start, l)
	text, err := readCharData(dec, start.Name.Local)
	if err != nil {
		return
	}
	if text == "" {
		return
	}
	if ids, ok := oid.Parse(text); ok {
		l.Value, l.ValuePresent = ids, true
	}
}

func hexDecode(s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		return nil, false
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, ok1 := hexNibble(s[i*2])
		lo, ok2 := hexNibble(s[i*2+1])
		if !ok1 || !ok2 {
			return nil, false
		}
		out[i] = hi<<4 | lo
	}
	return out, true
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

func readEndpoint(dec *xml.Decoder, start xml.StartElement, e *models.Endpoint) {
	if ip, ok := attrValue(start, "ip"); ok {
		if v4, ok4 := parseIPv4(ip); ok4 {
			e.V4.Set(v4, 0, 0)
		} else if v6, ok6 := parseIPv6(ip); ok6 {
			e.V6.Set(v6, 0, 0)
		}
	}
	if portStr, ok := attrValue(start, "port"); ok {
		if v, err := strconv.ParseUint(portStr, 10, 16); err == nil {
			e.Port.Set(uint16(v), 0, 0)
		}
	}
	_ = dec.Skip()
}

func (r *Reader) readSnmp(start xml.StartElement, m *models.SnmpMessage) {
	_ = start
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == FieldSnmp {
				return
			}
		case xml.StartElement:
			switch t.Name.Local {
			case FieldVersion:
				readInt32Leaf(r.dec, t, &m.Version)
			case FieldCommunity:
				readBytesHexLeaf(r.dec, t, &m.Community)
			case FieldMessage:
				m.V3 = &models.V3Envelope{}
				r.readMessage(t, m.V3)
			default:
				if pdu, ok := pduKindFromFieldName(t.Name.Local); ok {
					m.PDU = r.readPDU(t, pdu)
				} else {
					_ = r.dec.Skip()
				}
			}
		}
	}
}

func (r *Reader) readMessage(start xml.StartElement, v3 *models.V3Envelope) {
	_ = start
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == FieldMessage {
				return
			}
		case xml.StartElement:
			switch t.Name.Local {
			case FieldMsgID:
				readInt32Leaf(r.dec, t, &v3.MsgID)
			case FieldMaxSize:
				readInt32Leaf(r.dec, t, &v3.MsgMaxSize)
			case FieldFlags:
				readByteLeaf(r.dec, t, &v3.MsgFlags)
			case FieldSecModel:
				readInt32Leaf(r.dec, t, &v3.MsgSecurityModel)
			case FieldUSM:
				r.readUSM(t, &v3.USM)
			case FieldCtxEngineID:
				readBytesHexLeaf(r.dec, t, &v3.ContextEngineID)
			case FieldCtxName:
				readBytesHexLeaf(r.dec, t, &v3.ContextName)
			default:
				_ = r.dec.Skip()
			}
		}
	}
}

func readByteLeaf(dec *xml.Decoder, start xml.StartElement, l *models.Leaf[byte]) {
	applyLenAttrs(start, l)
	text, err := readCharData(dec, start.Name.Local)
	if err != nil || text == "" {
		return
	}
	if v, err := strconv.ParseUint(text, 10, 8); err == nil {
		l.Value, l.ValuePresent = byte(v), true
	}
}

func (r *Reader) readUSM(start xml.StartElement, u *models.USMParameters) {
	_ = start
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == FieldUSM {
				return
			}
		case xml.StartElement:
			switch t.Name.Local {
			case FieldAuthEngID:
				readBytesHexLeaf(r.dec, t, &u.AuthEngineID)
			case FieldAuthEngBoot:
				readInt32Leaf(r.dec, t, &u.AuthEngineBoots)
			case FieldAuthEngTime:
				readInt32Leaf(r.dec, t, &u.AuthEngineTime)
			case FieldUser:
				readBytesHexLeaf(r.dec, t, &u.User)
			case FieldAuthParams:
				readBytesHexLeaf(r.dec, t, &u.AuthParams)
			case FieldPrivParams:
				readBytesHexLeaf(r.dec, t, &u.PrivParams)
			default:
				_ = r.dec.Skip()
			}
		}
	}
}

func (r *Reader) readPDU(start xml.StartElement, kind models.PDUKind) *models.PDU {
	_ = start
	pdu := &models.PDU{Kind: kind}
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return pdu
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == kind.String() {
				return pdu
			}
		case xml.StartElement:
			switch t.Name.Local {
			case FieldRequestID:
				readInt32Leaf(r.dec, t, &pdu.RequestID)
			case FieldErrorStatus:
				readInt32Leaf(r.dec, t, &pdu.ErrorStatus)
			case FieldErrorIndex:
				readInt32Leaf(r.dec, t, &pdu.ErrorIndex)
			case FieldNonRep:
				readInt32Leaf(r.dec, t, &pdu.NonRepeaters)
			case FieldMaxRep:
				readInt32Leaf(r.dec, t, &pdu.MaxRepetitions)
			case FieldEnterprise:
				readOIDLeaf(r.dec, t, &pdu.Enterprise)
			case FieldAgentAddr:
				readIPAddrLeaf(r.dec, t, &pdu.AgentAddr)
			case FieldGenericTrap:
				readInt32Leaf(r.dec, t, &pdu.GenericTrap)
			case FieldSpecTrap:
				readInt32Leaf(r.dec, t, &pdu.SpecificTrap)
			case FieldTimeStamp:
				readUint32Leaf(r.dec, t, &pdu.TimeStamp)
			case FieldVarBinds:
				pdu.VarBinds = r.readVarBindList(t)
			default:
				_ = r.dec.Skip()
			}
		}
	}
}

func readIPAddrLeaf(dec *xml.Decoder, start xml.StartElement, l *models.Leaf[[4]byte]) {
	applyLenAttrs(start, l)
	text, err := readCharData(dec, start.Name.Local)
	if err != nil || text == "" {
		return
	}
	if v, ok := parseIPv4(text); ok {
		l.Value, l.ValuePresent = v, true
	}
}

func (r *Reader) readVarBindList(start xml.StartElement) []models.VarBind {
	_ = start
	var out []models.VarBind
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return out
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == FieldVarBinds {
				return out
			}
		case xml.StartElement:
			if t.Name.Local == FieldVarBind {
				out = append(out, r.readVarBind(t))
			} else {
				_ = r.dec.Skip()
			}
		}
	}
}

func (r *Reader) readVarBind(start xml.StartElement) models.VarBind {
	_ = start
	var vb models.VarBind
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return vb
		}
		switch t := tok.(type) {
		case xml.EndElement:
			if t.Name.Local == FieldVarBind {
				return vb
			}
		case xml.StartElement:
			if t.Name.Local == FieldName {
				readOIDLeaf(r.dec, t, &vb.Name)
				continue
			}
			if kind, ok := valueKindFromFieldName(t.Name.Local); ok {
				vb.Value = r.readValue(t, kind)
				continue
			}
			_ = r.dec.Skip()
		}
	}
}

func (r *Reader) readValue(start xml.StartElement, kind models.ValueKind) models.VarBindValue {
	v := models.VarBindValue{Kind: kind}
	if s, ok := attrValue(start, "blen"); ok {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			v.Blen, v.BlenPresent = uint32(n), true
		}
	}
	if s, ok := attrValue(start, "vlen"); ok {
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			v.Vlen, v.VlenPresent = uint32(n), true
		}
	}
	text, err := readCharData(r.dec, start.Name.Local)
	if err != nil {
		return v
	}
	switch kind {
	case models.ValueNull, models.ValueNoSuchObject, models.ValueNoSuchInstance, models.ValueEndOfMibView:
		v.ValuePresent = kind == models.ValueNull
	case models.ValueInt32:
		if n, err := strconv.ParseInt(text, 10, 32); err == nil {
			v.Int32, v.ValuePresent = int32(n), true
		}
	case models.ValueUint32:
		if n, err := strconv.ParseUint(text, 10, 32); err == nil {
			v.Uint32, v.ValuePresent = uint32(n), true
		}
	case models.ValueUint64:
		if n, err := strconv.ParseUint(text, 10, 64); err == nil {
			v.Uint64, v.ValuePresent = n, true
		}
	case models.ValueIPAddr:
		if a, ok := parseIPv4(text); ok {
			v.IPAddr, v.ValuePresent = a, true
		}
	case models.ValueOctets:
		if b, ok := hexDecode(text); ok {
			v.Octets, v.ValuePresent = b, true
		}
	case models.ValueOid:
		if ids, ok := oid.Parse(text); ok {
			v.Oid, v.ValuePresent = ids, true
		}
	}
	return v
}

func pduKindFromFieldName(name string) (models.PDUKind, bool) {
	for k := models.PDUGet; k <= models.PDUReport; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

func valueKindFromFieldName(name string) (models.ValueKind, bool) {
	for k := models.ValueNull; k <= models.ValueEndOfMibView; k++ {
		if valueFieldName(int(k)) == name {
			return k, true
		}
	}
	return 0, false
}

func parseIPv4(s string) ([4]byte, bool) {
	var parts [4]int
	n, err := fmt.Sscanf(s, "%d.%d.%d.%d", &parts[0], &parts[1], &parts[2], &parts[3])
	if err != nil || n != 4 {
		return [4]byte{}, false
	}
	var out [4]byte
	for i, p := range parts {
		if p < 0 || p > 255 {
			return [4]byte{}, false
		}
		out[i] = byte(p)
	}
	return out, true
}

func parseIPv6(s string) ([16]byte, bool) {
	ip := parseIPv6Groups(s)
	if ip == nil {
		return [16]byte{}, false
	}
	var out [16]byte
	copy(out[:], ip)
	return out, true
}
