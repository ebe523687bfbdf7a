package text

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"

	"github.com/quyenlv/snmpdump/models"
)

// Elide, when non-nil, reports whether the writer should omit an entire
// subtree whose root is the named field. This implements the structural
// --delete mode of the filter package; --filter's value-clearing mode
// instead mutates the Packet before it ever reaches the writer.
type Elide func(field string) bool

// Writer serialises packets to the textual dump format: one <packet>
// element per call to WritePacket, wrapped by a <snmp-trace> document root
// written by WriteHeader/WriteFooter.
type Writer struct {
	w      io.Writer
	logger *slog.Logger
}

// New constructs a Writer. A nil logger is replaced with a no-op logger.
func New(w io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Writer{w: w, logger: logger}
}

// WriteHeader writes the document root's opening tag. Call once before any
// WritePacket call.
func (wr *Writer) WriteHeader() error {
	_, err := fmt.Fprint(wr.w, "<snmp-trace>\n")
	return err
}

// WriteFooter writes the document root's closing tag. Call once after the
// last WritePacket call.
func (wr *Writer) WriteFooter() error {
	_, err := fmt.Fprint(wr.w, "</snmp-trace>\n")
	return err
}

// WritePacket serialises one packet. elide may be nil.
func (wr *Writer) WritePacket(pkt *models.Packet, elide Elide) error {
	if elide == nil {
		elide = func(string) bool { return false }
	}
	b := &builder{elide: elide}
	b.openAttrs(FieldPacket, nil)
	b.leafUint32(FieldTimeSec, pkt.TimeSec)
	b.leafUint32(FieldTimeUsec, pkt.TimeUsec)
	b.endpoint(FieldSrc, pkt.Src)
	b.endpoint(FieldDst, pkt.Dst)
	b.snmp(pkt.Message)
	b.close(FieldPacket)

	if b.err != nil {
		return b.err
	}
	_, err := wr.w.Write(b.buf)
	if err != nil {
		wr.logger.Error("format/text: write failed", "error", err.Error())
		return fmt.Errorf("format/text: write: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// builder — small tree-walking emitter
// ─────────────────────────────────────────────────────────────────────────────

type builder struct {
	buf   []byte
	elide Elide
	err   error
}

func (b *builder) skip(field string) bool {
	return b.err != nil || b.elide(field)
}

func (b *builder) openAttrs(field string, attrs [][2]string) {
	if b.skip(field) {
		return
	}
	b.buf = append(b.buf, '<')
	b.buf = append(b.buf, field...)
	for _, a := range attrs {
		fmt.Fprintf(noopAppender{b}, ` %s="%s"`, a[0], xmlEscape(a[1]))
	}
	b.buf = append(b.buf, '>')
}

func (b *builder) close(field string) {
	if b.err != nil || b.elide(field) {
		return
	}
	b.buf = append(b.buf, "</"...)
	b.buf = append(b.buf, field...)
	b.buf = append(b.buf, '>')
}

func lenAttrs[T any](l models.Leaf[T]) [][2]string {
	var attrs [][2]string
	if l.BlenPresent {
		attrs = append(attrs, [2]string{"blen", fmt.Sprintf("%d", l.Blen)})
	}
	if l.VlenPresent {
		attrs = append(attrs, [2]string{"vlen", fmt.Sprintf("%d", l.Vlen)})
	}
	return attrs
}

func (b *builder) leaf(field string, l models.Leaf[string]) {
	if b.skip(field) {
		return
	}
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	b.openAttrs(field, lenAttrs(l))
	if l.ValuePresent {
		b.text(l.Value)
	}
	b.close(field)
}

func (b *builder) leafUint32(field string, l models.Leaf[uint32]) {
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	b.leaf(field, models.Leaf[string]{Value: fmt.Sprintf("%d", l.Value), ValuePresent: l.ValuePresent, Blen: l.Blen, BlenPresent: l.BlenPresent, Vlen: l.Vlen, VlenPresent: l.VlenPresent})
}

func (b *builder) leafInt32(field string, l models.Leaf[int32]) {
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	b.leaf(field, models.Leaf[string]{Value: fmt.Sprintf("%d", l.Value), ValuePresent: l.ValuePresent, Blen: l.Blen, BlenPresent: l.BlenPresent, Vlen: l.Vlen, VlenPresent: l.VlenPresent})
}

func (b *builder) leafBytesHex(field string, l models.Leaf[[]byte]) {
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	text := ""
	if l.ValuePresent {
		text = hexEncode(l.Value)
	}
	b.leaf(field, models.Leaf[string]{Value: text, ValuePresent: l.ValuePresent, Blen: l.Blen, BlenPresent: l.BlenPresent, Vlen: l.Vlen, VlenPresent: l.VlenPresent})
}

func (b *builder) text(s string) {
	b.buf = append(b.buf, xmlEscape(s)...)
}

func (b *builder) endpoint(field string, e models.Endpoint) {
	if b.skip(field) {
		return
	}
	var attrs [][2]string
	if e.V4.ValuePresent {
		attrs = append(attrs, [2]string{"ip", e.String()})
	} else if e.V6.ValuePresent {
		attrs = append(attrs, [2]string{"ip", e.String()})
	}
	if e.Port.ValuePresent {
		attrs = append(attrs, [2]string{"port", fmt.Sprintf("%d", e.Port.Value)})
	}
	b.openAttrs(field, attrs)
	b.close(field)
}

func (b *builder) snmp(m models.SnmpMessage) {
	if b.skip(FieldSnmp) {
		return
	}
	b.openAttrs(FieldSnmp, nil)
	b.leafInt32(FieldVersion, m.Version)
	if m.V3 == nil {
		b.leafBytesHex(FieldCommunity, m.Community)
	} else {
		b.message(m.V3)
	}
	if m.PDU != nil {
		b.pdu(m.PDU)
	}
	b.close(FieldSnmp)
}

func (b *builder) message(v3 *models.V3Envelope) {
	if b.skip(FieldMessage) {
		return
	}
	b.openAttrs(FieldMessage, nil)
	b.leafInt32(FieldMsgID, v3.MsgID)
	b.leafInt32(FieldMaxSize, v3.MsgMaxSize)
	b.leafFlags(v3.MsgFlags)
	b.leafInt32(FieldSecModel, v3.MsgSecurityModel)
	b.usm(v3.USM)
	b.leafBytesHex(FieldCtxEngineID, v3.ContextEngineID)
	b.leafBytesHex(FieldCtxName, v3.ContextName)
	b.close(FieldMessage)
}

func (b *builder) leafFlags(l models.Leaf[byte]) {
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	text := ""
	if l.ValuePresent {
		text = fmt.Sprintf("%d", l.Value)
	}
	b.leaf(FieldFlags, models.Leaf[string]{Value: text, ValuePresent: l.ValuePresent, Blen: l.Blen, BlenPresent: l.BlenPresent, Vlen: l.Vlen, VlenPresent: l.VlenPresent})
}

func (b *builder) usm(u models.USMParameters) {
	if b.skip(FieldUSM) {
		return
	}
	b.openAttrs(FieldUSM, nil)
	b.leafBytesHex(FieldAuthEngID, u.AuthEngineID)
	b.leafInt32(FieldAuthEngBoot, u.AuthEngineBoots)
	b.leafInt32(FieldAuthEngTime, u.AuthEngineTime)
	b.leafBytesHex(FieldUser, u.User)
	b.leafBytesHex(FieldAuthParams, u.AuthParams)
	b.leafBytesHex(FieldPrivParams, u.PrivParams)
	b.close(FieldUSM)
}

func (b *builder) pdu(pdu *models.PDU) {
	field := pdu.Kind.String()
	if b.skip(field) {
		return
	}
	b.openAttrs(field, nil)
	if pdu.Kind == models.PDUTrap1 {
		b.leafOID(FieldEnterprise, pdu.Enterprise)
		b.leafIPAddr(FieldAgentAddr, pdu.AgentAddr)
		b.leafInt32(FieldGenericTrap, pdu.GenericTrap)
		b.leafInt32(FieldSpecTrap, pdu.SpecificTrap)
		b.leafUint32(FieldTimeStamp, pdu.TimeStamp)
	} else {
		b.leafInt32(FieldRequestID, pdu.RequestID)
		if pdu.Kind == models.PDUGetBulk {
			b.leafInt32(FieldNonRep, pdu.NonRepeaters)
			b.leafInt32(FieldMaxRep, pdu.MaxRepetitions)
		} else {
			b.leafInt32(FieldErrorStatus, pdu.ErrorStatus)
			b.leafInt32(FieldErrorIndex, pdu.ErrorIndex)
		}
	}
	b.varBindList(pdu.VarBinds)
	b.close(field)
}

func (b *builder) leafOID(field string, l models.Leaf[[]uint32]) {
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	text := ""
	if l.ValuePresent {
		text = models.FormatOID(l.Value)
	}
	b.leaf(field, models.Leaf[string]{Value: text, ValuePresent: l.ValuePresent, Blen: l.Blen, BlenPresent: l.BlenPresent, Vlen: l.Vlen, VlenPresent: l.VlenPresent})
}

func (b *builder) leafIPAddr(field string, l models.Leaf[[4]byte]) {
	if !l.ValuePresent && !l.BlenPresent && !l.VlenPresent {
		return
	}
	text := ""
	if l.ValuePresent {
		a := l.Value
		text = fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
	}
	b.leaf(field, models.Leaf[string]{Value: text, ValuePresent: l.ValuePresent, Blen: l.Blen, BlenPresent: l.BlenPresent, Vlen: l.Vlen, VlenPresent: l.VlenPresent})
}

func (b *builder) varBindList(vbs []models.VarBind) {
	if b.skip(FieldVarBinds) {
		return
	}
	b.openAttrs(FieldVarBinds, nil)
	for _, vb := range vbs {
		b.varBind(vb)
	}
	b.close(FieldVarBinds)
}

func (b *builder) varBind(vb models.VarBind) {
	if b.skip(FieldVarBind) {
		return
	}
	b.openAttrs(FieldVarBind, nil)
	b.leafOID(FieldName, vb.Name)
	b.value(vb.Value)
	b.close(FieldVarBind)
}

func (b *builder) value(v models.VarBindValue) {
	field := valueFieldName(int(v.Kind))
	if !v.ValuePresent && !v.BlenPresent && !v.VlenPresent {
		return
	}
	if b.skip(field) {
		return
	}
	attrs := lenAttrs(models.Leaf[struct{}]{BlenPresent: v.BlenPresent, Blen: v.Blen, VlenPresent: v.VlenPresent, Vlen: v.Vlen})
	b.openAttrs(field, attrs)
	if v.ValuePresent {
		switch v.Kind {
		case models.ValueOctets:
			b.text(hexEncode(v.Octets))
		default:
			b.text(v.String())
		}
	}
	b.close(field)
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

func xmlEscape(s string) string {
	var out []byte
	out = xmlAppendEscaped(out, s)
	return string(out)
}

func xmlAppendEscaped(out []byte, s string) []byte {
	var buf []byte
	w := &sliceWriter{buf: &buf}
	_ = xml.EscapeText(w, []byte(s))
	return append(out, buf...)
}

type sliceWriter struct{ buf *[]byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	*s.buf = append(*s.buf, p...)
	return len(p), nil
}

type noopAppender struct{ b *builder }

func (n noopAppender) Write(p []byte) (int, error) {
	n.b.buf = append(n.b.buf, p...)
	return len(p), nil
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
