// Package csv writes one line per packet summarising its decoded fields.
// The format deliberately does not follow RFC 4180: fields are comma-joined
// with no quoting, so a value containing a comma (the community, which is
// written as its raw bytes, is the field that can hold one) will misalign
// the columns it produces. This is an accepted
// limitation, not an oversight: see DESIGN.md.
package csv

import (
	"bytes"
	"fmt"
	"io"

	"github.com/quyenlv/snmpdump/models"
)

// Writer emits one CSV line per packet. Column count varies: the trailing
// columns are the packet's OID names, one per varbind, so rows are not
// rectangular.
type Writer struct {
	w io.Writer
}

// New constructs a Writer over w.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes the fixed-column header line. Trailing OID columns
// have no header of their own, matching the variable-width row format.
func (w *Writer) WriteHeader() error {
	_, err := fmt.Fprintln(w.w, "time-sec,time-usec,src,dst,version,community,pdu,request-id,error-status,error-index")
	return err
}

// WritePacket writes one packet's summary line.
func (w *Writer) WritePacket(pkt *models.Packet) error {
	var buf bytes.Buffer

	writeField(&buf, numericText(pkt.TimeSec.ValuePresent, fmt.Sprintf("%d", pkt.TimeSec.Value)))
	buf.WriteByte(',')
	writeField(&buf, numericText(pkt.TimeUsec.ValuePresent, fmt.Sprintf("%d", pkt.TimeUsec.Value)))
	buf.WriteByte(',')
	writeField(&buf, pkt.Src.String())
	buf.WriteByte(',')
	writeField(&buf, pkt.Dst.String())
	buf.WriteByte(',')
	writeField(&buf, numericText(pkt.Message.Version.ValuePresent, fmt.Sprintf("%d", pkt.Message.Version.Value)))
	buf.WriteByte(',')
	if pkt.Message.Community.ValuePresent {
		buf.Write(pkt.Message.Community.Value)
	}
	buf.WriteByte(',')

	pdu := pkt.Message.PDU
	if pdu == nil {
		buf.WriteString(",,,")
	} else {
		writeField(&buf, pdu.Kind.String())
		buf.WriteByte(',')
		writeField(&buf, numericText(pdu.RequestID.ValuePresent, fmt.Sprintf("%d", pdu.RequestID.Value)))
		buf.WriteByte(',')
		writeField(&buf, numericText(pdu.ErrorStatus.ValuePresent, fmt.Sprintf("%d", pdu.ErrorStatus.Value)))
		buf.WriteByte(',')
		writeField(&buf, numericText(pdu.ErrorIndex.ValuePresent, fmt.Sprintf("%d", pdu.ErrorIndex.Value)))

		for _, vb := range pdu.VarBinds {
			buf.WriteByte(',')
			if vb.Name.ValuePresent {
				buf.WriteString(models.FormatOID(vb.Name.Value))
			}
		}
	}

	buf.WriteByte('\n')
	_, err := w.w.Write(buf.Bytes())
	return err
}

func writeField(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
}

func numericText(present bool, text string) string {
	if !present {
		return ""
	}
	return text
}
