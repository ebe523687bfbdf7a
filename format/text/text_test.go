package text_test

import (
	"bytes"
	"testing"

	"github.com/quyenlv/snmpdump/format/text"
	"github.com/quyenlv/snmpdump/models"
)

func samplePacket() *models.Packet {
	pkt := &models.Packet{}
	pkt.TimeSec.Set(1700000000, 4, 4)
	pkt.TimeUsec.Set(500, 4, 4)
	pkt.Src.V4.Set([4]byte{10, 0, 0, 1}, 0, 0)
	pkt.Src.Port.Set(12345, 0, 0)
	pkt.Dst.V4.Set([4]byte{10, 0, 0, 2}, 0, 0)
	pkt.Dst.Port.Set(161, 0, 0)

	pkt.Message.Version.Set(1, 3, 1)
	pkt.Message.Community.Set([]byte("public"), 8, 6)

	pdu := &models.PDU{Kind: models.PDUGet}
	pdu.RequestID.Set(int32(42), 3, 1)
	pdu.ErrorStatus.Set(int32(0), 3, 1)
	pdu.ErrorIndex.Set(int32(0), 3, 1)

	var vb models.VarBind
	vb.Name.Set([]uint32{1, 3, 6, 1, 2, 1, 1, 3, 0}, 11, 9)
	vb.Value = models.VarBindValue{Kind: models.ValueNull, ValuePresent: true, Blen: 2, BlenPresent: true, Vlen: 0, VlenPresent: true}
	pdu.VarBinds = []models.VarBind{vb}

	pkt.Message.PDU = pdu
	return pkt
}

func TestWriteReadRoundTrip(t *testing.T) {
	pkt := samplePacket()

	var buf bytes.Buffer
	w := text.New(&buf, nil)
	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.WritePacket(pkt, nil); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := w.WriteFooter(); err != nil {
		t.Fatalf("WriteFooter: %v", err)
	}

	r := text.NewReader(&buf)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if got.TimeSec.Value != 1700000000 {
		t.Fatalf("time-sec = %d, want 1700000000", got.TimeSec.Value)
	}
	if got.Src.String() != "10.0.0.1" {
		t.Fatalf("src = %q, want 10.0.0.1", got.Src.String())
	}
	if got.Src.Port.Value != 12345 {
		t.Fatalf("src port = %d, want 12345", got.Src.Port.Value)
	}
	if string(got.Message.Community.Value) != "public" {
		t.Fatalf("community = %q, want public", got.Message.Community.Value)
	}
	if got.Message.PDU == nil || got.Message.PDU.Kind != models.PDUGet {
		t.Fatalf("pdu kind wrong: %+v", got.Message.PDU)
	}
	if got.Message.PDU.RequestID.Value != 42 {
		t.Fatalf("request-id = %d, want 42", got.Message.PDU.RequestID.Value)
	}
	if len(got.Message.PDU.VarBinds) != 1 {
		t.Fatalf("varbinds = %d, want 1", len(got.Message.PDU.VarBinds))
	}
	vb := got.Message.PDU.VarBinds[0]
	if models.FormatOID(vb.Name.Value) != "1.3.6.1.2.1.1.3.0" {
		t.Fatalf("varbind name = %v", vb.Name.Value)
	}
	if vb.Value.Kind != models.ValueNull || !vb.Value.ValuePresent {
		t.Fatalf("varbind value = %+v", vb.Value)
	}

	_, err = r.Next()
	if err != text.ErrNoMorePackets {
		t.Fatalf("err = %v, want ErrNoMorePackets", err)
	}
}

func TestWritePacketFilterClearedCommunityPreservesStructure(t *testing.T) {
	pkt := samplePacket()
	pkt.Message.Community.ClearValue()

	var buf bytes.Buffer
	w := text.New(&buf, nil)
	_ = w.WriteHeader()
	if err := w.WritePacket(pkt, nil); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	_ = w.WriteFooter()

	r := text.NewReader(&buf)
	got, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got.Message.Community.ValuePresent {
		t.Fatalf("community value present after clear")
	}
	if !got.Message.Community.BlenPresent || got.Message.Community.Blen != 8 {
		t.Fatalf("community blen lost: %+v", got.Message.Community)
	}
}

func TestWritePacketDeleteElidesSubtree(t *testing.T) {
	pkt := samplePacket()

	var buf bytes.Buffer
	w := text.New(&buf, nil)
	_ = w.WriteHeader()
	elide := func(field string) bool { return field == text.FieldCommunity }
	if err := w.WritePacket(pkt, elide); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	_ = w.WriteFooter()

	if bytes.Contains(buf.Bytes(), []byte("community")) {
		t.Fatalf("elided field leaked into output: %s", buf.String())
	}
}
