package decoder_test

import (
	"errors"
	"testing"

	"github.com/quyenlv/snmpdump/ber"
	"github.com/quyenlv/snmpdump/models"
	"github.com/quyenlv/snmpdump/snmp/decoder"
)

func loopback(port uint16) models.Endpoint {
	var e models.Endpoint
	e.V4.Set([4]byte{127, 0, 0, 1}, 4, 4)
	e.Port.Set(port, 2, 2)
	return e
}

// snmpv2cGetRequest builds: version=1, community="public", GetRequest-PDU
// {requestID=1, errorStatus=0, errorIndex=0, varbind-list={name=1.3.6.1.2.1.1.3.0, value=NULL}}
func snmpv2cGetRequest() []byte {
	name := ber.EncodeOID([]uint32{1, 3, 6, 1, 2, 1, 1, 3, 0})
	nameEl := append([]byte{0x06, byte(len(name))}, name...)
	valueEl := []byte{0x05, 0x00}
	varbind := append(append([]byte{}, nameEl...), valueEl...)
	varbindEl := append([]byte{0x30, byte(len(varbind))}, varbind...)
	vbList := append([]byte{0x30, byte(len(varbindEl))}, varbindEl...)

	pduContent := []byte{}
	pduContent = append(pduContent, 0x02, 0x01, 0x01) // requestID=1
	pduContent = append(pduContent, 0x02, 0x01, 0x00) // errorStatus=0
	pduContent = append(pduContent, 0x02, 0x01, 0x00) // errorIndex=0
	pduContent = append(pduContent, vbList...)
	pdu := append([]byte{0xa0, byte(len(pduContent))}, pduContent...)

	community := []byte("public")
	commEl := append([]byte{0x04, byte(len(community))}, community...)

	version := []byte{0x02, 0x01, 0x01}

	body := append(append(append([]byte{}, version...), commEl...), pdu...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func TestDecodeSNMPv2cGetRequest(t *testing.T) {
	d := decoder.New(ber.Complete)
	payload := snmpv2cGetRequest()

	pkt, err := d.Decode(1700000000, 0, loopback(12345), loopback(161), payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !pkt.Message.Version.ValuePresent || pkt.Message.Version.Value != 1 {
		t.Fatalf("version = %+v, want present=1", pkt.Message.Version)
	}
	if string(pkt.Message.Community.Value) != "public" {
		t.Fatalf("community = %q, want public", pkt.Message.Community.Value)
	}
	if pkt.Message.PDU == nil {
		t.Fatal("pdu is nil")
	}
	if pkt.Message.PDU.Kind != models.PDUGet {
		t.Fatalf("pdu kind = %v, want PDUGet", pkt.Message.PDU.Kind)
	}
	if pkt.Message.PDU.RequestID.Value != 1 {
		t.Fatalf("request id = %d, want 1", pkt.Message.PDU.RequestID.Value)
	}
	if len(pkt.Message.PDU.VarBinds) != 1 {
		t.Fatalf("varbinds = %d, want 1", len(pkt.Message.PDU.VarBinds))
	}
	vb := pkt.Message.PDU.VarBinds[0]
	if models.FormatOID(vb.Name.Value) != "1.3.6.1.2.1.1.3.0" {
		t.Fatalf("varbind name = %v", vb.Name.Value)
	}
	if vb.Value.Kind != models.ValueNull {
		t.Fatalf("varbind value kind = %v, want ValueNull", vb.Value.Kind)
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	body := []byte{0x02, 0x01, 0x05} // version=5, nothing else
	payload := append([]byte{0x30, byte(len(body))}, body...)

	d := decoder.New(ber.Complete)
	pkt, err := d.Decode(0, 0, models.Endpoint{}, models.Endpoint{}, payload)
	if !errors.Is(err, decoder.ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
	if !pkt.Message.Version.ValuePresent || pkt.Message.Version.Value != 5 {
		t.Fatalf("partial envelope missing version: %+v", pkt.Message.Version)
	}
}

func TestDecodeGetBulkIllegalUnderV1(t *testing.T) {
	community := []byte("public")
	commEl := append([]byte{0x04, byte(len(community))}, community...)
	pdu := []byte{0xa5, 0x02, 0x30, 0x00} // get-bulk tag, minimal
	version := []byte{0x02, 0x01, 0x00}   // version=0 (v1)
	body := append(append(append([]byte{}, version...), commEl...), pdu...)
	payload := append([]byte{0x30, byte(len(body))}, body...)

	d := decoder.New(ber.Complete)
	_, err := d.Decode(0, 0, models.Endpoint{}, models.Endpoint{}, payload)
	if !errors.Is(err, decoder.ErrVersionMismatch) {
		t.Fatalf("err = %v, want ErrVersionMismatch", err)
	}
}

// snmpv3ReportEmptyScope builds: version=3, msg_id=42, msg_max_size=127,
// msg_flags=0x00, msg_security_model=3 (USM), a 12-byte authoritative engine
// ID, and an empty scoped PDU context (context engine ID and context name
// both zero-length, no PDU following) — the shape of an engine-ID discovery
// report.
func snmpv3ReportEmptyScope() []byte {
	engineID := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	engineIDEl := append([]byte{0x04, byte(len(engineID))}, engineID...)
	boots := []byte{0x02, 0x01, 0x00}
	engTime := []byte{0x02, 0x01, 0x00}
	user := []byte{0x04, 0x00}
	authParams := []byte{0x04, 0x00}
	privParams := []byte{0x04, 0x00}
	usmContent := append(append(append(append(append(append([]byte{}, engineIDEl...), boots...), engTime...), user...), authParams...), privParams...)
	usmSeq := append([]byte{0x30, byte(len(usmContent))}, usmContent...)
	secParams := append([]byte{0x04, byte(len(usmSeq))}, usmSeq...)

	msgID := []byte{0x02, 0x01, 0x2a}
	msgMaxSize := []byte{0x02, 0x01, 0x7f}
	msgFlags := []byte{0x04, 0x01, 0x00}
	msgSecModel := []byte{0x02, 0x01, 0x03}
	globalContent := append(append(append(append([]byte{}, msgID...), msgMaxSize...), msgFlags...), msgSecModel...)
	globalSeq := append([]byte{0x30, byte(len(globalContent))}, globalContent...)

	ctxEngineID := []byte{0x04, 0x00}
	ctxName := []byte{0x04, 0x00}
	scopedContent := append(append([]byte{}, ctxEngineID...), ctxName...)
	scopedSeq := append([]byte{0x30, byte(len(scopedContent))}, scopedContent...)

	version := []byte{0x02, 0x01, 0x03}
	body := append(append(append(append([]byte{}, version...), globalSeq...), secParams...), scopedSeq...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func TestDecodeSNMPv3ReportWithUSMHeader(t *testing.T) {
	d := decoder.New(ber.Complete)
	pkt, err := d.Decode(0, 0, models.Endpoint{}, models.Endpoint{}, snmpv3ReportEmptyScope())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pkt.Message.Version.Value != 3 {
		t.Fatalf("version = %d, want 3", pkt.Message.Version.Value)
	}
	if pkt.Message.V3 == nil {
		t.Fatal("v3 envelope is nil")
	}
	if pkt.Message.V3.MsgID.Value != 42 {
		t.Fatalf("msg id = %d, want 42", pkt.Message.V3.MsgID.Value)
	}
	if pkt.Message.V3.MsgSecurityModel.Value != 3 {
		t.Fatalf("security model = %d, want 3", pkt.Message.V3.MsgSecurityModel.Value)
	}
	if len(pkt.Message.V3.USM.AuthEngineID.Value) != 12 {
		t.Fatalf("auth engine id len = %d, want 12", len(pkt.Message.V3.USM.AuthEngineID.Value))
	}
	if pkt.Message.PDU != nil {
		t.Fatalf("pdu = %+v, want nil for an empty scoped PDU context", pkt.Message.PDU)
	}
}

func TestDecodeTruncatedCapture(t *testing.T) {
	full := snmpv2cGetRequest()
	truncated := full[:len(full)-5]

	d := decoder.New(ber.Truncated)
	pkt, err := d.Decode(0, 0, models.Endpoint{}, models.Endpoint{}, truncated)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if pkt.Message.PDU == nil {
		t.Fatal("pdu is nil even in truncated mode")
	}
}
