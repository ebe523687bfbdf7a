package flow_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/quyenlv/snmpdump/flow"
	"github.com/quyenlv/snmpdump/models"
)

func endpoint(a [4]byte, port uint16) models.Endpoint {
	var e models.Endpoint
	e.V4.Set(a, 4, 4)
	e.Port.Set(port, 2, 2)
	return e
}

func commandPacket(kind models.PDUKind, reqID int32, src, dst models.Endpoint, sec uint32) *models.Packet {
	pkt := &models.Packet{Src: src, Dst: dst}
	pkt.TimeSec.Set(sec, 4, 4)
	pdu := &models.PDU{Kind: kind}
	pdu.RequestID.Set(reqID, 3, 1)
	pkt.Message.PDU = pdu
	return pkt
}

func TestClassify(t *testing.T) {
	cases := []struct {
		kind models.PDUKind
		want flow.Classification
	}{
		{models.PDUGet, flow.Command},
		{models.PDUGetNext, flow.Command},
		{models.PDUGetBulk, flow.Command},
		{models.PDUSet, flow.Command},
		{models.PDUTrap1, flow.Notify},
		{models.PDUTrap2, flow.Notify},
		{models.PDUInform, flow.Notify},
		{models.PDUResponse, flow.None},
		{models.PDUReport, flow.None},
	}
	for _, tc := range cases {
		pkt := commandPacket(tc.kind, 1, models.Endpoint{}, models.Endpoint{}, 0)
		if got := flow.Classify(pkt); got != tc.want {
			t.Errorf("classify(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
	if flow.Classify(&models.Packet{}) != flow.None {
		t.Fatalf("classify(no pdu) != None")
	}
}

func TestCorrelatorInformRoutesToNotifyFlowNotCommand(t *testing.T) {
	dir := t.TempDir()
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test"}, flow.CsvSink{}, nil)

	manager := endpoint([4]byte{10, 0, 0, 1}, 12345)
	agent := endpoint([4]byte{10, 0, 0, 2}, 162)
	inform := commandPacket(models.PDUInform, 5, agent, manager, 1)

	if err := c.Process(inform); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "test-cg-10.0.0.2-cr-10.0.0.1.csv")); err == nil {
		t.Fatal("inform must not be routed into a command flow")
	}
	if _, err := os.Stat(filepath.Join(dir, "test-no-10.0.0.2-nr-10.0.0.1.csv")); err != nil {
		t.Fatalf("expected inform in a notify flow: %v", err)
	}
}

func TestCorrelatorInformResponseMatchesIntoSameNotifyFlow(t *testing.T) {
	dir := t.TempDir()
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test"}, flow.CsvSink{}, nil)

	manager := endpoint([4]byte{10, 0, 0, 1}, 12345)
	agent := endpoint([4]byte{10, 0, 0, 2}, 162)
	inform := commandPacket(models.PDUInform, 5, agent, manager, 1)
	resp := commandPacket(models.PDUResponse, 5, manager, agent, 2)

	if err := c.Process(inform); err != nil {
		t.Fatalf("process inform: %v", err)
	}
	if flow.Classify(resp) != flow.None {
		t.Fatalf("classify(response) != None")
	}
	if err := c.Process(resp); err != nil {
		t.Fatalf("process response: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "test-no-10.0.0.2-nr-10.0.0.1.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read flow file: %v", err)
	}
	lines := bytes.Count(data, []byte("\n"))
	if lines != 3 { // header + inform + response
		t.Fatalf("lines = %d, want 3; content:\n%s", lines, data)
	}
}

func TestCorrelatorV3ReportClassifiesNoneEvenWithPDU(t *testing.T) {
	pkt := commandPacket(models.PDUReport, 1, models.Endpoint{}, models.Endpoint{}, 0)
	if flow.Classify(pkt) != flow.None {
		t.Fatalf("classify(report) != None")
	}
}

func TestCorrelatorMatchesRequestAndResponseIntoSameFlow(t *testing.T) {
	dir := t.TempDir()
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test"}, flow.CsvSink{}, nil)

	client := endpoint([4]byte{10, 0, 0, 1}, 12345)
	server := endpoint([4]byte{10, 0, 0, 2}, 161)

	req := commandPacket(models.PDUGet, 7, client, server, 100)
	resp := commandPacket(models.PDUResponse, 7, server, client, 101)

	if err := c.Process(req); err != nil {
		t.Fatalf("process request: %v", err)
	}
	if err := c.Process(resp); err != nil {
		t.Fatalf("process response: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "test-cg-10.0.0.1-cr-10.0.0.2.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read flow file: %v", err)
	}
	lines := bytes.Count(data, []byte("\n"))
	if lines != 3 { // header + 2 packets
		t.Fatalf("lines = %d, want 3; content:\n%s", lines, data)
	}
}

func TestCorrelatorRoutesPDUlessV3PacketToFallback(t *testing.T) {
	dir := t.TempDir()
	var fallback bytes.Buffer
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test", Fallback: &fallback}, flow.CsvSink{}, nil)

	// A v3 message with a populated envelope (msg_id, USM header) but no PDU
	// at all, as decoded from an empty scoped-PDU-context report: Classify
	// has nothing to key on, so Process must still route it without a PDU
	// dereference and without erroring.
	pkt := &models.Packet{}
	pkt.TimeSec.Set(1, 4, 4)
	pkt.Message.Version.Set(3, 3, 1)
	v3 := &models.V3Envelope{}
	v3.MsgID.Set(42, 3, 1)
	pkt.Message.V3 = v3

	if flow.Classify(pkt) != flow.None {
		t.Fatalf("classify(v3 envelope, no pdu) != None")
	}
	if err := c.Process(pkt); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fallback.Len() == 0 {
		t.Fatal("fallback sink received nothing")
	}
}

func TestCorrelatorUnmatchedResponseGoesToFallback(t *testing.T) {
	dir := t.TempDir()
	var fallback bytes.Buffer
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test", Fallback: &fallback}, flow.CsvSink{}, nil)

	client := endpoint([4]byte{10, 0, 0, 1}, 12345)
	server := endpoint([4]byte{10, 0, 0, 2}, 161)
	resp := commandPacket(models.PDUResponse, 99, server, client, 10)

	if err := c.Process(resp); err != nil {
		t.Fatalf("process: %v", err)
	}
	if fallback.Len() == 0 {
		t.Fatal("fallback sink received nothing")
	}
}

func TestCorrelatorUnmatchedResponseIsAddedToCache(t *testing.T) {
	dir := t.TempDir()
	var fallback bytes.Buffer
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test", Fallback: &fallback}, flow.CsvSink{}, nil)

	client := endpoint([4]byte{10, 0, 0, 1}, 12345)
	server := endpoint([4]byte{10, 0, 0, 2}, 161)

	// An orphan response with no preceding request is still recorded in the
	// cache: it may itself be answered later (spec.md §4.5's "they may be a
	// request whose response has yet to arrive"). A second packet that
	// role-swap-matches it must hit the cache instead of silently missing.
	orphan := commandPacket(models.PDUResponse, 99, server, client, 10)
	if err := c.Process(orphan); err != nil {
		t.Fatalf("process orphan: %v", err)
	}
	if fallback.Len() == 0 {
		t.Fatal("fallback sink received nothing for the orphan")
	}
	fallback.Reset()

	again := commandPacket(models.PDUResponse, 99, client, server, 11)
	if err := c.Process(again); err != nil {
		t.Fatalf("process matching packet: %v", err)
	}
	if fallback.Len() == 0 {
		t.Fatal("cached orphan's match should still land in the fallback sink (no named flow)")
	}
}

func TestCorrelatorNotifyFlowNaming(t *testing.T) {
	dir := t.TempDir()
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test"}, flow.CsvSink{}, nil)

	agent := endpoint([4]byte{192, 168, 1, 1}, 162)
	manager := endpoint([4]byte{192, 168, 1, 2}, 162)
	trap := commandPacket(models.PDUTrap2, 0, agent, manager, 5)

	if err := c.Process(trap); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "test-no-192.168.1.1-nr-192.168.1.2.csv")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected notify flow file: %v", err)
	}
}

func TestFileCacheReopensEvictedFlowInAppendMode(t *testing.T) {
	dir := t.TempDir()
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test", MaxOpenFiles: 1}, flow.CsvSink{}, nil)

	a := endpoint([4]byte{10, 0, 0, 1}, 1)
	b := endpoint([4]byte{10, 0, 0, 2}, 2)
	other := endpoint([4]byte{10, 0, 0, 3}, 3)

	first := commandPacket(models.PDUGetNext, 1, a, b, 1)
	// Writing to a second, distinct flow with MaxOpenFiles=1 forces the
	// first flow's descriptor to be evicted before it's ever closed.
	second := commandPacket(models.PDUGetNext, 2, b, other, 2)
	third := commandPacket(models.PDUGetNext, 3, a, b, 3)

	if err := c.Process(first); err != nil {
		t.Fatalf("process first: %v", err)
	}
	if err := c.Process(second); err != nil {
		t.Fatalf("process second: %v", err)
	}
	if err := c.Process(third); err != nil {
		t.Fatalf("process third (reopen after eviction): %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "test-cg-10.0.0.1-cr-10.0.0.2.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read flow file: %v", err)
	}
	lines := bytes.Count(data, []byte("\n"))
	if lines != 3 {
		t.Fatalf("lines = %d, want 3 (header + 2 packets, exactly one footer-equivalent close); content:\n%s", lines, data)
	}
}

func TestCorrelatorRotatesLargeFlowFile(t *testing.T) {
	dir := t.TempDir()
	c := flow.NewCorrelator(flow.Config{Dir: dir, Prefix: "test", MaxFlowBytes: 1}, flow.CsvSink{}, nil)

	a := endpoint([4]byte{10, 0, 0, 1}, 1)
	b := endpoint([4]byte{10, 0, 0, 2}, 2)
	pkt := commandPacket(models.PDUGetNext, 1, a, b, 1)

	if err := c.Process(pkt); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	path := filepath.Join(dir, "test-cg-10.0.0.1-cr-10.0.0.2.csv")
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected a rotated backup file with a 1-byte threshold: %v", err)
	}
}
