package flow

import (
	"testing"

	"github.com/quyenlv/snmpdump/models"
)

func cacheTestPacket(reqID int32, src, dst models.Endpoint, sec uint32) *models.Packet {
	pkt := &models.Packet{Src: src, Dst: dst}
	pkt.TimeSec.Set(sec, 4, 4)
	pdu := &models.PDU{Kind: models.PDUGet}
	pdu.RequestID.Set(reqID, 3, 1)
	pkt.Message.PDU = pdu
	return pkt
}

func cacheTestEndpoint(a byte, port uint16) models.Endpoint {
	var e models.Endpoint
	e.V4.Set([4]byte{10, 0, 0, a}, 4, 4)
	e.Port.Set(port, 2, 2)
	return e
}

func TestRequestCachePutFindRoleSwap(t *testing.T) {
	c := newRequestCache()
	client := cacheTestEndpoint(1, 12345)
	agent := cacheTestEndpoint(2, 161)

	req := cacheTestPacket(7, client, agent, 100)
	c.put(req, "flow-a")

	resp := cacheTestPacket(7, agent, client, 101)
	entry, ok := c.find(resp)
	if !ok {
		t.Fatalf("find: expected a match for role-swapped response")
	}
	if entry.flowName != "flow-a" {
		t.Fatalf("flowName = %q, want flow-a", entry.flowName)
	}
}

func TestRequestCacheFindConsumesEntry(t *testing.T) {
	c := newRequestCache()
	client := cacheTestEndpoint(1, 12345)
	agent := cacheTestEndpoint(2, 161)

	c.put(cacheTestPacket(1, client, agent, 0), "flow-a")

	resp := cacheTestPacket(1, agent, client, 1)
	if _, ok := c.find(resp); !ok {
		t.Fatalf("find: expected first lookup to match")
	}
	if _, ok := c.find(resp); ok {
		t.Fatalf("find: entry should have been consumed by the first lookup")
	}
}

func TestRequestCacheFindRequiresMatchingRequestID(t *testing.T) {
	c := newRequestCache()
	client := cacheTestEndpoint(1, 12345)
	agent := cacheTestEndpoint(2, 161)

	c.put(cacheTestPacket(1, client, agent, 0), "flow-a")

	resp := cacheTestPacket(2, agent, client, 1)
	if _, ok := c.find(resp); ok {
		t.Fatalf("find: request id mismatch should not match")
	}
}

func TestRequestCacheMaybeSweepExpiresStaleEntries(t *testing.T) {
	c := newRequestCache()
	client := cacheTestEndpoint(1, 12345)
	agent := cacheTestEndpoint(2, 161)

	c.put(cacheTestPacket(1, client, agent, 0), "flow-a")

	// Sweeping only runs every cacheSweepInterval packets; entries survive
	// until the counter actually rolls over, however stale they are.
	for i := 0; i < cacheSweepInterval-1; i++ {
		c.maybeSweep(cacheExpirySeconds + 1000)
	}
	if len(c.entries) != 1 {
		t.Fatalf("entry swept before the interval elapsed")
	}

	c.maybeSweep(cacheExpirySeconds + 1000)
	if len(c.entries) != 0 {
		t.Fatalf("entry not swept once the interval elapsed, still have %d", len(c.entries))
	}
}

func TestRequestCacheMaybeSweepKeepsFreshEntries(t *testing.T) {
	c := newRequestCache()
	client := cacheTestEndpoint(1, 12345)
	agent := cacheTestEndpoint(2, 161)

	c.put(cacheTestPacket(1, client, agent, 1000), "flow-a")

	for i := 0; i < cacheSweepInterval; i++ {
		c.maybeSweep(1000 + cacheExpirySeconds - 1)
	}
	if len(c.entries) != 1 {
		t.Fatalf("fresh entry was swept, have %d entries", len(c.entries))
	}
}
