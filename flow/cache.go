package flow

import "github.com/quyenlv/snmpdump/models"

// cacheExpirySeconds is how long an unmatched request is kept waiting for
// its response before the cache gives up on it.
const cacheExpirySeconds = 300

// cacheSweepInterval is how often (in packets processed) the cache is swept
// for expired entries, rather than checking on every single packet.
const cacheSweepInterval = 1024

type cacheKey struct {
	requestID int32
	src, dst  string // the request's own endpoints, not swapped
}

type cacheEntry struct {
	pkt      *models.Packet
	flowName string
	seenAt   uint32 // TimeSec of the request packet
}

// requestCache holds pending requests, keyed by request ID and endpoints,
// waiting to be matched against their response.
type requestCache struct {
	entries map[cacheKey]*cacheEntry
	sweeps  uint64
}

func newRequestCache() *requestCache {
	return &requestCache{entries: make(map[cacheKey]*cacheEntry)}
}

// put records pkt (a request) as awaiting a response.
func (c *requestCache) put(pkt *models.Packet, flowName string) {
	key := cacheKey{
		requestID: pkt.Message.PDU.RequestID.Value,
		src:       pkt.Src.String(),
		dst:       pkt.Dst.String(),
	}
	c.entries[key] = &cacheEntry{pkt: pkt.Clone(), flowName: flowName, seenAt: pkt.TimeSec.Value}
}

// find looks up the request matching a response packet: same request ID,
// with the response's src/dst swapped relative to the original request's
// dst/src (the response travels back the way the request came).
func (c *requestCache) find(resp *models.Packet) (*cacheEntry, bool) {
	key := cacheKey{
		requestID: resp.Message.PDU.RequestID.Value,
		src:       resp.Dst.String(),
		dst:       resp.Src.String(),
	}
	e, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
	}
	return e, ok
}

// maybeSweep increments the packet counter and, every cacheSweepInterval
// packets, evicts entries older than cacheExpirySeconds relative to now.
func (c *requestCache) maybeSweep(now uint32) {
	c.sweeps++
	if c.sweeps%cacheSweepInterval != 0 {
		return
	}
	for k, e := range c.entries {
		if now >= e.seenAt && now-e.seenAt > cacheExpirySeconds {
			delete(c.entries, k)
		}
	}
}
