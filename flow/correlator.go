package flow

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/quyenlv/snmpdump/models"
)

// Config controls Correlator behaviour.
type Config struct {
	// Dir is the directory per-flow output files are written into.
	Dir string
	// Prefix is the "<prefix>" in "<prefix>-<flow-name><ext>".
	Prefix string
	// MaxOpenFiles bounds how many flow files stay open at once. Zero
	// requests the platform-derived default (see maxOpenFilesDefault).
	MaxOpenFiles int
	// MaxFlowBytes rotates an individual flow file once it exceeds this
	// size, the same way transport/file.RotatingFile rotates a single
	// output file. Zero disables rotation.
	MaxFlowBytes int64
	// Fallback receives packets that classify as None (no PDU, or a
	// Response or Report) unless they match a cached request that has a
	// named flow; matched packets go to that request's flow instead.
	Fallback io.Writer
}

func (c Config) withDefaults() Config {
	if c.MaxOpenFiles <= 0 {
		c.MaxOpenFiles = maxOpenFilesDefault()
	}
	if c.Prefix == "" {
		c.Prefix = "snmpdump"
	}
	if c.Dir == "" {
		c.Dir = "."
	}
	if c.Fallback == nil {
		c.Fallback = os.Stderr
	}
	return c
}

// Correlator classifies decoded packets into command and notification flows,
// correlates command requests with their eventual responses, and routes each
// packet to its flow's output file via the open-file cache.
type Correlator struct {
	cfg    Config
	sink   Sink
	files  *fileCache
	cache  *requestCache
	logger *slog.Logger
}

// NewCorrelator constructs a Correlator. sink selects the wire format
// (TextSink or CsvSink) written to each flow file.
func NewCorrelator(cfg Config, sink Sink, logger *slog.Logger) *Correlator {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Correlator{
		cfg:    cfg,
		sink:   sink,
		files:  newFileCache(cfg.Dir, cfg.Prefix, sink, cfg.MaxOpenFiles, cfg.MaxFlowBytes, logger),
		cache:  newRequestCache(),
		logger: logger,
	}
}

// Process classifies and routes one packet. It never returns an error for a
// packet it cannot attribute to any flow — those go to the fallback sink —
// only for an I/O failure while writing.
func (c *Correlator) Process(pkt *models.Packet) error {
	c.cache.maybeSweep(pkt.TimeSec.Value)

	switch Classify(pkt) {
	case Command:
		return c.processCommand(pkt)
	case Notify:
		return c.processNotify(pkt)
	default:
		return c.processUnattributed(pkt)
	}
}

func (c *Correlator) processCommand(pkt *models.Packet) error {
	pdu := pkt.Message.PDU
	name := flowName(Command, pkt.Src.String(), pkt.Dst.String())
	if pdu.RequestID.ValuePresent {
		c.cache.put(pkt, name)
	}
	return c.writeToFlow(name, pkt)
}

// processNotify writes a notification to its own flow. An Inform is also
// recorded in the request cache, since unlike a Trap it elicits a Response
// that must be matched back onto this same flow.
func (c *Correlator) processNotify(pkt *models.Packet) error {
	pdu := pkt.Message.PDU
	name := flowName(Notify, pkt.Src.String(), pkt.Dst.String())
	if pdu.Kind == models.PDUInform && pdu.RequestID.ValuePresent {
		c.cache.put(pkt, name)
	}
	return c.writeToFlow(name, pkt)
}

// processUnattributed handles a packet classified None: a bare Response or
// Report, or one with no decoded PDU at all. It is matched against the
// request cache by request ID and role-swapped endpoints; on a hit it
// inherits the cached request's flow. On a miss — or when there is no PDU
// to key a lookup by — it is written to the fallback sink and, when it does
// carry a request ID, added to the cache itself: it may be a request whose
// own response has yet to arrive.
func (c *Correlator) processUnattributed(pkt *models.Packet) error {
	pdu := pkt.Message.PDU
	if pdu == nil {
		return c.writeFallback(pkt)
	}
	if entry, ok := c.cache.find(pkt); ok {
		if entry.flowName == "" {
			// The cached entry was itself an orphan written to the
			// fallback sink; its match has no named flow to join.
			return c.writeFallback(pkt)
		}
		return c.writeToFlow(entry.flowName, pkt)
	}
	if pdu.RequestID.ValuePresent {
		c.cache.put(pkt, "")
	}
	return c.writeFallback(pkt)
}

func (c *Correlator) writeToFlow(name string, pkt *models.Packet) error {
	f, err := c.files.acquire(name)
	if err != nil {
		return err
	}
	if err := c.sink.Write(f, pkt); err != nil {
		c.logger.Error("flow: write packet failed", "flow", name, "error", err.Error())
		return fmt.Errorf("flow: write packet to %s: %w", name, err)
	}
	return nil
}

func (c *Correlator) writeFallback(pkt *models.Packet) error {
	return c.sink.Write(c.cfg.Fallback, pkt)
}

// Close flushes and closes every flow file this correlator has opened,
// writing each one's footer exactly once.
func (c *Correlator) Close() error {
	return c.files.closeAll()
}

func flowName(kind Classification, src, dst string) string {
	if kind == Command {
		return fmt.Sprintf("cg-%s-cr-%s", src, dst)
	}
	return fmt.Sprintf("no-%s-nr-%s", src, dst)
}
