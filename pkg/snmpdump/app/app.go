// Package app wires the snmpdump pipeline stages together behind a single
// synchronous processing loop.
//
// Pipeline:
//
//	input reader → decoder.Decode → [filter.Apply] → flow.Correlator.Process
//
// Each packet is carried all the way from input to output by an ordinary
// function call before the next packet is read — no goroutines, no
// channels between stages. This is a deliberate simplification of the
// channel-pipelined collector this layout is adapted from: a capture
// processor has no independent producers to decouple from one another, so
// the extra concurrency would only add synchronization cost.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/quyenlv/snmpdump/ber"
	"github.com/quyenlv/snmpdump/filter"
	"github.com/quyenlv/snmpdump/flow"
	"github.com/quyenlv/snmpdump/format/text"
	"github.com/quyenlv/snmpdump/models"
	"github.com/quyenlv/snmpdump/snmp/decoder"
)

// InputFormat names the shape of the input stream.
type InputFormat int

const (
	// InputPcap reads readPcapRecord-framed (sec, usec, src, dst, payload)
	// records, each payload a raw SNMP message to decode.
	InputPcap InputFormat = iota
	// InputXML reads format/text's round-trippable textual dump.
	InputXML
)

// OutputFormat names the per-flow file format the correlator writes.
type OutputFormat int

const (
	// OutputXML selects flow.TextSink.
	OutputXML OutputFormat = iota
	// OutputCSV selects flow.CsvSink.
	OutputCSV
)

// Config holds the top-level settings for one run of the pipeline.
type Config struct {
	// Input is the stream of captured or previously-dumped packets.
	Input io.Reader
	// InputFormat selects how Input is framed.
	InputFormat InputFormat

	// OutputFormat selects the per-flow file format.
	OutputFormat OutputFormat

	// TruncationMode controls how the decoder treats a length that runs
	// past the end of a buffer.
	TruncationMode ber.Mode

	// Filter, if non-nil, is applied to every decoded packet before it
	// reaches the flow correlator.
	Filter *filter.Filter

	// FlowDir, FlowPrefix, FlowMaxOpenFiles, FlowMaxBytes configure the
	// flow correlator's output; see flow.Config.
	FlowDir          string
	FlowPrefix       string
	FlowMaxOpenFiles int
	FlowMaxBytes     int64

	// Fallback receives packets the flow correlator cannot attribute to
	// any flow. nil defaults to os.Stderr.
	Fallback io.Writer
}

func (c *Config) withDefaults() {
	if c.Fallback == nil {
		c.Fallback = os.Stderr
	}
}

// App runs one pipeline over a single input stream.
type App struct {
	cfg        Config
	logger     *slog.Logger
	dec        decoder.Decoder
	correlator *flow.Correlator

	processed int
	decodeErr int
}

// New constructs an App. It does not read anything — call Run for that.
func New(cfg Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cfg.withDefaults()

	var sink flow.Sink
	switch cfg.OutputFormat {
	case OutputCSV:
		sink = flow.CsvSink{}
	default:
		var elide text.Elide
		if cfg.Filter != nil {
			elide = cfg.Filter.Elide()
		}
		sink = flow.TextSink{Elide: elide}
	}

	correlator := flow.NewCorrelator(flow.Config{
		Dir:          cfg.FlowDir,
		Prefix:       cfg.FlowPrefix,
		MaxOpenFiles: cfg.FlowMaxOpenFiles,
		MaxFlowBytes: cfg.FlowMaxBytes,
		Fallback:     cfg.Fallback,
	}, sink, logger)

	return &App{
		cfg:        cfg,
		logger:     logger,
		dec:        decoder.New(cfg.TruncationMode),
		correlator: correlator,
	}
}

// Run drains Input to completion, decoding (for InputPcap) or parsing (for
// InputXML) each packet, filtering it, and routing it through the flow
// correlator, until the input is exhausted or an unrecoverable I/O error
// occurs. It returns the number of packets successfully processed.
func (a *App) Run() (int, error) {
	switch a.cfg.InputFormat {
	case InputXML:
		return a.runXML()
	default:
		return a.runPcap()
	}
}

func (a *App) runPcap() (int, error) {
	for {
		timeSec, timeUsec, src, dst, payload, err := readPcapRecord(a.cfg.Input)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return a.processed, nil
			}
			return a.processed, fmt.Errorf("app: read pcap record: %w", err)
		}

		pkt, err := a.dec.Decode(timeSec, timeUsec, src, dst, payload)
		if err != nil {
			// pkt still carries whatever was decoded before the failure
			// and is routed like any other packet.
			a.decodeErr++
			a.logger.Warn("app: decode error", "error", err.Error())
		}
		if err := a.process(pkt); err != nil {
			return a.processed, err
		}
	}
}

func (a *App) runXML() (int, error) {
	r := text.NewReader(a.cfg.Input)
	for {
		pkt, err := r.Next()
		if err != nil {
			if errors.Is(err, text.ErrNoMorePackets) {
				return a.processed, nil
			}
			return a.processed, fmt.Errorf("app: read xml packet: %w", err)
		}
		if err := a.process(pkt); err != nil {
			return a.processed, err
		}
	}
}

func (a *App) process(pkt *models.Packet) error {
	if a.cfg.Filter != nil {
		a.cfg.Filter.Apply(pkt)
	}
	if err := a.correlator.Process(pkt); err != nil {
		return fmt.Errorf("app: route packet: %w", err)
	}
	a.processed++
	return nil
}

// Close flushes and closes every flow file the run's correlator opened.
func (a *App) Close() error {
	return a.correlator.Close()
}

// DecodeErrors reports how many pcap-input records decoded with an error.
// Such records are still routed, carrying whatever was decoded.
func (a *App) DecodeErrors() int {
	return a.decodeErr
}
