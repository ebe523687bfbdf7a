package flow

import (
	"io"

	csvformat "github.com/quyenlv/snmpdump/format/csv"
	"github.com/quyenlv/snmpdump/format/text"
	"github.com/quyenlv/snmpdump/models"
)

// Sink writes a flow's packets to an io.Writer in a particular wire format.
// Begin/End bracket a file's lifetime with any header/footer the format
// needs; Write is called once per packet in between. Begin is invoked only
// the first time a flow's file is opened: when the open-file cache closes
// and later reopens the file, writing resumes in append mode without a
// second Begin.
type Sink interface {
	Begin(w io.Writer) error
	Write(w io.Writer, pkt *models.Packet) error
	End(w io.Writer) error
	// Extension names the file suffix this sink's format conventionally
	// uses, e.g. ".xml" or ".csv".
	Extension() string
}

// TextSink writes the round-trippable textual dump format.
type TextSink struct {
	Elide text.Elide
}

func (s TextSink) Begin(w io.Writer) error { return text.New(w, nil).WriteHeader() }
func (s TextSink) Write(w io.Writer, pkt *models.Packet) error {
	return text.New(w, nil).WritePacket(pkt, s.Elide)
}
func (s TextSink) End(w io.Writer) error { return text.New(w, nil).WriteFooter() }
func (s TextSink) Extension() string     { return ".xml" }

// CsvSink writes the one-line-per-packet CSV summary format.
type CsvSink struct{}

func (s CsvSink) Begin(w io.Writer) error                     { return csvformat.New(w).WriteHeader() }
func (s CsvSink) Write(w io.Writer, pkt *models.Packet) error { return csvformat.New(w).WritePacket(pkt) }
func (s CsvSink) End(w io.Writer) error                       { return nil }
func (s CsvSink) Extension() string                           { return ".csv" }
