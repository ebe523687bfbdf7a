package app

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quyenlv/snmpdump/models"
)

// readPcapRecord decodes one length-prefixed record from r:
//
//	uint32 time_sec (big-endian)
//	uint32 time_usec (big-endian)
//	byte   src_family (4 or 6)
//	[4 or 16]byte src_addr
//	uint16 src_port (big-endian)
//	byte   dst_family (4 or 6)
//	[4 or 16]byte dst_addr
//	uint16 dst_port (big-endian)
//	uint32 payload_len (big-endian)
//	[payload_len]byte payload
//
// This stands in for whatever a real PCAP+UDP-reassembly layer hands the
// decoder (see §6's external-interfaces note); it exists so this module's
// --input pcap path and its tests do not depend on a packet-capture library.
func readPcapRecord(r io.Reader) (timeSec, timeUsec uint32, src, dst models.Endpoint, payload []byte, err error) {
	var hdr [8]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return
	}
	timeSec = binary.BigEndian.Uint32(hdr[0:4])
	timeUsec = binary.BigEndian.Uint32(hdr[4:8])

	if src, err = readEndpointRecord(r); err != nil {
		return
	}
	if dst, err = readEndpointRecord(r); err != nil {
		return
	}

	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	payload = make([]byte, n)
	if _, err = io.ReadFull(r, payload); err != nil {
		return
	}
	return
}

func readEndpointRecord(r io.Reader) (models.Endpoint, error) {
	var e models.Endpoint

	var family [1]byte
	if _, err := io.ReadFull(r, family[:]); err != nil {
		return e, err
	}

	switch family[0] {
	case 4:
		var addr [4]byte
		if _, err := io.ReadFull(r, addr[:]); err != nil {
			return e, err
		}
		e.V4.Set(addr, 4, 4)
	case 6:
		var addr [16]byte
		if _, err := io.ReadFull(r, addr[:]); err != nil {
			return e, err
		}
		e.V6.Set(addr, 16, 16)
	default:
		return e, fmt.Errorf("app: pcap record: unknown address family %d", family[0])
	}

	var portBuf [2]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return e, err
	}
	e.Port.Set(binary.BigEndian.Uint16(portBuf[:]), 2, 2)
	return e, nil
}
