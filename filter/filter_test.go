package filter_test

import (
	"testing"

	"github.com/quyenlv/snmpdump/filter"
	"github.com/quyenlv/snmpdump/models"
)

func samplePacket() *models.Packet {
	pkt := &models.Packet{}
	pkt.Message.Community.Set([]byte("public"), 8, 6)
	pdu := &models.PDU{Kind: models.PDUGet}
	pdu.RequestID.Set(int32(1), 3, 1)
	pkt.Message.PDU = pdu
	return pkt
}

func TestApplyClearsValuePreservesLength(t *testing.T) {
	f, err := filter.New("community", filter.ModeClear)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	pkt := samplePacket()
	f.Apply(pkt)

	if pkt.Message.Community.ValuePresent {
		t.Fatalf("community value still present")
	}
	if !pkt.Message.Community.BlenPresent || pkt.Message.Community.Blen != 8 {
		t.Fatalf("blen lost: %+v", pkt.Message.Community)
	}
}

func TestApplyIdempotent(t *testing.T) {
	f, _ := filter.New("community", filter.ModeClear)
	pkt := samplePacket()
	f.Apply(pkt)
	f.Apply(pkt)

	if pkt.Message.Community.ValuePresent {
		t.Fatalf("community value present after second apply")
	}
}

func TestApplyNonMatchingFieldUntouched(t *testing.T) {
	f, _ := filter.New("community", filter.ModeClear)
	pkt := samplePacket()
	f.Apply(pkt)

	if !pkt.Message.PDU.RequestID.ValuePresent {
		t.Fatalf("unrelated field request-id cleared")
	}
}

func TestModeDeleteElide(t *testing.T) {
	f, err := filter.New("community", filter.ModeDelete)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	elide := f.Elide()
	if elide == nil {
		t.Fatal("elide is nil for ModeDelete")
	}
	if !elide("community") {
		t.Fatalf("elide(community) = false, want true")
	}
	if elide("request-id") {
		t.Fatalf("elide(request-id) = true, want false")
	}
}

func TestModeClearHasNoElide(t *testing.T) {
	f, _ := filter.New("community", filter.ModeClear)
	if f.Elide() != nil {
		t.Fatal("ModeClear filter returned a non-nil elide predicate")
	}
}
