// Package filter implements the field-hiding transforms driven by the
// --filter and --delete CLI flags: a single compiled regular expression
// matched once against the fixed vocabulary of known field names (see
// format/text.KnownFields), producing either a value-clearing mask
// (ModeClear) or a subtree-eliding predicate (ModeDelete).
package filter

import (
	"fmt"
	"regexp"

	"github.com/quyenlv/snmpdump/format/text"
	"github.com/quyenlv/snmpdump/models"
)

// Mode selects how a Filter's matched fields are treated.
type Mode int

const (
	// ModeClear drops a matched field's value while preserving any length
	// metadata already recorded on it — the --filter behaviour.
	ModeClear Mode = iota
	// ModeDelete elides a matched field's entire subtree from textual
	// output — the --delete behaviour.
	ModeDelete
)

// Filter matches field names against a compiled pattern and reports which of
// the fixed known field names match, once, up front.
type Filter struct {
	mode    Mode
	matched map[string]bool
}

// New compiles pattern and evaluates it against every known field name.
// Evaluating once at construction time, rather than per packet, is what
// makes repeated Apply/Elide calls idempotent and cheap.
func New(pattern string, mode Mode) (*Filter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("filter: compile %q: %w", pattern, err)
	}
	matched := make(map[string]bool, len(text.KnownFields))
	for _, name := range text.KnownFields {
		if re.MatchString(name) {
			matched[name] = true
		}
	}
	return &Filter{mode: mode, matched: matched}, nil
}

// Matches reports whether field was matched by the compiled pattern.
func (f *Filter) Matches(field string) bool {
	return f.matched[field]
}

// Elide returns the predicate a format/text.Writer's WritePacket expects for
// ModeDelete filters. It is nil (meaning "elide nothing") for ModeClear
// filters, since their effect is applied to the Packet itself via Apply.
func (f *Filter) Elide() text.Elide {
	if f.mode != ModeDelete {
		return nil
	}
	return f.Matches
}

// Apply clears the value (preserving blen/vlen) of every matched field on
// pkt, in place. It is a no-op for ModeDelete filters — those act at
// serialization time instead. Apply is idempotent: calling it twice leaves
// the packet unchanged the second time.
func (f *Filter) Apply(pkt *models.Packet) {
	if f.mode != ModeClear {
		return
	}
	if f.matched[text.FieldTimeSec] {
		pkt.TimeSec.ClearValue()
	}
	if f.matched[text.FieldTimeUsec] {
		pkt.TimeUsec.ClearValue()
	}
	m := &pkt.Message
	if f.matched[text.FieldVersion] {
		m.Version.ClearValue()
	}
	if f.matched[text.FieldCommunity] {
		m.Community.ClearValue()
	}
	if m.V3 != nil {
		f.applyV3(m.V3)
	}
	if m.PDU != nil {
		f.applyPDU(m.PDU)
	}
}

func (f *Filter) applyV3(v3 *models.V3Envelope) {
	if f.matched[text.FieldMsgID] {
		v3.MsgID.ClearValue()
	}
	if f.matched[text.FieldMaxSize] {
		v3.MsgMaxSize.ClearValue()
	}
	if f.matched[text.FieldFlags] {
		v3.MsgFlags.ClearValue()
	}
	if f.matched[text.FieldSecModel] {
		v3.MsgSecurityModel.ClearValue()
	}
	if f.matched[text.FieldAuthEngID] {
		v3.USM.AuthEngineID.ClearValue()
	}
	if f.matched[text.FieldAuthEngBoot] {
		v3.USM.AuthEngineBoots.ClearValue()
	}
	if f.matched[text.FieldAuthEngTime] {
		v3.USM.AuthEngineTime.ClearValue()
	}
	if f.matched[text.FieldUser] {
		v3.USM.User.ClearValue()
	}
	if f.matched[text.FieldAuthParams] {
		v3.USM.AuthParams.ClearValue()
	}
	if f.matched[text.FieldPrivParams] {
		v3.USM.PrivParams.ClearValue()
	}
	if f.matched[text.FieldCtxEngineID] {
		v3.ContextEngineID.ClearValue()
	}
	if f.matched[text.FieldCtxName] {
		v3.ContextName.ClearValue()
	}
}

func (f *Filter) applyPDU(pdu *models.PDU) {
	if f.matched[text.FieldRequestID] {
		pdu.RequestID.ClearValue()
	}
	if f.matched[text.FieldErrorStatus] {
		pdu.ErrorStatus.ClearValue()
	}
	if f.matched[text.FieldErrorIndex] {
		pdu.ErrorIndex.ClearValue()
	}
	if f.matched[text.FieldNonRep] {
		pdu.NonRepeaters.ClearValue()
	}
	if f.matched[text.FieldMaxRep] {
		pdu.MaxRepetitions.ClearValue()
	}
	if f.matched[text.FieldEnterprise] {
		pdu.Enterprise.ClearValue()
	}
	if f.matched[text.FieldAgentAddr] {
		pdu.AgentAddr.ClearValue()
	}
	if f.matched[text.FieldGenericTrap] {
		pdu.GenericTrap.ClearValue()
	}
	if f.matched[text.FieldSpecTrap] {
		pdu.SpecificTrap.ClearValue()
	}
	if f.matched[text.FieldTimeStamp] {
		pdu.TimeStamp.ClearValue()
	}
	for i := range pdu.VarBinds {
		vb := &pdu.VarBinds[i]
		if f.matched[text.FieldName] {
			vb.Name.ClearValue()
		}
		if f.matched[valueFieldNameFor(vb.Value.Kind)] {
			vb.Value.ValuePresent = false
		}
	}
}

func valueFieldNameFor(kind models.ValueKind) string {
	switch kind {
	case models.ValueInt32:
		return text.FieldValueInt32
	case models.ValueUint32:
		return text.FieldValueUint32
	case models.ValueUint64:
		return text.FieldValueUint64
	case models.ValueIPAddr:
		return text.FieldValueIPAddr
	case models.ValueOctets:
		return text.FieldValueOctets
	case models.ValueOid:
		return text.FieldValueOid
	case models.ValueNoSuchObject:
		return text.FieldNoSuchObject
	case models.ValueNoSuchInstance:
		return text.FieldNoSuchInstance
	case models.ValueEndOfMibView:
		return text.FieldEndOfMibView
	default:
		return text.FieldValueNull
	}
}
