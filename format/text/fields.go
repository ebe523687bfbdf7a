// Package text implements the round-trippable textual (XML-like) dump format:
// a writer that serialises a decoded models.Packet and a reader that parses
// it back, preserving every presence flag exactly.
package text

// Field names the writer emits and the reader recognises. These are also the
// fixed vocabulary the filter package matches its regular expression
// against.
const (
	FieldPacket      = "packet"
	FieldTimeSec     = "time-sec"
	FieldTimeUsec    = "time-usec"
	FieldSrc         = "src"
	FieldDst         = "dst"
	FieldSnmp        = "snmp"
	FieldVersion     = "version"
	FieldCommunity   = "community"
	FieldMessage     = "message"
	FieldMsgID       = "msg-id"
	FieldMaxSize     = "max-size"
	FieldFlags       = "flags"
	FieldSecModel    = "security-model"
	FieldUSM         = "usm"
	FieldAuthEngID   = "auth-engine-id"
	FieldAuthEngBoot = "auth-engine-boots"
	FieldAuthEngTime = "auth-engine-time"
	FieldUser        = "user"
	FieldAuthParams  = "auth-params"
	FieldPrivParams  = "priv-params"
	FieldScopedPDU   = "scoped-pdu"
	FieldCtxEngineID = "context-engine-id"
	FieldCtxName     = "context-name"
	FieldRequestID   = "request-id"
	FieldErrorStatus = "error-status"
	FieldErrorIndex  = "error-index"
	FieldNonRep      = "non-repeaters"
	FieldMaxRep      = "max-repetitions"
	FieldEnterprise  = "enterprise"
	FieldAgentAddr   = "agent-addr"
	FieldGenericTrap = "generic-trap"
	FieldSpecTrap    = "specific-trap"
	FieldTimeStamp   = "time-stamp"
	FieldVarBinds    = "variable-bindings"
	FieldVarBind     = "varbind"
	FieldName        = "name"

	FieldValueNull      = "value-null"
	FieldValueInt32     = "value-int32"
	FieldValueUint32    = "value-uint32"
	FieldValueUint64    = "value-uint64"
	FieldValueIPAddr    = "value-ipaddr"
	FieldValueOctets    = "value-octets"
	FieldValueOid       = "value-oid"
	FieldNoSuchObject   = "no-such-object"
	FieldNoSuchInstance = "no-such-instance"
	FieldEndOfMibView   = "end-of-mib-view"
)

// KnownFields is the fixed table of field names the filter package matches
// its regular expression against.
var KnownFields = []string{
	FieldPacket, FieldTimeSec, FieldTimeUsec, FieldSrc, FieldDst,
	FieldSnmp, FieldVersion, FieldCommunity,
	FieldMessage, FieldMsgID, FieldMaxSize, FieldFlags, FieldSecModel,
	FieldUSM, FieldAuthEngID, FieldAuthEngBoot, FieldAuthEngTime, FieldUser,
	FieldAuthParams, FieldPrivParams,
	FieldScopedPDU, FieldCtxEngineID, FieldCtxName,
	FieldRequestID, FieldErrorStatus, FieldErrorIndex, FieldNonRep, FieldMaxRep,
	FieldEnterprise, FieldAgentAddr, FieldGenericTrap, FieldSpecTrap, FieldTimeStamp,
	FieldVarBinds, FieldVarBind, FieldName,
	FieldValueNull, FieldValueInt32, FieldValueUint32, FieldValueUint64,
	FieldValueIPAddr, FieldValueOctets, FieldValueOid,
	FieldNoSuchObject, FieldNoSuchInstance, FieldEndOfMibView,
}

func valueFieldName(kind int) string {
	switch kind {
	case 0:
		return FieldValueNull
	case 1:
		return FieldValueInt32
	case 2:
		return FieldValueUint32
	case 3:
		return FieldValueUint64
	case 4:
		return FieldValueIPAddr
	case 5:
		return FieldValueOctets
	case 6:
		return FieldValueOid
	case 7:
		return FieldNoSuchObject
	case 8:
		return FieldNoSuchInstance
	case 9:
		return FieldEndOfMibView
	default:
		return FieldValueNull
	}
}
