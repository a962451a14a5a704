package uds

// Service Identifiers handled by the core.
const (
	SIDECUReset                   byte = 0x11
	SIDClearDiagnosticInformation byte = 0x14
	SIDReadDTCInformation         byte = 0x19
	SIDReadDataByIdentifier       byte = 0x22
	SIDSecurityAccess             byte = 0x27
	SIDWriteDataByIdentifier      byte = 0x2E
)

// Sub-functions of service 0x27. Odd values request a seed; the next
// even value sends the key back. Only the first level is offered.
const (
	SFRequestSeed byte = 0x01
	SFSendKey     byte = 0x02
)

// fixedSeed is the seed requestSeed always issues. Real seed/key
// cryptography stays out of scope (see the Non-goal), but the key
// check in handleSecurityAccess is still real: sendKey must echo the seed's bitwise
// complement or the request is denied.
const fixedSeed uint16 = 0x0000

// securityLevelUnlocked is the only non-zero security level this
// responder grants; it never models more than one unlock tier.
const securityLevelUnlocked byte = 0x01

// respSIDOffset is added to a request SID to form its positive
// response SID (ISO 14229-1 §7.5).
const respSIDOffset = 0x40

// negativeResponseSID leads every negative response frame.
const negativeResponseSID = 0x7F

// Sub-functions of service 0x19.
const (
	SFReportNumberOfDTCByStatusMask = 0x01
	SFReportDTCByStatusMask         = 0x02
	SFReportDTCSnapshotByDTCNumber  = 0x04
	SFReportSupportedDTC            = 0x0A
)

// Negative Response Codes surfaced by the core.
const (
	NRCServiceNotSupported            byte = 0x11
	NRCSubFunctionNotSupported        byte = 0x12
	NRCIncorrectMessageLengthOrFormat byte = 0x13
	NRCResponseTooLong                byte = 0x14
	NRCConditionsNotCorrect           byte = 0x22
	NRCRequestOutOfRange              byte = 0x31
	NRCSecurityAccessDenied           byte = 0x33
	NRCGeneralProgrammingFailure      byte = 0x72
)

// dtcReportFormatID is the fixed DTCFormatID this responder advertises
// in reportNumberOfDTCByStatusMask responses (0x01: ISO 14229-1 format).
const dtcReportFormatID = 0x01

// fixedSnapshotRecordNumber is the record number echoed by
// reportDTCSnapshotRecordByDTCNumber regardless of the number requested.
// The original firmware fixes this at 0x01 irrespective of the request;
// this implementation follows that behavior rather than guessing intent.
const fixedSnapshotRecordNumber = 0x01

// allGroupsSentinel is the groupOfDTC / DTC-code value meaning "every
// DTC" for 0x14 Clear Diagnostic Information.
const allGroupsSentinel = 0xFFFFFF

// maxResponsePayload bounds a single response's payload size (excluding
// RespSID). It is far above anything this responder's fixed DID/DTC
// tables can produce; it exists so 0x22's ResponseTooLong path has a
// concrete, testable bound rather than being unreachable dead code.
const maxResponsePayload = 252
