package uds

import (
	"github.com/kbuckham/udsd/internal/did"
)

// handleECUReset implements SID 0x11. The low 7 bits of the
// sub-function must be 0x01 (hard reset); bit 7 is suppressPosRsp. A
// suppressed reset returns FlowNone, signaling the caller to reset
// immediately without sending a response.
func (d *Dispatcher) handleECUReset(requestPDU []byte) Context {
	ctx := Context{SID: SIDECUReset}
	if len(requestPDU) < 3 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	subfunc := requestPDU[2]
	suppress := subfunc&0x80 != 0
	resetType := subfunc & 0x7F
	if resetType != 0x01 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCSubFunctionNotSupported
		return ctx
	}
	if suppress {
		ctx.Flow = FlowNone
		return ctx
	}
	ctx.Flow = FlowPositive
	ctx.Payload = []byte{subfunc}
	return ctx
}

// handleClearDiagnosticInformation implements SID 0x14. groupOfDTC is a
// 3-byte big-endian value; allGroupsSentinel clears every DTC.
// Conditions are always granted (security/session exchange is stubbed).
func (d *Dispatcher) handleClearDiagnosticInformation(requestPDU []byte) Context {
	ctx := Context{SID: SIDClearDiagnosticInformation}
	if len(requestPDU) != 5 || requestPDU[0] != 4 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	group := uint32(requestPDU[2])<<16 | uint32(requestPDU[3])<<8 | uint32(requestPDU[4])
	if err := d.Catalogue.Clear(group); err != nil {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCGeneralProgrammingFailure
		return ctx
	}
	ctx.Flow = FlowPositive
	return ctx
}

// handleSecurityAccess implements SID 0x27: per the Non-goal excluding
// real seed/key cryptography, requestSeed always issues fixedSeed, but
// sendKey is not a rubber stamp — it rejects any key that isn't the
// seed's bitwise complement with NRC SecurityAccessDenied, and a key
// sent with no seed outstanding is denied the same way. A granted key
// raises securityLevel to securityLevelUnlocked; a denied one
// leaves it untouched and clears the outstanding seed, so a client must
// request a fresh seed before trying again.
func (d *Dispatcher) handleSecurityAccess(requestPDU []byte) Context {
	ctx := Context{SID: SIDSecurityAccess}
	params := requestPDU[2:]
	if len(params) < 1 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}

	switch params[0] {
	case SFRequestSeed:
		if len(params) != 1 {
			ctx.Flow = FlowNegative
			ctx.NRC = NRCIncorrectMessageLengthOrFormat
			return ctx
		}
		if d.securityLevel == securityLevelUnlocked {
			d.seedPending = false
			ctx.Flow = FlowPositive
			ctx.Payload = []byte{SFRequestSeed, 0x00, 0x00}
			return ctx
		}
		d.seedPending = true
		ctx.Flow = FlowPositive
		ctx.Payload = []byte{SFRequestSeed, byte(fixedSeed >> 8), byte(fixedSeed)}
		return ctx
	case SFSendKey:
		if len(params) != 3 {
			ctx.Flow = FlowNegative
			ctx.NRC = NRCIncorrectMessageLengthOrFormat
			return ctx
		}
		key := uint16(params[1])<<8 | uint16(params[2])
		wantKey := ^fixedSeed
		if !d.seedPending || key != wantKey {
			d.seedPending = false
			ctx.Flow = FlowNegative
			ctx.NRC = NRCSecurityAccessDenied
			return ctx
		}
		d.seedPending = false
		d.securityLevel = securityLevelUnlocked
		ctx.Flow = FlowPositive
		ctx.Payload = []byte{SFSendKey}
		return ctx
	default:
		ctx.Flow = FlowNegative
		ctx.NRC = NRCSubFunctionNotSupported
		return ctx
	}
}

// handleReadDTCInformation implements SID 0x19, dispatching further on
// its sub-function byte.
func (d *Dispatcher) handleReadDTCInformation(requestPDU []byte) Context {
	ctx := Context{SID: SIDReadDTCInformation}
	params := requestPDU[2:]
	if len(params) < 1 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}

	switch params[0] {
	case SFReportNumberOfDTCByStatusMask:
		return d.reportNumberOfDTCByStatusMask(params)
	case SFReportDTCByStatusMask:
		return d.reportDTCByStatusMask(params)
	case SFReportDTCSnapshotByDTCNumber:
		return d.reportDTCSnapshotByDTCNumber(params)
	case SFReportSupportedDTC:
		return d.reportSupportedDTC(params)
	default:
		ctx.Flow = FlowNegative
		ctx.NRC = NRCSubFunctionNotSupported
		return ctx
	}
}

func (d *Dispatcher) reportNumberOfDTCByStatusMask(params []byte) Context {
	ctx := Context{SID: SIDReadDTCInformation}
	if len(params) != 2 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	mask := params[1]
	_, recs, err := d.Catalogue.ActiveRecords()
	if err != nil {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCGeneralProgrammingFailure
		return ctx
	}
	var count uint16
	for _, r := range recs {
		if statusMatches(r.Status, mask) {
			count++
		}
	}
	ctx.Flow = FlowPositive
	ctx.Payload = []byte{
		SFReportNumberOfDTCByStatusMask, 0xFF, dtcReportFormatID,
		byte(count >> 8), byte(count),
	}
	return ctx
}

func (d *Dispatcher) reportDTCByStatusMask(params []byte) Context {
	ctx := Context{SID: SIDReadDTCInformation}
	if len(params) != 2 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	mask := params[1]
	_, recs, err := d.Catalogue.ActiveRecords()
	if err != nil {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCGeneralProgrammingFailure
		return ctx
	}
	payload := []byte{SFReportDTCByStatusMask, 0xFF}
	for _, r := range recs {
		if statusMatches(r.Status, mask) {
			payload = append(payload, dtcCodeBytes(r.Code)...)
			payload = append(payload, r.Status)
		}
	}
	ctx.Flow = FlowPositive
	ctx.Payload = payload
	return ctx
}

func (d *Dispatcher) reportDTCSnapshotByDTCNumber(params []byte) Context {
	ctx := Context{SID: SIDReadDTCInformation}
	if len(params) != 5 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	code := uint32(params[1])<<16 | uint32(params[2])<<8 | uint32(params[3])
	recordNumber := params[4]
	if recordNumber != 0x01 && recordNumber != 0xFF {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCRequestOutOfRange
		return ctx
	}
	idx, ok, err := d.Catalogue.Find(code)
	if err != nil {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCGeneralProgrammingFailure
		return ctx
	}
	if !ok {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCRequestOutOfRange
		return ctx
	}
	rec, ok, err := d.Catalogue.Get(idx)
	if err != nil || !ok {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCRequestOutOfRange
		return ctx
	}
	payload := []byte{SFReportDTCSnapshotByDTCNumber}
	payload = append(payload, dtcCodeBytes(rec.Code)...)
	payload = append(payload, rec.Status, fixedSnapshotRecordNumber,
		rec.Snapshot.Temperature, rec.Snapshot.Day, rec.Snapshot.Month,
		byte(rec.Snapshot.Year>>8), byte(rec.Snapshot.Year))
	ctx.Flow = FlowPositive
	ctx.Payload = payload
	return ctx
}

func (d *Dispatcher) reportSupportedDTC(params []byte) Context {
	ctx := Context{SID: SIDReadDTCInformation}
	if len(params) != 1 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	_, recs, err := d.Catalogue.ActiveRecords()
	if err != nil {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCGeneralProgrammingFailure
		return ctx
	}
	payload := []byte{SFReportSupportedDTC, 0xFF}
	for _, r := range recs {
		payload = append(payload, dtcCodeBytes(r.Code)...)
		payload = append(payload, r.Status)
	}
	ctx.Flow = FlowPositive
	ctx.Payload = payload
	return ctx
}

// statusMatches implements the 0x19 filter: 0xFF matches every active
// DTC; any other mask requires every bit of mask to be set in status.
func statusMatches(status, mask byte) bool {
	if mask == 0xFF {
		return true
	}
	return status&mask == mask
}

// dtcCodeBytes returns a DTC code's 3 big-endian significant bytes.
func dtcCodeBytes(code uint32) []byte {
	code &= 0x00FFFFFF
	return []byte{byte(code >> 16), byte(code >> 8), byte(code)}
}

// handleReadDataByIdentifier implements SID 0x22: parse DID pairs,
// append each supported DID's 2-byte big-endian value to the response.
func (d *Dispatcher) handleReadDataByIdentifier(requestPDU []byte) Context {
	ctx := Context{SID: SIDReadDataByIdentifier}
	if len(requestPDU) < 4 || len(requestPDU)%2 != 0 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	params := requestPDU[2:]

	var payload []byte
	matched := 0
	for i := 0; i+1 < len(params); i += 2 {
		id := uint16(params[i])<<8 | uint16(params[i+1])
		def, ok := d.DIDRegistry.Lookup(id)
		if !ok {
			continue
		}
		matched++
		value, err := d.readDIDValue(def)
		if err != nil {
			ctx.Flow = FlowNegative
			ctx.NRC = NRCGeneralProgrammingFailure
			return ctx
		}
		payload = append(payload, byte(id>>8), byte(id), byte(value>>8), byte(value))
		if len(payload) > maxResponsePayload {
			ctx.Flow = FlowNegative
			ctx.NRC = NRCResponseTooLong
			return ctx
		}
	}
	if matched == 0 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCRequestOutOfRange
		return ctx
	}
	ctx.Flow = FlowPositive
	ctx.Payload = payload
	return ctx
}

// readDIDValue resolves def's current value from its configured source.
func (d *Dispatcher) readDIDValue(def did.Def) (uint16, error) {
	switch def.Source {
	case did.SourceLive:
		return d.Live.Read(def.Channel), nil
	case did.SourceStoredValue:
		buf := make([]byte, 2)
		if err := d.NVM.Read(def.NVMOffset, buf); err != nil {
			return 0, err
		}
		return uint16(buf[0])<<8 | uint16(buf[1]), nil
	default:
		return 0, nil
	}
}

// handleWriteDataByIdentifier implements SID 0x2E: the DID must be
// writable and the new value must fit in 12 bits.
func (d *Dispatcher) handleWriteDataByIdentifier(requestPDU []byte) Context {
	ctx := Context{SID: SIDWriteDataByIdentifier}
	if len(requestPDU) < 5 || len(requestPDU) > 6 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return ctx
	}
	didID := uint16(requestPDU[2])<<8 | uint16(requestPDU[3])
	valueBytes := requestPDU[4:]

	var value uint32
	for _, b := range valueBytes {
		value = value<<8 | uint32(b)
	}

	def, ok := d.DIDRegistry.Lookup(didID)
	if !ok || !def.Writable {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCRequestOutOfRange
		return ctx
	}
	if value > 4095 {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCRequestOutOfRange
		return ctx
	}
	buf := []byte{byte(value >> 8), byte(value)}
	if err := d.NVM.Write(def.NVMOffset, buf); err != nil {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCGeneralProgrammingFailure
		return ctx
	}
	ctx.Flow = FlowPositive
	ctx.Payload = []byte{byte(didID >> 8), byte(didID)}
	return ctx
}
