// Package uds implements the UDS (ISO 14229-1) service dispatcher: SID
// routing, per-service request validation, and the positive/negative
// response discipline described by the responder's supported service
// table.
package uds

import (
	"fmt"
	"log/slog"

	"github.com/kbuckham/udsd/internal/dtcstore"
	"github.com/kbuckham/udsd/internal/did"
	"github.com/kbuckham/udsd/internal/isotp"
	"github.com/kbuckham/udsd/internal/platform"
	"github.com/kbuckham/udsd/internal/sensor"
	"github.com/kbuckham/udsd/internal/store"
)

// Dispatcher routes incoming UDS request PDUs to per-service handlers
// and emits the resulting response over ISO-TP. It holds the collaborators
// every service needs: the DTC catalogue, the NVM store for writable
// DIDs, the DID registry, the live engine-state reader, and the reset
// primitive.
type Dispatcher struct {
	Catalogue   *dtcstore.Catalogue
	NVM         *store.NVM
	DIDRegistry *did.Registry
	Live        sensor.Reader
	Resetter    platform.Resetter
	Link        *isotp.Link

	// securityLevel and seedPending are SID 0x27's session state: which
	// level (if any) sendKey has unlocked, and whether a seed is
	// currently outstanding waiting on a key. Both only ever change from
	// the dispatch loop's goroutine.
	securityLevel byte
	seedPending   bool
}

// Dispatch resets the transaction context, routes requestPDU on its SID
// (requestPDU[1]), validates and executes the matching service, and
// sends exactly one response. requestPDU has the uniform shape
// [length_byte, SID, params...] regardless of whether it arrived as a
// single CAN frame or was reassembled from ISO-TP segments.
func (d *Dispatcher) Dispatch(requestPDU []byte) error {
	if len(requestPDU) < 2 {
		slog.Warn("uds: request too short to carry a SID, dropping", "len", len(requestPDU))
		return nil
	}

	sid := requestPDU[1]
	ctx := Context{SID: sid}
	slog.Debug("uds: dispatching", "sid", fmt.Sprintf("%#02x", sid), "len", len(requestPDU))

	if requestPDU[0] != byte(len(requestPDU)-1) {
		ctx.Flow = FlowNegative
		ctx.NRC = NRCIncorrectMessageLengthOrFormat
		return d.sendResponse(ctx)
	}

	switch sid {
	case SIDECUReset:
		ctx = d.handleECUReset(requestPDU)
		if ctx.Flow == FlowNone {
			d.Resetter.Reset()
		}
	case SIDClearDiagnosticInformation:
		ctx = d.handleClearDiagnosticInformation(requestPDU)
	case SIDReadDTCInformation:
		ctx = d.handleReadDTCInformation(requestPDU)
	case SIDSecurityAccess:
		ctx = d.handleSecurityAccess(requestPDU)
	case SIDReadDataByIdentifier:
		ctx = d.handleReadDataByIdentifier(requestPDU)
	case SIDWriteDataByIdentifier:
		ctx = d.handleWriteDataByIdentifier(requestPDU)
	default:
		ctx.Flow = FlowNegative
		ctx.NRC = NRCServiceNotSupported
	}

	slog.Debug("uds: dispatch decision", "sid", fmt.Sprintf("%#02x", sid),
		"flow", ctx.Flow, "nrc", fmt.Sprintf("%#02x", ctx.NRC))
	return d.sendResponse(ctx)
}

// sendResponse emits exactly the frame(s) ctx's flow calls for. A
// positive response carrying SID 0x11 triggers a platform reset only
// after the frame has been handed to the transport.
func (d *Dispatcher) sendResponse(ctx Context) error {
	switch ctx.Flow {
	case FlowNone:
		return nil
	case FlowNegative:
		return d.Link.Send([]byte{negativeResponseSID, ctx.SID, ctx.NRC})
	case FlowPositive:
		pdu := make([]byte, 0, 1+len(ctx.Payload))
		pdu = append(pdu, ctx.SID+respSIDOffset)
		pdu = append(pdu, ctx.Payload...)
		if err := d.Link.Send(pdu); err != nil {
			return err
		}
		if ctx.SID == SIDECUReset {
			d.Resetter.Reset()
		}
		return nil
	default:
		return nil
	}
}
