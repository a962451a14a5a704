package uds

// Flow is the transaction's response discipline, reset at the start of
// every Dispatch call: a handler either populates a positive payload,
// sets a negative response code, or (only for a suppressed ECU Reset)
// suppresses the response entirely.
type Flow int

const (
	FlowNone Flow = iota
	FlowPositive
	FlowNegative
)

// Context is the one, non-reentrant UDS transaction state a dispatch
// produces.
type Context struct {
	Flow    Flow
	SID     byte
	NRC     byte
	Payload []byte
}
