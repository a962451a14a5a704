// Package isotp implements ISO 15765-2 segmentation and reassembly,
// mapping variable-length UDS PDUs onto 8-byte CAN frames.
package isotp

// PCI frame type nibble values (top nibble of the first payload byte).
const (
	pciSingleFrame = 0x0
	pciFirstFrame  = 0x1
	pciConsecutive = 0x2
	pciFlowControl = 0x3
)

// Flow Control flow-status values.
const (
	fsContinueToSend = 0x0
	fsWait           = 0x1
	fsOverflow       = 0x2
)

// MaxPDULen is the largest PDU this transport reassembles or segments,
// per ISO 15765-2's 12-bit First Frame length field.
const MaxPDULen = 4095

// sfMaxLen is the largest payload a Single Frame can carry (DLC=8: one
// PCI byte, 7 data bytes).
const sfMaxLen = 7

// ffDataLen is the number of payload bytes a First Frame carries
// alongside its PCI and 12-bit length field.
const ffDataLen = 6

// cfDataLen is the number of payload bytes a Consecutive Frame carries
// alongside its PCI/SN byte.
const cfDataLen = 7

// padByte fills unused trailing bytes of the final Consecutive Frame.
const padByte = 0xAA
