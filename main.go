// Command udsresponderd is a UDS (ISO 14229-1) diagnostic responder
// over ISO-TP (ISO 15765-2) segmentation on a CAN-class network.
package main

import "github.com/kbuckham/udsd/internal/cli"

func main() {
	cli.Execute()
}
