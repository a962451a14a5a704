package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/kbuckham/udsd/internal/isotp"
	"github.com/spf13/cobra"
)

// scenarios names the literal end-to-end request payloads (SID +
// parameters, without the ISO-TP length/PCI byte — isotp.Link computes
// that itself) a developer can replay against a running responder
// without hand-typing hex, the same way the teacher's test/dtc
// subcommands let a developer poke a real ECU manually.
var scenarios = map[string][]byte{
	"read-threshold":        {0x22, 0xF1, 0x92},
	"write-threshold":       {0x2E, 0xF1, 0x92, 0x0A, 0xBC},
	"write-threshold-oor":   {0x2E, 0xF1, 0x92, 0x10, 0x00},
	"unsupported-service":   {0x10, 0x01},
	"dtc-count":             {0x19, 0x01, 0xFF},
	"dtc-by-status":         {0x19, 0x02, 0xFF},
	"ecu-reset":             {0x11, 0x01},
	"ecu-reset-suppressed":  {0x11, 0x81},
	"clear-all-dtcs":        {0x14, 0xFF, 0xFF, 0xFF},
	"security-request-seed": {0x27, 0x01},
}

var sendScenario string
var sendRawHex string

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a single UDS request to a running responder and print the response",
	Long: `Sends one request PDU over ISO-TP and decodes whatever comes back.

Use --scenario to replay one of this responder's documented end-to-end
byte sequences, or --raw to send an arbitrary space-separated hex payload
(SID plus parameters, without the length byte — it is computed for you).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmlog.InfoLevel,
		})
		if cfgVerbose {
			logger.SetLevel(charmlog.DebugLevel)
		}

		payload, err := resolveSendPayload()
		if err != nil {
			return err
		}

		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		tr, err := openTransport(cfg)
		if err != nil {
			return err
		}
		defer tr.Close()

		link := isotp.NewLink(tr, cfg.RequestID)
		logger.Info("sending request", "payload", fmt.Sprintf("% 02X", payload))
		if err := link.Send(payload); err != nil {
			return fmt.Errorf("send: %w", err)
		}

		reassembler := isotp.NewReassembler(tr, cfg.RequestID)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			f, err := tr.TryRecv()
			if err != nil {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			if f.ID != cfg.ResponseID {
				continue
			}
			pdu, complete, err := reassembler.Feed(f)
			if err != nil {
				logger.Warn("reassembly failed", "err", err)
				continue
			}
			if !complete {
				continue
			}
			logger.Info("received response", "payload", fmt.Sprintf("% 02X", pdu))
			return nil
		}
		return fmt.Errorf("send: no response within timeout")
	},
}

func resolveSendPayload() ([]byte, error) {
	if sendRawHex != "" {
		fields := strings.Fields(sendRawHex)
		payload := make([]byte, len(fields))
		for i, f := range fields {
			var b byte
			if _, err := fmt.Sscanf(f, "%02X", &b); err != nil {
				return nil, fmt.Errorf("send: invalid hex byte %q: %w", f, err)
			}
			payload[i] = b
		}
		return payload, nil
	}
	if sendScenario != "" {
		payload, ok := scenarios[sendScenario]
		if !ok {
			return nil, fmt.Errorf("send: unknown scenario %q", sendScenario)
		}
		return payload, nil
	}
	return nil, fmt.Errorf("send: one of --scenario or --raw is required")
}

func init() {
	sendCmd.Flags().StringVar(&sendScenario, "scenario", "", "named end-to-end scenario to replay (see --help)")
	sendCmd.Flags().StringVar(&sendRawHex, "raw", "", "raw request bytes (SID + params) as space-separated hex")
	rootCmd.AddCommand(sendCmd)
}
