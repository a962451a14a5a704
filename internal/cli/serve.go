package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbuckham/udsd/internal/canbus"
	"github.com/kbuckham/udsd/internal/config"
	"github.com/kbuckham/udsd/internal/did"
	"github.com/kbuckham/udsd/internal/dtcstore"
	"github.com/kbuckham/udsd/internal/isotp"
	"github.com/kbuckham/udsd/internal/monitor"
	"github.com/kbuckham/udsd/internal/platform"
	"github.com/kbuckham/udsd/internal/store"
	"github.com/kbuckham/udsd/internal/uds"
	"github.com/spf13/cobra"
)

// These constants are the responder's fixed NVM region map: a 2-DID
// region (8 bytes each, per did.DefaultRegistry's thresholdOffset
// convention) followed by the DTC catalogue.
const (
	didRegionOffset = 0
	didSlotSize     = 8
	didCount        = 2
	dtcRegionOffset = didRegionOffset + didCount*didSlotSize
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the UDS responder's main dispatch loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig()
		if err != nil {
			return err
		}

		nvm, catalogue, registry, err := openResponderState(cfg)
		if err != nil {
			return err
		}

		tr, err := openTransport(cfg)
		if err != nil {
			return err
		}
		defer tr.Close()

		live := monitor.NewCachingReader(map[uint8]uint16{0: 20, 1: 0})
		link := isotp.NewLink(tr, cfg.ResponseID)
		dispatcher := &uds.Dispatcher{
			Catalogue:   catalogue,
			NVM:         nvm,
			DIDRegistry: registry,
			Live:        live,
			Resetter:    platform.ProcessResetter{ExitCode: 0},
			Link:        link,
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		watchdog := monitor.NewWatchdog(live, catalogue, cfg.OverheatThreshold)
		go watchdog.Run(ctx)

		slog.Info("serve: responder listening",
			"request_id", fmt.Sprintf("%#x", cfg.RequestID),
			"response_id", fmt.Sprintf("%#x", cfg.ResponseID))
		runDispatchLoop(ctx, tr, cfg.RequestID, cfg.ResponseID, dispatcher)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// openResponderState opens the NVM backing file and lays the DID
// registry and DTC catalogue out over it per the region map above.
func openResponderState(cfg config.Config) (*store.NVM, *dtcstore.Catalogue, *did.Registry, error) {
	slots := cfg.DTCSlotCount
	size := dtcRegionOffset + slots*dtcstore.SlotSize

	driver, err := store.OpenFileDriver(cfg.NVMPath, size)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("serve: open NVM store: %w", err)
	}
	nvm := store.New(driver)
	catalogue := dtcstore.New(nvm, dtcRegionOffset, slots)
	thresholdOffset := didRegionOffset + didSlotSize
	registry := did.DefaultRegistry(thresholdOffset)
	return nvm, catalogue, registry, nil
}

// openTransport selects SocketCAN or slcan-over-serial per cfg.
func openTransport(cfg config.Config) (canbus.Transport, error) {
	if cfg.SerialPort != "" {
		tr := canbus.NewSlcanSerial(cfg.SerialPort)
		if err := tr.Open(); err != nil {
			return nil, fmt.Errorf("serve: open slcan serial transport: %w", err)
		}
		return tr, nil
	}
	tr, err := canbus.OpenSocketCAN(cfg.CANInterface)
	if err != nil {
		return nil, fmt.Errorf("serve: open SocketCAN transport: %w", err)
	}
	return tr, nil
}

// runDispatchLoop polls tr for frames addressed to requestID,
// reassembles them over ISO-TP, and hands complete request PDUs to
// dispatcher, until ctx is cancelled. Flow Control frames the
// reassembler emits while collecting a segmented request go out on
// responseID, the same direction the dispatcher's own replies use.
func runDispatchLoop(ctx context.Context, tr canbus.Transport, requestID, responseID uint16, dispatcher *uds.Dispatcher) {
	reassembler := isotp.NewReassembler(tr, responseID)
	for {
		select {
		case <-ctx.Done():
			slog.Info("serve: shutting down")
			return
		default:
		}

		f, err := tr.TryRecv()
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		if f.ID != requestID {
			continue
		}

		pdu, complete, err := reassembler.Feed(f)
		if err != nil {
			slog.Warn("serve: ISO-TP reassembly failed", "err", err)
			continue
		}
		if !complete {
			continue
		}

		requestPDU := append([]byte{byte(len(pdu))}, pdu...)
		if err := dispatcher.Dispatch(requestPDU); err != nil {
			slog.Error("serve: dispatch failed", "err", err)
		}
	}
}
