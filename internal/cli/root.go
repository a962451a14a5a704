// Package cli implements the responder daemon's command surface: a
// Cobra root command plus serve/send/inspect-nvm subcommands, wired the
// same way kevin-buckham-MMCd-Go's internal/cli/root.go wires its own
// tool's flags and logging.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kbuckham/udsd/internal/version"
	"github.com/spf13/cobra"
)

var (
	cfgFile         string
	cfgCANInterface string
	cfgSerialPort   string
	cfgRequestID    uint16
	cfgResponseID   uint16
	cfgNVMPath      string
	cfgDTCSlots     int
	cfgVerbose      bool
	cfgLogFile      string
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:     "udsresponderd",
	Short:   "udsresponderd — UDS/ISO-TP diagnostic responder over CAN",
	Version: version.FullVersion(),
	Long: fmt.Sprintf(`%s v%s
%s

Developed by %s
%s

Use subcommands for operation (serve, send, inspect-nvm).`,
		version.Name, version.Version, version.Description,
		version.Developers, version.Copyright),
}

var aboutCmd = &cobra.Command{
	Use:   "about",
	Short: "Show application information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s v%s\n", version.Name, version.FullVersion())
		fmt.Println()
		fmt.Println(version.Description)
		fmt.Println()
		fmt.Printf("Developers:  %s\n", version.Developers)
		fmt.Printf("License:     %s\n", version.License)
		fmt.Println(version.Copyright)
		fmt.Printf("Source:      %s\n", version.URL)
		fmt.Printf("Git hash:    %s\n", version.GitHash)
		fmt.Printf("Built:       %s\n", version.BuildTime)
		fmt.Println()
		fmt.Println(version.Attribution)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file (overrides built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&cfgCANInterface, "can-interface", "", "SocketCAN interface name (e.g. can0)")
	rootCmd.PersistentFlags().StringVar(&cfgSerialPort, "serial-port", "", "slcan-over-serial port instead of SocketCAN (e.g. /dev/ttyACM0)")
	rootCmd.PersistentFlags().Uint16Var(&cfgRequestID, "request-id", 0, "CAN identifier this responder listens on (default from config)")
	rootCmd.PersistentFlags().Uint16Var(&cfgResponseID, "response-id", 0, "CAN identifier this responder transmits on (default from config)")
	rootCmd.PersistentFlags().StringVar(&cfgNVMPath, "nvm-path", "", "path to the persistent store's backing file")
	rootCmd.PersistentFlags().IntVar(&cfgDTCSlots, "dtc-slots", 0, "DTC catalogue slot count (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&cfgVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&cfgLogFile, "log-file", "", "Write log output to file")
	rootCmd.AddCommand(aboutCmd)

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level := slog.LevelInfo
	if cfgVerbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if cfgLogFile != "" {
		f, err := os.OpenFile(cfgLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not open log file %s: %v\n", cfgLogFile, err)
		} else {
			w = io.MultiWriter(os.Stderr, f)
		}
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
