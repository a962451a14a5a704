// Package config loads the responder's YAML configuration file: CAN
// identifiers, NVM image path and layout, and the DTC catalogue's slot
// count. Flags (see internal/cli) override whatever a config file sets.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the responder's full on-disk configuration. Defaults
// supplies a value for every field except SerialPort, which stays empty.
type Config struct {
	// CANInterface names the SocketCAN network interface (e.g. "can0").
	// Ignored when SerialPort is set.
	CANInterface string `yaml:"can_interface"`
	// SerialPort, if set, selects the slcan-over-serial transport
	// instead of SocketCAN (e.g. "/dev/ttyACM0", "COM3").
	SerialPort string `yaml:"serial_port"`
	// RequestID and ResponseID are the CAN identifiers this responder
	// listens on and transmits on, respectively.
	RequestID  uint16 `yaml:"request_id"`
	ResponseID uint16 `yaml:"response_id"`
	// NVMPath is the flat file backing the persistent store.
	NVMPath string `yaml:"nvm_path"`
	// DTCSlotCount is the DTC catalogue's fixed capacity.
	DTCSlotCount int `yaml:"dtc_slot_count"`
	// OverheatThreshold is the ENGINE_TEMP ADC reading above which the
	// overheat watchdog raises dtcstore.EngineOverheatCode.
	OverheatThreshold uint16 `yaml:"overheat_threshold"`
	// Verbose toggles debug-level logging.
	Verbose bool `yaml:"verbose"`
}

// Defaults returns the configuration this responder runs with in the
// absence of a config file, matching spec.md §6's request/response IDs
// 0x769/0x768.
func Defaults() Config {
	return Config{
		CANInterface:      "can0",
		RequestID:         0x769,
		ResponseID:        0x768,
		NVMPath:           "udsd.nvm",
		DTCSlotCount:      20,
		OverheatThreshold: 120,
	}
}

// Load reads and parses the YAML file at path over top of Defaults, so
// a config file only needs to name the fields it overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
