package cli

import (
	"github.com/kbuckham/udsd/internal/config"
)

// resolveConfig loads --config if given (falling back to built-in
// defaults otherwise) and then applies any explicitly-set flags on top:
// flags win over the config file, the config file wins over defaults.
func resolveConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Defaults()
	}

	if cfgCANInterface != "" {
		cfg.CANInterface = cfgCANInterface
	}
	if cfgSerialPort != "" {
		cfg.SerialPort = cfgSerialPort
	}
	if cfgRequestID != 0 {
		cfg.RequestID = cfgRequestID
	}
	if cfgResponseID != 0 {
		cfg.ResponseID = cfgResponseID
	}
	if cfgNVMPath != "" {
		cfg.NVMPath = cfgNVMPath
	}
	if cfgDTCSlots != 0 {
		cfg.DTCSlotCount = cfgDTCSlots
	}
	if cfgVerbose {
		cfg.Verbose = true
	}
	return cfg, nil
}
