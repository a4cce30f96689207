package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/pathing"
)

var (
	ActiveScadaAPIConfig        *ScadaAPIConfig
	ActiveSensorCollectorConfig *SensorCollectorConfig
)

// DefaultScadaAPIConfig returns the config written on first run.
func DefaultScadaAPIConfig() *ScadaAPIConfig {
	return &ScadaAPIConfig{
		Server: ServerConfig{
			ListenAddress: "0.0.0.0",
			ListenPort:    9041,
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Downsampling: DownsamplingConfig{
			MaxPointsPerSeries: 1000,
			Enabled:            true,
			MinPointsThreshold: 1000,
		},
		Processing: ProcessingConfig{
			GapThresholdSeconds: 30,
			EnableLogging:       true,
		},
		Performance: PerformanceConfig{
			MaxBatchSize:            1000,
			EnableQueryOptimization: true,
		},
	}
}

func LoadScadaAPIConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "scada_api.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultScadaAPIConfig()
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveScadaAPIConfig = cfg
		return nil
	}

	// Load existing config
	var cfg ScadaAPIConfig
	_, err := toml.DecodeFile(configPath, &cfg)
	if err != nil {
		return err
	}
	ActiveScadaAPIConfig = &cfg
	return nil
}

func LoadSensorCollectorConfig() error {
	configPath := filepath.Join(pathing.GetConfigDir(), "sensor_collector.toml")

	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := &SensorCollectorConfig{
			ScadaAPIHost:      "localhost:9041",
			TLSEnabled:        false,
			StationGroup:      "station1",
			SerialDevice:      "/dev/ttyUSB0",
			Baudrate:          9600,
			ModbusStationIp:   "",
			ModbusStationPort: 502,
			ModbusPollSeconds: 30,
		}
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return err
		}
		defer cfgFile.Close()
		toml.NewEncoder(cfgFile).Encode(cfg)
		ActiveSensorCollectorConfig = cfg
		return nil
	}

	// Load existing config
	var cfg SensorCollectorConfig
	_, err := toml.DecodeFile(configPath, &cfg)
	if err != nil {
		return err
	}
	ActiveSensorCollectorConfig = &cfg
	return nil
}
