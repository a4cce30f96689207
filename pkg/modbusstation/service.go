// Optional Modbus-TCP radiation station. Some sites pair the serial
// datalogger with a networked pyranometer head; when configured, the
// collector polls it and folds the value into the ingestion payload.
package modbusstation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/config"
	probing "github.com/prometheus-community/pro-bing"
)

var (
	ErrModbusNotConfigured = fmt.Errorf("modbus not configured") // optional feature
	ErrModbusReadFailed    = fmt.Errorf("modbus read failed")
)

// Solar radiation register on the station head, scaled by 0.1 W/m².
const (
	radiationRegister = 30001
	registerCount     = 2
	radiationScale    = 0.1
)

var (
	radiationMu       sync.Mutex
	lastRadiationWm2  float64
	lastRadiationTime time.Time
)

// IsConfigured checks if the modbus station is set up.
// This feature is optional, empty values as config are acceptable.
func IsConfigured() bool {
	cfg := config.ActiveSensorCollectorConfig
	return cfg != nil && cfg.ModbusStationIp != "" && cfg.ModbusStationPort != 0
}

// ReadRadiation returns the current solar radiation in W/m². Reads are
// cached for ten seconds to avoid hammering the station head.
func ReadRadiation() (float64, error) {
	if !IsConfigured() {
		return 0, ErrModbusNotConfigured
	}

	radiationMu.Lock()
	defer radiationMu.Unlock()
	if lastRadiationTime.After(time.Now().Add(-10 * time.Second)) {
		return lastRadiationWm2, nil
	}

	host := config.ActiveSensorCollectorConfig.ModbusStationIp
	port := config.ActiveSensorCollectorConfig.ModbusStationPort

	const maxRetries = 3
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		// Ping check before attempting modbus connection
		if ok, _, err := ping(host); !ok || err != nil {
			lastErr = fmt.Errorf("ping failed on attempt %d: %w", attempt+1, err)
			if attempt < maxRetries-1 {
				time.Sleep(2 * time.Second)
			}
			continue
		}

		handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", host, port))
		handler.Timeout = 10 * time.Second
		handler.SlaveId = 1

		if err := handler.Connect(); err != nil {
			lastErr = fmt.Errorf("connection failed on attempt %d: %w", attempt+1, err)
			handler.Close()
			if attempt < maxRetries-1 {
				time.Sleep(2 * time.Second)
			}
			continue
		}

		client := modbus.NewClient(handler)
		result, err := client.ReadHoldingRegisters(radiationRegister, registerCount)
		handler.Close()

		if err != nil {
			lastErr = fmt.Errorf("read radiation failed on attempt %d: %w", attempt+1, err)
			if attempt < maxRetries-1 {
				time.Sleep(2 * time.Second)
			}
			continue
		}

		raw := uint32(result[0])<<24 | uint32(result[1])<<16 | uint32(result[2])<<8 | uint32(result[3])
		lastRadiationWm2 = float64(raw) * radiationScale
		lastRadiationTime = time.Now()
		return lastRadiationWm2, nil
	}

	return 0, errors.Join(ErrModbusReadFailed, lastErr)
}

func ping(host string) (bool, time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return false, 0, err
	}

	pinger.Count = 1
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false) // UDP-based, no root needed

	err = pinger.Run()
	if err != nil {
		return false, 0, err
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv > 0 {
		return true, stats.AvgRtt, nil
	}

	return false, 0, fmt.Errorf("no response")
}
