// The collector reads the station datalogger over its serial port.
// Frames are single lines of the form
//
//	$AWS,temperature=21.4,humidity=55.2,raw_par=250.1,rain_tips=3*1A2B
//
// where the trailing four hex digits are a CRC16-ARC over everything up
// to and including the '*'. Raw electrical channels are converted to
// engineering units before the payload is handed off.
package collector

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/scadautils"
	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	"github.com/sigurn/crc16"
	log "github.com/sirupsen/logrus"
)

// framePrefix starts every datalogger frame.
const framePrefix = "$AWS,"

// Raw channels the datalogger reports in electrical units.
const (
	rawTagPar   = "raw_par"
	rawTagSolar = "raw_solar"
	rawTagRain  = "rain_tips"
)

// Initialize a new LoggerReader client.
func NewLoggerReader(device string, baudrate uint) *LoggerReader {
	return &LoggerReader{
		device:   device,
		baudrate: baudrate,
	}
}

// Start listening for frames. The datalogger transmits every few
// seconds. Runs in goroutine. handlePayload() also runs in goroutine.
func (l *LoggerReader) StartReading(
	handlePayload func(payload map[string]float64),
	handleError func(error),
) {
	l.stopSignal.Store(false)

	go func() {
		// Tolerance before we report error.
		consecutiveErrors := 0
		maxErrors := 10
		var lastError error

		// Initialize the connection
		if err := l.connect(); err != nil {
			handleError(err)
			return
		}

		for consecutiveErrors < maxErrors {
			// Check for Stop command
			if l.stopSignal.Load() {
				log.Info("Stop signal received, disconnecting")
				l.disconnect()
				return
			}

			frame, err := l.readFrame()
			if err != nil {
				consecutiveErrors++
				lastError = err
				log.Warnf("Error reading frame (%d/%d): %v", consecutiveErrors, maxErrors, err)
				time.Sleep(time.Second)
				continue
			}

			if payload := l.parseFrame(frame); payload != nil {
				l.payloadMutex.Lock()
				l.latestPayload = payload
				l.payloadMutex.Unlock()

				go handlePayload(payload)
				consecutiveErrors = 0
			}
		}

		log.Errorf("Too many consecutive errors (%d), stopping reader: %v", maxErrors, lastError)
		handleError(lastError)
		l.disconnect()
	}()
}

func (l *LoggerReader) StopReading() {
	l.stopSignal.Store(true)
	l.disconnect()
}

func (l *LoggerReader) GetLatestPayload() map[string]float64 {
	l.payloadMutex.RLock()
	defer l.payloadMutex.RUnlock()
	return l.latestPayload
}

// Open the connection to the datalogger port.
func (l *LoggerReader) connect() error {
	options := serial.OpenOptions{
		PortName:        l.device,
		BaudRate:        l.baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	l.serialPort = port
	log.Infof("Connected to datalogger on %s", l.device)
	return nil
}

func (l *LoggerReader) disconnect() {
	if l.serialPort != nil {
		l.serialPort.Close()
		log.Info("Disconnected from datalogger")
	}
}

// readFrame scans serial lines until one carries the frame prefix.
func (l *LoggerReader) readFrame() (string, error) {
	if l.serialPort == nil {
		return "", fmt.Errorf("serial port not connected")
	}

	reader := bufio.NewReader(l.serialPort)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, framePrefix) {
			return line, nil
		}
	}
}

// validateCRC checks the trailing CRC16-ARC of one frame.
func validateCRC(frame string) bool {
	parts := strings.Split(frame, "*")
	if len(parts) != 2 || len(parts[1]) < 4 {
		return false
	}

	data := parts[0] + "*"
	givenCRC := parts[1][:4]

	table := crc16.MakeTable(crc16.CRC16_ARC)
	calcCRC := crc16.Checksum([]byte(data), table)
	calcCRCHex := fmt.Sprintf("%04X", calcCRC)

	return strings.ToUpper(givenCRC) == calcCRCHex
}

// parseFrame converts one validated frame into a payload of engineering
// units. Malformed fields are skipped, never frame-fatal.
func (l *LoggerReader) parseFrame(frame string) map[string]float64 {
	if !validateCRC(frame) {
		log.Warn("Invalid CRC, skipping frame")
		return nil
	}

	body := strings.TrimPrefix(frame, framePrefix)
	body = body[:strings.Index(body, "*")]

	payload := make(map[string]float64)
	for _, field := range strings.Split(body, ",") {
		key, rawValue, found := strings.Cut(field, "=")
		if !found || key == "" {
			log.Warnf("Skipping malformed field %q", field)
			continue
		}
		value, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			log.Warnf("Skipping non-numeric field %q", field)
			continue
		}

		switch key {
		case rawTagPar:
			payload[types.TagParSensor] = scadautils.ParMvToMicromol(value)
		case rawTagSolar:
			payload[types.TagSolarRadiation] = scadautils.PyranoMvToWm2(value)
		case rawTagRain:
			payload[types.TagRainfall] = scadautils.RainTipsToMm(value)
		default:
			payload[key] = value
		}
	}

	if len(payload) == 0 {
		return nil
	}
	return payload
}
