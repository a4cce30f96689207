package collector

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/malvinrey/dashboard-aws-sub001/pkg/types"
	"github.com/sigurn/crc16"
)

// frameWithCRC appends a valid CRC16-ARC suffix to a frame body.
func frameWithCRC(body string) string {
	data := body + "*"
	table := crc16.MakeTable(crc16.CRC16_ARC)
	return fmt.Sprintf("%s%04X", data, crc16.Checksum([]byte(data), table))
}

func TestValidateCRC(t *testing.T) {
	valid := frameWithCRC("$AWS,temperature=21.4,humidity=55.2")
	if !validateCRC(valid) {
		t.Errorf("Expected valid frame to pass: %s", valid)
	}

	tampered := strings.Replace(valid, "21.4", "91.4", 1)
	if validateCRC(tampered) {
		t.Error("Expected tampered frame to fail CRC")
	}

	for _, frame := range []string{
		"",
		"$AWS,temperature=21.4", // no checksum at all
		"$AWS,temperature=21.4*ZZ",
		"$AWS,a=1*12*34", // multiple separators
	} {
		if validateCRC(frame) {
			t.Errorf("Expected malformed frame to fail CRC: %q", frame)
		}
	}
}

func TestParseFrame(t *testing.T) {
	reader := NewLoggerReader("/dev/null", 9600)

	frame := frameWithCRC("$AWS,temperature=21.4,humidity=55.2,raw_par=100,raw_solar=40,rain_tips=5,wind_speed=3.2")
	payload := reader.parseFrame(frame)
	if payload == nil {
		t.Fatal("Expected payload for a valid frame")
	}

	want := map[string]float64{
		types.TagTemperature:    21.4,
		types.TagHumidity:       55.2,
		types.TagParSensor:      500, // 100 mV quantum sensor
		types.TagSolarRadiation: 200, // 40 mV pyranometer
		types.TagRainfall:       1.0, // 5 bucket tips
		types.TagWindSpeed:      3.2,
	}
	for tag, value := range want {
		if payload[tag] != value {
			t.Errorf("Tag %s: got %f, want %f", tag, payload[tag], value)
		}
	}
	if len(payload) != len(want) {
		t.Errorf("Expected %d tags, got %d: %v", len(want), len(payload), payload)
	}
}

func TestParseFrameSkipsMalformedFields(t *testing.T) {
	reader := NewLoggerReader("/dev/null", 9600)

	frame := frameWithCRC("$AWS,temperature=21.4,humidity=abc,=5,pressure")
	payload := reader.parseFrame(frame)
	if payload == nil {
		t.Fatal("Expected payload despite malformed fields")
	}
	if len(payload) != 1 || payload[types.TagTemperature] != 21.4 {
		t.Errorf("Expected only the valid field, got %v", payload)
	}
}

func TestStopReadingIsVisibleAcrossGoroutines(t *testing.T) {
	reader := NewLoggerReader("/dev/null", 9600)

	done := make(chan struct{})
	go func() {
		for !reader.stopSignal.Load() {
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()

	reader.StopReading()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop signal never observed by the reader goroutine")
	}
}

func TestParseFrameRejectsBadCRC(t *testing.T) {
	reader := NewLoggerReader("/dev/null", 9600)

	if payload := reader.parseFrame("$AWS,temperature=21.4*0000"); payload != nil {
		t.Errorf("Expected nil payload for bad CRC, got %v", payload)
	}
}
