package types

import "time"

// Canonical sensor channels of a weather station. Readings for any other
// tag are stored tall-format only and never populate a wide column.
const (
	TagParSensor      = "par_sensor"
	TagSolarRadiation = "solar_radiation"
	TagWindSpeed      = "wind_speed"
	TagWindDirection  = "wind_direction"
	TagTemperature    = "temperature"
	TagHumidity       = "humidity"
	TagPressure       = "pressure"
	TagRainfall       = "rainfall"
)

// CanonicalTags lists the tags that map to wide-format columns, in column order.
var CanonicalTags = []string{
	TagParSensor,
	TagSolarRadiation,
	TagWindSpeed,
	TagWindDirection,
	TagTemperature,
	TagHumidity,
	TagPressure,
	TagRainfall,
}

// IsCanonicalTag reports whether tag has a wide-format column.
func IsCanonicalTag(tag string) bool {
	for _, t := range CanonicalTags {
		if t == tag {
			return true
		}
	}
	return false
}

// TallReading is one (timestamp, group, tag, value) fact. Retransmissions
// may produce duplicate (timestamp, group, tag) rows; batch ids are unique
// per ingestion call.
type TallReading struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	BatchID   string    `json:"batch_id" db:"batch_id"`
	Group     string    `json:"group" db:"station_group"`
	Tag       string    `json:"tag" db:"tag"`
	Value     float64   `json:"value" db:"value"`
}

// WideReading is one row per (timestamp, group) with the canonical tags as
// nullable columns. Exactly one WideReading exists per (batchId, group).
type WideReading struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	BatchID   string    `json:"batch_id" db:"batch_id"`
	Group     string    `json:"group" db:"station_group"`

	ParSensor      *float64 `json:"par_sensor,omitempty" db:"par_sensor"`
	SolarRadiation *float64 `json:"solar_radiation,omitempty" db:"solar_radiation"`
	WindSpeed      *float64 `json:"wind_speed,omitempty" db:"wind_speed"`
	WindDirection  *float64 `json:"wind_direction,omitempty" db:"wind_direction"`
	Temperature    *float64 `json:"temperature,omitempty" db:"temperature"`
	Humidity       *float64 `json:"humidity,omitempty" db:"humidity"`
	Pressure       *float64 `json:"pressure,omitempty" db:"pressure"`
	Rainfall       *float64 `json:"rainfall,omitempty" db:"rainfall"`
}

// SetTag assigns value to the wide column for tag. Returns false when the
// tag is not part of the canonical set.
func (w *WideReading) SetTag(tag string, value float64) bool {
	v := value
	switch tag {
	case TagParSensor:
		w.ParSensor = &v
	case TagSolarRadiation:
		w.SolarRadiation = &v
	case TagWindSpeed:
		w.WindSpeed = &v
	case TagWindDirection:
		w.WindDirection = &v
	case TagTemperature:
		w.Temperature = &v
	case TagHumidity:
		w.Humidity = &v
	case TagPressure:
		w.Pressure = &v
	case TagRainfall:
		w.Rainfall = &v
	default:
		return false
	}
	return true
}

// TagValue returns the wide column value for tag, or nil when absent or
// not canonical.
func (w *WideReading) TagValue(tag string) *float64 {
	switch tag {
	case TagParSensor:
		return w.ParSensor
	case TagSolarRadiation:
		return w.SolarRadiation
	case TagWindSpeed:
		return w.WindSpeed
	case TagWindDirection:
		return w.WindDirection
	case TagTemperature:
		return w.Temperature
	case TagHumidity:
		return w.Humidity
	case TagPressure:
		return w.Pressure
	case TagRainfall:
		return w.Rainfall
	default:
		return nil
	}
}
