// Package telemetry receives sensor readings over MQTT and aggregates them
// for display.
package telemetry

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Metric names one measured quantity.
type Metric string

const (
	MetricHeartRate   Metric = "heart_rate"
	MetricRespiration Metric = "respiration_rate"
	MetricTemperature Metric = "temperature"
	MetricHumidity    Metric = "humidity"
	MetricAirQuality  Metric = "air_quality"
	MetricHRV         Metric = "hrv"
	MetricStress      Metric = "stress"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{
	MetricHeartRate,
	MetricRespiration,
	MetricTemperature,
	MetricHumidity,
	MetricAirQuality,
	MetricHRV,
	MetricStress,
}

// Reading is one telemetry sample. Sensors omit metrics they do not
// measure, so every value is optional.
type Reading struct {
	DeviceID  string
	Timestamp time.Time
	Values    map[Metric]float64
}

// Value returns the value of metric and whether the reading carries it.
func (r Reading) Value(metric Metric) (float64, bool) {
	v, ok := r.Values[metric]
	return v, ok
}

type wireReading struct {
	DeviceID  string          `json:"device_id"`
	Timestamp json.RawMessage `json:"timestamp"`

	HeartRate   *float64 `json:"heart_rate"`
	Respiration *float64 `json:"respiration_rate"`
	Temperature *float64 `json:"temperature"`
	Humidity    *float64 `json:"humidity"`
	AirQuality  *float64 `json:"air_quality"`
	HRV         *float64 `json:"hrv"`
	Stress      *float64 `json:"stress"`
}

// ParseReading decodes an MQTT telemetry payload. The timestamp may be an
// RFC 3339 string or Unix milliseconds; when absent, now is used.
func ParseReading(payload []byte, now time.Time) (Reading, error) {
	var w wireReading
	if err := json.Unmarshal(payload, &w); err != nil {
		return Reading{}, fmt.Errorf("telemetry: decode reading: %w", err)
	}

	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		return Reading{}, err
	}
	if ts.IsZero() {
		ts = now
	}

	r := Reading{DeviceID: w.DeviceID, Timestamp: ts, Values: make(map[Metric]float64)}
	for metric, v := range map[Metric]*float64{
		MetricHeartRate:   w.HeartRate,
		MetricRespiration: w.Respiration,
		MetricTemperature: w.Temperature,
		MetricHumidity:    w.Humidity,
		MetricAirQuality:  w.AirQuality,
		MetricHRV:         w.HRV,
		MetricStress:      w.Stress,
	} {
		if v != nil {
			r.Values[metric] = *v
		}
	}
	return r, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("telemetry: timestamp %q: %w", s, err)
		}
		return ts, nil
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("telemetry: timestamp %s: %w", raw, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
