// Package ingest consumes the campus sensor feed from MQTT and writes
// readings into the InfluxDB time-series store.
//
// Sensors publish to campus/sensors/{room}/{measurement} with a JSON
// payload carrying the value and unit. Malformed messages are dropped
// and logged; they never stall the feed.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/netlabsug/campus-core/internal/infrastructure/mqtt"
)

// sensorTopicFilter matches every room and measurement on the feed.
const sensorTopicFilter = "campus/sensors/+/+"

// Reading is a decoded sensor data point.
type Reading struct {
	Room        string    `json:"room"`
	Measurement string    `json:"measurement"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	Time        time.Time `json:"time"`
}

// sensorPayload is the wire format sensors publish.
type sensorPayload struct {
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// Sink receives decoded readings for storage.
type Sink interface {
	WriteSensorReading(room, measurement string, value float64, unit string, at time.Time)
}

// Service subscribes to the sensor feed and forwards readings to the
// sink. An optional OnReading callback fans readings out to live
// consumers (the dashboard websocket).
type Service struct {
	mqtt   *mqtt.Client
	sink   Sink
	logger *slog.Logger

	// OnReading, when set, is invoked for every accepted reading.
	// Set before Start; not safe to change afterwards.
	OnReading func(Reading)
}

// New creates an ingest service.
func New(client *mqtt.Client, sink Sink, logger *slog.Logger) *Service {
	return &Service{
		mqtt:   client,
		sink:   sink,
		logger: logger,
	}
}

// Start subscribes to the sensor feed. The subscription survives
// broker reconnects.
func (s *Service) Start() error {
	if err := s.mqtt.Subscribe(sensorTopicFilter, s.handleMessage); err != nil {
		return fmt.Errorf("subscribing to sensor feed: %w", err)
	}
	s.logger.Info("sensor ingest started", "topic", sensorTopicFilter)
	return nil
}

// handleMessage decodes one sensor message and writes it through.
func (s *Service) handleMessage(topic string, payload []byte) error {
	room, measurement, err := parseSensorTopic(topic)
	if err != nil {
		return err
	}

	var p sensorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decoding sensor payload on %s: %w", topic, err)
	}
	if p.Value == nil {
		return fmt.Errorf("sensor payload on %s missing value", topic)
	}

	at := time.Now().UTC()
	if p.Timestamp != "" {
		if t, perr := time.Parse(time.RFC3339, p.Timestamp); perr == nil {
			at = t
		}
	}

	s.sink.WriteSensorReading(room, measurement, *p.Value, p.Unit, at)

	if s.OnReading != nil {
		s.OnReading(Reading{
			Room:        room,
			Measurement: measurement,
			Value:       *p.Value,
			Unit:        p.Unit,
			Time:        at,
		})
	}

	return nil
}

// parseSensorTopic extracts room and measurement from a topic of the
// form campus/sensors/{room}/{measurement}.
func parseSensorTopic(topic string) (room, measurement string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "campus" || parts[1] != "sensors" {
		return "", "", fmt.Errorf("unexpected sensor topic %q", topic)
	}
	if parts[2] == "" || parts[3] == "" {
		return "", "", fmt.Errorf("empty segment in sensor topic %q", topic)
	}
	return parts[2], parts[3], nil
}
