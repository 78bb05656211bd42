package ingest

import (
	"log/slog"
	"testing"
	"time"
)

type recordedWrite struct {
	room        string
	measurement string
	value       float64
	unit        string
	at          time.Time
}

type fakeSink struct {
	writes []recordedWrite
}

func (f *fakeSink) WriteSensorReading(room, measurement string, value float64, unit string, at time.Time) {
	f.writes = append(f.writes, recordedWrite{room, measurement, value, unit, at})
}

func newTestService(sink Sink) *Service {
	return New(nil, sink, slog.Default())
}

func TestHandleMessage(t *testing.T) {
	sink := &fakeSink{}
	svc := newTestService(sink)

	var broadcast []Reading
	svc.OnReading = func(r Reading) { broadcast = append(broadcast, r) }

	payload := `{"value": 22.5, "unit": "°C", "timestamp": "2026-01-15T09:00:00Z"}`
	if err := svc.handleMessage("campus/sensors/lab-101/temperature", []byte(payload)); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	if len(sink.writes) != 1 {
		t.Fatalf("sink writes = %d, want 1", len(sink.writes))
	}
	w := sink.writes[0]
	if w.room != "lab-101" || w.measurement != "temperature" || w.value != 22.5 || w.unit != "°C" {
		t.Errorf("write = %+v", w)
	}
	want := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	if !w.at.Equal(want) {
		t.Errorf("timestamp = %v, want %v", w.at, want)
	}

	if len(broadcast) != 1 || broadcast[0].Room != "lab-101" || broadcast[0].Value != 22.5 {
		t.Errorf("broadcast = %+v, want one reading for lab-101", broadcast)
	}
}

func TestHandleMessage_MissingTimestampUsesNow(t *testing.T) {
	sink := &fakeSink{}
	svc := newTestService(sink)

	before := time.Now().UTC()
	if err := svc.handleMessage("campus/sensors/lab-101/humidity", []byte(`{"value": 45, "unit": "%"}`)); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	after := time.Now().UTC()

	at := sink.writes[0].at
	if at.Before(before) || at.After(after) {
		t.Errorf("timestamp %v not in [%v, %v]", at, before, after)
	}
}

func TestHandleMessage_ZeroValueAccepted(t *testing.T) {
	sink := &fakeSink{}
	svc := newTestService(sink)

	if err := svc.handleMessage("campus/sensors/lab-101/motion", []byte(`{"value": 0}`)); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if sink.writes[0].value != 0 {
		t.Errorf("value = %v, want 0", sink.writes[0].value)
	}
}

func TestHandleMessage_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"missing value", "campus/sensors/lab-101/temperature", `{"unit": "°C"}`},
		{"malformed json", "campus/sensors/lab-101/temperature", `{"value":`},
		{"wrong prefix", "building/sensors/lab-101/temperature", `{"value": 1}`},
		{"too few segments", "campus/sensors/temperature", `{"value": 1}`},
		{"too many segments", "campus/sensors/lab-101/temperature/extra", `{"value": 1}`},
		{"empty room", "campus/sensors//temperature", `{"value": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			svc := newTestService(sink)

			if err := svc.handleMessage(tt.topic, []byte(tt.payload)); err == nil {
				t.Error("handleMessage() should reject")
			}
			if len(sink.writes) != 0 {
				t.Errorf("sink writes = %d, want 0", len(sink.writes))
			}
		})
	}
}

func TestParseSensorTopic(t *testing.T) {
	room, measurement, err := parseSensorTopic("campus/sensors/server-room/co2")
	if err != nil {
		t.Fatalf("parseSensorTopic() error = %v", err)
	}
	if room != "server-room" || measurement != "co2" {
		t.Errorf("parsed = %q/%q, want server-room/co2", room, measurement)
	}
}

func TestHandleMessage_BadTimestampFallsBack(t *testing.T) {
	sink := &fakeSink{}
	svc := newTestService(sink)

	if err := svc.handleMessage("campus/sensors/lab-101/temperature",
		[]byte(`{"value": 20, "timestamp": "yesterday"}`)); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if sink.writes[0].at.IsZero() {
		t.Error("unparseable timestamp should fall back to now")
	}
}
