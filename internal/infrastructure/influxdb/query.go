package influxdb

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Reading is a single sensor data point returned from a query.
type Reading struct {
	Room        string    `json:"room"`
	Measurement string    `json:"measurement"`
	Value       float64   `json:"value"`
	Unit        string    `json:"unit,omitempty"`
	Time        time.Time `json:"time"`
}

// measurementPattern restricts measurement names interpolated into
// Flux. Anything else is rejected before the query is built.
var measurementPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// latestWindow bounds how far back LatestReadings looks. A sensor
// silent for longer than this drops off the dashboard.
const latestWindow = time.Hour

// LatestReadings returns the most recent reading per room and
// measurement across the whole campus feed.
func (c *Client) LatestReadings(ctx context.Context) ([]Reading, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	flux := fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: -%s)
			|> filter(fn: (r) => r._field == "value")
			|> last()
			|> group()`,
		c.cfg.Bucket, latestWindow)

	return c.queryReadings(ctx, flux)
}

// ReadingHistory returns all readings for one measurement since the
// given lookback, oldest first.
func (c *Client) ReadingHistory(ctx context.Context, measurement string, since time.Duration) ([]Reading, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}
	if !measurementPattern.MatchString(measurement) {
		return nil, fmt.Errorf("invalid measurement name %q", measurement)
	}
	if since <= 0 {
		since = 24 * time.Hour
	}

	flux := fmt.Sprintf(`
		from(bucket: %q)
			|> range(start: -%s)
			|> filter(fn: (r) => r._measurement == %q and r._field == "value")
			|> group()
			|> sort(columns: ["_time"])`,
		c.cfg.Bucket, since, measurement)

	return c.queryReadings(ctx, flux)
}

// queryReadings runs a Flux query and decodes value rows into Readings.
func (c *Client) queryReadings(ctx context.Context, flux string) ([]Reading, error) {
	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("influxdb query: %w", err)
	}
	defer result.Close() //nolint:errcheck // rows already consumed

	readings := []Reading{}
	for result.Next() {
		record := result.Record()

		value, ok := record.Value().(float64)
		if !ok {
			continue
		}

		r := Reading{
			Measurement: record.Measurement(),
			Value:       value,
			Time:        record.Time(),
		}
		if room, ok := record.ValueByKey("room").(string); ok {
			r.Room = room
		}
		if unit, ok := record.ValueByKey("unit").(string); ok {
			r.Unit = unit
		}

		readings = append(readings, r)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("influxdb query result: %w", err)
	}

	return readings, nil
}
