package influxdb

import (
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

// WriteReading mirrors an accepted power reading as a "power_reading" point,
// tagged by device and timestamped with the device-reported recording time.
//
// The write is non-blocking; data is batched and sent asynchronously. When
// the client is disconnected the reading is dropped silently, since SQLite
// already holds it.
//
// WriteReading implements telemetry.MetricsWriter.
func (c *Client) WriteReading(r *telemetry.PowerReading) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"power_reading",
		map[string]string{
			"device_id": r.DeviceID,
		},
		map[string]interface{}{
			"voltage_rms":    r.VoltageRMS,
			"current_rms":    r.CurrentRMS,
			"power_apparent": r.PowerApparent,
			"power_real":     r.PowerReal,
			"power_factor":   r.PowerFactor,
		},
		r.RecordedAt,
	)

	c.writeAPI.WritePoint(point)
}
