package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementDoorCommands holds one point per delivered command.
const MeasurementDoorCommands = "door_commands"

// WriteCommand queues a door_commands point. It is a no-op after Close.
func (c *Client) WriteCommand(action, source, userID string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(commandPoint(action, source, userID, at))
}

func commandPoint(action, source, userID string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDoorCommands,
		map[string]string{
			"action": action,
			"source": source,
		},
		map[string]any{
			"user_id": userID,
		},
		at,
	)
}
