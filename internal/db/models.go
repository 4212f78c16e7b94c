package db

import (
	"time"

	"github.com/google/uuid"
)

// SensorNode is the durable registry entry for one sensor. Created on the
// first message from a previously unseen sensor_id; never updated or
// deleted afterwards.
type SensorNode struct {
	ID        uuid.UUID
	SensorID  string
	Location  string
	FirstSeen time.Time
}

// TelemetryReading is one durable, append-only reading derived from an
// accepted message. Quantity fields are nullable; a record carries only
// what the message reported.
type TelemetryReading struct {
	ID          uuid.UUID
	SensorID    string
	SensorType  string
	Timestamp   time.Time
	Temperature *float64
	Humidity    *float64
	Smoke       *float64
	Status      string
}
