package livestate

import (
	"testing"
	"time"

	"github.com/hutanwatch/forest-monitor/internal/telemetry"
)

func message(sensorID string, smoke float64) telemetry.Message {
	return telemetry.Message{
		SensorID:  sensorID,
		Location:  "Sektor 1A",
		Timestamp: telemetry.NewTimestamp(time.Now()),
		Data:      telemetry.Reading{Smoke: &smoke},
	}
}

func TestPutAndGet(t *testing.T) {
	table := NewTable()

	if _, ok := table.Get("sensor-1"); ok {
		t.Fatal("expected empty table on start")
	}

	table.Put(message("sensor-1", 100))

	got, ok := table.Get("sensor-1")
	if !ok {
		t.Fatal("expected entry after Put")
	}
	if *got.Data.Smoke != 100 {
		t.Errorf("expected smoke 100, got %v", *got.Data.Smoke)
	}
}

func TestPutOverwritesPerSensor(t *testing.T) {
	table := NewTable()

	table.Put(message("sensor-1", 100))
	table.Put(message("sensor-1", 500))

	if table.Len() != 1 {
		t.Fatalf("expected one entry per sensor, got %d", table.Len())
	}

	got, _ := table.Get("sensor-1")
	if *got.Data.Smoke != 500 {
		t.Errorf("expected latest value 500, got %v", *got.Data.Smoke)
	}
}

func TestSnapshotOrderedByArrival(t *testing.T) {
	table := NewTable()

	table.Put(message("sensor-1", 100))
	table.Put(message("sensor-2", 200))
	table.Put(message("sensor-3", 300))
	// Re-reporting moves sensor-1 to the newest position.
	table.Put(message("sensor-1", 150))

	snapshot := table.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(snapshot))
	}

	wantOrder := []string{"sensor-2", "sensor-3", "sensor-1"}
	for i, want := range wantOrder {
		if snapshot[i].Message.SensorID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, snapshot[i].Message.SensorID)
		}
	}

	for i := 1; i < len(snapshot); i++ {
		if snapshot[i].Seq <= snapshot[i-1].Seq {
			t.Errorf("snapshot not ordered by sequence at position %d", i)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	table := NewTable()
	table.Put(message("sensor-1", 100))

	snapshot := table.Snapshot()
	table.Put(message("sensor-1", 900))

	if *snapshot[0].Message.Data.Smoke != 100 {
		t.Error("snapshot changed after a later Put")
	}
}
