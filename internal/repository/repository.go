package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hutanwatch/forest-monitor/internal/db"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSensorNode registers a sensor if it has never been seen before and
// reports whether this call created it. The insert is atomic
// (ON CONFLICT DO NOTHING), so concurrent first sightings of the same
// sensor_id race safely and the first location recorded wins; duplicate
// redeliveries never produce a second row.
func (r *Repository) EnsureSensorNode(ctx context.Context, node *db.SensorNode) (bool, error) {
	query := `
		INSERT INTO sensor_nodes (id, sensor_id, location, first_seen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sensor_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, uuid.New(), node.SensorID, node.Location, node.FirstSeen)
	if err != nil {
		return false, fmt.Errorf("failed to ensure sensor node: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// InsertReading appends one telemetry reading. Readings are immutable once
// written.
func (r *Repository) InsertReading(ctx context.Context, reading *db.TelemetryReading) error {
	query := `
		INSERT INTO telemetry_readings (
			id, sensor_id, sensor_type, ts,
			temperature, humidity, smoke, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		uuid.New(),
		reading.SensorID,
		reading.SensorType,
		reading.Timestamp,
		reading.Temperature,
		reading.Humidity,
		reading.Smoke,
		reading.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to insert telemetry reading: %w", err)
	}

	return nil
}

// ListSensorNodes returns every registered sensor, oldest first.
func (r *Repository) ListSensorNodes(ctx context.Context) ([]db.SensorNode, error) {
	query := `
		SELECT id, sensor_id, location, first_seen
		FROM sensor_nodes
		ORDER BY first_seen ASC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sensor nodes: %w", err)
	}
	defer rows.Close()

	var nodes []db.SensorNode
	for rows.Next() {
		var node db.SensorNode
		if err := rows.Scan(&node.ID, &node.SensorID, &node.Location, &node.FirstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan sensor node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return nodes, nil
}

// ReadingWithNode joins a persisted reading with its sensor's registry entry
// for the query surface.
type ReadingWithNode struct {
	Reading db.TelemetryReading
	Node    db.SensorNode
}

// LatestReadingBySensor returns the most recent persisted reading for one
// sensor, or pgx.ErrNoRows if the sensor is unknown or has no readings.
func (r *Repository) LatestReadingBySensor(ctx context.Context, sensorID string) (*ReadingWithNode, error) {
	query := `
		SELECT n.id, n.sensor_id, n.location, n.first_seen,
		       t.id, t.sensor_type, t.ts, t.temperature, t.humidity, t.smoke, t.status
		FROM sensor_nodes n
		JOIN telemetry_readings t ON t.sensor_id = n.sensor_id
		WHERE n.sensor_id = $1
		ORDER BY t.ts DESC
		LIMIT 1
	`

	var result ReadingWithNode
	err := r.pool.QueryRow(ctx, query, sensorID).Scan(
		&result.Node.ID,
		&result.Node.SensorID,
		&result.Node.Location,
		&result.Node.FirstSeen,
		&result.Reading.ID,
		&result.Reading.SensorType,
		&result.Reading.Timestamp,
		&result.Reading.Temperature,
		&result.Reading.Humidity,
		&result.Reading.Smoke,
		&result.Reading.Status,
	)
	if err != nil {
		return nil, err
	}

	result.Reading.SensorID = sensorID
	return &result, nil
}

// LatestReadings returns the most recent persisted reading for every
// registered sensor. Sensors without readings are skipped.
func (r *Repository) LatestReadings(ctx context.Context) ([]ReadingWithNode, error) {
	query := `
		SELECT DISTINCT ON (n.sensor_id)
		       n.id, n.sensor_id, n.location, n.first_seen,
		       t.id, t.sensor_type, t.ts, t.temperature, t.humidity, t.smoke, t.status
		FROM sensor_nodes n
		JOIN telemetry_readings t ON t.sensor_id = n.sensor_id
		ORDER BY n.sensor_id, t.ts DESC
	`

	return r.queryReadings(ctx, query)
}

// RecentReadings returns the most recent readings across all sensors,
// newest first.
func (r *Repository) RecentReadings(ctx context.Context, limit int) ([]ReadingWithNode, error) {
	query := `
		SELECT n.id, n.sensor_id, n.location, n.first_seen,
		       t.id, t.sensor_type, t.ts, t.temperature, t.humidity, t.smoke, t.status
		FROM telemetry_readings t
		JOIN sensor_nodes n ON n.sensor_id = t.sensor_id
		ORDER BY t.ts DESC
		LIMIT $1
	`

	return r.queryReadings(ctx, query, limit)
}

func (r *Repository) queryReadings(ctx context.Context, query string, args ...any) ([]ReadingWithNode, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var results []ReadingWithNode
	for rows.Next() {
		var result ReadingWithNode
		if err := rows.Scan(
			&result.Node.ID,
			&result.Node.SensorID,
			&result.Node.Location,
			&result.Node.FirstSeen,
			&result.Reading.ID,
			&result.Reading.SensorType,
			&result.Reading.Timestamp,
			&result.Reading.Temperature,
			&result.Reading.Humidity,
			&result.Reading.Smoke,
			&result.Reading.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		result.Reading.SensorID = result.Node.SensorID
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return results, nil
}

// ErrNoRows is re-exported so callers do not import pgx directly.
var ErrNoRows = pgx.ErrNoRows
