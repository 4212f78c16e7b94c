package classifier

import (
	"time"

	"github.com/hutanwatch/forest-monitor/internal/livestate"
)

// Status is the combined-risk classification of the monitored area.
type Status string

const (
	StatusNormal  Status = "NORMAL"
	StatusWarning Status = "WARNING"
	StatusDanger  Status = "DANGER"
)

// Values is the working triad the classification was computed from, plus
// the timestamp of the entry that last updated any of the three. A nil
// field means no sensor has reported that quantity yet.
type Values struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Smoke       *float64   `json:"smoke"`
	Timestamp   *time.Time `json:"timestamp"`
}

// Assessment is the result of one classification pass.
type Assessment struct {
	Status Status
	Values Values
}

// Classifier maps the latest readings across all sensors to an area status.
// It holds only its thresholds; every call is a pure function of the
// snapshot it is given.
type Classifier struct {
	smokeWarning float64
	smokeDanger  float64
}

// New creates a classifier with the given smoke thresholds.
func New(smokeWarning, smokeDanger float64) *Classifier {
	return &Classifier{
		smokeWarning: smokeWarning,
		smokeDanger:  smokeDanger,
	}
}

// Assess scans the snapshot in arrival order and keeps, for each quantity,
// the value from the last-arrived entry carrying it. A quantity reported by
// any sensor overwrites the working value from an earlier arrival, whatever
// the sensor. The matching timestamp follows each overwrite.
//
// Any runtime fault during evaluation resolves to NORMAL with empty values
// rather than propagating.
func (c *Classifier) Assess(entries []livestate.Entry) (assessment Assessment) {
	defer func() {
		if recover() != nil {
			assessment = Assessment{Status: StatusNormal}
		}
	}()

	var values Values
	for _, entry := range entries {
		data := entry.Message.Data
		at := entry.Message.Timestamp.Time
		if data.Temperature != nil {
			values.Temperature = data.Temperature
			values.Timestamp = &at
		}
		if data.Humidity != nil {
			values.Humidity = data.Humidity
			values.Timestamp = &at
		}
		if data.Smoke != nil {
			values.Smoke = data.Smoke
			values.Timestamp = &at
		}
	}

	return Assessment{Status: c.classify(values), Values: values}
}

// classify applies the rules in priority order. Smoke checks precede the
// temperature/humidity checks at each severity.
func (c *Classifier) classify(v Values) Status {
	t, h, s := v.Temperature, v.Humidity, v.Smoke

	switch {
	case s != nil && *s >= c.smokeDanger:
		return StatusDanger
	case t != nil && h != nil && *t >= 35 && *h < 40:
		return StatusDanger
	case s != nil && *s >= c.smokeWarning && *s < c.smokeDanger:
		return StatusWarning
	case t != nil && h != nil && *t >= 30 && *t < 35 && *h >= 40 && *h < 70:
		return StatusWarning
	default:
		return StatusNormal
	}
}
