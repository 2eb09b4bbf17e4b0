package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Coordinate bounds for WGS84 (SRID 4326).
const (
	MinLatitude  = -90.0
	MaxLatitude  = 90.0
	MinLongitude = -180.0
	MaxLongitude = 180.0
)

// ErrInvalidLocation is returned when a coordinate is outside the WGS84 range.
var ErrInvalidLocation = errors.New("invalid location")

// Location is a property's map pin stored as a GeoJSON Point.
// GeoJSON orders coordinates as [lng, lat].
type Location struct {
	Latitude  float64
	Longitude float64
}

// Validate checks that both coordinates are inside the WGS84 range.
func (l Location) Validate() error {
	if l.Latitude < MinLatitude || l.Latitude > MaxLatitude {
		return fmt.Errorf("%w: latitude must be between %.0f and %.0f, got %f",
			ErrInvalidLocation, MinLatitude, MaxLatitude, l.Latitude)
	}
	if l.Longitude < MinLongitude || l.Longitude > MaxLongitude {
		return fmt.Errorf("%w: longitude must be between %.0f and %.0f, got %f",
			ErrInvalidLocation, MinLongitude, MaxLongitude, l.Longitude)
	}
	return nil
}

type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Scan implements sql.Scanner for the jsonb location column.
func (l *Location) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to scan Location: expected []byte or string, got %T", value)
	}

	return l.UnmarshalJSON(raw)
}

// Value implements driver.Valuer, writing the location as a GeoJSON string.
func (l Location) Value() (driver.Value, error) {
	data, err := l.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// MarshalJSON renders the location as a GeoJSON Point.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{
		Type:        "Point",
		Coordinates: [2]float64{l.Longitude, l.Latitude},
	})
}

// UnmarshalJSON parses a GeoJSON Point. A missing type is accepted.
func (l *Location) UnmarshalJSON(data []byte) error {
	var geom geoJSONPoint
	if err := json.Unmarshal(data, &geom); err != nil {
		return fmt.Errorf("failed to unmarshal location: %w", err)
	}

	if geom.Type != "" && geom.Type != "Point" {
		return fmt.Errorf("expected Point type, got %s", geom.Type)
	}

	l.Longitude = geom.Coordinates[0]
	l.Latitude = geom.Coordinates[1]
	return nil
}
