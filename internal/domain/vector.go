package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Vector is an embedding stored as a JSON array in the database.
// A nil Vector is stored as NULL so "not yet embedded" stays distinguishable.
type Vector []float32

// Value implements the driver.Valuer interface for database serialization.
// Parameters: none.
// Returns:
//   - driver.Value: JSON-encoded string, or nil for an empty vector.
//   - error: non-nil if marshaling fails.
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal([]float32(v))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
// Parameters:
//   - value: raw database value to decode.
// Returns:
//   - error: non-nil if decoding fails or the type is unexpected.
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan Vector")
		}
		bytes = []byte(str)
	}
	if len(bytes) == 0 {
		*v = nil
		return nil
	}
	var out []float32
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	*v = out
	return nil
}
