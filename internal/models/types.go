package models

import (
	"database/sql/driver"
	"encoding/json"
)

// JSON type for GORM
type JSON json.RawMessage

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = JSON(v)
	case string:
		*j = JSON(v)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = JSON(data)
	return nil
}

// UnmarshalTo unmarshals the JSON column into target; nil columns are a no-op
func (j JSON) UnmarshalTo(target interface{}) error {
	if len(j) == 0 {
		return nil
	}
	return json.Unmarshal(j, target)
}

// JSONFrom marshals v into a JSON column value
func JSONFrom(v interface{}) (JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return JSON(data), nil
}
