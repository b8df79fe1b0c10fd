package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalRunRecord serializes a RunRecord to JSON bytes.
func MarshalRunRecord(run *RunRecord) ([]byte, error) {
	if run == nil {
		return nil, fmt.Errorf("cannot marshal nil RunRecord")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RunRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalRunRecord deserializes a RunRecord from JSON bytes.
func UnmarshalRunRecord(data []byte) (*RunRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var run RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RunRecord: %w", err)
	}
	if run.ID == "" {
		return nil, fmt.Errorf("RunRecord has no id")
	}

	return &run, nil
}
