package messaging

import (
	"fmt"

	json "github.com/goccy/go-json"
)

func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("Encode: %w", err)
	}
	return b, nil
}

func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	return nil
}
