package backend

import (
	"encoding/json"
	"fmt"
)

// SafeValue renders a value for storage. Strings and byte slices pass
// through; everything else is JSON encoded, so 1 becomes "1", true becomes
// "true" and nil becomes "null".
func SafeValue(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("encode value of type %T: %w", value, err)
	}
	return string(b), nil
}
