// internal/historyapi/metadata.go
package historyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// validateMetadata accepts a JSON object or null. The bytes are stored as sent.
func validateMetadata(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("metadata must be a JSON object")
	}
	return append(json.RawMessage(nil), trimmed...), nil
}
