package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Tree is the raw result of a job: a decoded JSON object.
type Tree map[string]any

// Args are the scalar arguments passed to a job method.
type Args map[string]any

// DecodeTree decodes a JSON object. Anything but an object is an error.
func DecodeTree(data []byte) (Tree, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("result is not a JSON object")
	}
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return t, nil
}

// String returns a scalar argument rendered as a string.
func (a Args) String(key string) string {
	switch v := a[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
