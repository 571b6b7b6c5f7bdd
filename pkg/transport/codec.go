package transport

import (
	"encoding/json"
	"fmt"
)

// Codec converts between wire bytes and application values for pub/sub
// payloads. The request/response protocol has its own codec below this
// layer.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte) (any, error)
}

// StringCodec passes payloads through as strings.
type StringCodec struct{}

func (StringCodec) Encode(v any) ([]byte, error) {
	switch s := v.(type) {
	case string:
		return []byte(s), nil
	case []byte:
		return s, nil
	default:
		return nil, fmt.Errorf("string codec cannot encode %T", v)
	}
}

func (StringCodec) Decode(data []byte) (any, error) {
	return string(data), nil
}

// JSONCodec marshals payloads as JSON and decodes into generic values.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %v", err)
	}
	return v, nil
}
