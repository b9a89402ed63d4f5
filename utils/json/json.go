package json

import (
	"bytes"
	"encoding/json"
)

// Marshal marshals v to json data without escaping &, <, and >.
// Trace messages and pointcut expressions contain `&&`, which would otherwise be
// rendered as &&.
func Marshal(v interface{}) ([]byte, error) {
	return marshal(v, "")
}

// MarshalIndent is Marshal with two-space indentation.
func MarshalIndent(v interface{}) ([]byte, error) {
	return marshal(v, "  ")
}

func marshal(v interface{}, indent string) ([]byte, error) {
	var byteBuf bytes.Buffer
	encoder := json.NewEncoder(&byteBuf)
	encoder.SetEscapeHTML(false)
	if indent != "" {
		encoder.SetIndent("", indent)
	}
	err := encoder.Encode(v)
	if err == nil && byteBuf.Len() > 0 {
		return byteBuf.Bytes()[:byteBuf.Len()-1], err
	}
	return byteBuf.Bytes(), err
}

// Unmarshal json data to struct
func Unmarshal(b []byte, m interface{}) error {
	return json.Unmarshal(b, m)
}
