package graph

import (
	"encoding/json"
	"strconv"

	daedaluserrors "github.com/wehubfusion/Daedalus/pkg/errors"
)

// GetConfigParameters returns the node's parameters, or an empty slice when
// the node has none.
func GetConfigParameters(n *Node) []ConfigParameter {
	if n == nil || n.ConfigParameters == nil {
		return []ConfigParameter{}
	}
	return n.ConfigParameters
}

// GetConfigParameter returns the parameter with exactly the given name.
// The returned pointer aliases the node's parameter.
func GetConfigParameter(n *Node, name string) (*ConfigParameter, bool) {
	if n == nil {
		return nil, false
	}
	for i := range n.ConfigParameters {
		if n.ConfigParameters[i].ParameterName == name {
			return &n.ConfigParameters[i], true
		}
	}
	return nil, false
}

// SetConfigParameter sets the value of a named parameter. It does nothing when
// the node has no such parameter. Values other than strings, numbers, booleans
// and nil are rejected and leave the parameter untouched.
func SetConfigParameter(n *Node, name string, value any) error {
	param, ok := GetConfigParameter(n, name)
	if !ok {
		return nil
	}
	if !IsPrimitive(value) {
		return daedaluserrors.InvalidParameterValue(name, value)
	}
	param.ParamValue = value
	return nil
}

// IsPrimitive reports whether v is nil, a string, a boolean or a number.
func IsPrimitive(v any) bool {
	switch v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}

// ParamValue returns the current value of a parameter, or nil.
func ParamValue(n *Node, name string) any {
	if p, ok := GetConfigParameter(n, name); ok {
		return p.ParamValue
	}
	return nil
}

// ParamString returns a parameter value as a string, or defaultVal when the
// parameter is missing or not a string.
func ParamString(n *Node, name, defaultVal string) string {
	if v, ok := ParamValue(n, name).(string); ok {
		return v
	}
	return defaultVal
}

// ParamFloat returns a parameter value as float64. Numeric strings are parsed.
func ParamFloat(n *Node, name string, defaultVal float64) float64 {
	switch v := ParamValue(n, name).(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// ParamBool returns a parameter value as bool.
func ParamBool(n *Node, name string, defaultVal bool) bool {
	switch v := ParamValue(n, name).(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
