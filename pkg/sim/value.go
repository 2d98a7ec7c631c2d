package sim

import "strconv"

// ValueType tags a Value with its SNMP-level type.
type ValueType int

const (
	TypeInteger ValueType = iota
	TypeOctetString
	TypeCounter32
	TypeGauge32
	TypeTimeTicks
	TypeCounter64
)

// String returns the conventional name for the type.
func (t ValueType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeOctetString:
		return "OCTET STRING"
	case TypeCounter32:
		return "Counter32"
	case TypeGauge32:
		return "Gauge32"
	case TypeTimeTicks:
		return "TimeTicks"
	case TypeCounter64:
		return "Counter64"
	}
	return "unknown"
}

// Value is one attribute reading. Numeric types carry their payload in
// Uint; octet strings (including raw MAC bytes) carry theirs in Str.
type Value struct {
	Type ValueType
	Uint uint64
	Str  string
}

// String renders the payload: decimal for numeric types, the raw string
// otherwise. MAC addresses come back as raw bytes; rendering them for
// humans is the caller's concern.
func (v Value) String() string {
	if v.Type == TypeOctetString {
		return v.Str
	}
	return strconv.FormatUint(v.Uint, 10)
}

// IntegerValue builds an INTEGER value.
func IntegerValue(n int) Value {
	return Value{Type: TypeInteger, Uint: uint64(n)}
}

// StringValue builds an OCTET STRING value.
func StringValue(s string) Value {
	return Value{Type: TypeOctetString, Str: s}
}

// Counter32Value builds a Counter32 value.
func Counter32Value(n uint64) Value {
	return Value{Type: TypeCounter32, Uint: n}
}

// Counter64Value builds a Counter64 value.
func Counter64Value(n uint64) Value {
	return Value{Type: TypeCounter64, Uint: n}
}

// Gauge32Value builds a Gauge32 value.
func Gauge32Value(n uint64) Value {
	return Value{Type: TypeGauge32, Uint: n}
}

// TimeTicksValue builds a TimeTicks value (hundredths of a second).
func TimeTicksValue(n uint64) Value {
	return Value{Type: TypeTimeTicks, Uint: n}
}
