package classrt

import (
	"fmt"
	"strconv"
)

type ValueKind int

const (
	KindNil ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindClass
	KindInstance
)

// Value is the tagged value passed to constructors and methods, returned
// from dispatch and handed to the output sink.
type Value struct {
	kind ValueKind
	data any
}

func NewNil() Value            { return Value{kind: KindNil} }
func NewBool(b bool) Value     { return Value{kind: KindBool, data: b} }
func NewInt(i int64) Value     { return Value{kind: KindInt, data: i} }
func NewFloat(f float64) Value { return Value{kind: KindFloat, data: f} }
func NewString(s string) Value { return Value{kind: KindString, data: s} }

func NewClass(def *ClassDef) Value     { return Value{kind: KindClass, data: def} }
func NewInstance(inst *Instance) Value { return Value{kind: KindInstance, data: inst} }

// FromGo converts a decoded literal (as produced by the TOML decoder) into a
// Value.
func FromGo(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil:
		return NewNil(), nil
	case Value:
		return v, nil
	case bool:
		return NewBool(v), nil
	case int:
		return NewInt(int64(v)), nil
	case int64:
		return NewInt(v), nil
	case float64:
		return NewFloat(v), nil
	case string:
		return NewString(v), nil
	default:
		return NewNil(), fmt.Errorf("unsupported literal %T", raw)
	}
}

// ToGo is the inverse of FromGo for literal kinds. Classes and instances
// have no literal form and convert to nil.
func (v Value) ToGo() any {
	switch v.kind {
	case KindBool, KindInt, KindFloat, KindString:
		return v.data
	default:
		return nil
	}
}

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsNil() bool { return v.kind == KindNil }

func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.data.(bool)
	}
	return false
}

func (v Value) Int() int64 {
	switch v.kind {
	case KindInt:
		return v.data.(int64)
	case KindFloat:
		return int64(v.data.(float64))
	default:
		return 0
	}
}

func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.data.(float64)
	case KindInt:
		return float64(v.data.(int64))
	default:
		return 0
	}
}

func (v Value) Class() *ClassDef {
	if v.kind != KindClass {
		return nil
	}
	return v.data.(*ClassDef)
}

func (v Value) Instance() *Instance {
	if v.kind != KindInstance {
		return nil
	}
	return v.data.(*Instance)
}

func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return ""
	case KindString:
		return v.data.(string)
	case KindBool:
		return strconv.FormatBool(v.data.(bool))
	case KindInt:
		return strconv.FormatInt(v.data.(int64), 10)
	case KindFloat:
		return strconv.FormatFloat(v.data.(float64), 'g', -1, 64)
	case KindClass:
		return fmt.Sprintf("<Class %s>", v.data.(*ClassDef).Name)
	case KindInstance:
		return fmt.Sprintf("<%s instance>", v.data.(*Instance).Class.Name)
	default:
		return fmt.Sprintf("<%v>", v.kind)
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindClass:
		return v.data.(*ClassDef) == other.data.(*ClassDef)
	case KindInstance:
		return v.data.(*Instance) == other.data.(*Instance)
	default:
		return v.data == other.data
	}
}
