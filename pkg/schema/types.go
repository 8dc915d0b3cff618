package schema

import (
	"fmt"
	"math"
	"reflect"
)

// Type defines the contract for field validation.
type Type interface {
	// Name returns the JSON Schema name of the type (e.g., "string", "integer").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value any) error
}

type stringType struct{}

func (stringType) Name() string { return "string" }

func (stringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

type integerType struct{}

func (integerType) Name() string { return "integer" }

func (integerType) Validate(value any) error {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		// JSON numbers decode as float64.
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return nil
		}
		return fmt.Errorf("expected integer, got %v", v)
	default:
		return fmt.Errorf("expected integer, got %T", value)
	}
}

type numberType struct{}

func (numberType) Name() string { return "number" }

func (numberType) Validate(value any) error {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return nil
	default:
		return fmt.Errorf("expected number, got %T", value)
	}
}

type booleanType struct{}

func (booleanType) Name() string { return "boolean" }

func (booleanType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

type objectType struct{}

func (objectType) Name() string { return "object" }

func (objectType) Validate(value any) error {
	if value == nil {
		return fmt.Errorf("expected object, got null")
	}
	if reflect.ValueOf(value).Kind() != reflect.Map {
		return fmt.Errorf("expected object, got %T", value)
	}
	return nil
}

type arrayType struct {
	elem Type
}

func (t arrayType) Name() string {
	return fmt.Sprintf("array[%s]", t.elem.Name())
}

func (t arrayType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return fmt.Errorf("expected array, got %T", value)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := t.elem.Validate(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

type anyType struct{}

func (anyType) Name() string       { return "any" }
func (anyType) Validate(any) error { return nil }

// String creates a string type validator.
func String() Type { return stringType{} }

// Integer accepts whole numbers, including whole float64 values.
func Integer() Type { return integerType{} }

// Number accepts any numeric value.
func Number() Type { return numberType{} }

// Boolean creates a boolean type validator.
func Boolean() Type { return booleanType{} }

// Object accepts any map.
func Object() Type { return objectType{} }

// Array creates an array validator for elements of the given type.
func Array(elem Type) Type {
	if elem == nil {
		elem = Any()
	}
	return arrayType{elem: elem}
}

// Any accepts every value.
func Any() Type { return anyType{} }

// ParseType converts a JSON Schema property into a Type.
// Unknown or missing types yield Any.
func ParseType(prop map[string]any) Type {
	name, _ := prop["type"].(string)
	switch name {
	case "string":
		return String()
	case "integer":
		return Integer()
	case "number":
		return Number()
	case "boolean":
		return Boolean()
	case "object":
		return Object()
	case "array":
		items, _ := prop["items"].(map[string]any)
		return Array(ParseType(items))
	default:
		return Any()
	}
}
