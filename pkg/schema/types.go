package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/aretw0/quire/pkg/domain"
)

// Type defines the contract for answer value validation.
type Type interface {
	// Name returns the human-readable name of the type (e.g., "string", "[integer]").
	Name() string
	// Validate checks if a value conforms to this type.
	Validate(value domain.Value) error
}

// --- Built-in Type Implementations ---

// KindType validates scalar and object answers.
type KindType struct {
	kind domain.AnswerKind
}

func (t *KindType) Name() string { return string(t.kind) }

func (t *KindType) Validate(value domain.Value) error {
	ok := false
	switch t.kind {
	case domain.AnswerString:
		ok = value.Kind() == domain.KindString
	case domain.AnswerBoolean:
		ok = value.Kind() == domain.KindBoolean
	case domain.AnswerNumber:
		ok = value.IsNumeric()
	case domain.AnswerInteger:
		// Accept floats that are whole numbers (from loosely typed clients)
		switch value.Kind() {
		case domain.KindInteger:
			ok = true
		case domain.KindNumber:
			f, _ := value.Float()
			ok = f == math.Trunc(f) && !math.IsInf(f, 0)
		}
	case domain.AnswerObject:
		ok = value.Kind() == domain.KindObject
	}
	if !ok {
		return fmt.Errorf("expected %s, got %s", t.kind, value.Kind())
	}
	return nil
}

// ArrayType validates arrays of a specific element type. A nil element type accepts anything.
type ArrayType struct {
	elemType Type
}

func (t *ArrayType) Name() string {
	if t.elemType == nil {
		return "[]"
	}
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *ArrayType) Validate(value domain.Value) error {
	if value.Kind() != domain.KindArray {
		return fmt.Errorf("expected array, got %s", value.Kind())
	}
	if t.elemType == nil {
		return nil
	}
	for i, elem := range value.Items() {
		if err := t.elemType.Validate(elem); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(domain.Value) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(value domain.Value) error {
	return t.validate(value)
}

// --- Factory Functions ---

func String() Type  { return &KindType{kind: domain.AnswerString} }
func Integer() Type { return &KindType{kind: domain.AnswerInteger} }
func Number() Type  { return &KindType{kind: domain.AnswerNumber} }
func Boolean() Type { return &KindType{kind: domain.AnswerBoolean} }
func Object() Type  { return &KindType{kind: domain.AnswerObject} }

// Array creates an array validator for elements of the given type.
func Array(elemType Type) Type {
	return &ArrayType{elemType: elemType}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(domain.Value) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ForAnswerType returns the validator of a declared answer type.
func ForAnswerType(at domain.AnswerType) (Type, error) {
	switch at.Kind {
	case domain.AnswerString, domain.AnswerInteger, domain.AnswerNumber, domain.AnswerBoolean, domain.AnswerObject:
		return &KindType{kind: at.Kind}, nil
	case domain.AnswerArray:
		if at.BaseType == "" {
			return Array(nil), nil
		}
		if at.BaseType == domain.AnswerArray {
			return nil, fmt.Errorf("nested arrays are not supported")
		}
		elem, err := ForAnswerType(domain.AnswerType{Kind: at.BaseType})
		if err != nil {
			return nil, err
		}
		return Array(elem), nil
	default:
		return nil, fmt.Errorf("unsupported answer type: %q", at.Kind)
	}
}

// ParseType converts a compact type name to an AnswerType.
// Supports "string", "integer", "number", "boolean", "object" (and the
// short forms "int", "float", "bool") plus arrays written as "[string]".
func ParseType(typeStr string) (domain.AnswerType, error) {
	typeStr = strings.TrimSpace(typeStr)
	if len(typeStr) >= 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		inner := typeStr[1 : len(typeStr)-1]
		if inner == "" {
			return domain.AnswerType{Kind: domain.AnswerArray}, nil
		}
		elem, err := ParseType(inner)
		if err != nil {
			return domain.AnswerType{}, err
		}
		if elem.Kind == domain.AnswerArray {
			return domain.AnswerType{}, fmt.Errorf("nested arrays are not supported: %s", typeStr)
		}
		return domain.AnswerType{Kind: domain.AnswerArray, BaseType: elem.Kind}, nil
	}

	switch typeStr {
	case "string":
		return domain.AnswerType{Kind: domain.AnswerString}, nil
	case "integer", "int":
		return domain.AnswerType{Kind: domain.AnswerInteger}, nil
	case "number", "float":
		return domain.AnswerType{Kind: domain.AnswerNumber}, nil
	case "boolean", "bool":
		return domain.AnswerType{Kind: domain.AnswerBoolean}, nil
	case "object":
		return domain.AnswerType{Kind: domain.AnswerObject}, nil
	case "array":
		return domain.AnswerType{Kind: domain.AnswerArray}, nil
	default:
		return domain.AnswerType{}, fmt.Errorf("unsupported type: %s", typeStr)
	}
}
