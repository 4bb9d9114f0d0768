package controller

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"courseadmin/internal/domain/reference"
)

// FieldType selects how a form value is checked and encoded.
type FieldType int

// Field types.
const (
	FieldText FieldType = iota
	FieldDate
	FieldInt
	FieldDecimal
	FieldBool
	FieldRef
	FieldEnum
)

// FieldSpec describes one form field of an entity kind.
type FieldSpec struct {
	Name     string         // form key
	Wire     string         // stored field name
	Type     FieldType      // encoding
	Required bool           // must be non-blank to save
	RefKind  reference.Kind // FieldRef only
	Options  []string       // FieldEnum only
	// Default returns the value a create form starts with. Nil means "".
	Default func(now time.Time) string
	// Encode overrides the stored value of a checked, non-blank input.
	Encode func(value string) any
}

// Form holds the raw input values of an open dialog, keyed by FieldSpec.Name.
type Form map[string]string

// clone copies f so callers never share the controller's map.
func (f Form) clone() Form {
	out := make(Form, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// missing returns the names of required fields that are blank, sorted.
func missing(specs []FieldSpec, f Form) []string {
	var out []string
	for _, s := range specs {
		if s.Required && strings.TrimSpace(f[s.Name]) == "" {
			out = append(out, s.Name)
		}
	}
	sort.Strings(out)
	return out
}

// dateInputLayouts are the layouts accepted from date inputs.
var dateInputLayouts = []string{"2006-01-02", "2006-01-02T15:04"}

// encode turns a form into the stored field mapping. Blank optional values
// are omitted; booleans are always written.
// PRE: required fields are present
// POST: Returns the payload, or an error naming the first malformed field
func encode(specs []FieldSpec, f Form, refURL func(reference.Kind, string) string) (map[string]any, error) {
	out := make(map[string]any, len(specs))
	for _, s := range specs {
		raw := strings.TrimSpace(f[s.Name])
		if s.Type == FieldBool {
			b, err := parseBool(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.Name, ErrInvalidValue)
			}
			out[s.Wire] = b
			continue
		}
		if raw == "" {
			continue
		}
		v, err := encodeValue(s, raw, refURL)
		if err != nil {
			return nil, err
		}
		if s.Encode != nil {
			v = s.Encode(raw)
		}
		out[s.Wire] = v
	}
	return out, nil
}

func encodeValue(s FieldSpec, raw string, refURL func(reference.Kind, string) string) (any, error) {
	switch s.Type {
	case FieldInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", s.Name, raw, ErrInvalidNumber)
		}
		return n, nil
	case FieldDecimal:
		x, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q: %w", s.Name, raw, ErrInvalidNumber)
		}
		return x, nil
	case FieldDate:
		for _, layout := range dateInputLayouts {
			if _, err := time.Parse(layout, raw); err == nil {
				return raw, nil
			}
		}
		return nil, fmt.Errorf("%s: %q: %w", s.Name, raw, ErrInvalidValue)
	case FieldRef:
		if !reference.IsID(raw) {
			return nil, fmt.Errorf("%s: %q: %w", s.Name, raw, ErrInvalidValue)
		}
		return refURL(s.RefKind, strings.ToLower(raw)), nil
	case FieldEnum:
		for _, o := range s.Options {
			if strings.EqualFold(o, raw) {
				return o, nil
			}
		}
		return nil, fmt.Errorf("%s: %q: %w", s.Name, raw, ErrInvalidValue)
	}
	return raw, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "off", "no":
		return false, nil
	case "1", "true", "on", "yes":
		return true, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}
