package schema

import "sort"

// Schema describes the arguments of one tool.
type Schema struct {
	Fields   map[string]Type
	Required []string
}

// FromJSONSchema reads the properties and required list of an object schema.
// A nil or malformed schema yields an empty Schema that accepts everything.
func FromJSONSchema(params map[string]any) Schema {
	s := Schema{Fields: make(map[string]Type)}
	if props, ok := params["properties"].(map[string]any); ok {
		for name, raw := range props {
			prop, _ := raw.(map[string]any)
			s.Fields[name] = ParseType(prop)
		}
	}
	switch req := params["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}
	return s
}

// Validate checks args against the schema.
// Required fields must be present and declared fields must match their type.
// Undeclared fields are accepted. All failures are reported together.
func (s Schema) Validate(args map[string]any) error {
	var errs []error

	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			errs = append(errs, &ValidationError{Key: name, Reason: "required"})
		}
	}

	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value, ok := args[name]
		if !ok {
			continue
		}
		if err := s.Fields[name].Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error()})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
