// Package schema validates tool arguments against the JSON Schema a tool
// declares in its Parameters.
//
// Only the subset models rely on is understood: an object with typed
// properties and a required list. Unknown or missing property types accept
// any value, so schemas published by remote MCP servers never reject more
// than the server itself would.
//
// Basic usage:
//
//	s := schema.FromJSONSchema(map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	        "location": map[string]any{"type": "string"},
//	        "days":     map[string]any{"type": "integer"},
//	    },
//	    "required": []string{"location"},
//	})
//
//	err := s.Validate(map[string]any{"location": "上海", "days": 3.0})
//	for _, e := range schema.ValidationErrors(err) {
//	    fmt.Println(e)
//	}
package schema
