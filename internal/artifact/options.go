package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/stage-exporter/constants"
)

// Options controls how a result set is encoded. Carried as an optional JSON
// blob on the work item; unset fields take their defaults.
type Options struct {
	Format    constants.ArtifactFormat `json:"format"`
	Delimiter string                   `json:"delimiter"`
	Header    bool                     `json:"header"`
	Sheet     string                   `json:"sheet"`
}

// DefaultOptions returns CSV with a comma delimiter and a header row.
func DefaultOptions() Options {
	return Options{
		Format:    constants.FormatCSV,
		Delimiter: ",",
		Header:    true,
		Sheet:     "Export",
	}
}

// buildOptionsSchema returns the JSON-Schema constraint for work-item options.
func buildOptionsSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"format":    map[string]any{"type": "string", "enum": constants.AsStrings()},
			"delimiter": map[string]any{"type": "string", "minLength": 1, "maxLength": 1},
			"header":    map[string]any{"type": "boolean"},
			"sheet":     map[string]any{"type": "string", "minLength": 1},
		},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ParseOptions validates raw work-item options and merges them over the
// defaults. Nil or empty raw options yield the defaults.
func ParseOptions(raw []byte) (Options, error) {
	opts := DefaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}
	if err := ValidateJSONAgainstSchema(buildOptionsSchema(), raw); err != nil {
		return opts, fmt.Errorf("invalid options: %w", err)
	}
	var in struct {
		Format    *string `json:"format"`
		Delimiter *string `json:"delimiter"`
		Header    *bool   `json:"header"`
		Sheet     *string `json:"sheet"`
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return opts, fmt.Errorf("decode options: %w", err)
	}
	if in.Format != nil {
		opts.Format = constants.ArtifactFormat(*in.Format)
	}
	if in.Delimiter != nil {
		opts.Delimiter = *in.Delimiter
	}
	if in.Header != nil {
		opts.Header = *in.Header
	}
	if in.Sheet != nil {
		opts.Sheet = *in.Sheet
	}
	return opts, nil
}
