package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode converts loosely typed input (typically a map decoded from JSON or YAML)
// into out, which must be a pointer. Field names follow the `json` tags and scalar
// types are converted weakly ("42" decodes into an int field).
func Decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode input: %w", err)
	}
	return nil
}
