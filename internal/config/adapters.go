package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeAdapter decodes the settings of the named adapter into out. Entries
// set by SetDefaults are typed pointers; entries read from a file are maps.
func DecodeAdapter(adapters map[string]interface{}, name string, out interface{}) error {
	raw, ok := adapters[name]
	if !ok {
		return fmt.Errorf("no configuration for adapter '%s'", name)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode %s adapter configuration: %w", name, err)
	}
	return nil
}
