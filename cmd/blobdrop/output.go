package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type outputFlags struct {
	json *bool
	yaml *bool
}

// write renders payload as JSON or YAML per the global flags, falling
// back to the provided plain renderer.
func (o *outputFlags) write(payload any, plain func() error) error {
	switch {
	case o.yaml != nil && *o.yaml:
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(payload)
	case o.json != nil && *o.json:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(payload)
	default:
		return plain()
	}
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}
