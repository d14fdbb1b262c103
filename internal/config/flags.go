package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// RegisterFlags declares the command-line overrides shared by the binaries.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("port", "", "HTTP listen port (overrides PORT)")
	fs.String("log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	fs.String("persona", "", "persona YAML file (overrides PERSONA_PATH)")
	fs.String("base-url", "", "platform API base URL (overrides PLATFORM_BASE_URL)")
}

// ApplyFlags overrides values with the flags that were set on fs and
// validates the result. Flags that fs does not define are ignored.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	overrides := map[string]*string{
		"port":      &c.Port,
		"log-level": &c.LogLevel,
		"persona":   &c.PersonaPath,
		"base-url":  &c.Platform.BaseURL,
	}
	for name, dst := range overrides {
		f := fs.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		*dst = f.Value.String()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
