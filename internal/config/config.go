// Package config loads paramcheck's own settings from .paramcheck.yaml
// and the test framework's settings from the project's pytest
// configuration files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/unbound-force/paramcheck/internal/taxonomy"
)

// FileName is the tool configuration file looked up in the project root.
const FileName = ".paramcheck.yaml"

// Config is the tool configuration.
type Config struct {
	// Include restricts discovery to matching paths when non-empty.
	Include []string `yaml:"include" validate:"dive,required"`

	// Exclude drops matching paths from discovery.
	Exclude []string `yaml:"exclude" validate:"dive,required"`

	// Format is the default output format.
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`

	// Disable lists diagnostic codes that are never reported.
	Disable []string `yaml:"disable" validate:"dive,diagcode"`

	// Markers are marks accepted in addition to the framework's.
	Markers []string `yaml:"markers" validate:"dive,required"`

	// FixtureModules are searched for fixtures after the defaults.
	FixtureModules []string `yaml:"fixture_modules" validate:"dive,required"`

	Checks Checks `yaml:"checks"`
}

// Checks toggles optional analyses.
type Checks struct {
	FixtureScopes bool `yaml:"fixture_scopes"`
	FixtureTypes  bool `yaml:"fixture_types"`
	UnknownMarks  bool `yaml:"unknown_marks"`
	ReturnTypes   bool `yaml:"return_types"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Exclude: []string{
			".venv/**", "venv/**", ".tox/**", ".nox/**", "build/**",
			"dist/**", "node_modules/**", "__pycache__/**",
		},
		Format: "text",
		Checks: Checks{
			FixtureScopes: true,
			FixtureTypes:  true,
			UnknownMarks:  true,
			ReturnTypes:   true,
		},
	}
}

// DisabledCodes returns Disable as codes.
func (c *Config) DisabledCodes() []taxonomy.Code {
	out := make([]taxonomy.Code, len(c.Disable))
	for i, s := range c.Disable {
		out[i] = taxonomy.Code(s)
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("diagcode", func(fl validator.FieldLevel) bool {
		_, ok := taxonomy.Lookup(taxonomy.Code(fl.Field().String()))
		return ok
	})
	if err != nil {
		panic(fmt.Sprintf("config: registering diagcode validation: %v", err))
	}
	return v
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: invalid value %q (%s)", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads the configuration at path. Fields absent from the file
// keep their defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Find loads the configuration from explicit when set, otherwise from
// FileName in root.
func Find(root, explicit string) (*Config, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		return Load(explicit)
	}
	return Load(filepath.Join(root, FileName))
}
