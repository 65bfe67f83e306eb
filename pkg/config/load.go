package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvDatabase = "TESTSTORE_DB"
	EnvOwner    = "TESTSTORE_OWNER"
	EnvLogLevel = "LOG_LEVEL"
)

// ValidationError is a configuration error with its source position.
type ValidationError struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}

// ValidationErrors collects every error found in one file.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Load reads the configuration at path, applies environment overrides and
// validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode merges the file contents into c, keeping values the file omits.
func (c *Config) decode(path string, data []byte) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		yamlData, err := compileCUE(path, data)
		if err != nil {
			return err
		}
		return c.decodeYAML(path, yamlData)
	case ".yaml", ".yml", ".json":
		return c.decodeYAML(path, data)
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

func (c *Config) decodeYAML(path string, data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// compileCUE evaluates a CUE file against the schema and exports it as YAML.
func compileCUE(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(configSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}

	val := ctx.CompileBytes(data, cue.Filename(path))
	if err := val.Err(); err != nil {
		return nil, convertCUEErrors(err)
	}

	val = schema.FillPath(cue.ParsePath("config"), val).LookupPath(cue.ParsePath("config"))
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, convertCUEErrors(err)
	}

	out, err := cueyaml.Encode(val)
	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", path, err)
	}
	return out, nil
}

func convertCUEErrors(err error) ValidationErrors {
	var out ValidationErrors
	for _, e := range errors.Errors(err) {
		ve := ValidationError{Message: strings.TrimSpace(errors.Details(e, nil))}
		if pos := errors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	return out
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup(EnvOwner); ok && v != "" {
		c.Owner = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Telemetry.Logging.Level = v
	}
}
