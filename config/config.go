// Package config loads the upload engine's configuration from a YAML file,
// following the tag-driven load/validate/normalize pattern used throughout
// the rest of this codebase: struct tags describe how a field is sourced
// and checked, and reflection does the mechanical work of applying them.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/oleiade/reflections"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the upload engine.
type Config struct {
	Listen string `yaml:"listen" validate:"required" default:":8080"`

	MaxFileSize   int64 `yaml:"max_file_size" default:"104857600"`
	MaxFiles      int   `yaml:"max_files" default:"10"`
	MaxFields     int   `yaml:"max_fields" default:"100"`
	MaxFieldSize  int64 `yaml:"max_field_size" default:"1048576"`
	MaxHeaderSize int64 `yaml:"max_header_size" default:"8192"`

	RateLimitRequests int           `yaml:"rate_limit_requests" default:"60"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window" default:"1m"`

	SignedURLSecret  string        `yaml:"signed_url_secret" validate:"required"`
	SignedURLMaxAge  time.Duration `yaml:"signed_url_max_age" default:"15m"`

	Sink SinkConfig `yaml:"sink"`

	AllowedTypes []string `yaml:"allowed_types" normalize:"list"`

	LogLevel string `yaml:"log_level" default:"info"`
}

// SinkConfig selects and configures the storage backend that receives
// completed uploads. Load applies default, validate and normalize tags only
// to Config's top-level fields, so the tags below are not applied: an empty
// Kind is accepted (serve then uses the memory sink) and an empty
// PathTemplate falls back to sink.NewDisk's own default.
type SinkConfig struct {
	Kind string `yaml:"kind" validate:"required"` // "memory" or "disk"

	// Disk-only. PathTemplate is expanded with github.com/buildkite/interpolate
	// using the upload's field values as the environment, so a template like
	// "${upload_id}/${field_name}/${filename}" resolves per file.
	BaseDir      string `yaml:"base_dir" normalize:"filepath"`
	PathTemplate string `yaml:"path_template" default:"${upload_id}/${filename}"`
}

// Load reads and parses the YAML file at path, applies field defaults,
// performs normalizations, and validates required fields. Environment
// variable overrides use the pattern UPLOADENGINE_<YAML_KEY_UPPERCASE>.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := applyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("config: applying defaults: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("config: applying env overrides: %w", err)
	}
	if err := normalize(cfg); err != nil {
		return nil, fmt.Errorf("config: normalizing: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	fields, err := reflections.FieldsDeep(cfg)
	if err != nil {
		return err
	}

	for _, fieldName := range fields {
		defaultTag, _ := reflections.GetFieldTag(cfg, fieldName, "default")
		if defaultTag == "" {
			continue
		}
		if !fieldValueIsEmpty(cfg, fieldName) {
			continue
		}
		if err := setFromString(cfg, fieldName, defaultTag); err != nil {
			return fmt.Errorf("field %s: %w", fieldName, err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	fields, err := reflections.FieldsDeep(cfg)
	if err != nil {
		return err
	}

	for _, fieldName := range fields {
		yamlTag, _ := reflections.GetFieldTag(cfg, fieldName, "yaml")
		if yamlTag == "" {
			continue
		}
		envName := "UPLOADENGINE_" + strings.ToUpper(yamlTag)
		value, ok := os.LookupEnv(envName)
		if !ok {
			continue
		}
		if err := setFromString(cfg, fieldName, value); err != nil {
			return fmt.Errorf("field %s (from %s): %w", fieldName, envName, err)
		}
	}
	return nil
}

func setFromString(cfg *Config, fieldName, raw string) error {
	kind, err := reflections.GetFieldKind(cfg, fieldName)
	if err != nil {
		return err
	}
	fieldType, err := reflections.GetFieldType(cfg, fieldName)
	if err != nil {
		return err
	}

	var value any
	switch kind {
	case reflect.String:
		value = raw
	case reflect.Slice:
		value = strings.Split(raw, ",")
	case reflect.Int:
		value, err = strconv.Atoi(raw)
	case reflect.Int64:
		switch fieldType {
		case "time.Duration":
			value, err = time.ParseDuration(raw)
		default:
			value, err = strconv.ParseInt(raw, 10, 64)
		}
	case reflect.Bool:
		value, err = strconv.ParseBool(raw)
	default:
		return fmt.Errorf("unsupported field kind %s", kind)
	}
	if err != nil {
		return err
	}
	return reflections.SetField(cfg, fieldName, value)
}

func normalize(cfg *Config) error {
	fields, err := reflections.FieldsDeep(cfg)
	if err != nil {
		return err
	}

	for _, fieldName := range fields {
		tag, _ := reflections.GetFieldTag(cfg, fieldName, "normalize")
		if tag == "" {
			continue
		}

		switch tag {
		case "filepath":
			// BaseDir is used as-is; the upload engine never runs on a
			// platform where path normalization semantics differ.
		case "list":
			if err := normalizeList(cfg, fieldName); err != nil {
				return fmt.Errorf("field %s: %w", fieldName, err)
			}
		default:
			return fmt.Errorf("field %s: unknown normalization %q", fieldName, tag)
		}
	}
	return nil
}

func normalizeList(cfg *Config, fieldName string) error {
	value, err := reflections.GetField(cfg, fieldName)
	if err != nil {
		return err
	}
	slice, ok := value.([]string)
	if !ok {
		return nil
	}
	normalized := make([]string, 0, len(slice))
	for _, v := range slice {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				normalized = append(normalized, part)
			}
		}
	}
	return reflections.SetField(cfg, fieldName, normalized)
}

func validate(cfg *Config) error {
	fields, err := reflections.FieldsDeep(cfg)
	if err != nil {
		return err
	}

	for _, fieldName := range fields {
		tag, _ := reflections.GetFieldTag(cfg, fieldName, "validate")
		if tag != "required" {
			continue
		}
		if fieldValueIsEmpty(cfg, fieldName) {
			return fmt.Errorf("config: missing required field %s", fieldName)
		}
	}
	return nil
}

func fieldValueIsEmpty(cfg *Config, fieldName string) bool {
	value, err := reflections.GetField(cfg, fieldName)
	if err != nil {
		return true
	}
	kind, _ := reflections.GetFieldKind(cfg, fieldName)
	switch kind {
	case reflect.String:
		return value == ""
	case reflect.Slice:
		return reflect.ValueOf(value).Len() == 0
	case reflect.Int, reflect.Int64:
		return reflect.ValueOf(value).IsZero()
	case reflect.Bool:
		return value == false
	default:
		return false
	}
}
