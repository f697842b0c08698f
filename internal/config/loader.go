package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/cardbook/internal/core"
)

// LoadEnvFiles seeds the process environment from .env files. Variables that
// are already set win over file values. Missing files are not an error;
// with no arguments ".env" in the working directory is tried.
// Returns the files that were actually loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Every missing required setting and every invalid value is reported in a
// single *core.ConfigError.
func Load() (*Config, error) {
	cfg := &Config{}

	var invalid []string
	loadStruct(reflect.ValueOf(cfg).Elem(), &invalid)

	err := cfg.Validate()
	if err == nil && len(invalid) == 0 {
		return cfg, nil
	}

	cfgErr := &core.ConfigError{Invalid: invalid}
	var verr *core.ConfigError
	if errors.As(err, &verr) {
		cfgErr.Missing = verr.Missing
		cfgErr.Invalid = append(cfgErr.Invalid, verr.Invalid...)
	}
	return nil, cfgErr
}

// loadStruct recursively populates struct fields from environment variables.
// Values that cannot be converted are recorded in invalid and left unset.
func loadStruct(v reflect.Value, invalid *[]string) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		// Skip unexported fields
		if !fieldVal.CanSet() {
			continue
		}

		// Recurse into nested structs
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			loadStruct(fieldVal, invalid)
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")

		if envName == "" {
			continue
		}

		// Try primary env var, then alternate
		value := strings.TrimSpace(os.Getenv(envName))
		if value == "" && envAlt != "" {
			value = strings.TrimSpace(os.Getenv(envAlt))
		}

		if value == "" {
			value = defaultVal
		}
		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			*invalid = append(*invalid, fmt.Sprintf("%s (%q): %v", envName, value, err))
		}
	}
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			// Split comma-separated values, trim whitespace
			parts := strings.Split(value, ",")
			result := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					result = append(result, p)
				}
			}
			field.Set(reflect.ValueOf(result))
		} else {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// validate is shared; validator caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their environment variable name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// Validate checks that the configuration is valid.
// Returns a *core.ConfigError describing all validation failures.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &core.ConfigError{Invalid: []string{err.Error()}}
	}

	cfgErr := &core.ConfigError{}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			cfgErr.Missing = append(cfgErr.Missing, fe.Field())
			continue
		}
		cfgErr.Invalid = append(cfgErr.Invalid, describe(fe))
	}
	return cfgErr
}

// describe renders one failed rule the way an operator would fix it.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "url":
		return fmt.Sprintf("%s (%q) must be a valid URL", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s (%q) must be one of: %s", fe.Field(), fe.Value(),
			strings.Join(strings.Fields(fe.Param()), ", "))
	case "gt":
		return fmt.Sprintf("%s (%v) must be greater than %s", fe.Field(), fe.Value(), fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s (%v) must be at least %s", fe.Field(), fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("%s (%v) must be at most %s", fe.Field(), fe.Value(), fe.Param())
	default:
		return fmt.Sprintf("%s (%v) failed %q", fe.Field(), fe.Value(), fe.Tag())
	}
}

// String returns a safe string representation of the config for logging.
// The CardDAV password and the history database URL are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("CardDAV: {URL: %q, User: %q, Password: [MASKED], AddressBooks: %q}, ",
		c.CardDAV.URL, c.CardDAV.User, c.CardDAV.AddressBooks))
	b.WriteString(fmt.Sprintf("Phonebook: {Path: %q, LineEnding: %q}, ",
		c.Phonebook.Path, c.Phonebook.LineEnding))
	history := "memory"
	if c.History.DatabaseURL != "" {
		history = "[MASKED]"
	}
	b.WriteString(fmt.Sprintf("History: {DatabaseURL: %s, Limit: %d}, ", history, c.History.Limit))
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
