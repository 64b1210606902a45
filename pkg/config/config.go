// Package config loads strongly typed configuration structs from YAML files
// and environment variables using struct tags:
//
//	env:"NAME"       environment variable overriding the field
//	yaml:"name"      key used when decoding a YAML file
//	default:"value"  applied when the field is still zero after loading
//	required:"true"  reported as missing when the field is zero and has no default
//
// Nested structs are walked recursively. Supported kinds are string, bool,
// ints, floats, time.Duration and comma separated []string.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Validator interface allows config structs to implement custom validation logic.
// If a config struct implements this interface, validation will be automatically
// called after loading configuration from files and environment variables.
type Validator interface {
	Validate() error
}

// setFromString assigns raw to field according to the field's kind.
func setFromString(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to duration: %w", raw, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to int: %w", raw, err)
		}
		field.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(raw, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("failed to convert %s to float: %w", raw, err)
		}
		field.SetFloat(v)
	case reflect.Bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("failed to convert %s to bool: %w", raw, err)
		}
		field.SetBool(v)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(raw, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				slice = reflect.Append(slice, reflect.ValueOf(p).Convert(field.Type().Elem()))
			}
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

func fieldKey(typeOfT reflect.Type, f reflect.StructField) string {
	return typeOfT.PkgPath() + "." + typeOfT.Name() + "." + f.Name
}

// processFields overlays environment variables and records which fields were set.
func processFields(val reflect.Value, typeOfT reflect.Type, setFields map[string]bool) error {
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typeOfT.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := processFields(field, fieldType.Type, setFields); err != nil {
				return err
			}
			continue
		}

		tag := fieldType.Tag.Get("env")
		if tag == "" {
			continue
		}
		envVal, ok := os.LookupEnv(tag)
		if !ok || envVal == "" {
			continue
		}
		if err := setFromString(field, envVal); err != nil {
			return fmt.Errorf("env %s: %w", tag, err)
		}
		setFields[fieldKey(typeOfT, fieldType)] = true
	}
	return nil
}

func checkRequiredAndDefaults(val reflect.Value, typeOfT reflect.Type, setFields map[string]bool) error {
	var result error
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typeOfT.Field(i)
		if !fieldType.IsExported() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := checkRequiredAndDefaults(field, fieldType.Type, setFields); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		defaultTag, hasDefault := fieldType.Tag.Lookup("default")
		required := strings.EqualFold(fieldType.Tag.Get("required"), "true") || fieldType.Tag.Get("required") == "1"
		// a default satisfies required
		if required && hasDefault && defaultTag != "" {
			required = false
		}

		if !field.IsZero() {
			continue
		}
		if required {
			result = multierror.Append(result, fmt.Errorf("required field env:%s / yaml:%s is missing",
				fieldType.Tag.Get("env"), fieldType.Tag.Get("yaml")))
			continue
		}
		if defaultTag == "" || setFields[fieldKey(typeOfT, fieldType)] {
			continue
		}
		if err := setFromString(field, defaultTag); err != nil {
			result = multierror.Append(result, fmt.Errorf("default for %s: %w", fieldType.Name, err))
		}
	}
	return result
}

func load[T any](dest *T) error {
	val := reflect.ValueOf(dest).Elem()
	typeOfT := val.Type()

	setFields := make(map[string]bool)
	if err := processFields(val, typeOfT, setFields); err != nil {
		return err
	}
	if err := checkRequiredAndDefaults(val, typeOfT, setFields); err != nil {
		var zero T
		*dest = zero
		return err
	}
	return nil
}

// validate runs Validate when T (or *T) implements Validator.
func validate[T any](dest *T) error {
	if validator, ok := any(dest).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}
	return nil
}

// GetConfigFromEnvVars loads configuration from environment variables only.
//
//	var cfg MyConfig
//	err := GetConfigFromEnvVars(&cfg)
func GetConfigFromEnvVars[T any](dest *T) error {
	if err := load(dest); err != nil {
		return err
	}
	return validate(dest)
}

// GetConfig loads configuration from YAML file first, then overlays environment variables.
// If filepath is empty, only environment variables are used.
// If allowFileErrors is true, file read/parse errors fallback to env vars only.
func GetConfig[T any](dest *T, filepath string, allowFileErrors bool) error {
	if filepath == "" {
		return GetConfigFromEnvVars(dest)
	}

	data, err := os.ReadFile(filepath) //nolint:gosec // operator supplied config path
	if err != nil {
		if allowFileErrors {
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to read file: %w", err)
	}
	if err := yaml.Unmarshal(data, dest); err != nil {
		if allowFileErrors {
			var zero T
			*dest = zero
			return GetConfigFromEnvVars(dest)
		}
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return GetConfigFromEnvVars(dest)
}
