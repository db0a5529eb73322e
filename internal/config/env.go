package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// applyEnvOverrides replaces config values with the env vars named by `env` tags.
// Errors name both the variable and the yaml key it overrides.
func applyEnvOverrides(cfg *Config) error {
	return overrideFields(reflect.ValueOf(cfg).Elem(), "")
}

func overrideFields(val reflect.Value, path string) error {
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		key := yamlKey(path, fieldType)

		// Sections (server, database, redis, ...) are walked, not set
		if field.Kind() == reflect.Struct {
			if err := overrideFields(field, key); err != nil {
				return err
			}
			continue
		}

		envName := fieldType.Tag.Get("env")
		if envName == "" {
			continue // not overridable
		}

		envValue, exists := os.LookupEnv(envName)
		if !exists {
			continue // keep file or default value
		}

		if err := setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("%s (from %s): %w", key, envName, err)
		}
	}

	return nil
}

// yamlKey builds the dotted key of a field, e.g. "redis.db"
func yamlKey(parent string, field reflect.StructField) string {
	name := strings.Split(field.Tag.Get("yaml"), ",")[0]
	if name == "" {
		name = strings.ToLower(field.Name)
	}
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// setFieldFromEnv parses value into field according to the field's kind
func setFieldFromEnv(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("field cannot be set")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// Durations are int64 underneath but are written as "5s", "30m"
		if field.Type() == durationType {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration format: %w", err)
			}
			field.SetInt(int64(duration))
			return nil
		}

		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer format: %w", err)
		}
		if field.OverflowInt(intValue) {
			return fmt.Errorf("integer %d out of range", intValue)
		}
		field.SetInt(intValue)

	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean format: %w", err)
		}
		field.SetBool(boolValue)

	case reflect.Slice:
		// Comma-separated lists, e.g. ACADEMIC_GRADE_SCALE="O,A+,A,B+,B,C,F"
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(value)).Convert(field.Type()))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// splitList splits on commas, dropping blanks
func splitList(value string) []string {
	out := []string{}
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
