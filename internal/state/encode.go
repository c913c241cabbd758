package state

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// Encode encodes the state and returns an array of bytes.
func Encode(s *State) ([]byte, error) {
	var b bytes.Buffer

	_, _ = fmt.Fprintf(&b, "#Version: %d\n", s.StateVersion)

	err := encodeValue(&b, "", reflect.ValueOf(s).Elem())
	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// encodeValue writes one "key: value" line for every non-zero scalar below v.
//
// Struct fields appear in declaration order and map entries in key order, so saving the
// same state twice produces the same file.
func encodeValue(b *bytes.Buffer, key string, v reflect.Value) error {
	if v.IsZero() {
		return nil
	}

	switch v.Kind() { //nolint:exhaustive
	case reflect.Struct:
		for i := range v.NumField() {
			field := v.Type().Field(i)
			if !field.IsExported() || skipField(field) {
				continue
			}

			err := encodeValue(b, joinKey(key, field.Name), v.Field(i))
			if err != nil {
				return err
			}
		}

		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%s: map keys must be strings", key)
		}

		keys := v.MapKeys()
		slices.SortFunc(keys, func(a reflect.Value, b reflect.Value) int {
			return strings.Compare(a.String(), b.String())
		})

		for _, k := range keys {
			if strings.ContainsAny(k.String(), ".[]: ") {
				return fmt.Errorf("map key '%s' cannot contain dots, brackets, colons or spaces", k)
			}

			err := encodeValue(b, fmt.Sprintf("%s[%s]", key, k), v.MapIndex(k))
			if err != nil {
				return err
			}
		}

		return nil
	default:
	}

	value, err := formatScalar(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	_, _ = fmt.Fprintf(b, "%s: %s\n", key, value)

	return nil
}

func formatScalar(v reflect.Value) (string, error) {
	switch {
	case v.CanInt():
		return strconv.FormatInt(v.Int(), 10), nil
	case v.CanUint():
		return strconv.FormatUint(v.Uint(), 10), nil
	case v.CanFloat():
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case v.Kind() == reflect.String:
		return strings.ReplaceAll(v.String(), "\n", `\n`), nil
	default:
		return "", fmt.Errorf("unhandled kind '%s'", v.Kind())
	}
}

func joinKey(prefix string, name string) string {
	if prefix == "" {
		return name
	}

	return prefix + "." + name
}

func skipField(field reflect.StructField) bool {
	return field.Tag.Get("json") == "-" || field.Tag.Get("state") == "-"
}
