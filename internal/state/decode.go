package state

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Decode reconstitutes a given state. Optionally, if provided, a list of upgrade functions will be
// applied before decoding the state.
func Decode(b []byte, upgradeFuncs UpgradeFuncs, s *State) error {
	lines := strings.Split(string(b), "\n")

	// Check if we need to run any update logic.
	if strings.HasPrefix(lines[0], "#Version: ") {
		version, err := strconv.Atoi(strings.TrimPrefix(lines[0], "#Version: "))
		if err != nil {
			return err
		}

		// Record our starting version.
		s.StateVersion = version

		// If no custom upgrade functions are supplied, use the default list.
		if upgradeFuncs == nil {
			upgradeFuncs = upgrades
		}

		if version > len(upgradeFuncs) {
			return fmt.Errorf("state version %d is newer than the supported version %d", version, len(upgradeFuncs))
		}

		// Apply any needed upgrade functions to the input.
		for i := version; i < len(upgradeFuncs); i++ {
			if upgradeFuncs[i] != nil {
				lines, err = upgradeFuncs[i](lines)
				if err != nil {
					return err
				}

				// An upgrade may generate more than one new line of content, so we join
				// then resplit the lines after each upgrade function runs.
				lines = strings.Split(strings.Join(lines, "\n"), "\n")

				// Increment the state's version number.
				s.StateVersion = i + 1
			}
		}
	}

	// Parse each line.
	for i, line := range lines {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return fmt.Errorf("line %d: malformed line '%s'", i+1, line)
		}

		err := decodeValue(reflect.ValueOf(s).Elem(), strings.Split(key, "."), value)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}

	return nil
}

// decodeValue stores value at the location named by keys below the struct v.
//
// Map entries aren't addressable, so an entry is decoded into a copy which is then stored
// back into the map.
func decodeValue(v reflect.Value, keys []string, value string) error {
	if len(keys) == 0 {
		return setValue(v, value)
	}

	if v.Kind() != reflect.Struct {
		return fmt.Errorf("unsupported kind '%s'", v.Kind())
	}

	name, mapKey, indexed := strings.Cut(keys[0], "[")
	mapKey = strings.TrimSuffix(mapKey, "]")

	field, ok := v.Type().FieldByName(name)
	if !ok {
		return fmt.Errorf("invalid field '%s' for struct '%s'", keys[0], v.Type())
	}

	if !field.IsExported() || skipField(field) {
		return fmt.Errorf("field '%s' can't be set from the state file", keys[0])
	}

	fv := v.FieldByIndex(field.Index)

	if fv.Kind() != reflect.Map {
		if indexed {
			return fmt.Errorf("field '%s' isn't a map", name)
		}

		return decodeValue(fv, keys[1:], value)
	}

	if !indexed {
		return fmt.Errorf("missing key for map field '%s'", name)
	}

	if fv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("map field '%s' must have string keys", name)
	}

	if fv.IsNil() {
		fv.Set(reflect.MakeMap(fv.Type()))
	}

	k := reflect.ValueOf(mapKey).Convert(fv.Type().Key())

	entry := reflect.New(fv.Type().Elem()).Elem()

	existing := fv.MapIndex(k)
	if existing.IsValid() {
		entry.Set(existing)
	}

	err := decodeValue(entry, keys[1:], value)
	if err != nil {
		return err
	}

	fv.SetMapIndex(k, entry)

	return nil
}

// setValue converts the string representation of a value and stores it in v.
func setValue(v reflect.Value, value string) error {
	switch {
	case v.CanInt():
		n, err := strconv.ParseInt(value, 10, v.Type().Bits())
		if err != nil {
			return err
		}

		v.SetInt(n)
	case v.CanUint():
		n, err := strconv.ParseUint(value, 10, v.Type().Bits())
		if err != nil {
			return err
		}

		v.SetUint(n)
	case v.CanFloat():
		f, err := strconv.ParseFloat(value, v.Type().Bits())
		if err != nil {
			return err
		}

		v.SetFloat(f)
	case v.Kind() == reflect.String:
		v.SetString(strings.ReplaceAll(value, `\n`, "\n"))
	default:
		return fmt.Errorf("unhandled kind '%s'", v.Kind())
	}

	return nil
}
