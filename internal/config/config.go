// Package config assembles the run configuration from defaults, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/nymph-fabric/fabric-bench/api"
	"github.com/nymph-fabric/fabric-bench/internal/device"
	"github.com/nymph-fabric/fabric-bench/internal/scheduling"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "FABRIC_BENCH_"

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Default returns the configuration used when nothing is overridden.
func Default() *api.Config {
	return &api.Config{
		Device:       device.DefaultPath,
		Transfers:    100,
		TransferSize: 64 * 1024,
		RingDepth:    256,
		BaselineSize: 10 * 1024 * 1024,
		Threshold:    0.10,
		Output:       "dist/dma_vs_copy.json",
		StatePath:    "dist/dma_vs_copy.state",
	}
}

// Load returns the default configuration overridden by the YAML file at path (if not empty),
// then by any dotenv files that exist, then by FABRIC_BENCH_* environment variables.
func Load(path string, envFiles ...string) (*api.Config, error) {
	cfg := Default()

	if path != "" {
		body, err := os.ReadFile(path) //nolint:gosec
		if err != nil {
			return nil, err
		}

		err = yaml.Unmarshal(body, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	dotenv := map[string]string{}

	for _, envFile := range envFiles {
		values, err := godotenv.Read(envFile)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}

			return nil, fmt.Errorf("parsing %s: %w", envFile, err)
		}

		dotenv = lo.Assign(dotenv, values)
	}

	// The process environment wins over dotenv files.
	lookup := func(key string) (string, bool) {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if ok {
			return v, true
		}

		v, ok = dotenv[EnvPrefix+key]

		return v, ok
	}

	err := applyEnv(cfg, lookup)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyEnv(cfg *api.Config, lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"DEVICE":   &cfg.Device,
		"OUTPUT":   &cfg.Output,
		"STATE":    &cfg.StatePath,
		"HISTORY":  &cfg.HistoryPath,
		"SCHEDULE": &cfg.Schedule,
	}

	for key, target := range strVars {
		v, ok := lookup(key)
		if ok {
			*target = v
		}
	}

	intVars := map[string]*int{
		"TRANSFERS":     &cfg.Transfers,
		"TRANSFER_SIZE": &cfg.TransferSize,
		"BASELINE_SIZE": &cfg.BaselineSize,
	}

	for key, target := range intVars {
		v, ok := lookup(key)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}

		*target = n
	}

	v, ok := lookup("RING_DEPTH")
	if ok {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%sRING_DEPTH: %w", EnvPrefix, err)
		}

		cfg.RingDepth = uint32(n)
	}

	v, ok = lookup("THRESHOLD")
	if ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTHRESHOLD: %w", EnvPrefix, err)
		}

		cfg.Threshold = f
	}

	v, ok = lookup("STUB")
	if ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSTUB: %w", EnvPrefix, err)
		}

		cfg.Stub = b
	}

	return nil
}

// ValidateRun checks the parts of the configuration a single measurement depends on.
func ValidateRun(cfg *api.Config) error {
	switch {
	case cfg.Device == "" && !cfg.Stub:
		return fmt.Errorf("%w: no device path", ErrInvalidConfig)
	case cfg.Transfers <= 0 || uint64(cfg.Transfers) > math.MaxUint32:
		return fmt.Errorf("%w: transfer count must be between 1 and %d, got %d", ErrInvalidConfig, uint32(math.MaxUint32), cfg.Transfers)
	case cfg.TransferSize <= 0 || uint64(cfg.TransferSize) > math.MaxUint32:
		return fmt.Errorf("%w: transfer size must be between 1 and %d bytes, got %d", ErrInvalidConfig, uint32(math.MaxUint32), cfg.TransferSize)
	case cfg.RingDepth == 0:
		return fmt.Errorf("%w: ring depth must be positive", ErrInvalidConfig)
	case cfg.BaselineSize <= 0:
		return fmt.Errorf("%w: baseline size must be positive, got %d", ErrInvalidConfig, cfg.BaselineSize)
	case cfg.Threshold < 0 || math.IsNaN(cfg.Threshold):
		return fmt.Errorf("%w: threshold must not be negative", ErrInvalidConfig)
	}

	return nil
}

// Validate checks that the configuration can drive the command line tool, including where
// results go and how often runs happen.
func Validate(cfg *api.Config) error {
	err := ValidateRun(cfg)
	if err != nil {
		return err
	}

	if cfg.Output == "" {
		return fmt.Errorf("%w: no output path", ErrInvalidConfig)
	}

	if cfg.Schedule != "" {
		err := scheduling.ValidateCronTab(cfg.Schedule)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	return nil
}
