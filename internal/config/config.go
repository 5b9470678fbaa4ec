// Package config loads the service settings.
//
// Sources are applied in order, later ones winning: built-in defaults, the
// YAML file named by NAV_CONFIG, then individual environment variables. A
// .env file, if present, seeds the environment first without overriding
// variables that are already set.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"indoor-navigator/internal/guidance"
)

// ErrInvalidConfig is returned when a setting cannot be parsed or is out of
// range.
var ErrInvalidConfig = errors.New("invalid config")

var validate = validator.New()

// Config holds every setting of the service.
type Config struct {
	Addr         string `yaml:"addr" validate:"required"`
	MapPath      string `yaml:"map_path" validate:"required"`
	RadioMapPath string `yaml:"radio_map_path"`

	// KNN is how many matches the position estimate averages.
	KNN               int             `yaml:"knn_k" validate:"gte=1,lte=50"`
	SimplifyTolerance float64         `yaml:"simplify_tolerance" validate:"gt=0"`
	Guidance          guidance.Config `yaml:"guidance"`

	CORSOrigin      string        `yaml:"cors_origin"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	LogLevel  string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=text json"`
}

// The bundled campus pair. The radio map only fits that graph.
const (
	defaultMapPath      = "data/maps/campus_map.json"
	defaultRadioMapPath = "data/maps/campus_radio_map.json"
)

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Addr:              ":8080",
		MapPath:           defaultMapPath,
		RadioMapPath:      defaultRadioMapPath,
		KNN:               3,
		SimplifyTolerance: guidance.DefaultTolerance,
		Guidance:          guidance.DefaultConfig(),
		CORSOrigin:        "*",
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// Load builds the configuration. envFile may be empty; a missing .env file
// is not an error. A map path other than the bundled one drops the bundled
// radio map unless a radio map path is given explicitly; an empty one turns
// the radio merge off.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	cfg := Default()
	radioSet := false
	if path := os.Getenv("NAV_CONFIG"); path != "" {
		set, err := cfg.mergeFile(path)
		if err != nil {
			return Config{}, err
		}
		radioSet = set
	}
	if v, ok := os.LookupEnv("NAV_RADIO_MAP_PATH"); ok {
		cfg.RadioMapPath = v
		radioSet = true
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if !radioSet && cfg.MapPath != defaultMapPath {
		cfg.RadioMapPath = ""
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			e := fieldErrs[0]
			return fmt.Errorf("%w: %s fails %s=%s (got %v)", ErrInvalidConfig, e.Namespace(), e.Tag(), e.Param(), e.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// mergeFile overlays the YAML file on c and reports whether it names a radio
// map path.
func (c *Config) mergeFile(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	var keys struct {
		RadioMapPath *string `yaml:"radio_map_path"`
	}
	if err := yaml.Unmarshal(data, &keys); err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return keys.RadioMapPath != nil, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Addr, "NAV_ADDR")
	setString(&c.MapPath, "NAV_MAP_PATH")
	setString(&c.CORSOrigin, "NAV_CORS_ORIGIN")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")

	return errors.Join(
		setInt(&c.KNN, "NAV_KNN_K"),
		setFloat(&c.SimplifyTolerance, "NAV_SIMPLIFY_TOLERANCE"),
		setFloat(&c.Guidance.ArrivalRadius, "NAV_ARRIVAL_RADIUS"),
		setFloat(&c.Guidance.TurnThreshold, "NAV_TURN_THRESHOLD"),
		setDuration(&c.Guidance.Cooldown, "NAV_CUE_COOLDOWN"),
		setDuration(&c.ShutdownTimeout, "NAV_SHUTDOWN_TIMEOUT"),
	)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, key, v)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v)
	}
	*dst = d
	return nil
}
