package viper

import (
	"fmt"
	"strings"

	"github.com/abhissng/conduit/utils/helpers"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Viper struct holds the configuration for the Viper client
type Viper struct {
	configFile string
	envPrefix  string
	defaults   map[string]any
}

// Option configures a Viper.
type Option func(*Viper)

// WithEnvPrefix namespaces environment overrides, e.g. CONDUIT_BROKER_URL.
func WithEnvPrefix(prefix string) Option {
	return func(v *Viper) {
		v.envPrefix = prefix
	}
}

// WithDefaults registers a default for every key. Keys without a default
// are not visible to environment overrides during Unmarshal.
func WithDefaults(defaults map[string]any) Option {
	return func(v *Viper) {
		for key, value := range defaults {
			v.defaults[key] = value
		}
	}
}

// NewViper creates the viper configuration. configFile may be empty, in
// which case only defaults and the environment are used.
func NewViper(configFile string, opts ...Option) *Viper {
	v := &Viper{
		configFile: configFile,
		defaults:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// InitialiseViper initialises the process-wide viper instance.
func (v *Viper) InitialiseViper() error {
	viper.Reset()
	for key, value := range v.defaults {
		viper.SetDefault(key, value)
	}

	if !helpers.IsEmpty(v.envPrefix) {
		viper.SetEnvPrefix(v.envPrefix)
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if helpers.IsEmpty(v.configFile) {
		return nil
	}
	viper.SetConfigFile(v.configFile)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading configuration file: %w", err)
	}
	return nil
}

// UnmarshalConfig unmarshals the entire Viper configuration into the provided struct reference.
// Durations may be written as "30s" and string slices as "a,b,c".
//
// Example:
//
//	type AppConfig struct {
//	    Server struct {
//	        Addr    string        `mapstructure:"addr"`
//	        Timeout time.Duration `mapstructure:"timeout"`
//	    } `mapstructure:"server"`
//	}
func UnmarshalConfig[T any](target *T) error {
	if target == nil {
		return fmt.Errorf("target struct cannot be nil")
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := viper.Unmarshal(target, hook); err != nil {
		return fmt.Errorf("failed to unmarshal viper config: %w", err)
	}

	return nil
}
