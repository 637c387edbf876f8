// Package config loads the etun configuration from an optional YAML file and
// ETUN_* environment variables.
package config

import (
	"fmt"
	"math"
	"net"
	"reflect"
	"strconv"
	"strings"
	"time"

	"etun"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Config struct {
	Log     LogConfig           `mapstructure:"log"`
	Server  ServerConfig        `mapstructure:"server"`
	Client  ClientConfig        `mapstructure:"client"`
	Catalog []etun.CatalogEntry `mapstructure:"catalog" validate:"max=256"`
}

type LogConfig struct {
	Level  string        `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string        `mapstructure:"format" validate:"oneof=text json"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig enables a rotating log file next to stderr output.
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
	Compress   bool   `mapstructure:"compress"`
}

type ServerConfig struct {
	Listen           string        `mapstructure:"listen" validate:"listen"`
	Subnet           string        `mapstructure:"subnet" validate:"cidrv4"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" validate:"min=0"`
}

type ClientConfig struct {
	Server  string `mapstructure:"server" validate:"hostname_port"`
	TapName string `mapstructure:"tap_name"`
}

// Validate is the validator used on loaded configurations.
var Validate *validator.Validate

// isListen validates a <host>:<port> combination where host may be empty.
func isListen(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	if portNum, err := strconv.ParseUint(port, 10, 16); err != nil || portNum > 65535 {
		return false
	}
	if host != "" {
		return Validate.Var(host, "hostname_rfc1123|ip") == nil
	}
	return true
}

func init() {
	Validate = validator.New()
	_ = Validate.RegisterValidation("listen", isListen)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 100)
	v.SetDefault("log.file.max_backups", 5)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("server.listen", ":6885")
	v.SetDefault("server.subnet", "10.0.0.0/24")
	v.SetDefault("server.handshake_timeout", "5s")

	v.SetDefault("client.server", "127.0.0.1:6885")
	v.SetDefault("client.tap_name", "")
}

// Load reads the configuration at path. An empty path only uses defaults and
// environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("etun")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		stringToUint16HookFunc(),
		uintRangeHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// stringToUint16HookFunc accepts EtherTypes written as strings in any base
// strconv understands, e.g. "0x86dd".
func stringToUint16HookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Uint16 {
			return data, nil
		}
		v, err := strconv.ParseUint(strings.TrimSpace(data.(string)), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid 16-bit value %q: %w", data, err)
		}
		return uint16(v), nil
	}
}

// uintRangeHookFunc rejects numbers that do not fit the uint8 or uint16 field
// they are decoded into instead of letting them wrap.
func uintRangeHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		var max uint64
		switch t.Kind() {
		case reflect.Uint8:
			max = math.MaxUint8
		case reflect.Uint16:
			max = math.MaxUint16
		default:
			return data, nil
		}

		v := reflect.ValueOf(data)
		switch f.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if n := v.Int(); n < 0 || uint64(n) > max {
				return nil, fmt.Errorf("value %d out of range 0-%d", n, max)
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if n := v.Uint(); n > max {
				return nil, fmt.Errorf("value %d out of range 0-%d", n, max)
			}
		case reflect.Float32, reflect.Float64:
			if n := v.Float(); n < 0 || n > float64(max) || n != math.Trunc(n) {
				return nil, fmt.Errorf("value %v out of range 0-%d", n, max)
			}
		}
		return data, nil
	}
}

// Table builds the EtherType table of the configured catalog, or returns the
// default table when no catalog is configured.
func (c *Config) Table() (*etun.EtherTypeTable, error) {
	if len(c.Catalog) == 0 {
		return etun.DefaultTable(), nil
	}
	return etun.NewEtherTypeTable(c.Catalog)
}
