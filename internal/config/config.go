// Package config loads and validates the gateway settings.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the validated gateway configuration.
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	LogTopic string `mapstructure:"log_topic"`

	WifiSSID     string `mapstructure:"wifi_ssid"`
	WifiPassword string `mapstructure:"wifi_password"`
	WifiManage   bool   `mapstructure:"wifi_manage"`

	BrokerAddress  string `mapstructure:"broker_address"`
	BrokerPort     int    `mapstructure:"broker_port"`
	BrokerKind     string `mapstructure:"broker_kind"`
	BrokerClientID string `mapstructure:"broker_client_id"`
	BrokerUsername string `mapstructure:"broker_username"`
	BrokerPassword string `mapstructure:"broker_password"`

	AllowedTopics []string `mapstructure:"allowed_topics"`
	// EncryptionKey is 32 hex characters; empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key"`

	Radio     Radio     `mapstructure:"radio"`
	Indicator Indicator `mapstructure:"indicator"`
	Gateway   Gateway   `mapstructure:"gateway"`
	HTTP      HTTP      `mapstructure:"http"`
	DB        DB        `mapstructure:"db"`
	Journal   Journal   `mapstructure:"journal"`
	Auth      Auth      `mapstructure:"auth"`
	Simulator Simulator `mapstructure:"simulator"`
}

type Radio struct {
	Driver       string  `mapstructure:"driver"` // rfm69 | stub
	FrequencyMHz float64 `mapstructure:"frequency_mhz"`
	SPIPort      string  `mapstructure:"spi_port"`
	GPIOChip     string  `mapstructure:"gpio_chip"`
	ResetLine    int     `mapstructure:"reset_line"`
	NodeAddress  int     `mapstructure:"node_address"`
}

type Indicator struct {
	GPIOChip   string        `mapstructure:"gpio_chip"`
	Line       int           `mapstructure:"line"` // negative disables the LED
	PulseWidth time.Duration `mapstructure:"pulse_width"`
}

type Gateway struct {
	PollTimeout       time.Duration `mapstructure:"poll_timeout"`
	BrokerLoopTimeout time.Duration `mapstructure:"broker_loop_timeout"`
	MemoryLimitMB     int           `mapstructure:"memory_limit_mb"`
}

type HTTP struct {
	Port string `mapstructure:"port"` // empty disables the status API
}

type DB struct {
	Path string `mapstructure:"path"`
}

type Journal struct {
	Path string `mapstructure:"path"`
}

type Auth struct {
	SigningKey string `mapstructure:"signing_key"`
}

type Simulator struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Topic    string        `mapstructure:"topic"`
}

// Radio drivers.
const (
	DriverRFM69 = "rfm69"
	DriverStub  = "stub"
)

const envPrefix = "GATEWAY"

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker_kind", "mqtt")
	v.SetDefault("broker_client_id", "radio-gateway")
	v.SetDefault("radio.driver", DriverRFM69)
	v.SetDefault("radio.frequency_mhz", 433.0)
	v.SetDefault("radio.gpio_chip", "gpiochip0")
	v.SetDefault("radio.reset_line", 25)
	v.SetDefault("radio.node_address", 255)
	v.SetDefault("indicator.gpio_chip", "gpiochip0")
	v.SetDefault("indicator.line", -1)
	v.SetDefault("indicator.pulse_width", 300*time.Millisecond)
	v.SetDefault("gateway.poll_timeout", 100*time.Millisecond)
	v.SetDefault("gateway.broker_loop_timeout", time.Second)
	v.SetDefault("http.port", "8080")
	v.SetDefault("db.path", "gateway.db")
	v.SetDefault("journal.path", "journal.db")
	v.SetDefault("simulator.interval", 5*time.Second)
	v.SetDefault("simulator.topic", "sensors/simulated")
}

// required lists keys that must be present in the file or environment.
var required = []string{
	"log_level",
	"wifi_ssid",
	"wifi_password",
	"broker_address",
	"broker_port",
	"allowed_topics",
}

// Load reads the YAML file at path, applies GATEWAY_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for _, key := range required {
		if !v.IsSet(key) {
			return nil, fmt.Errorf("%s is missing", key)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for _, f := range []struct{ name, val string }{
		{"log_level", c.LogLevel},
		{"wifi_ssid", c.WifiSSID},
		{"wifi_password", c.WifiPassword},
		{"broker_address", c.BrokerAddress},
	} {
		if strings.TrimSpace(f.val) == "" {
			return fmt.Errorf("%s is missing", f.name)
		}
	}
	if c.BrokerPort < 0 || c.BrokerPort > 65535 {
		return fmt.Errorf("invalid broker_port value: %d", c.BrokerPort)
	}
	if c.BrokerKind != "mqtt" && c.BrokerKind != "nats" {
		return fmt.Errorf("unsupported broker_kind %q", c.BrokerKind)
	}
	if len(c.AllowedTopics) == 0 {
		return errors.New("allowed_topics is empty")
	}
	for i, t := range c.AllowedTopics {
		if t == "" {
			return fmt.Errorf("allowed_topics[%d] is empty", i)
		}
	}
	if _, err := c.Key(); err != nil {
		return err
	}
	if c.Radio.Driver != DriverRFM69 && c.Radio.Driver != DriverStub {
		return fmt.Errorf("unsupported radio.driver %q", c.Radio.Driver)
	}
	if c.Radio.NodeAddress < 0 || c.Radio.NodeAddress > 255 {
		return fmt.Errorf("invalid radio.node_address value: %d", c.Radio.NodeAddress)
	}
	if c.Gateway.PollTimeout <= 0 || c.Gateway.BrokerLoopTimeout <= 0 {
		return errors.New("gateway timeouts must be > 0")
	}
	if c.HTTP.Port != "" && c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required when the HTTP API is enabled")
	}
	if c.Simulator.Enabled {
		if c.Radio.Driver != DriverStub {
			return errors.New("simulator requires radio.driver: stub")
		}
		if c.Simulator.Interval <= 0 {
			return errors.New("simulator.interval must be > 0")
		}
	}
	return nil
}

// Key decodes the encryption key. It returns nil when none is configured.
func (c Config) Key() ([]byte, error) {
	if c.EncryptionKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("not a hex value for encryption_key: %w", err)
	}
	if len(key) != 16 {
		return nil, fmt.Errorf("not correct length for encryption_key: %d should be 16", len(key))
	}
	return key, nil
}
