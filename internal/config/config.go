package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fkcurrie/bcmgpio/internal/types"
	"github.com/fkcurrie/bcmgpio/pkg/mmap"
)

// Physical GPIO base addresses of the supported SoCs
var platformBases = map[string]int64{
	"bcm2835": 0x20200000, // Pi 1, Zero
	"bcm2837": 0x3F200000, // Pi 2, 3, Zero 2
	"bcm2711": 0xFE200000, // Pi 4
}

// Config represents the application configuration
type Config struct {
	GPIO   types.GPIOConfig   `json:"gpio"`
	Server types.ServerConfig `json:"server"`
}

// LoadConfig loads the configuration from a file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	config := DefaultConfig()
	if err := json.NewDecoder(file).Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		GPIO: types.GPIOConfig{
			Platform: "bcm2837",
			Device:   mmap.GPIOMemDevice,
			Chip:     "gpiochip0",
		},
		Server: types.ServerConfig{
			Listen:       "127.0.0.1:8466",
			ReadTimeout:  60,
			WriteTimeout: 10,
			PingInterval: 54,
		},
	}
}

// Validate checks that the configuration names a single base address.
func (c *Config) Validate() error {
	if c.GPIO.Base == 0 {
		if _, ok := platformBases[c.GPIO.Platform]; !ok {
			return fmt.Errorf("unknown platform %q and no base address", c.GPIO.Platform)
		}
	}
	if c.GPIO.Base < 0 || c.GPIO.Base%0x1000 != 0 {
		return fmt.Errorf("base %#x is not page aligned", c.GPIO.Base)
	}
	if c.GPIO.Device == "" {
		return fmt.Errorf("no memory device configured")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("read and write timeouts must be positive, got %vs and %vs",
			c.Server.ReadTimeout, c.Server.WriteTimeout)
	}
	// A zero ping interval disables keepalive pings.
	if c.Server.PingInterval < 0 {
		return fmt.Errorf("ping interval %vs is negative", c.Server.PingInterval)
	}
	if c.Server.PingInterval >= c.Server.ReadTimeout {
		return fmt.Errorf("ping interval %vs must be shorter than read timeout %vs",
			c.Server.PingInterval, c.Server.ReadTimeout)
	}
	return nil
}

// Base returns the physical base address of the GPIO register block.
func (c *Config) Base() int64 {
	if c.GPIO.Base != 0 {
		return c.GPIO.Base
	}
	return platformBases[c.GPIO.Platform]
}
