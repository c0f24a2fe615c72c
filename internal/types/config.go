package types

// GPIOConfig represents the configuration of the register block
type GPIOConfig struct {
	// Platform names a preset base address, such as "bcm2837".
	Platform string `json:"platform"`
	// Base overrides the platform's physical base address when non-zero.
	Base int64 `json:"base"`
	// Device is the memory device node to map.
	Device string `json:"device"`
	// Chip is the GPIO character device used for line information.
	Chip string `json:"chip"`
}

// ServerConfig represents the configuration for the gpiod endpoint
type ServerConfig struct {
	Listen       string  `json:"listen"`
	ReadTimeout  float64 `json:"read_timeout"`
	WriteTimeout float64 `json:"write_timeout"`
	PingInterval float64 `json:"ping_interval"`
}
