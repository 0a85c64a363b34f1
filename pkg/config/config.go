package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names accepted in DeviceConfig.Driver.
const (
	DriverMock    = "mock"
	DriverSerial  = "serial"
	DriverADS1115 = "ads1115"
)

// Config represents the application configuration.
type Config struct {
	Device      DeviceConfig      `yaml:"device"`
	Serial      SerialConfig      `yaml:"serial"`
	I2C         I2CConfig         `yaml:"i2c"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Baseline    BaselineConfig    `yaml:"baseline"`
	Output      OutputConfig      `yaml:"output"`
	Live        LiveConfig        `yaml:"live"`
	Mock        MockConfig        `yaml:"mock"`
}

// DeviceConfig selects the driver and the channels to sample.
type DeviceConfig struct {
	Driver      string        `yaml:"driver"`
	Channels    string        `yaml:"channels"`     // Compact range, e.g. "Dev1/ai0:3"
	ResetSettle time.Duration `yaml:"reset_settle"` // Wait after device reset
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// I2CConfig contains ADS1115 bus configuration.
type I2CConfig struct {
	Bus      string `yaml:"bus"`
	Address  uint16 `yaml:"address"`
	DataRate int    `yaml:"data_rate"` // Conversions per second
}

// Range is an inclusive measurement range.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// AcquisitionConfig contains burst timing and channel ranges.
type AcquisitionConfig struct {
	SamplingFrequency float64       `yaml:"sampling_frequency"` // Hz
	MaxNumSamples     int           `yaml:"max_num_samples"`    // Samples per channel per burst
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	CycleDelay        time.Duration `yaml:"cycle_delay"` // Pause between cycles
	VoltageRange      Range         `yaml:"voltage_range"`
	CurrentRange      Range         `yaml:"current_range"`
	ShuntResistance   float64       `yaml:"shunt_resistance"` // Ohm
	LogEvery          int           `yaml:"log_every"`        // Cycles between progress log lines
}

// BaselineConfig contains baseline correction parameters.
type BaselineConfig struct {
	Window int `yaml:"window"` // Leading rows averaged into the baseline
}

// OutputConfig contains output file configuration.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	Label    string `yaml:"label"`
	WriteRaw bool   `yaml:"write_raw"` // Also write the uncorrected log
	Plot     bool   `yaml:"plot"`      // Write a PNG of the corrected series
}

// LiveConfig contains live view configuration.
type LiveConfig struct {
	MaxDisplayPoints int           `yaml:"max_display_points"`
	RefreshInterval  time.Duration `yaml:"refresh_interval"`
	Console          bool          `yaml:"console"`
	MQTT             MQTTConfig    `yaml:"mqtt"`
}

// MQTTConfig contains the optional MQTT live publisher configuration.
// Publishing is disabled when Server is empty.
type MQTTConfig struct {
	Server         string        `yaml:"server"`
	ClientID       string        `yaml:"client_id"`
	Topic          string        `yaml:"topic"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// MockConfig contains mock device configuration.
type MockConfig struct {
	Bias       float64       `yaml:"bias"`        // Offset added to every channel (V)
	NoiseLevel float64       `yaml:"noise_level"` // Noise amplitude (V)
	Amplitude  float64       `yaml:"amplitude"`   // Signal amplitude (V)
	Period     time.Duration `yaml:"period"`      // Signal period
	FailAfter  int           `yaml:"fail_after"`  // Fail the Nth acquisition task (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Driver:      DriverMock,
			Channels:    "Dev1/ai0:3",
			ResetSettle: 250 * time.Millisecond,
		},
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		I2C: I2CConfig{
			Bus:      "1",
			Address:  0x48,
			DataRate: 860,
		},
		Acquisition: AcquisitionConfig{
			SamplingFrequency: 2500,
			MaxNumSamples:     2,
			ReadTimeout:       10 * time.Second,
			CycleDelay:        time.Millisecond,
			VoltageRange:      Range{Min: -10, Max: 10},
			CurrentRange:      Range{Min: 0, Max: 0.02},
			ShuntResistance:   249,
			LogEvery:          100,
		},
		Baseline: BaselineConfig{
			Window: 20,
		},
		Output: OutputConfig{
			Dir:   ".",
			Label: "Calib_3581",
		},
		Live: LiveConfig{
			MaxDisplayPoints: 1000,
			RefreshInterval:  16 * time.Millisecond, // ~60 FPS
			MQTT: MQTTConfig{
				ClientID:       "godaq",
				Topic:          "godaq/live",
				PublishTimeout: 50 * time.Millisecond,
			},
		},
		Mock: MockConfig{
			Bias:       0.5,
			NoiseLevel: 0.01,
			Amplitude:  2.0,
			Period:     5 * time.Second,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports configuration values that would make acquisition impossible.
func (c *Config) Validate() error {
	switch c.Device.Driver {
	case DriverMock, DriverSerial, DriverADS1115:
	default:
		return fmt.Errorf("unknown driver %q", c.Device.Driver)
	}
	if c.Device.Channels == "" {
		return fmt.Errorf("no channels configured")
	}
	if c.Acquisition.SamplingFrequency <= 0 {
		return fmt.Errorf("sampling frequency must be positive, got %g", c.Acquisition.SamplingFrequency)
	}
	if c.Acquisition.MaxNumSamples < 1 {
		return fmt.Errorf("max_num_samples must be at least 1, got %d", c.Acquisition.MaxNumSamples)
	}
	if c.Acquisition.VoltageRange.Min >= c.Acquisition.VoltageRange.Max {
		return fmt.Errorf("invalid voltage range [%g, %g]", c.Acquisition.VoltageRange.Min, c.Acquisition.VoltageRange.Max)
	}
	if c.Acquisition.CurrentRange.Min >= c.Acquisition.CurrentRange.Max {
		return fmt.Errorf("invalid current range [%g, %g]", c.Acquisition.CurrentRange.Min, c.Acquisition.CurrentRange.Max)
	}
	if c.Acquisition.ShuntResistance <= 0 {
		return fmt.Errorf("shunt resistance must be positive, got %g", c.Acquisition.ShuntResistance)
	}
	if c.Output.Label == "" {
		return fmt.Errorf("output label is empty")
	}
	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Device.Driver == "" {
		c.Device.Driver = def.Device.Driver
	}
	if c.Device.Channels == "" {
		c.Device.Channels = def.Device.Channels
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.I2C.Bus == "" {
		c.I2C.Bus = def.I2C.Bus
	}
	if c.I2C.Address == 0 {
		c.I2C.Address = def.I2C.Address
	}
	if c.I2C.DataRate == 0 {
		c.I2C.DataRate = def.I2C.DataRate
	}

	if c.Acquisition.SamplingFrequency == 0 {
		c.Acquisition.SamplingFrequency = def.Acquisition.SamplingFrequency
	}
	if c.Acquisition.MaxNumSamples == 0 {
		c.Acquisition.MaxNumSamples = def.Acquisition.MaxNumSamples
	}
	if c.Acquisition.ReadTimeout == 0 {
		c.Acquisition.ReadTimeout = def.Acquisition.ReadTimeout
	}
	if c.Acquisition.VoltageRange == (Range{}) {
		c.Acquisition.VoltageRange = def.Acquisition.VoltageRange
	}
	if c.Acquisition.CurrentRange == (Range{}) {
		c.Acquisition.CurrentRange = def.Acquisition.CurrentRange
	}
	if c.Acquisition.ShuntResistance == 0 {
		c.Acquisition.ShuntResistance = def.Acquisition.ShuntResistance
	}
	if c.Acquisition.LogEvery == 0 {
		c.Acquisition.LogEvery = def.Acquisition.LogEvery
	}

	if c.Baseline.Window == 0 {
		c.Baseline.Window = def.Baseline.Window
	}

	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}
	if c.Output.Label == "" {
		c.Output.Label = def.Output.Label
	}

	if c.Live.MaxDisplayPoints == 0 {
		c.Live.MaxDisplayPoints = def.Live.MaxDisplayPoints
	}
	if c.Live.RefreshInterval == 0 {
		c.Live.RefreshInterval = def.Live.RefreshInterval
	}
	if c.Live.MQTT.ClientID == "" {
		c.Live.MQTT.ClientID = def.Live.MQTT.ClientID
	}
	if c.Live.MQTT.Topic == "" {
		c.Live.MQTT.Topic = def.Live.MQTT.Topic
	}
	if c.Live.MQTT.PublishTimeout == 0 {
		c.Live.MQTT.PublishTimeout = def.Live.MQTT.PublishTimeout
	}

	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
}
