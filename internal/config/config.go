package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	IMU    IMUConfig    `yaml:"imu"`
	Filter FilterConfig `yaml:"filter"`
	Serial SerialConfig `yaml:"serial"`
	UDP    UDPConfig    `yaml:"udp"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	Web    WebConfig    `yaml:"web"`
}

type IMUConfig struct {
	I2CBus  int    `yaml:"i2c_bus"`
	Addr    uint16 `yaml:"addr"`
	MagAddr uint16 `yaml:"mag_addr"`

	// Mag enables the AK09916 behind the bypass mux.
	Mag bool `yaml:"mag"`

	// RateHz is the tick/sample rate.
	RateHz int `yaml:"rate_hz"`

	// AxisMap holds ±1..±3 per body axis (X, Y, Z); empty means identity.
	AxisMap []int `yaml:"axis_map"`

	// DRDY, when set, paces ticks off the data-ready GPIO line instead of
	// a timer.
	DRDYChip   string `yaml:"drdy_chip"`
	DRDYOffset int    `yaml:"drdy_offset"`
}

type FilterConfig struct {
	// Algorithm is "mahony" or "madgwick".
	Algorithm string `yaml:"algorithm"`

	// Mahony gains. Unset values default to Kp 2.0 and Ki 0.01; zero is
	// treated as unset, so bias integration is always on under Mahony.
	Kp float32 `yaml:"kp"`
	Ki float32 `yaml:"ki"`

	// Madgwick gain.
	Beta float32 `yaml:"beta"`

	ConvergeTicks int `yaml:"converge_ticks"`
	MaxCoastTicks int `yaml:"max_coast_ticks"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type UDPConfig struct {
	Enable bool   `yaml:"enable"`
	Dest   string `yaml:"dest"`
}

type MQTTConfig struct {
	Enable   bool          `yaml:"enable"`
	Broker   string        `yaml:"broker"`
	Port     int           `yaml:"port"`
	Topic    string        `yaml:"topic"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	UseTLS   bool          `yaml:"use_tls"`
	Interval time.Duration `yaml:"interval"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Serial.Port == "" {
		return Config{}, fmt.Errorf("serial.port is required")
	}
	if cfg.Serial.Baud <= 0 {
		cfg.Serial.Baud = 115200
	}

	if cfg.IMU.I2CBus == 0 {
		cfg.IMU.I2CBus = 1
	}
	if cfg.IMU.RateHz <= 0 {
		cfg.IMU.RateHz = 100
	}
	// The sensor's 8-bit sample-rate divider cannot reach rates below 5 Hz.
	if cfg.IMU.RateHz < 5 {
		return Config{}, fmt.Errorf("imu.rate_hz %d is below minimum 5", cfg.IMU.RateHz)
	}
	if cfg.IMU.RateHz > 500 {
		return Config{}, fmt.Errorf("imu.rate_hz %d exceeds 500", cfg.IMU.RateHz)
	}
	if n := len(cfg.IMU.AxisMap); n != 0 && n != 3 {
		return Config{}, fmt.Errorf("imu.axis_map wants 3 entries, got %d", n)
	}
	if cfg.IMU.DRDYChip != "" && cfg.IMU.DRDYOffset < 0 {
		return Config{}, fmt.Errorf("imu.drdy_offset is required with imu.drdy_chip")
	}

	switch cfg.Filter.Algorithm {
	case "":
		cfg.Filter.Algorithm = "mahony"
	case "mahony", "madgwick":
	default:
		return Config{}, fmt.Errorf("filter.algorithm %q is not mahony or madgwick", cfg.Filter.Algorithm)
	}
	if cfg.Filter.Kp <= 0 {
		cfg.Filter.Kp = 2.0
	}
	if cfg.Filter.Ki < 0 {
		return Config{}, fmt.Errorf("filter.ki must be >= 0")
	}
	if cfg.Filter.Ki == 0 {
		cfg.Filter.Ki = 0.01
	}
	if cfg.Filter.Beta <= 0 {
		cfg.Filter.Beta = 0.1
	}
	if cfg.Filter.ConvergeTicks <= 0 {
		cfg.Filter.ConvergeTicks = cfg.IMU.RateHz // ~1 s of boosted gain
	}
	if cfg.Filter.MaxCoastTicks <= 0 {
		cfg.Filter.MaxCoastTicks = cfg.IMU.RateHz / 4
	}

	if cfg.UDP.Enable && cfg.UDP.Dest == "" {
		return Config{}, fmt.Errorf("udp.dest is required when udp.enable is true")
	}

	if cfg.MQTT.Enable {
		if cfg.MQTT.Broker == "" {
			return Config{}, fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
		if cfg.MQTT.Port == 0 {
			cfg.MQTT.Port = 1883
		}
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = "ahrsd/attitude"
		}
		if cfg.MQTT.Interval <= 0 {
			cfg.MQTT.Interval = 100 * time.Millisecond
		}
	}

	if cfg.Web.Enable && cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}

	return cfg, nil
}
