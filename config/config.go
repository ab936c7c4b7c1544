// Package config loads the daemon settings from the environment, after
// merging an optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/d2r2/go-logger"
	"github.com/joho/godotenv"

	"github.com/Uranury/bme280d/bme280"
)

var lg = logger.NewPackageLogger("config", logger.InfoLevel)

// Bus backends.
const (
	BackendPeriph = "periph"
	BackendD2R2   = "d2r2"
	BackendSim    = "sim"
)

// Config holds every setting of the daemon.
type Config struct {
	Backend   string
	Bus       string // periph bus name
	BusNumber int    // /dev/i2c-N for d2r2

	Device bme280.Opts

	SeaLevelHPa  float64
	PollInterval time.Duration
	HTTPAddr     string
	LogLevel     logger.LogLevel

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// InfluxEnabled reports whether enough is set to write to InfluxDB.
func (c *Config) InfluxEnabled() bool {
	return c.InfluxURL != "" && c.InfluxBucket != ""
}

// Load reads .env files (if any) and the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil {
		lg.Info("No .env file found, using environment variables")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	c := &Config{
		Backend:      getEnv("BUS_BACKEND", BackendPeriph),
		Bus:          getEnv("I2C_BUS", ""),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		InfluxURL:    getEnv("INFLUX_URL", ""),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", ""),
		InfluxBucket: getEnv("INFLUX_BUCKET", ""),
		Device:       bme280.DefaultOpts,
	}
	switch c.Backend {
	case BackendPeriph, BackendD2R2, BackendSim:
	default:
		return nil, fmt.Errorf("config: BUS_BACKEND %q: want %s, %s or %s", c.Backend, BackendPeriph, BackendD2R2, BackendSim)
	}

	var err error
	if c.BusNumber, err = strconv.Atoi(getEnv("I2C_BUS_NUMBER", "1")); err != nil {
		return nil, fmt.Errorf("config: I2C_BUS_NUMBER: %w", err)
	}
	addr, err := strconv.ParseUint(getEnv("BME280_ADDRESS", "0x77"), 0, 8)
	if err != nil {
		return nil, fmt.Errorf("config: BME280_ADDRESS: %w", err)
	}
	c.Device.Address = uint16(addr)

	if c.Device.Sampling, err = samplingFromEnv(bme280.DefaultSampling); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	switch s := getEnv("HUMIDITY_SCALE", "1024"); s {
	case "1024":
		c.Device.HumidityScale = bme280.HumidityScaleQ10
	case "1000":
		c.Device.HumidityScale = bme280.HumidityScaleLegacy
	default:
		return nil, fmt.Errorf("config: HUMIDITY_SCALE %q: want 1024 or 1000", s)
	}

	if c.SeaLevelHPa, err = strconv.ParseFloat(getEnv("SEA_LEVEL_HPA", "1013.25"), 64); err != nil {
		return nil, fmt.Errorf("config: SEA_LEVEL_HPA: %w", err)
	}
	if c.SeaLevelHPa <= 0 {
		return nil, fmt.Errorf("config: SEA_LEVEL_HPA must be positive")
	}
	if c.PollInterval, err = time.ParseDuration(getEnv("POLL_INTERVAL", "2s")); err != nil {
		return nil, fmt.Errorf("config: POLL_INTERVAL: %w", err)
	}
	if c.PollInterval <= 0 {
		return nil, fmt.Errorf("config: POLL_INTERVAL must be positive")
	}
	if c.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

func samplingFromEnv(s bme280.Sampling) (bme280.Sampling, error) {
	var err error
	if v, ok := os.LookupEnv("BME280_MODE"); ok {
		if s.Mode, err = bme280.ParseMode(v); err != nil {
			return s, err
		}
	}
	for key, dst := range map[string]*bme280.Oversampling{
		"BME280_OSRS_T": &s.Temperature,
		"BME280_OSRS_P": &s.Pressure,
		"BME280_OSRS_H": &s.Humidity,
	} {
		if v, ok := os.LookupEnv(key); ok {
			if *dst, err = bme280.ParseOversampling(v); err != nil {
				return s, err
			}
		}
	}
	if v, ok := os.LookupEnv("BME280_FILTER"); ok {
		if s.Filter, err = bme280.ParseFilter(v); err != nil {
			return s, err
		}
	}
	if v, ok := os.LookupEnv("BME280_STANDBY"); ok {
		if s.Standby, err = bme280.ParseStandby(v); err != nil {
			return s, err
		}
	}
	return s, nil
}

func parseLogLevel(s string) (logger.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logger.DebugLevel, nil
	case "info":
		return logger.InfoLevel, nil
	case "notify":
		return logger.NotifyLevel, nil
	case "warn", "warning":
		return logger.WarnLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("LOG_LEVEL %q", s)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	lg.Debugf("Environment variable %s not set", key)
	return defaultValue
}
