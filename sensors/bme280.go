package sensors

import (
	"io"
	"sync"
	"time"

	"github.com/d2r2/go-logger"
	"go.uber.org/multierr"

	"github.com/Uranury/bme280d/bme280"
)

var lg = logger.NewPackageLogger("sensors", logger.InfoLevel)

// Station serialises access to one BME280. The device itself is not safe
// for concurrent use; every call on Station holds its lock.
type Station struct {
	mu       sync.Mutex
	dev      *bme280.Dev
	bus      io.Closer
	seaLevel float64
	last     *SensorData
	now      func() time.Time
}

// NewStation wraps dev. bus, if not nil, is closed by Close. seaLevelHPa is
// the reference used for the altitude field.
func NewStation(dev *bme280.Dev, bus io.Closer, seaLevelHPa float64) *Station {
	if seaLevelHPa <= 0 {
		seaLevelHPa = bme280.StandardSeaLevel
	}
	return &Station{dev: dev, bus: bus, seaLevel: seaLevelHPa, now: time.Now}
}

func (s *Station) Name() string {
	return "BME280"
}

// Read triggers a measurement when the device is in forced mode and returns
// the compensated values.
func (s *Station) Read() (*SensorData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Station) read() (*SensorData, error) {
	if err := s.dev.TakeForcedMeasurement(); err != nil {
		return nil, err
	}
	var e bme280.Env
	if err := s.dev.Sense(&e); err != nil {
		return nil, err
	}
	data := &SensorData{
		SensorType: "bme280",
		Fields: map[string]float64{
			FieldTemperature: e.Temperature,
			FieldPressure:    e.Pressure,
			FieldHumidity:    e.Humidity,
			FieldAltitude:    bme280.Altitude(e.Pressure/100, s.seaLevel),
		},
		Timestamp: s.now(),
	}
	s.last = data
	return data, nil
}

// Last returns the most recent successful reading, or nil.
func (s *Station) Last() *SensorData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// State returns the device lifecycle state.
func (s *Station) State() bme280.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.State()
}

// Sampling returns the configuration in effect.
func (s *Station) Sampling() bme280.Sampling {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.Sampling()
}

// SetSampling reconfigures the device.
func (s *Station) SetSampling(cfg bme280.Sampling) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dev.SetSampling(cfg); err != nil {
		return err
	}
	lg.Infof("sampling set to mode=%s osrs_t=%s osrs_p=%s osrs_h=%s filter=%s standby=%s",
		cfg.Mode, cfg.Temperature, cfg.Pressure, cfg.Humidity, cfg.Filter, cfg.Standby)
	return nil
}

// Measure forces a new reading regardless of the poll schedule.
func (s *Station) Measure() (*SensorData, error) {
	return s.Read()
}

// Altitude returns the altitude in metres for the given sea level pressure
// in hPa.
func (s *Station) Altitude(seaLevelHPa float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dev.ReadAltitude(seaLevelHPa)
}

// SeaLevel returns the sea level pressure in hPa derived from the current
// pressure and a known altitude in metres.
func (s *Station) SeaLevel(altitudeM float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.dev.ReadPressure()
	if err != nil {
		return 0, err
	}
	return s.dev.SeaLevelForAltitude(altitudeM, p/100), nil
}

// Close puts the device to sleep and releases the bus.
func (s *Station) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.dev.State() == bme280.StateIdle {
		cfg := s.dev.Sampling()
		cfg.Mode = bme280.Sleep
		err = s.dev.SetSampling(cfg)
	}
	if s.bus != nil {
		err = multierr.Append(err, s.bus.Close())
	}
	return err
}
