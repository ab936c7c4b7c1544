// Package bme280 controls a Bosch BME280 temperature, pressure and humidity
// sensor through a register transport.
//
// The device is brought up lazily: every read initialises it on first use by
// checking the chip id, loading the calibration block and writing the
// sampling configuration.
//
//	d := bme280.New(t, nil)
//	c, err := d.ReadTemperature()
//
// A Dev is not safe for concurrent use. Callers sharing one device must
// serialise access themselves.
package bme280

import (
	"fmt"
	"time"

	"github.com/d2r2/go-logger"
	"github.com/davecgh/go-spew/spew"
)

var lg = logger.NewPackageLogger("bme280", logger.InfoLevel)

// Transport performs register accesses on one device.
//
// ReadReg writes reg then reads len(b) consecutive bytes into b. WriteReg
// stores v into reg.
type Transport interface {
	ReadReg(reg byte, b []byte) error
	WriteReg(reg, v byte) error
}

// Humidity divisors for the Q22.10 humidity result.
const (
	// HumidityScaleQ10 is the datasheet scaling.
	HumidityScaleQ10 = 1024.0
	// HumidityScaleLegacy reproduces drivers that divide by 1000, reading
	// about 2.4% high.
	HumidityScaleLegacy = 1000.0
)

// Opts holds the configuration applied at Init.
type Opts struct {
	// Address is the I2C address of the device. Defaults to DefaultAddress.
	Address uint16
	// Sampling is written during Init.
	Sampling Sampling
	// HumidityScale divides the Q22.10 humidity. Defaults to HumidityScaleQ10.
	HumidityScale float64
	// PollInterval is the wait between status reads in TakeForcedMeasurement.
	// Default 1 ms.
	PollInterval time.Duration
	// PollTimeout bounds the total wait in TakeForcedMeasurement. Default 250 ms.
	PollTimeout time.Duration
}

// DefaultOpts is used when New receives nil.
var DefaultOpts = Opts{
	Address:       DefaultAddress,
	Sampling:      DefaultSampling,
	HumidityScale: HumidityScaleQ10,
	PollInterval:  time.Millisecond,
	PollTimeout:   250 * time.Millisecond,
}

// State is the lifecycle position of a Dev.
type State uint8

// Lifecycle states.
const (
	StateUninitialized State = iota
	StateVerifying
	StateCalibrating
	StateConfigured
	StateIdle
	StateMeasuring
	StateSignatureMismatch
)

var stateNames = [...]string{
	"uninitialized", "verifying", "calibrating", "configured", "idle", "measuring", "signature_mismatch",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Env is one set of compensated measurements.
type Env struct {
	Temperature float64 // °C
	Pressure    float64 // Pa
	Humidity    float64 // %RH
}

// fineTemp is the fine temperature carried from temperature compensation
// into pressure and humidity compensation.
type fineTemp struct {
	value int32
	valid bool
}

// Dev is a handle to a BME280.
type Dev struct {
	t     Transport
	opts  Opts
	state State

	cal      Calibration
	sampling Sampling
	tFine    fineTemp
	sigErr   *SignatureError

	sleep func(time.Duration)
}

// New returns a Dev using t. It does not touch the device; Init runs on the
// first call that needs it.
//
// A nil opts selects DefaultOpts. Zero fields in a non-nil opts, including a
// zero Sampling, are replaced by their defaults. Sampling is validated by
// Init.
func New(t Transport, opts *Opts) *Dev {
	o := DefaultOpts
	if opts != nil {
		o = *opts
		if o.Address == 0 {
			o.Address = DefaultAddress
		}
		if o.Sampling == (Sampling{}) {
			o.Sampling = DefaultSampling
		}
		if o.HumidityScale == 0 {
			o.HumidityScale = HumidityScaleQ10
		}
		if o.PollInterval <= 0 {
			o.PollInterval = DefaultOpts.PollInterval
		}
		if o.PollTimeout <= 0 {
			o.PollTimeout = DefaultOpts.PollTimeout
		}
	}
	return &Dev{t: t, opts: o, sleep: time.Sleep}
}

func (d *Dev) String() string {
	return fmt.Sprintf("BME280{0x%02X}", d.opts.Address)
}

// State returns the current lifecycle state.
func (d *Dev) State() State { return d.state }

// Calibration returns a copy of the calibration loaded by Init.
func (d *Dev) Calibration() Calibration { return d.cal }

// Sampling returns the configuration last written to the device, or the one
// Init will write.
func (d *Dev) Sampling() Sampling { return d.opts.Sampling }

// Init verifies the chip id, loads the calibration and writes the configured
// sampling.
//
// Bus errors are returned unchanged and leave the Dev uninitialised so that
// Init may be retried. A wrong chip id returns a *SignatureError and is
// permanent for this Dev.
func (d *Dev) Init() error {
	if d.state == StateSignatureMismatch {
		return d.sigErr
	}
	if err := d.init(); err != nil {
		if d.state != StateSignatureMismatch {
			d.state = StateUninitialized
		}
		return err
	}
	return nil
}

func (d *Dev) init() error {
	if err := d.opts.Sampling.Validate(); err != nil {
		return err
	}
	d.state = StateVerifying
	var id [1]byte
	if err := d.t.ReadReg(RegChipID, id[:]); err != nil {
		return err
	}
	if id[0] != ChipID {
		d.sigErr = &SignatureError{Got: id[0]}
		d.state = StateSignatureMismatch
		lg.Warnf("%s: %v", d, d.sigErr)
		return d.sigErr
	}

	d.state = StateCalibrating
	d.cal = Calibration{}
	d.tFine = fineTemp{}
	var tph [CalibTPHLen]byte
	if err := d.t.ReadReg(RegCalib00, tph[:]); err != nil {
		return err
	}
	var hum [CalibHumLen]byte
	if err := d.t.ReadReg(RegCalib26, hum[:]); err != nil {
		return err
	}
	d.cal = DecodeCalibration(tph[:], hum[:])
	lg.Debugf("%s calibration: %s", d, calDump(d.cal))

	d.state = StateConfigured
	if err := d.writeSampling(d.opts.Sampling); err != nil {
		return err
	}
	d.state = StateIdle
	lg.Infof("%s initialized (%s)", d, d.sampling.Mode)
	return nil
}

// calDump defers spew.Sdump until the logger formats the message, which it
// only does when debug output is enabled.
type calDump Calibration

func (c calDump) String() string { return spew.Sdump(Calibration(c)) }

// ready initialises the device when needed.
func (d *Dev) ready() error {
	switch d.state {
	case StateIdle, StateConfigured:
		return nil
	case StateSignatureMismatch:
		return ErrNotInitialized
	default:
		return d.Init()
	}
}

// writeSampling writes ctrl_hum, config then ctrl_meas. ctrl_hum only takes
// effect after the following ctrl_meas write.
func (d *Dev) writeSampling(s Sampling) error {
	ctrlHum, config, ctrlMeas := s.registers()
	lg.Debugf("%s ctrl_hum=0x%02X config=0x%02X ctrl_meas=0x%02X", d, ctrlHum, config, ctrlMeas)
	if err := d.t.WriteReg(RegCtrlHum, ctrlHum); err != nil {
		return err
	}
	if err := d.t.WriteReg(RegConfig, config); err != nil {
		return err
	}
	if err := d.t.WriteReg(RegCtrlMeas, ctrlMeas); err != nil {
		return err
	}
	d.sampling = s
	d.opts.Sampling = s
	return nil
}

// SetSampling validates s and writes all three configuration registers.
// The calibration is left untouched.
func (d *Dev) SetSampling(s Sampling) error {
	if err := s.Validate(); err != nil {
		return err
	}
	switch d.state {
	case StateSignatureMismatch:
		return ErrNotInitialized
	case StateIdle, StateConfigured:
		return d.writeSampling(s)
	default:
		d.opts.Sampling = s
		return d.Init()
	}
}

// TakeForcedMeasurement starts one conversion and waits for it to finish
// when the device is in Forced mode. In other modes it does nothing.
//
// ErrMeasurementTimeout is returned if the measuring bit is still set after
// Opts.PollTimeout.
func (d *Dev) TakeForcedMeasurement() error {
	if err := d.ready(); err != nil {
		return err
	}
	if d.sampling.Mode != Forced {
		return nil
	}
	d.state = StateMeasuring
	defer func() { d.state = StateIdle }()

	_, _, ctrlMeas := d.sampling.registers()
	if err := d.t.WriteReg(RegCtrlMeas, ctrlMeas); err != nil {
		return err
	}
	return d.waitIdle()
}

func (d *Dev) waitIdle() error {
	polls := int(d.opts.PollTimeout / d.opts.PollInterval)
	if polls < 1 {
		polls = 1
	}
	var st [1]byte
	for i := 0; i < polls; i++ {
		if err := d.t.ReadReg(RegStatus, st[:]); err != nil {
			return err
		}
		if st[0]&StatusMeasuring == 0 {
			return nil
		}
		d.sleep(d.opts.PollInterval)
	}
	return ErrMeasurementTimeout
}

// ReadTemperature returns the temperature in °C.
func (d *Dev) ReadTemperature() (float64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	var b [3]byte
	if err := d.t.ReadReg(RegTempMSB, b[:]); err != nil {
		return 0, err
	}
	return d.temperature(RawTP(b[0], b[1], b[2])), nil
}

func (d *Dev) temperature(raw int32) float64 {
	t, fine := CompensateTemperature(raw, &d.cal)
	d.tFine = fineTemp{value: fine, valid: true}
	return t
}

// fine returns the carried fine temperature, reading the temperature first
// if none was computed since Init.
func (d *Dev) fine() (int32, error) {
	if !d.tFine.valid {
		if _, err := d.ReadTemperature(); err != nil {
			return 0, err
		}
	}
	return d.tFine.value, nil
}

// ReadPressure returns the pressure in Pa.
func (d *Dev) ReadPressure() (float64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	tFine, err := d.fine()
	if err != nil {
		return 0, err
	}
	var b [3]byte
	if err := d.t.ReadReg(RegPressMSB, b[:]); err != nil {
		return 0, err
	}
	return float64(CompensatePressure(RawTP(b[0], b[1], b[2]), &d.cal, tFine)) / 256, nil
}

// ReadHumidity returns the relative humidity in %RH.
func (d *Dev) ReadHumidity() (float64, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}
	tFine, err := d.fine()
	if err != nil {
		return 0, err
	}
	var b [2]byte
	if err := d.t.ReadReg(RegHumMSB, b[:]); err != nil {
		return 0, err
	}
	return float64(CompensateHumidity(RawH(b[0], b[1]), &d.cal, tFine)) / d.opts.HumidityScale, nil
}

// ReadAltitude returns the altitude in metres given the current sea level
// pressure in hPa.
func (d *Dev) ReadAltitude(seaLevelHPa float64) (float64, error) {
	p, err := d.ReadPressure()
	if err != nil {
		return 0, err
	}
	return Altitude(p/100, seaLevelHPa), nil
}

// SeaLevelForAltitude returns the sea level pressure in hPa for a pressure
// in hPa measured at altitudeM metres.
func (d *Dev) SeaLevelForAltitude(altitudeM, atmosphericHPa float64) float64 {
	return SeaLevelPressure(altitudeM, atmosphericHPa)
}

// Sense reads all data registers in one burst so that the three channels
// come from the same conversion, then compensates them.
func (d *Dev) Sense(e *Env) error {
	if err := d.ready(); err != nil {
		return err
	}
	var b [DataLen]byte
	if err := d.t.ReadReg(RegPressMSB, b[:]); err != nil {
		return err
	}
	e.Temperature = d.temperature(RawTP(b[3], b[4], b[5]))
	tFine := d.tFine.value
	e.Pressure = float64(CompensatePressure(RawTP(b[0], b[1], b[2]), &d.cal, tFine)) / 256
	e.Humidity = float64(CompensateHumidity(RawH(b[6], b[7]), &d.cal, tFine)) / d.opts.HumidityScale
	return nil
}

// Reset issues a soft reset. The calibration and fine temperature are
// discarded and the next access initialises the device again.
func (d *Dev) Reset() error {
	if d.state == StateSignatureMismatch {
		return ErrNotInitialized
	}
	if err := d.t.WriteReg(RegSoftReset, SoftResetWord); err != nil {
		return err
	}
	d.state = StateUninitialized
	d.cal = Calibration{}
	d.tFine = fineTemp{}
	// Start-up time after reset is 2 ms.
	d.sleep(2 * time.Millisecond)
	return nil
}
