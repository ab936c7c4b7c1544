package bme280

import (
	"errors"
	"math"
	"testing"
	"time"
)

type regWrite struct {
	reg, v byte
}

// fakeBus is a BME280 register file.
type fakeBus struct {
	regs   [256]byte
	reads  []byte
	writes []regWrite
	err    error
	// busy is the number of status reads reporting a running conversion;
	// negative means forever.
	busy int
}

func newFakeBus() *fakeBus {
	f := &fakeBus{}
	f.regs[RegChipID] = ChipID
	tph, hum := EncodeCalibration(datasheetCalibration())
	copy(f.regs[RegCalib00:], tph[:])
	copy(f.regs[RegCalib26:], hum[:])
	// Pressure, temperature, humidity ADC values.
	copy(f.regs[RegPressMSB:], []byte{0x65, 0x5A, 0xC0, 0x7E, 0xED, 0x00, 0x75, 0x30})
	return f
}

func (f *fakeBus) ReadReg(reg byte, b []byte) error {
	f.reads = append(f.reads, reg)
	if f.err != nil {
		return f.err
	}
	if reg == RegStatus {
		b[0] = 0
		if f.busy != 0 {
			b[0] = StatusMeasuring
			if f.busy > 0 {
				f.busy--
			}
		}
		return nil
	}
	copy(b, f.regs[reg:])
	return nil
}

func (f *fakeBus) WriteReg(reg, v byte) error {
	f.writes = append(f.writes, regWrite{reg, v})
	if f.err != nil {
		return f.err
	}
	f.regs[reg] = v
	return nil
}

func (f *fakeBus) accesses() int { return len(f.reads) + len(f.writes) }

func newTestDev(f *fakeBus, opts *Opts) (*Dev, *int) {
	d := New(f, opts)
	sleeps := new(int)
	d.sleep = func(time.Duration) { *sleeps++ }
	return d, sleeps
}

func forcedOpts() *Opts {
	o := DefaultOpts
	o.Sampling.Mode = Forced
	return &o
}

func TestNewDoesNotTouchBus(t *testing.T) {
	f := newFakeBus()
	d := New(f, nil)
	if f.accesses() != 0 {
		t.Fatalf("New accessed the bus %d times", f.accesses())
	}
	if d.State() != StateUninitialized {
		t.Fatalf("state = %v", d.State())
	}
	if d.String() != "BME280{0x77}" {
		t.Fatalf("String = %q", d.String())
	}
}

func TestInit(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	if d.State() != StateIdle {
		t.Fatalf("state = %v, want idle", d.State())
	}
	wantReads := []byte{RegChipID, RegCalib00, RegCalib26}
	if string(f.reads) != string(wantReads) {
		t.Fatalf("reads = % X, want % X", f.reads, wantReads)
	}
	want := []regWrite{{RegCtrlHum, 0x05}, {RegConfig, 0x00}, {RegCtrlMeas, 0xB7}}
	if len(f.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", f.writes, want)
	}
	for i := range want {
		if f.writes[i] != want[i] {
			t.Fatalf("write %d = %+v, want %+v", i, f.writes[i], want[i])
		}
	}
	if d.Calibration() != datasheetCalibration() {
		t.Fatalf("calibration = %+v", d.Calibration())
	}
	if d.Sampling() != DefaultSampling {
		t.Fatalf("sampling = %+v", d.Sampling())
	}
}

func TestNewDefaultsZeroSampling(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, &Opts{Address: AlternateAddress})
	if _, err := d.ReadTemperature(); err != nil {
		t.Fatal(err)
	}
	if d.Sampling() != DefaultSampling {
		t.Fatalf("sampling = %+v", d.Sampling())
	}
	want := []regWrite{{RegCtrlHum, 0x05}, {RegConfig, 0x00}, {RegCtrlMeas, 0xB7}}
	if len(f.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", f.writes, want)
	}
	for i := range want {
		if f.writes[i] != want[i] {
			t.Fatalf("write %d = %+v, want %+v", i, f.writes[i], want[i])
		}
	}
	if d.String() != "BME280{0x76}" {
		t.Fatalf("String = %q", d.String())
	}
}

func TestInitRejectsInvalidSampling(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, &Opts{Sampling: Sampling{Mode: Mode(2), Temperature: 7, Standby: 9}})
	if err := d.Init(); !errors.Is(err, ErrInvalidSampling) {
		t.Fatalf("got %v, want ErrInvalidSampling", err)
	}
	if _, err := d.ReadTemperature(); !errors.Is(err, ErrInvalidSampling) {
		t.Fatalf("read got %v, want ErrInvalidSampling", err)
	}
	if f.accesses() != 0 {
		t.Fatalf("invalid sampling touched the bus: reads % X writes %v", f.reads, f.writes)
	}
	if d.State() != StateUninitialized {
		t.Fatalf("state = %v", d.State())
	}
}

func TestReadsAutoInitialize(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, nil)

	temp, err := d.ReadTemperature()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(temp-25.08) > 1e-2 {
		t.Errorf("temperature = %v", temp)
	}
	p, err := d.ReadPressure()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(p-100653.25) > 1e-2 {
		t.Errorf("pressure = %v", p)
	}
	h, err := d.ReadHumidity()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(h-56317.0/1024) > 1e-9 {
		t.Errorf("humidity = %v", h)
	}
	if n := countReads(f.reads, RegChipID); n != 1 {
		t.Errorf("chip id read %d times, want 1", n)
	}
}

func countReads(reads []byte, reg byte) int {
	n := 0
	for _, r := range reads {
		if r == reg {
			n++
		}
	}
	return n
}

func TestPressureReadsTemperatureFirst(t *testing.T) {
	for name, read := range map[string]func(*Dev) (float64, error){
		"pressure": (*Dev).ReadPressure,
		"humidity": (*Dev).ReadHumidity,
	} {
		t.Run(name, func(t *testing.T) {
			f := newFakeBus()
			d, _ := newTestDev(f, nil)
			if _, err := read(d); err != nil {
				t.Fatal(err)
			}
			// chip id, calib x2, temperature, then the channel itself.
			if len(f.reads) != 5 || f.reads[3] != RegTempMSB {
				t.Fatalf("reads = % X", f.reads)
			}
			// The fine temperature is reused on the next call.
			if _, err := read(d); err != nil {
				t.Fatal(err)
			}
			if n := countReads(f.reads, RegTempMSB); n != 1 {
				t.Fatalf("temperature read %d times", n)
			}
		})
	}
}

func TestHumidityScale(t *testing.T) {
	o := DefaultOpts
	o.HumidityScale = HumidityScaleLegacy
	d, _ := newTestDev(newFakeBus(), &o)
	h, err := d.ReadHumidity()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(h-56.317) > 1e-9 {
		t.Fatalf("humidity = %v, want 56.317", h)
	}
}

func TestSignatureMismatch(t *testing.T) {
	f := newFakeBus()
	f.regs[RegChipID] = 0x58 // BMP280
	d, _ := newTestDev(f, nil)

	err := d.Init()
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("Init = %v, want ErrSignatureMismatch", err)
	}
	var se *SignatureError
	if !errors.As(err, &se) || se.Got != 0x58 {
		t.Fatalf("Init = %#v", err)
	}
	if d.State() != StateSignatureMismatch {
		t.Fatalf("state = %v", d.State())
	}

	n := f.accesses()
	calls := map[string]func() error{
		"temperature": func() error { _, err := d.ReadTemperature(); return err },
		"pressure":    func() error { _, err := d.ReadPressure(); return err },
		"humidity":    func() error { _, err := d.ReadHumidity(); return err },
		"altitude":    func() error { _, err := d.ReadAltitude(StandardSeaLevel); return err },
		"sense":       func() error { return d.Sense(&Env{}) },
		"forced":      d.TakeForcedMeasurement,
		"sampling":    func() error { return d.SetSampling(DefaultSampling) },
		"reset":       d.Reset,
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("%s: got %v, want ErrNotInitialized", name, err)
		}
	}
	if err := d.Init(); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("second Init = %v", err)
	}
	if f.accesses() != n {
		t.Fatalf("bus touched %d more times after mismatch", f.accesses()-n)
	}
}

func TestTransportErrorPropagates(t *testing.T) {
	errBus := errors.New("i2c: nack")
	f := newFakeBus()
	f.err = errBus
	d, _ := newTestDev(f, nil)

	if _, err := d.ReadTemperature(); err != errBus {
		t.Fatalf("got %v, want the transport error unchanged", err)
	}
	if d.State() != StateUninitialized {
		t.Fatalf("state = %v, want uninitialized", d.State())
	}
	if n := len(f.reads); n != 1 {
		t.Fatalf("%d reads, want no retry", n)
	}

	f.err = nil
	if _, err := d.ReadTemperature(); err != nil {
		t.Fatalf("after bus recovered: %v", err)
	}
	if d.State() != StateIdle {
		t.Fatalf("state = %v", d.State())
	}
}

func TestTakeForcedMeasurement(t *testing.T) {
	f := newFakeBus()
	d, sleeps := newTestDev(f, forcedOpts())
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	f.writes = nil
	f.busy = 3
	if err := d.TakeForcedMeasurement(); err != nil {
		t.Fatal(err)
	}
	if len(f.writes) != 1 || f.writes[0] != (regWrite{RegCtrlMeas, 0xB5}) {
		t.Fatalf("writes = %+v", f.writes)
	}
	if *sleeps != 3 {
		t.Fatalf("slept %d times, want 3", *sleeps)
	}
	if d.State() != StateIdle {
		t.Fatalf("state = %v", d.State())
	}
}

func TestTakeForcedMeasurementTimeout(t *testing.T) {
	f := newFakeBus()
	o := forcedOpts()
	o.PollInterval = time.Millisecond
	o.PollTimeout = 20 * time.Millisecond
	d, sleeps := newTestDev(f, o)
	f.busy = -1

	err := d.TakeForcedMeasurement()
	if !errors.Is(err, ErrMeasurementTimeout) {
		t.Fatalf("got %v, want ErrMeasurementTimeout", err)
	}
	if n := countReads(f.reads, RegStatus); n != 20 {
		t.Fatalf("status polled %d times, want 20", n)
	}
	if *sleeps != 20 {
		t.Fatalf("slept %d times", *sleeps)
	}
	if d.State() != StateIdle {
		t.Fatalf("state = %v", d.State())
	}
}

func TestTakeForcedMeasurementNormalMode(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	n := f.accesses()
	if err := d.TakeForcedMeasurement(); err != nil {
		t.Fatal(err)
	}
	if f.accesses() != n {
		t.Fatal("normal mode trigger touched the bus")
	}
}

func TestSetSampling(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, nil)
	if err := d.Init(); err != nil {
		t.Fatal(err)
	}
	cal := d.Calibration()
	f.writes = nil
	f.reads = nil

	s := Sampling{Mode: Forced, Temperature: X2, Pressure: X4, Humidity: X1, Filter: FilterX16, Standby: Standby1000ms}
	if err := d.SetSampling(s); err != nil {
		t.Fatal(err)
	}
	want := []regWrite{
		{RegCtrlHum, PackCtrlHum(X1)},
		{RegConfig, PackConfig(Standby1000ms, FilterX16, false)},
		{RegCtrlMeas, PackCtrlMeas(X2, X4, Forced)},
	}
	if len(f.writes) != 3 {
		t.Fatalf("writes = %+v", f.writes)
	}
	for i := range want {
		if f.writes[i] != want[i] {
			t.Errorf("write %d = %+v, want %+v", i, f.writes[i], want[i])
		}
	}
	if len(f.reads) != 0 || d.Calibration() != cal {
		t.Fatal("SetSampling reloaded the calibration")
	}
	if d.Sampling() != s {
		t.Fatalf("sampling = %+v", d.Sampling())
	}

	f.writes = nil
	if err := d.SetSampling(Sampling{Mode: Mode(2)}); !errors.Is(err, ErrInvalidSampling) {
		t.Fatalf("got %v", err)
	}
	if len(f.writes) != 0 {
		t.Fatal("invalid sampling was written")
	}
}

func TestSetSamplingBeforeInit(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, nil)
	s := DefaultSampling
	s.Mode = Forced
	if err := d.SetSampling(s); err != nil {
		t.Fatal(err)
	}
	if d.State() != StateIdle || d.Sampling() != s {
		t.Fatalf("state %v sampling %+v", d.State(), d.Sampling())
	}
	if len(f.writes) != 3 {
		t.Fatalf("writes = %+v", f.writes)
	}
}

func TestSense(t *testing.T) {
	f := newFakeBus()
	d, _ := newTestDev(f, nil)
	var e Env
	if err := d.Sense(&e); err != nil {
		t.Fatal(err)
	}
	if last := f.reads[len(f.reads)-1]; last != RegPressMSB {
		t.Fatalf("last read 0x%02X", last)
	}
	if math.Abs(e.Temperature-25.08) > 1e-2 || math.Abs(e.Pressure-100653.25) > 1e-2 || math.Abs(e.Humidity-55.0) > 1e-2 {
		t.Fatalf("env = %+v", e)
	}
}

func TestReadAltitude(t *testing.T) {
	d, _ := newTestDev(newFakeBus(), nil)
	a, err := d.ReadAltitude(StandardSeaLevel)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(a-56.08) > 1e-2 {
		t.Fatalf("altitude = %v", a)
	}
	if p := d.SeaLevelForAltitude(a, 1006.5325390625); math.Abs(p-StandardSeaLevel) > 0.01 {
		t.Fatalf("sea level = %v", p)
	}
}

func TestReset(t *testing.T) {
	f := newFakeBus()
	d, sleeps := newTestDev(f, nil)
	if _, err := d.ReadTemperature(); err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if last := f.writes[len(f.writes)-1]; last != (regWrite{RegSoftReset, SoftResetWord}) {
		t.Fatalf("last write %+v", last)
	}
	if d.State() != StateUninitialized || d.Calibration() != (Calibration{}) || *sleeps != 1 {
		t.Fatalf("state %v after reset", d.State())
	}
	if _, err := d.ReadPressure(); err != nil {
		t.Fatal(err)
	}
	if n := countReads(f.reads, RegChipID); n != 2 {
		t.Fatalf("chip id read %d times, want 2", n)
	}
	if n := countReads(f.reads, RegTempMSB); n != 2 {
		t.Fatalf("fine temperature survived the reset")
	}
}
