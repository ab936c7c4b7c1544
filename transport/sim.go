package transport

import (
	"math/rand/v2"
	"sync"

	"github.com/Uranury/bme280d/bme280"
)

// Raw is a set of uncompensated ADC values.
type Raw struct {
	Temperature int32 // 20 bit
	Pressure    int32 // 20 bit
	Humidity    int32 // 16 bit
}

// DatasheetCalibration is the trimming example of the Bosch datasheet with a
// typical humidity set.
var DatasheetCalibration = bme280.Calibration{
	T1: 27504, T2: 26435, T3: -1000,
	P1: 36477, P2: -10685, P3: 3024, P4: 2855, P5: 140,
	P6: -7, P7: 15500, P8: -14600, P9: 6000,
	H1: 75, H2: 362, H3: 0, H4: 313, H5: 50, H6: 30,
}

// DatasheetRaw compensates against DatasheetCalibration to 25.08 °C,
// 100653.25 Pa and 55.00 %RH.
var DatasheetRaw = Raw{Temperature: 519888, Pressure: 415148, Humidity: 30000}

// Sim emulates the register file of a BME280. It is safe for concurrent use.
type Sim struct {
	// ChipID is returned from the id register.
	ChipID byte
	// BusyPolls is how many status reads report a running conversion after a
	// forced measurement is started.
	BusyPolls int
	// Jitter is the maximum offset added to each ADC value per conversion.
	Jitter int32

	mu   sync.Mutex
	regs [256]byte
	raw  Raw
	busy int
	rng  *rand.Rand
}

// NewSim returns a simulated device holding c and producing raw.
func NewSim(c bme280.Calibration, raw Raw) *Sim {
	s := &Sim{
		ChipID: bme280.ChipID,
		raw:    raw,
		rng:    rand.New(rand.NewPCG(uint64(raw.Temperature), uint64(raw.Pressure))),
	}
	tph, hum := bme280.EncodeCalibration(c)
	copy(s.regs[bme280.RegCalib00:], tph[:])
	copy(s.regs[bme280.RegCalib26:], hum[:])
	s.convert()
	return s
}

// SetRaw changes the ADC values produced by the next conversion.
func (s *Sim) SetRaw(raw Raw) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = raw
}

// Register returns the current content of reg.
func (s *Sim) Register(reg byte) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

// ReadReg implements bme280.Transport.
func (s *Sim) ReadReg(reg byte, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch reg {
	case bme280.RegChipID:
		b[0] = s.ChipID
		return nil
	case bme280.RegStatus:
		b[0] = 0
		if s.busy > 0 {
			s.busy--
			b[0] = bme280.StatusMeasuring
		}
		return nil
	case bme280.RegPressMSB, bme280.RegTempMSB, bme280.RegHumMSB:
		// Normal mode converts continuously: every read of a data block
		// sees a fresh sample.
		if _, _, mode := bme280.UnpackCtrlMeas(s.regs[bme280.RegCtrlMeas]); mode == bme280.Normal {
			s.convert()
		}
	}
	copy(b, s.regs[reg:])
	return nil
}

// WriteReg implements bme280.Transport.
func (s *Sim) WriteReg(reg, v byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch reg {
	case bme280.RegSoftReset:
		if v == bme280.SoftResetWord {
			s.regs[bme280.RegCtrlHum] = 0
			s.regs[bme280.RegCtrlMeas] = 0
			s.regs[bme280.RegConfig] = 0
			s.busy = 0
		}
		return nil
	case bme280.RegCtrlMeas:
		s.regs[reg] = v
		if _, _, mode := bme280.UnpackCtrlMeas(v); mode == bme280.Forced {
			s.convert()
			s.busy = s.BusyPolls
		}
		return nil
	}
	s.regs[reg] = v
	return nil
}

// convert latches a new conversion into the data registers.
func (s *Sim) convert() {
	t := s.jitter(s.raw.Temperature)
	p := s.jitter(s.raw.Pressure)
	h := s.jitter(s.raw.Humidity)
	d := s.regs[bme280.RegPressMSB:]
	d[0], d[1], d[2] = byte(p>>12), byte(p>>4), byte(p<<4)
	d[3], d[4], d[5] = byte(t>>12), byte(t>>4), byte(t<<4)
	d[6], d[7] = byte(h>>8), byte(h)
}

func (s *Sim) jitter(v int32) int32 {
	if s.Jitter <= 0 {
		return v
	}
	return v + s.rng.Int32N(2*s.Jitter+1) - s.Jitter
}
