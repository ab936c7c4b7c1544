package bme280

import (
	"fmt"
	"strings"
)

// Mode is the power mode stored in bits <1:0> of ctrl_meas.
type Mode uint8

// Power modes. 0b10 is also forced on the wire; it is never written.
const (
	Sleep  Mode = 0b00
	Forced Mode = 0b01
	Normal Mode = 0b11
)

func (m Mode) String() string {
	switch m {
	case Sleep:
		return "sleep"
	case Forced:
		return "forced"
	case Normal:
		return "normal"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}

func (m Mode) valid() bool {
	return m == Sleep || m == Forced || m == Normal
}

// Oversampling selects how many internal samples are averaged per channel.
type Oversampling uint8

// Oversampling settings; Skipped disables the channel.
const (
	Skipped Oversampling = iota
	X1
	X2
	X4
	X8
	X16
)

var oversamplingNames = [...]string{"skipped", "x1", "x2", "x4", "x8", "x16"}

func (o Oversampling) String() string {
	if int(o) < len(oversamplingNames) {
		return oversamplingNames[o]
	}
	return fmt.Sprintf("Oversampling(%d)", uint8(o))
}

// Filter is the IIR filter coefficient.
type Filter uint8

// IIR filter settings.
const (
	FilterOff Filter = iota
	FilterX2
	FilterX4
	FilterX8
	FilterX16
)

var filterNames = [...]string{"off", "x2", "x4", "x8", "x16"}

func (f Filter) String() string {
	if int(f) < len(filterNames) {
		return filterNames[f]
	}
	return fmt.Sprintf("Filter(%d)", uint8(f))
}

// Standby is the inactive duration between conversions in Normal mode.
type Standby uint8

// Standby durations. The encoding is not monotonic.
const (
	Standby0_5ms  Standby = 0b000
	Standby62_5ms Standby = 0b001
	Standby125ms  Standby = 0b010
	Standby250ms  Standby = 0b011
	Standby500ms  Standby = 0b100
	Standby1000ms Standby = 0b101
	Standby10ms   Standby = 0b110
	Standby20ms   Standby = 0b111
)

var standbyNames = [...]string{"0.5ms", "62.5ms", "125ms", "250ms", "500ms", "1000ms", "10ms", "20ms"}

func (s Standby) String() string {
	if int(s) < len(standbyNames) {
		return standbyNames[s]
	}
	return fmt.Sprintf("Standby(%d)", uint8(s))
}

// ParseMode parses the String form of a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{Sleep, Forced, Normal} {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: mode %q", ErrInvalidSampling, s)
}

// ParseOversampling parses "skipped", "x1" .. "x16". A bare number is
// accepted as the multiplier ("16" is X16, "0" is Skipped).
func ParseOversampling(s string) (Oversampling, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range oversamplingNames {
		if s == n || (i > 0 && s == n[1:]) || (i == 0 && s == "0") {
			return Oversampling(i), nil
		}
	}
	return 0, fmt.Errorf("%w: oversampling %q", ErrInvalidSampling, s)
}

// ParseFilter parses "off", "x2" .. "x16".
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range filterNames {
		if s == n || (i > 0 && s == n[1:]) {
			return Filter(i), nil
		}
	}
	return 0, fmt.Errorf("%w: filter %q", ErrInvalidSampling, s)
}

// ParseStandby parses a standby duration such as "0.5ms" or "1000ms".
func ParseStandby(s string) (Standby, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range standbyNames {
		if s == n || s == strings.TrimSuffix(n, "ms") {
			return Standby(i), nil
		}
	}
	return 0, fmt.Errorf("%w: standby %q", ErrInvalidSampling, s)
}

// Sampling is the full content of the three configuration registers.
type Sampling struct {
	Mode        Mode
	Temperature Oversampling
	Pressure    Oversampling
	Humidity    Oversampling
	Filter      Filter
	Standby     Standby
}

// DefaultSampling runs continuously with maximum oversampling and no
// filtering.
var DefaultSampling = Sampling{
	Mode:        Normal,
	Temperature: X16,
	Pressure:    X16,
	Humidity:    X16,
	Filter:      FilterOff,
	Standby:     Standby0_5ms,
}

// Validate reports whether every field is one of its defined values.
func (s Sampling) Validate() error {
	switch {
	case !s.Mode.valid():
		return fmt.Errorf("%w: %s", ErrInvalidSampling, s.Mode)
	case s.Temperature > X16:
		return fmt.Errorf("%w: temperature %s", ErrInvalidSampling, s.Temperature)
	case s.Pressure > X16:
		return fmt.Errorf("%w: pressure %s", ErrInvalidSampling, s.Pressure)
	case s.Humidity > X16:
		return fmt.Errorf("%w: humidity %s", ErrInvalidSampling, s.Humidity)
	case s.Filter > FilterX16:
		return fmt.Errorf("%w: %s", ErrInvalidSampling, s.Filter)
	case s.Standby > Standby20ms:
		return fmt.Errorf("%w: %s", ErrInvalidSampling, s.Standby)
	}
	return nil
}

// registers returns the ctrl_hum, config and ctrl_meas bytes.
func (s Sampling) registers() (ctrlHum, config, ctrlMeas byte) {
	return PackCtrlHum(s.Humidity),
		PackConfig(s.Standby, s.Filter, false),
		PackCtrlMeas(s.Temperature, s.Pressure, s.Mode)
}

// PackConfig encodes the config register: t_sb<7:5>, filter<4:2>, spi3w_en<0>.
func PackConfig(standby Standby, filter Filter, spi3w bool) byte {
	var b byte
	if spi3w {
		b = 1
	}
	return byte(standby&0x7)<<5 | byte(filter&0x7)<<2 | b
}

// UnpackConfig is the inverse of PackConfig.
func UnpackConfig(b byte) (Standby, Filter, bool) {
	return Standby(b >> 5 & 0x7), Filter(b >> 2 & 0x7), b&0x1 != 0
}

// PackCtrlMeas encodes the ctrl_meas register: osrs_t<7:5>, osrs_p<4:2>, mode<1:0>.
func PackCtrlMeas(temp, press Oversampling, mode Mode) byte {
	return byte(temp&0x7)<<5 | byte(press&0x7)<<2 | byte(mode&0x3)
}

// UnpackCtrlMeas is the inverse of PackCtrlMeas.
func UnpackCtrlMeas(b byte) (temp, press Oversampling, mode Mode) {
	return Oversampling(b >> 5 & 0x7), Oversampling(b >> 2 & 0x7), Mode(b & 0x3)
}

// PackCtrlHum encodes the ctrl_hum register: osrs_h<2:0>.
func PackCtrlHum(hum Oversampling) byte {
	return byte(hum & 0x7)
}

// UnpackCtrlHum is the inverse of PackCtrlHum.
func UnpackCtrlHum(b byte) Oversampling {
	return Oversampling(b & 0x7)
}
