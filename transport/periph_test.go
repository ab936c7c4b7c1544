package transport

import (
	"errors"
	"testing"

	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/Uranury/bme280d/bme280"
)

func TestBindPeriph(t *testing.T) {
	tph, hum := bme280.EncodeCalibration(DatasheetCalibration)
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x77, W: []byte{bme280.RegChipID}, R: []byte{bme280.ChipID}},
			{Addr: 0x77, W: []byte{bme280.RegCalib00}, R: tph[:]},
			{Addr: 0x77, W: []byte{bme280.RegCalib26}, R: hum[:]},
			{Addr: 0x77, W: []byte{bme280.RegCtrlHum, 0x05}},
			{Addr: 0x77, W: []byte{bme280.RegConfig, 0x00}},
			{Addr: 0x77, W: []byte{bme280.RegCtrlMeas, 0xB7}},
		},
		DontPanic: true,
	}
	d, closer, err := bindPeriph(bus, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d.State() != bme280.StateIdle || d.Calibration() != DatasheetCalibration {
		t.Fatalf("state %v calibration %+v", d.State(), d.Calibration())
	}
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBindPeriphClosesBusOnError(t *testing.T) {
	bus := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x76, W: []byte{bme280.RegChipID}, R: []byte{0x58}},
			// Never reached, so Close reports the bus as not drained.
			{Addr: 0x76, W: []byte{bme280.RegCalib00}, R: make([]byte, bme280.CalibTPHLen)},
		},
		DontPanic: true,
	}
	_, closer, err := bindPeriph(bus, &bme280.Opts{Address: bme280.AlternateAddress})
	if closer != nil {
		t.Fatal("closer returned on error")
	}
	if !errors.Is(err, bme280.ErrSignatureMismatch) {
		t.Fatalf("got %v, want ErrSignatureMismatch", err)
	}
	if errs := multierr.Errors(err); len(errs) != 2 {
		t.Fatalf("close error lost: %v", err)
	}
	if bus.Count != 1 {
		t.Fatalf("bus used %d times after the signature check", bus.Count)
	}
}
