// Package transport provides the register transports used to reach a BME280:
// periph.io and d2r2/go-i2c on Linux hosts, and an in-memory simulator.
package transport

import (
	"io"

	"github.com/d2r2/go-logger"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/Uranury/bme280d/bme280"
)

var lg = logger.NewPackageLogger("transport", logger.InfoLevel)

// OpenPeriph opens the named I2C bus ("" picks the first one) through
// periph.io and initialises the BME280 at opts.Address. The returned closer
// releases the bus.
func OpenPeriph(name string, opts *bme280.Opts) (*bme280.Dev, io.Closer, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, err
	}
	lg.Infof("opened I2C bus %s", b)
	return bindPeriph(b, opts)
}

// bindPeriph initialises the BME280 on b. b is closed if that fails.
func bindPeriph(b i2c.BusCloser, opts *bme280.Opts) (*bme280.Dev, io.Closer, error) {
	d, err := bme280.NewI2C(b, opts)
	if err != nil {
		return nil, nil, multierr.Append(err, b.Close())
	}
	return d, b, nil
}
