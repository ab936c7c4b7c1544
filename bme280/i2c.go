package bme280

import (
	"periph.io/x/conn/v3/i2c"
)

// i2cBus adapts a periph.io I2C device to Transport.
type i2cBus struct {
	d *i2c.Dev
}

func (b *i2cBus) ReadReg(reg byte, r []byte) error {
	return b.d.Tx([]byte{reg}, r)
}

func (b *i2cBus) WriteReg(reg, v byte) error {
	return b.d.Tx([]byte{reg, v}, nil)
}

// NewI2C returns an initialised Dev on the I2C bus b at opts.Address.
func NewI2C(b i2c.Bus, opts *Opts) (*Dev, error) {
	addr := uint16(DefaultAddress)
	if opts != nil && opts.Address != 0 {
		addr = opts.Address
	}
	d := New(&i2cBus{d: &i2c.Dev{Bus: b, Addr: addr}}, opts)
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}
