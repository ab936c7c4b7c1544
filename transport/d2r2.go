package transport

import (
	"fmt"

	"github.com/d2r2/go-i2c"
)

// D2R2 adapts a github.com/d2r2/go-i2c connection to bme280.Transport.
type D2R2 struct {
	conn *i2c.I2C
}

// OpenD2R2 opens /dev/i2c-<bus> for the device at addr.
func OpenD2R2(addr uint8, bus int) (*D2R2, error) {
	conn, err := i2c.NewI2C(addr, bus)
	if err != nil {
		return nil, err
	}
	lg.Infof("opened /dev/i2c-%d at 0x%02X", bus, addr)
	return &D2R2{conn: conn}, nil
}

// ReadReg implements bme280.Transport.
func (t *D2R2) ReadReg(reg byte, b []byte) error {
	buf, n, err := t.conn.ReadRegBytes(reg, len(b))
	if err != nil {
		return err
	}
	if n != len(b) {
		return fmt.Errorf("transport: short read at 0x%02X: %d of %d bytes", reg, n, len(b))
	}
	copy(b, buf)
	return nil
}

// WriteReg implements bme280.Transport.
func (t *D2R2) WriteReg(reg, v byte) error {
	return t.conn.WriteRegU8(reg, v)
}

// Close releases the bus.
func (t *D2R2) Close() error {
	return t.conn.Close()
}
