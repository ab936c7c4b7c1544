package bme280

// Calibration holds the trimming parameters burned into the device at
// manufacture. It is read once per Init and never written back.
type Calibration struct {
	T1 uint16
	T2 int16
	T3 int16

	P1 uint16
	P2 int16
	P3 int16
	P4 int16
	P5 int16
	P6 int16
	P7 int16
	P8 int16
	P9 int16

	H1 uint8
	H2 int16
	H3 uint8
	H4 int16
	H5 int16
	H6 int8
}

// DecodeCalibration parses the two calibration blocks: tph starts at
// RegCalib00 (CalibTPHLen bytes) and hum starts at RegCalib26 (CalibHumLen
// bytes). Missing bytes read as zero.
func DecodeCalibration(tph, hum []byte) Calibration {
	var a [CalibTPHLen]byte
	var h [CalibHumLen]byte
	copy(a[:], tph)
	copy(h[:], hum)

	le := func(b []byte, i int) uint16 {
		return uint16(b[i]) | uint16(b[i+1])<<8
	}

	var c Calibration
	c.T1 = le(a[:], 0)
	c.T2 = int16(le(a[:], 2))
	c.T3 = int16(le(a[:], 4))

	c.P1 = le(a[:], 6)
	c.P2 = int16(le(a[:], 8))
	c.P3 = int16(le(a[:], 10))
	c.P4 = int16(le(a[:], 12))
	c.P5 = int16(le(a[:], 14))
	c.P6 = int16(le(a[:], 16))
	c.P7 = int16(le(a[:], 18))
	c.P8 = int16(le(a[:], 20))
	c.P9 = int16(le(a[:], 22))
	// a[24] (0xA0) is reserved.
	c.H1 = a[25]

	c.H2 = int16(le(h[:], 0))
	c.H3 = h[2]
	// H4 and H5 share the low and high nibble of 0xE5.
	c.H4 = int16(h[3])<<4 | int16(h[4]&0x0F)
	c.H5 = int16(h[5])<<4 | int16(h[4]>>4)
	c.H6 = int8(h[6])
	return c
}

// EncodeCalibration is the inverse of DecodeCalibration: it lays c out as
// the RegCalib00 and RegCalib26 blocks.
func EncodeCalibration(c Calibration) (tph [CalibTPHLen]byte, hum [CalibHumLen]byte) {
	put := func(b []byte, i int, v uint16) {
		b[i] = byte(v)
		b[i+1] = byte(v >> 8)
	}
	put(tph[:], 0, c.T1)
	put(tph[:], 2, uint16(c.T2))
	put(tph[:], 4, uint16(c.T3))
	put(tph[:], 6, c.P1)
	for i, p := range []int16{c.P2, c.P3, c.P4, c.P5, c.P6, c.P7, c.P8, c.P9} {
		put(tph[:], 8+2*i, uint16(p))
	}
	tph[25] = c.H1

	put(hum[:], 0, uint16(c.H2))
	hum[2] = c.H3
	hum[3] = byte(c.H4 >> 4)
	hum[4] = byte(c.H5&0x0F)<<4 | byte(c.H4&0x0F)
	hum[5] = byte(c.H5 >> 4)
	hum[6] = byte(c.H6)
	return tph, hum
}
