package bme280

// RawTP assembles a 20 bit temperature or pressure ADC value. Only the
// upper nibble of xlsb is significant.
func RawTP(msb, lsb, xlsb byte) int32 {
	return int32(msb)<<12 | int32(lsb)<<4 | int32(xlsb)>>4
}

// RawH assembles the 16 bit humidity ADC value.
func RawH(msb, lsb byte) int32 {
	return int32(msb)<<8 | int32(lsb)
}

// CompensateTemperature returns the temperature in °C together with the
// fine resolution temperature consumed by CompensatePressure and
// CompensateHumidity.
//
// This is the double precision formula of the datasheet (section 8.1).
func CompensateTemperature(raw int32, c *Calibration) (float64, int32) {
	adc := float64(raw)
	t1 := float64(c.T1)
	d := adc/131072.0 - t1/8192.0
	var1 := (adc/16384.0 - t1/1024.0) * float64(c.T2)
	var2 := d * d * float64(c.T3)
	tFine := int32(var1 + var2)
	return (var1 + var2) / 5120.0, tFine
}

// CompensatePressure returns the pressure in Pa as unsigned Q24.8 carried in
// an int64: 24674867 represents 24674867/256 = 96386.2 Pa.
//
// It returns 0 when the calibration makes the divisor vanish.
func CompensatePressure(raw int32, c *Calibration, tFine int32) int64 {
	var var1, var2, p int64
	var1 = int64(tFine) - 128000
	var2 = var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1)<<47 + var1) * int64(c.P1)) >> 33
	if var1 == 0 {
		return 0
	}
	p = 1048576 - int64(raw)
	p = ((p<<31 - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	return ((p + var1 + var2) >> 8) + int64(c.P7)<<4
}

// Upper clamp before the final shift: 100 %RH with 22 fractional bits.
const humidityMax = 419430400

// CompensateHumidity returns the relative humidity in %RH as Q22.10: 47445
// represents 47445/1024 = 46.333 %RH.
func CompensateHumidity(raw int32, c *Calibration, tFine int32) uint32 {
	v := tFine - 76800
	x := ((raw << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v) + 16384) >> 15
	y := (((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192
	v = x * (y >> 14)
	v -= ((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4
	if v < 0 {
		v = 0
	}
	if v > humidityMax {
		v = humidityMax
	}
	return uint32(v >> 12)
}
