package bme280

// I2C addresses.
const (
	DefaultAddress   = 0x77
	AlternateAddress = 0x76
)

// ChipID is the content of RegChipID on a BME280.
const ChipID = 0x60

// BME280 registers
const (
	RegCalib00 byte = 0x88 // T1..T3, P1..P9, reserved, H1
	RegDigH1   byte = 0xA1
	RegCalib26 byte = 0xE1 // H2..H6

	RegChipID    byte = 0xD0
	RegVersion   byte = 0xD1
	RegSoftReset byte = 0xE0

	RegCtrlHum   byte = 0xF2
	RegStatus    byte = 0xF3
	RegCtrlMeas  byte = 0xF4
	RegConfig    byte = 0xF5
	RegPressMSB  byte = 0xF7
	RegPressLSB  byte = 0xF8
	RegPressXLSB byte = 0xF9 // bits <7:4>
	RegTempMSB   byte = 0xFA
	RegTempLSB   byte = 0xFB
	RegTempXLSB  byte = 0xFC // bits <7:4>
	RegHumMSB    byte = 0xFD
	RegHumLSB    byte = 0xFE
)

// Burst read lengths.
const (
	CalibTPHLen = int(RegDigH1-RegCalib00) + 1 // 0x88..0xA1
	CalibHumLen = 7                            // 0xE1..0xE7
	DataLen     = int(RegHumLSB-RegPressMSB) + 1
)

const (
	// SoftResetWord written to RegSoftReset restarts the device.
	SoftResetWord = 0xB6

	// StatusMeasuring is set in RegStatus while a conversion is running.
	StatusMeasuring = 0x08
)
