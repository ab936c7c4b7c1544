package bme280

import (
	"errors"
	"fmt"
)

// Errors returned by the driver. Transport errors are returned unchanged.
var (
	ErrSignatureMismatch  = errors.New("bme280: chip signature mismatch")
	ErrNotInitialized     = errors.New("bme280: not initialized")
	ErrMeasurementTimeout = errors.New("bme280: measurement timeout")
	ErrInvalidSampling    = errors.New("bme280: invalid sampling")
)

// SignatureError reports the id read from a device that is not a BME280.
type SignatureError struct {
	Got byte
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("bme280: chip signature mismatch: got 0x%02X, want 0x%02X", e.Got, ChipID)
}

// Is makes errors.Is(err, ErrSignatureMismatch) hold.
func (e *SignatureError) Is(target error) bool {
	return target == ErrSignatureMismatch
}
