package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Uranury/bme280d/bme280"
	"github.com/Uranury/bme280d/sensors"
)

// station is the part of sensors.Station served over HTTP.
type station interface {
	Last() *sensors.SensorData
	Measure() (*sensors.SensorData, error)
	State() bme280.State
	Sampling() bme280.Sampling
	SetSampling(bme280.Sampling) error
	Altitude(seaLevelHPa float64) (float64, error)
	SeaLevel(altitudeM float64) (float64, error)
}

// samplingBody is the JSON form of bme280.Sampling. Empty fields keep the
// current setting.
type samplingBody struct {
	Mode        string `json:"mode"`
	Temperature string `json:"temperature"`
	Pressure    string `json:"pressure"`
	Humidity    string `json:"humidity"`
	Filter      string `json:"filter"`
	Standby     string `json:"standby"`
}

func samplingToBody(s bme280.Sampling) samplingBody {
	return samplingBody{
		Mode:        s.Mode.String(),
		Temperature: s.Temperature.String(),
		Pressure:    s.Pressure.String(),
		Humidity:    s.Humidity.String(),
		Filter:      s.Filter.String(),
		Standby:     s.Standby.String(),
	}
}

func (b samplingBody) apply(s bme280.Sampling) (bme280.Sampling, error) {
	var err error
	if b.Mode != "" {
		if s.Mode, err = bme280.ParseMode(b.Mode); err != nil {
			return s, err
		}
	}
	for _, f := range []struct {
		in  string
		dst *bme280.Oversampling
	}{
		{b.Temperature, &s.Temperature},
		{b.Pressure, &s.Pressure},
		{b.Humidity, &s.Humidity},
	} {
		if f.in == "" {
			continue
		}
		if *f.dst, err = bme280.ParseOversampling(f.in); err != nil {
			return s, err
		}
	}
	if b.Filter != "" {
		if s.Filter, err = bme280.ParseFilter(b.Filter); err != nil {
			return s, err
		}
	}
	if b.Standby != "" {
		if s.Standby, err = bme280.ParseStandby(b.Standby); err != nil {
			return s, err
		}
	}
	return s, nil
}

// statusFor maps driver errors to HTTP status codes. Anything else is a bus
// failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bme280.ErrInvalidSampling):
		return http.StatusBadRequest
	case errors.Is(err, bme280.ErrSignatureMismatch), errors.Is(err, bme280.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, bme280.ErrMeasurementTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func queryFloat(c *gin.Context, key string, def float64, required bool) (float64, bool) {
	s, ok := c.GetQuery(key)
	if !ok {
		if required {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " is required"})
			return 0, false
		}
		return def, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + ": " + err.Error()})
		return 0, false
	}
	return v, true
}

func newRouter(st station, h *hub, seaLevelHPa float64) *gin.Engine {
	r := gin.Default()

	api := r.Group("/api")
	api.GET("/reading", func(c *gin.Context) {
		data := st.Last()
		if data == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no reading yet"})
			return
		}
		c.JSON(http.StatusOK, data)
	})
	api.POST("/measure", func(c *gin.Context) {
		data, err := st.Measure()
		if err != nil {
			abortWith(c, err)
			return
		}
		h.Publish(data)
		c.JSON(http.StatusOK, data)
	})
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"state": st.State().String(), "clients": h.count()})
	})
	api.GET("/sampling", func(c *gin.Context) {
		c.JSON(http.StatusOK, samplingToBody(st.Sampling()))
	})
	api.PUT("/sampling", func(c *gin.Context) {
		var body samplingBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s, err := body.apply(st.Sampling())
		if err == nil {
			err = st.SetSampling(s)
		}
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, samplingToBody(st.Sampling()))
	})
	api.GET("/altitude", func(c *gin.Context) {
		p0, ok := queryFloat(c, "sea_level", seaLevelHPa, false)
		if !ok {
			return
		}
		alt, err := st.Altitude(p0)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"altitude": alt, "sea_level": p0})
	})
	api.GET("/sealevel", func(c *gin.Context) {
		alt, ok := queryFloat(c, "altitude", 0, true)
		if !ok {
			return
		}
		p0, err := st.SeaLevel(alt)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sea_level": p0, "altitude": alt})
	})

	// WebSocket endpoint
	r.GET("/ws", h.handleWebSocket)
	return r
}
