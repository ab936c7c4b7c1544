package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/d2r2/go-logger"
	"go.uber.org/multierr"

	"github.com/Uranury/bme280d/bme280"
	"github.com/Uranury/bme280d/config"
	"github.com/Uranury/bme280d/sensors"
	"github.com/Uranury/bme280d/transport"
)

var lg = logger.NewPackageLogger("main", logger.InfoLevel)

// publisher receives every successful reading.
type publisher interface {
	Publish(data *sensors.SensorData)
}

func main() {
	defer logger.FinalizeLogger()

	cfg, err := config.Load()
	if err != nil {
		lg.Fatal(err)
	}
	if err := setLogLevels(cfg.LogLevel, "main", "bme280", "transport", "sensors", "config"); err != nil {
		lg.Warnf("LOG_LEVEL: %v", err)
	}

	st, err := openStation(cfg)
	if err != nil {
		lg.Fatalf("BME280 on %s backend: %v", cfg.Backend, err)
	}

	h := newHub()
	pubs := []publisher{h}
	var influx *influxWriter
	if cfg.InfluxEnabled() {
		influx = newInfluxWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
		pubs = append(pubs, influx)
	} else {
		lg.Info("INFLUX_URL or INFLUX_BUCKET not set, not storing readings")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	all := []sensors.Sensor{st}
	go readAllSensors(ctx, all, cfg.PollInterval, pubs...)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: newRouter(st, h, cfg.SeaLevelHPa)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Errorf("HTTP server: %v", err)
			stop()
		}
	}()

	lg.Infof("Server starting on %s", cfg.HTTPAddr)
	lg.Infof("Monitoring sensors: %d", len(all))
	for _, sensor := range all {
		lg.Infof("  - %s", sensor.Name())
	}

	<-ctx.Done()
	lg.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = multierr.Combine(srv.Shutdown(shutdownCtx), h.Close())
	for _, sensor := range all {
		err = multierr.Append(err, sensor.Close())
	}
	if influx != nil {
		influx.Close()
	}
	if err != nil {
		lg.Errorf("shutdown: %v", err)
	}
}

// setLogLevels applies level to each named package logger.
func setLogLevels(level logger.LogLevel, pkgs ...string) error {
	var err error
	for _, pkg := range pkgs {
		err = multierr.Append(err, logger.ChangePackageLogLevel(pkg, level))
	}
	return err
}

// openStation brings up the BME280 on the configured backend.
func openStation(cfg *config.Config) (*sensors.Station, error) {
	switch cfg.Backend {
	case config.BackendD2R2:
		t, err := transport.OpenD2R2(uint8(cfg.Device.Address), cfg.BusNumber)
		if err != nil {
			return nil, err
		}
		dev := bme280.New(t, &cfg.Device)
		if err := dev.Init(); err != nil {
			return nil, multierr.Append(err, t.Close())
		}
		return sensors.NewStation(dev, t, cfg.SeaLevelHPa), nil
	case config.BackendSim:
		sim := transport.NewSim(transport.DatasheetCalibration, transport.DatasheetRaw)
		sim.Jitter = 64
		sim.BusyPolls = 2
		dev := bme280.New(sim, &cfg.Device)
		if err := dev.Init(); err != nil {
			return nil, err
		}
		lg.Notify("Using simulated BME280")
		return sensors.NewStation(dev, nil, cfg.SeaLevelHPa), nil
	default:
		dev, bus, err := transport.OpenPeriph(cfg.Bus, &cfg.Device)
		if err != nil {
			return nil, err
		}
		return sensors.NewStation(dev, bus, cfg.SeaLevelHPa), nil
	}
}

// readAllSensors reads from all sensors periodically
func readAllSensors(ctx context.Context, all []sensors.Sensor, interval time.Duration, pubs ...publisher) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, sensor := range all {
			data, err := sensor.Read()
			if err != nil {
				lg.Errorf("Error reading %s: %v", sensor.Name(), err)
				continue
			}

			lg.Debugf("%s: %+v", sensor.Name(), data.Fields)

			for _, p := range pubs {
				p.Publish(data)
			}
		}
	}
}
