package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/device"
	"lautenbacher.net/goboard/display"
	ex "lautenbacher.net/goboard/experiment"
	"lautenbacher.net/goboard/logging"
	"lautenbacher.net/goboard/notify"
	pl "lautenbacher.net/goboard/platform"
	"lautenbacher.net/goboard/telemetry"
	"lautenbacher.net/goboard/web"
)

const WEB_SHUTDOWN_TIMEOUT = 2 * time.Second

type options struct {
	configFile   string
	real         bool
	platform     string
	app          string
	sensorViewer bool
	watch        bool
}

type App struct {
	opts      options
	ossignal  chan os.Signal
	conf      *c.Config
	platform  pl.Platform
	board     *device.Board
	exp       ex.Experiment
	recorder  telemetry.Recorder
	web       *web.Server
	stopWatch chan struct{}

	starts         atomic.Int32
	reloadFailures atomic.Int32
}

func NewApp(ossignal chan os.Signal, opts options) *App {
	return &App{opts: opts, ossignal: ossignal}
}

func main() {
	opts := options{}
	flag.StringVar(&opts.configFile, "config", c.CONFILE, "Config file to use")
	flag.BoolVar(&opts.real, "real", false, "Set to true if program runs on real hardware")
	flag.StringVar(&opts.platform, "platform", "tui", "Simulated board to use without -real: tui or memory")
	flag.StringVar(&opts.app, "app", "", "Experiment to run, overrides the config file: "+fmt.Sprint(ex.Names))
	flag.BoolVar(&opts.sensorViewer, "sensorviewer", false, "Show live analog readings on real hardware")
	flag.BoolVar(&opts.watch, "watch", true, "Reload when the config file changes")
	flag.Parse()

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	app := NewApp(ossignal, opts)
	if err := app.run(); err != nil {
		slog.Error("Failed to start", "error", err)
		logging.Close()
		os.Exit(1)
	}
	slog.Info("Exiting")
	logging.Close()
}

// run initialises the app and restarts it on every SIGHUP until another
// signal arrives. Only a failed first start is returned; a failed
// reload leaves the board stopped and waits for the next config change
// or signal.
func (a *App) run() error {
	first := true
	for {
		if err := a.initialise(); err != nil {
			a.shutdown()
			if first {
				return err
			}
			logging.SetOutput(os.Stderr)
			slog.Error("Reload failed, waiting for the next config change", "error", err)
			a.watchConfig()
			a.reloadFailures.Add(1)
		} else {
			a.starts.Add(1)
		}
		first = false

		sig := <-a.ossignal
		a.shutdown()
		if sig != syscall.SIGHUP {
			return nil
		}
		slog.Info("Reloading configuration")
		logging.Close()
	}
}

func (a *App) initialise() error {
	conf, err := c.ReadConfig(a.opts.configFile, a.opts.real)
	if err != nil {
		return err
	}
	conf.SensorShow = a.opts.sensorViewer
	if a.opts.app != "" {
		conf.Experiment = a.opts.app
	}
	if conf.Experiment == "" {
		return errors.New("no experiment selected, set Experiment in the config file or use -app")
	}
	a.conf = conf

	graphSink, err := a.initPlatform()
	if err != nil {
		return err
	}

	sender, err := a.newSender()
	if err != nil {
		return err
	}
	a.recorder = a.newRecorder()

	a.exp, err = ex.New(conf.Experiment, conf, ex.Deps{
		Sender:    sender,
		Recorder:  a.recorder,
		GraphSink: graphSink,
	})
	if err != nil {
		return err
	}

	a.board = device.NewBoard(a.platform, conf.Board.LoopDelay)
	ex.Attach(a.board, a.exp)
	slog.Info("Starting experiment", "name", a.exp.Name())
	if err := a.board.Start(); err != nil {
		return fmt.Errorf("failed to start board: %w", err)
	}

	if conf.Web.Enabled {
		a.web = web.NewServer(conf.Web, a.opts.configFile, a.platform)
		if err := a.web.Start(); err != nil {
			return fmt.Errorf("failed to start web server: %w", err)
		}
	}

	a.watchConfig()
	return nil
}

func (a *App) watchConfig() {
	if !a.opts.watch || a.stopWatch != nil {
		return
	}
	a.stopWatch = make(chan struct{})
	if err := c.Watch(a.opts.configFile, a.reload, a.stopWatch); err != nil {
		slog.Warn("Config file is not watched", "error", err)
	}
}

// initPlatform sets up logging and the board backend and returns where
// graph lines are shown.
func (a *App) initPlatform() (display.Sink, error) {
	conf := a.conf
	switch {
	case conf.RealHW:
		if err := logging.Init(conf.SensorShow, conf.Logging.HW); err != nil {
			return nil, err
		}
		rpi := pl.NewRaspberryPiPlatform(conf)
		a.platform = rpi
		if conf.SensorShow {
			viewer := pl.NewSensorViewer(conf.Board.AnalogPins, a.ossignal)
			rpi.SetSensorViewer(viewer)
			return viewer, nil
		}
		return display.NewWriterSink(os.Stdout), nil
	case a.opts.platform == "memory":
		if err := logging.Init(false, conf.Logging.HW); err != nil {
			return nil, err
		}
		a.platform = pl.NewMemoryPlatform(conf)
		return display.NewWriterSink(os.Stdout), nil
	case a.opts.platform == "tui":
		if err := logging.Init(true, conf.Logging.TUI); err != nil {
			return nil, err
		}
		tui := pl.NewTUIPlatform(conf, a.ossignal)
		a.platform = tui
		return tui, nil
	default:
		return nil, fmt.Errorf("unknown platform %q, use tui or memory", a.opts.platform)
	}
}

// newSender returns nil unless the experiment sends SMS. Simulated
// boards fall back to logging messages when no credentials are set.
func (a *App) newSender() (notify.Sender, error) {
	if a.conf.Experiment != "intruder" {
		return nil, nil
	}
	secrets := a.conf.Secrets
	sender, err := notify.NewTwilioSender(secrets.TwilioAccountSID, secrets.TwilioAuthToken)
	if err == nil {
		return sender, nil
	}
	if a.conf.RealHW {
		return nil, fmt.Errorf("%w: set %s and %s", err, c.ENV_TWILIO_SID, c.ENV_TWILIO_TOKEN)
	}
	slog.Warn("No SMS credentials, messages are only logged")
	return notify.LogSender{}, nil
}

func (a *App) newRecorder() telemetry.Recorder {
	t := a.conf.Telemetry
	if !t.Enabled {
		return telemetry.NopRecorder{}
	}
	return telemetry.NewInfluxRecorder(t.URL, a.conf.Secrets.InfluxToken, t.Org, t.Bucket)
}

func (a *App) reload() {
	select {
	case a.ossignal <- syscall.SIGHUP:
	default:
	}
}

// shutdown releases everything initialise created, in reverse order.
// It copes with a partly initialised App.
func (a *App) shutdown() {
	slog.Info("Shutting down")
	if a.stopWatch != nil {
		close(a.stopWatch)
		a.stopWatch = nil
	}
	if a.web != nil {
		ctx, cancel := context.WithTimeout(context.Background(), WEB_SHUTDOWN_TIMEOUT)
		if err := a.web.Stop(ctx); err != nil {
			slog.Error("Stopping web server failed", "error", err)
		}
		cancel()
		a.web = nil
	}
	if a.board != nil {
		a.board.Stop()
		a.board = nil
	} else if a.platform != nil {
		a.platform.Stop()
	}
	a.platform = nil
	if a.exp != nil {
		a.exp.Stop()
		a.exp = nil
	}
	if a.recorder != nil {
		a.recorder.Close()
		a.recorder = nil
	}
}
