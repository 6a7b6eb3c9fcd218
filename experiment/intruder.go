package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nathan-osman/go-sunrise"

	c "lautenbacher.net/goboard/config"
	"lautenbacher.net/goboard/device"
	"lautenbacher.net/goboard/notify"
)

const (
	defaultGreeting    = "Door opened"
	defaultSendTimeout = 10 * time.Second
)

// Intruder sends an SMS every time the door switch opens. A failed send
// is logged once and not retried.
type Intruder struct {
	conf c.IntruderConfig
	deps Deps
	door *device.Switch
	wg   sync.WaitGroup
}

func NewIntruder(conf c.IntruderConfig, deps Deps) *Intruder {
	if conf.Greeting == "" {
		conf.Greeting = defaultGreeting
	}
	if conf.SendTimeout <= 0 {
		conf.SendTimeout = defaultSendTimeout
	}
	return &Intruder{conf: conf, deps: deps.withDefaults()}
}

func (s *Intruder) Name() string { return "intruder" }

func (s *Intruder) Ready(board *device.Board) error {
	s.door = device.NewSwitch(board, device.SwitchConfig{Pin: s.conf.Pin, Invert: s.conf.Invert})
	s.door.OnOpen(s.opened)
	slog.Info("Watching door", "pin", s.conf.Pin, "invert", s.conf.Invert, "nightOnly", s.conf.NightOnly)
	return nil
}

// Stop waits for alerts still in flight.
func (s *Intruder) Stop() {
	s.wg.Wait()
}

func (s *Intruder) Door() *device.Switch { return s.door }

func (s *Intruder) opened() {
	now := s.deps.Now()
	tags := map[string]string{"pin": s.conf.Pin}
	s.deps.Recorder.Record("door", tags, map[string]any{"open": true}, now)

	if s.conf.NightOnly && !isNight(s.conf.Latitude, s.conf.Longitude, now) {
		slog.Info("Door opened during daytime, no alert")
		return
	}

	msg := notify.Message{
		Body: fmt.Sprintf("%s at %d", s.conf.Greeting, now.UnixMilli()),
		From: s.conf.From,
		To:   s.conf.To,
	}
	// Sending must not block the board loop.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.conf.SendTimeout)
		defer cancel()
		err := s.deps.Sender.Send(ctx, msg)
		s.deps.Recorder.Record("alert", tags, map[string]any{"sent": err == nil}, s.deps.Now())
		if err != nil {
			slog.Error("Sending intruder alert failed", "error", err)
			return
		}
		slog.Info("Intruder alert sent", "to", msg.To)
	}()
}

// isNight reports whether now lies between sunset and sunrise at the
// given location. Sunrise and sunset are taken for the calendar day of
// the local mean solar time, so the day does not flip at UTC midnight
// for locations far from Greenwich.
func isNight(lat, lon float64, now time.Time) bool {
	solar := now.UTC().Add(time.Duration(lon / 15 * float64(time.Hour)))
	rise, set := sunrise.SunriseSunset(lat, lon, solar.Year(), solar.Month(), solar.Day())
	if rise.IsZero() || set.IsZero() {
		// Polar day or night: no sunset to wait for.
		return sunrise.Elevation(lat, lon, now) < 0
	}
	return now.Before(rise) || now.After(set)
}
