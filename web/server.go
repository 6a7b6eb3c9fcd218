package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"sync"

	"github.com/rs/cors"

	c "lautenbacher.net/goboard/config"
	pl "lautenbacher.net/goboard/platform"
)

// Server exposes the runtime configuration and the live pin states.
type Server struct {
	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

func NewServer(conf c.WebConfig, cfile string, platform pl.Platform) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/config", c.ConfigHandler(cfile))
	mux.HandleFunc("/api/pins", PinsHandler(platform))

	handler := cors.New(cors.Options{
		AllowedOrigins: conf.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	return &Server{server: &http.Server{Addr: conf.Address, Handler: handler}}
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	slog.Info("Web server listening", "address", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Web server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.server.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.wg.Wait()
	slog.Info("Web server stopped")
	return err
}

// PinsHandler serves the current pin states as a JSON array sorted by pin.
func PinsHandler(platform pl.Platform) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		states := platform.PinStates()
		ret := make([]pl.PinState, 0, len(states))
		for _, st := range states {
			ret = append(ret, st)
		}
		sort.Slice(ret, func(i, j int) bool { return ret[i].Pin < ret[j].Pin })

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(ret); err != nil {
			slog.Error("Failed to encode pin states", "error", err)
		}
	}
}
