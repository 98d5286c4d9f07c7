// Package api exposes journeys over HTTP: JSON endpoints for commands and
// queries plus SSE and websocket streams of live events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"journey-simulator/internal/fanout"
	"journey-simulator/internal/route"
	"journey-simulator/internal/sim"
	"journey-simulator/internal/vehicle"
)

const maxBodyBytes = 1 << 20

// Journeys is the journey side of sim.Manager.
type Journeys interface {
	StartNewJourney(id string, speedMps float64) (sim.Snapshot, error)
	StartJourneyOnRoute(id, routeID string, speedMps float64) (sim.Snapshot, error)
	GetJourneyState(id string) (sim.Snapshot, error)
	PauseJourney(id string) (sim.Snapshot, error)
	ResumeJourney(id string) (sim.Snapshot, error)
	StopJourney(id string) (sim.Snapshot, error)
	AdvanceJourney(id string, elapsedSeconds float64) (sim.Snapshot, error)
	Snapshots() []sim.Snapshot
	Count() int
}

type Routes interface {
	FindAll() []*route.Route
	FindByID(id string) (*route.Route, error)
}

type Streams interface {
	Subscribe(journeyID, subscriberID string) (*fanout.Subscription, error)
	Unsubscribe(sub *fanout.Subscription, reason fanout.Reason)
	TotalSubscribers() int
}

type Vehicles interface {
	Start(cmd vehicle.Command) (sim.Snapshot, error)
}

type Options struct {
	DefaultSpeedMps float64
	// KeepAlive is the SSE comment / websocket ping cadence.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

type Server struct {
	journeys     Journeys
	routes       Routes
	streams      Streams
	vehicles     Vehicles
	defaultSpeed float64
	keepAlive    time.Duration
	logger       *slog.Logger

	router chi.Router
	server *http.Server
}

func NewServer(journeys Journeys, routes Routes, streams Streams, vehicles Vehicles, opts Options) *Server {
	if opts.DefaultSpeedMps <= 0 {
		opts.DefaultSpeedMps = route.NominalSpeedMps
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		journeys:     journeys,
		routes:       routes,
		streams:      streams,
		vehicles:     vehicles,
		defaultSpeed: opts.DefaultSpeedMps,
		keepAlive:    opts.KeepAlive,
		logger:       opts.Logger,
		router:       chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(s.recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/routes", s.handleListRoutes)
		r.Get("/routes/{id}", s.handleGetRoute)

		r.Post("/journeys", s.handleStartJourney)
		r.Get("/journeys", s.handleListJourneys)
		r.Route("/journeys/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetJourney)
			r.Delete("/", s.handleStopJourney)
			r.Post("/pause", s.handlePause)
			r.Post("/resume", s.handleResume)
			r.Post("/advance", s.handleAdvance)
			r.Get("/stream", s.handleSSE)
			r.Get("/ws", s.handleWebSocket)
		})

		r.Post("/vehicles", s.handleStartVehicle)
	})
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until the server stops. http.ErrServerClosed is not
// reported as an error.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("api listening", "addr", addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

type startJourneyRequest struct {
	JourneyID string   `json:"journeyId"`
	RouteID   string   `json:"routeId"`
	SpeedMps  *float64 `json:"speedMps"`
}

type advanceRequest struct {
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"journeys":    s.journeys.Count(),
		"subscribers": s.streams.TotalSubscribers(),
	})
}

func (s *Server) handleListRoutes(w http.ResponseWriter, _ *http.Request) {
	all := s.routes.FindAll()
	out := make([]route.Summary, 0, len(all))
	for _, rt := range all {
		out = append(out, rt.Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRoute(w http.ResponseWriter, r *http.Request) {
	rt, err := s.routes.FindByID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.Detail())
}

func (s *Server) handleStartJourney(w http.ResponseWriter, r *http.Request) {
	var req startJourneyRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.JourneyID == "" {
		req.JourneyID = uuid.NewString()
	}
	speed := s.defaultSpeed
	if req.SpeedMps != nil {
		speed = *req.SpeedMps
	}
	var (
		snap sim.Snapshot
		err  error
	)
	if req.RouteID == "" {
		snap, err = s.journeys.StartNewJourney(req.JourneyID, speed)
	} else {
		snap, err = s.journeys.StartJourneyOnRoute(req.JourneyID, req.RouteID, speed)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/journeys/"+snap.JourneyID)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleListJourneys(w http.ResponseWriter, _ *http.Request) {
	snaps := s.journeys.Snapshots()
	if snaps == nil {
		snaps = []sim.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetJourney(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.journeys.GetJourneyState(chi.URLParam(r, "id")))
}

func (s *Server) handleStopJourney(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.journeys.StopJourney(chi.URLParam(r, "id")))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.journeys.PauseJourney(chi.URLParam(r, "id")))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r)(s.journeys.ResumeJourney(chi.URLParam(r, "id")))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respond(w, r)(s.journeys.AdvanceJourney(chi.URLParam(r, "id"), req.ElapsedSeconds))
}

func (s *Server) handleStartVehicle(w http.ResponseWriter, r *http.Request) {
	var cmd vehicle.Command
	if err := decodeBody(r, &cmd, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.vehicles.Start(cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/journeys/"+snap.JourneyID)
	writeJSON(w, http.StatusCreated, snap)
}

// respond writes a snapshot result with 200 or the mapped error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(sim.Snapshot, error) {
	return func(snap sim.Snapshot, err error) {
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// decodeBody reads a JSON body into v. With allowEmpty an absent body leaves
// v at its zero value.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed request body: %v", sim.ErrInvalidArgument, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
