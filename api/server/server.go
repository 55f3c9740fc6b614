// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package server replays a recorded BOLD API snapshot over the same HTTP
// methods the live API exposes, so that an inspection can be repeated offline.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"

	"github.com/offchainlabs/bold-verifier/api"
	"github.com/offchainlabs/bold-verifier/api/db"
)

var apiVersion = "/api/v1"

var srvlog = log.New("service", "snapshot-server")

// Backend answers the queries of the server.
type Backend interface {
	db.ReadOnlyDatabase
	TrackedRoyalEdges() []*api.JsonEdgesByChallengedAssertion
}

type snapshotBackend struct {
	*db.SqliteDatabase
	tracked []*api.JsonEdgesByChallengedAssertion
}

func (b *snapshotBackend) TrackedRoyalEdges() []*api.JsonEdgesByChallengedAssertion {
	return b.tracked
}

// NewSnapshotBackend loads a snapshot into an in-memory database.
func NewSnapshotBackend(s *api.Snapshot) (Backend, error) {
	d, err := db.NewDatabase(db.InMemory)
	if err != nil {
		return nil, err
	}
	if err := d.Load(s); err != nil {
		return nil, err
	}
	tracked := s.Tracked
	if tracked == nil {
		tracked = make([]*api.JsonEdgesByChallengedAssertion, 0)
	}
	return &snapshotBackend{SqliteDatabase: d, tracked: tracked}, nil
}

type Server struct {
	srv        *http.Server
	router     *mux.Router
	registered bool
	backend    Backend
}

func New(addr string, backend Backend) (*Server, error) {
	if addr == "" {
		addr = ":7257"
	}
	r := mux.NewRouter()

	s := &Server{
		backend: backend,
		srv: &http.Server{
			Handler:           r,
			Addr:              addr,
			WriteTimeout:      15 * time.Second,
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 30 * time.Second,
		},
		router: r,
	}
	if err := s.registerMethods(); err != nil {
		return nil, err
	}
	return s, nil
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		srvlog.Info("Serving snapshot", "addr", s.srv.Addr, "prefix", apiVersion)
		errCh <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerMethods() error {
	if s.registered {
		return errors.New("API server methods already registered")
	}

	r := s.router.PathPrefix(apiVersion).Subrouter()
	r.HandleFunc("/healthz", s.Healthz).Methods("GET")
	r.HandleFunc("/assertions", s.ListAssertions).Methods("GET")
	r.HandleFunc("/assertions/{identifier}", s.AssertionByIdentifier).Methods("GET")
	r.HandleFunc("/challenge/{assertion-hash}/edges", s.AllChallengeEdges).Methods("GET")
	r.HandleFunc("/challenge/{assertion-hash}/edges/id/{edge-id}", s.EdgeByIdentifier).Methods("GET")
	r.HandleFunc("/challenge/{assertion-hash}/ministakes", s.MiniStakes).Methods("GET")
	r.HandleFunc("/tracked/royal-edges", s.RoyalTrackedChallengeEdges).Methods("GET")
	s.registered = true
	return nil
}
