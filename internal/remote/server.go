package remote

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Server is the reference remote store: a chi HTTP API over a RowStore
// plus a websocket hub broadcasting inserts to the owner's other
// devices.
type Server struct {
	rows RowStore
	hub  *Hub
	log  zerolog.Logger
	mux  *chi.Mux
}

// NewServer wires the routes over the given row store.
func NewServer(rows RowStore, secret []byte, log zerolog.Logger) *Server {
	s := &Server{
		rows: rows,
		hub:  NewHub(log),
		log:  log,
	}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.Recoverer)
	mux.Get("/healthz", s.handleHealth)
	mux.Group(func(r chi.Router) {
		r.Use(authMiddleware(secret))
		r.Post("/v1/events", s.handleInsert)
		r.Get("/v1/events", s.handleList)
		r.Get("/v1/stream", s.handleStream)
	})
	s.mux = mux
	return s
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleInsert stores one event row. The owner comes from the token,
// never from the body. A duplicate client id answers 409; the pushing
// device treats that as confirmation.
func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	var row Row
	if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
		http.Error(w, "malformed row", http.StatusBadRequest)
		return
	}
	if row.ClientID == "" || row.Type == "" || len(row.Payload) == 0 {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	row.OwnerID = owner

	stored, err := s.rows.Insert(r.Context(), row)
	if err == ErrDuplicateClientID {
		s.log.Debug().Str("client_id", row.ClientID).Msg("duplicate insert")
		http.Error(w, "duplicate client id", http.StatusConflict)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("insert row")
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	s.hub.Broadcast(stored)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(stored)
}

// handleList returns the owner's rows, all of them or only those
// inserted after the `after` query parameter, ordered by insertion
// time.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())

	var (
		rows []Row
		err  error
	)
	if after := r.URL.Query().Get("after"); after != "" {
		t, parseErr := time.Parse(time.RFC3339Nano, after)
		if parseErr != nil {
			http.Error(w, "malformed after parameter", http.StatusBadRequest)
			return
		}
		rows, err = s.rows.SinceForOwner(r.Context(), owner, t)
	} else {
		rows, err = s.rows.AllForOwner(r.Context(), owner)
	}
	if err != nil {
		s.log.Error().Err(err).Msg("list rows")
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rows)
}

// handleStream upgrades to a websocket delivering the owner's inserts
// in near-real-time.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.serveStream(w, r, ownerFromContext(r.Context()))
}
