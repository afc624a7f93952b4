// Package stubserver is an in-memory implementation of the item collection
// endpoint for local development and tests.
package stubserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"todoq/backend"
)

// DefaultPath is where the collection is mounted
const DefaultPath = "/api/items"

// Config holds stub server settings
type Config struct {
	Path      string        // collection path, DefaultPath when empty
	Latency   time.Duration // artificial delay before every response
	LegacyIDs bool          // encode ids as "_id" like older deployments
	Seed      []string      // initial titles
}

type record struct {
	ID       int64  `json:"id,omitempty"`
	LegacyID int64  `json:"_id,omitempty"`
	Title    string `json:"title"`
}

type titleBody struct {
	Title *string `json:"title"`
}

// Server holds the collection state and the echo instance serving it
type Server struct {
	echo   *echo.Echo
	logger log.FieldLogger
	path   string
	legacy bool

	mu       sync.Mutex
	items    []record
	nextID   int64
	latency  time.Duration
	failures map[string]int
	requests []string
}

// New creates a stub server. Nothing listens until Start.
func New(cfg Config, logger log.FieldLogger) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	path := strings.TrimRight(cfg.Path, "/")
	if path == "" {
		path = DefaultPath
	}

	s := &Server{
		logger:   logger,
		path:     path,
		legacy:   cfg.LegacyIDs,
		nextID:   1,
		latency:  cfg.Latency,
		failures: make(map[string]int),
	}
	for _, title := range cfg.Seed {
		s.insert(title)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.Use(middleware.Recover())
	e.Use(s.recordRequest)
	Register(e, s)
	s.echo = e

	return s
}

// Register wires the collection routes on the provided Echo instance.
func Register(e *echo.Echo, s *Server) {
	e.GET(s.path, s.listItems)
	e.POST(s.path, s.createItem)
	e.PATCH(s.path+"/:id", s.updateItem)
	e.DELETE(s.path+"/:id", s.deleteItem)
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
}

// Handler exposes the server for httptest
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Path returns the collection path
func (s *Server) Path() string {
	return s.path
}

// Start listens on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.WithField("addr", addr).WithField("path", s.path).Info("stub server listening")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// SetLatency changes the artificial delay
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// FailNext makes the next request with the given method answer with status
// without touching state.
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[strings.ToUpper(method)] = status
}

// Seed appends items with the given titles
func (s *Server) Seed(titles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, title := range titles {
		s.insert(title)
	}
}

// Items returns the current collection
func (s *Server) Items() backend.ItemList {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(backend.ItemList, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, backend.Item{ID: backend.ItemID(r.ID), Title: r.Title})
	}
	return out
}

// Requests returns "METHOD path" for every request served
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.requests...)
}

// insert adds a record. Caller holds s.mu.
func (s *Server) insert(title string) record {
	r := record{ID: s.nextID, Title: title}
	s.nextID++
	s.items = append(s.items, r)
	return r
}

func (s *Server) encode(r record) record {
	if s.legacy {
		return record{LegacyID: r.ID, Title: r.Title}
	}
	return r
}

func (s *Server) indexOf(id int64) int {
	for i, r := range s.items {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// Middleware
// =============================================================================

// recordRequest logs the request, applies latency and injected failures
func (s *Server) recordRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()

		s.mu.Lock()
		s.requests = append(s.requests, req.Method+" "+req.URL.Path)
		latency := s.latency
		status, fail := s.failures[req.Method]
		if fail {
			delete(s.failures, req.Method)
		}
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}

		entry := s.logger.WithFields(log.Fields{
			"method": req.Method,
			"path":   req.URL.Path,
		})
		if fail {
			entry.WithField("status", status).Info("injected failure")
			return c.String(status, http.StatusText(status))
		}

		err := next(c)
		entry.WithField("status", c.Response().Status).Debug("request served")
		return err
	}
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) listItems(c echo.Context) error {
	s.mu.Lock()
	out := make([]record, 0, len(s.items))
	for _, r := range s.items {
		out = append(out, s.encode(r))
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createItem(c echo.Context) error {
	var body titleBody
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if body.Title == nil || strings.TrimSpace(*body.Title) == "" {
		return c.String(http.StatusUnprocessableEntity, "title is required")
	}

	s.mu.Lock()
	r := s.insert(*body.Title)
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, s.encode(r))
}

func (s *Server) updateItem(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid id")
	}
	var body titleBody
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.String(http.StatusBadRequest, "invalid body")
	}
	if body.Title != nil && strings.TrimSpace(*body.Title) == "" {
		return c.String(http.StatusUnprocessableEntity, "title must not be empty")
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return c.String(http.StatusNotFound, "item not found")
	}
	if body.Title != nil {
		s.items[i].Title = *body.Title
	}
	r := s.items[i]
	s.mu.Unlock()

	return c.JSON(http.StatusOK, s.encode(r))
}

func (s *Server) deleteItem(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.String(http.StatusBadRequest, "invalid id")
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return c.String(http.StatusNotFound, "item not found")
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.mu.Unlock()

	return c.NoContent(http.StatusNoContent)
}
