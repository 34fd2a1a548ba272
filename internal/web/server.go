package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Armin-kho/satoshi-converter/internal/convert"
	"github.com/Armin-kho/satoshi-converter/internal/items"
	"github.com/Armin-kho/satoshi-converter/internal/poller"
	"github.com/Armin-kho/satoshi-converter/internal/render"
)

// RateSource is the read side of the poller plus its refresh trigger.
type RateSource interface {
	State() poller.State
	RefreshNow() bool
	Subscribe(fn func(poller.State)) (unsubscribe func())
}

// View is the JSON form of a poller state served to browsers.
type View struct {
	Rates           []convert.CurrencyRate `json:"rates"`
	Cards           []render.Card          `json:"cards"`
	Loading         bool                   `json:"loading"`
	LastUpdated     *time.Time             `json:"lastUpdated"`
	LastUpdatedText string                 `json:"lastUpdatedText,omitempty"`
	Error           string                 `json:"error,omitempty"`
	CycleID         string                 `json:"cycleId,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server serves the rates page, a small JSON API and a live websocket feed.
type Server struct {
	rates  RateSource
	opts   render.Options
	logger *slog.Logger
	hub    *hub
	srv    *http.Server

	mu          sync.Mutex
	ln          net.Listener
	unsubscribe func()
}

func New(addr string, rates RateSource, opts render.Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		rates:  rates,
		opts:   opts,
		logger: logger.With("component", "web"),
		hub:    newHub(),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/rates", s.handleRates)
	mux.HandleFunc("GET /api/rates/{code}", s.handleRate)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", s.srv.Addr, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.unsubscribe = s.rates.Subscribe(s.publish)
	s.mu.Unlock()

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("web server stopped", "err", err)
		}
	}()
	s.logger.Info("web listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address once started, else the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.srv.Addr
}

// Shutdown stops accepting requests and disconnects every websocket viewer.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}

	err := s.srv.Shutdown(ctx)
	// Hijacked connections are not tracked by http.Server.
	s.hub.closeAll()
	return err
}

func (s *Server) view(st poller.State) View {
	v := View{
		Rates:   st.Rates,
		Cards:   render.Cards(st, s.opts),
		Loading: st.Loading,
		Error:   st.Error,
		CycleID: st.CycleID,
	}
	if v.Rates == nil {
		v.Rates = []convert.CurrencyRate{}
	}
	if !st.LastUpdated.IsZero() {
		t := st.LastUpdated
		v.LastUpdated = &t
		v.LastUpdatedText = render.LastUpdated(st, s.opts)
	}
	return v
}

func (s *Server) encode(st poller.State) []byte {
	b, err := json.Marshal(s.view(st))
	if err != nil {
		s.logger.Error("encode state", "err", err)
		return nil
	}
	return b
}

func (s *Server) publish(st poller.State) {
	if b := s.encode(st); b != nil {
		s.hub.broadcast(b)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	v := s.view(s.rates.State())
	data := struct {
		Title       string
		Subtitle    string
		Footer      string
		LoadingText string
		Explain     string
		View
	}{
		Title:       render.Title,
		Subtitle:    render.Subtitle,
		Footer:      render.Footer,
		LoadingText: render.LoadingText,
		Explain:     render.Explainer(),
		View:        v,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, data); err != nil {
		s.logger.Warn("render index", "err", err)
	}
}

func (s *Server) handleRates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view(s.rates.State()))
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	d, ok := items.ByCode(r.PathValue("code"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown currency"})
		return
	}
	v := s.view(s.rates.State())
	for i, rate := range v.Rates {
		if rate.Code == d.Code {
			writeJSON(w, http.StatusOK, struct {
				Rate        convert.CurrencyRate `json:"rate"`
				Card        render.Card          `json:"card"`
				LastUpdated *time.Time           `json:"lastUpdated"`
			}{rate, v.Cards[i], v.LastUpdated})
			return
		}
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "rates not loaded yet"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": s.rates.RefreshNow()})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.add(c, func() []byte { return s.encode(s.rates.State()) })

	go c.writePump()
	s.readPump(c)
}

// readPump keeps the read deadline moving on pongs and treats a "refresh"
// text frame as a refresh request. It unregisters c when the peer goes away.
func (s *Server) readPump(c *client) {
	defer s.hub.remove(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if string(msg) == "refresh" {
			s.rates.RefreshNow()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
