package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Armin-kho/satoshi-converter/internal/convert"
	"github.com/Armin-kho/satoshi-converter/internal/items"
	"github.com/Armin-kho/satoshi-converter/internal/poller"
	"github.com/Armin-kho/satoshi-converter/internal/render"
)

type fakeRates struct {
	mu        sync.Mutex
	state     poller.State
	refreshOK bool
	refreshes int
	subs      map[int]func(poller.State)
	next      int
}

func newFakeRates(s poller.State) *fakeRates {
	return &fakeRates{state: s, refreshOK: true, subs: map[int]func(poller.State){}}
}

func (f *fakeRates) State() poller.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRates) RefreshNow() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.refreshOK
}

func (f *fakeRates) Subscribe(fn func(poller.State)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeRates) publish(s poller.State) {
	f.mu.Lock()
	f.state = s
	var fns []func(poller.State)
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (f *fakeRates) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeRates) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func settledState(usd float64) poller.State {
	return poller.State{
		Rates:       convert.BuildRates(items.All, map[string]float64{"usd": usd}),
		LastUpdated: time.Date(2026, 10, 17, 9, 15, 0, 0, time.UTC),
		CycleID:     "cycle-1",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIndex(t *testing.T) {
	s := New("", newFakeRates(settledState(50000)), render.Options{}, quietLogger())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, want := range []string{render.Title, "$50,000.00", "2,000", "Last updated: 2026-10-17 09:15:00 UTC"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("page missing %q", want)
		}
	}

	resp, err = http.Get(ts.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", resp.StatusCode)
	}
}

func TestIndex_Initial(t *testing.T) {
	s := New("", newFakeRates(poller.State{Loading: true}), render.Options{}, quietLogger())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "⏳ "+render.LoadingText) {
		t.Errorf("initial page should show loading indicator")
	}
	if !strings.Contains(body, `id="refresh" disabled`) {
		t.Errorf("refresh button should be disabled while loading")
	}
}

func TestIndex_FirstFetchFailed(t *testing.T) {
	s := New("", newFakeRates(poller.State{Error: poller.FetchFailedMessage}), render.Options{}, quietLogger())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if strings.Contains(body, "⏳ "+render.LoadingText) {
		t.Errorf("failed first fetch should not show the loading indicator")
	}
	if !strings.Contains(body, poller.FetchFailedMessage) {
		t.Errorf("page missing error message")
	}
	if strings.Contains(body, `id="refresh" disabled`) {
		t.Errorf("refresh button should be enabled after a failed fetch")
	}
}

func TestRatesAPI(t *testing.T) {
	rates := newFakeRates(settledState(50000))
	s := New("", rates, render.Options{}, quietLogger())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rates", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var v View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatal(err)
	}
	if len(v.Rates) != len(items.All) || v.Rates[0].SmallestUnits != 2000 {
		t.Errorf("rates = %+v", v.Rates)
	}
	if v.LastUpdated == nil || v.CycleID != "cycle-1" {
		t.Errorf("view = %+v", v)
	}

	rates.publish(poller.State{Loading: true})
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rates", nil))
	if !strings.Contains(rec.Body.String(), `"lastUpdated":null`) || !strings.Contains(rec.Body.String(), `"rates":[]`) {
		t.Errorf("initial body = %s", rec.Body.String())
	}
}

func TestRateAPI(t *testing.T) {
	rates := newFakeRates(poller.State{Loading: true})
	h := New("", rates, render.Options{}, quietLogger()).Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/api/rates/usd"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("before first fetch = %d, want 503", rec.Code)
	}
	if rec := get("/api/rates/xyz"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown code = %d, want 404", rec.Code)
	}

	rates.publish(settledState(50000))
	rec := get("/api/rates/usd")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Rate convert.CurrencyRate `json:"rate"`
		Card render.Card          `json:"card"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Rate.Code != "USD" || got.Rate.SmallestUnits != 2000 || got.Card.Price != "$50,000.00" {
		t.Errorf("got %+v", got)
	}
}

func TestRefreshAPI(t *testing.T) {
	rates := newFakeRates(settledState(50000))
	s := New("", rates, render.Options{}, quietLogger())
	h := s.Handler()

	for _, accepted := range []bool{true, false} {
		rates.mu.Lock()
		rates.refreshOK = accepted
		rates.mu.Unlock()

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
		if rec.Code != http.StatusAccepted {
			t.Errorf("status = %d, want 202", rec.Code)
		}
		var got map[string]bool
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatal(err)
		}
		if got["accepted"] != accepted {
			t.Errorf("accepted = %v, want %v", got["accepted"], accepted)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/refresh = %d, want 405", rec.Code)
	}
}

func readView(t *testing.T, conn *websocket.Conn) View {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var v View
	if err := conn.ReadJSON(&v); err != nil {
		t.Fatalf("read: %v", err)
	}
	return v
}

func TestWebsocketPushesTransitions(t *testing.T) {
	rates := newFakeRates(settledState(50000))
	s := New("127.0.0.1:0", rates, render.Options{}, quietLogger())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr()+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	first := readView(t, conn)
	if first.CycleID != "cycle-1" || first.Cards[0].Sats != "2,000" {
		t.Errorf("first push = %+v", first)
	}

	loading := settledState(50000)
	loading.Loading = true
	rates.publish(loading)
	next := settledState(40000)
	next.CycleID = "cycle-2"
	rates.publish(next)

	if v := readView(t, conn); !v.Loading {
		t.Errorf("expected loading transition, got %+v", v)
	}
	if v := readView(t, conn); v.Loading || v.CycleID != "cycle-2" || v.Cards[0].Sats != "2,500" {
		t.Errorf("expected settled transition, got %+v", v)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("refresh")); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for rates.refreshCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh frame ignored")
		}
		time.Sleep(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if rates.subscribers() != 0 {
		t.Error("server still subscribed after Shutdown")
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after Shutdown")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := newHub()
	slow := &client{send: make(chan []byte, 1)}
	fast := &client{send: make(chan []byte, 4)}
	h.add(slow, nil)
	h.add(fast, nil)

	h.broadcast([]byte("a"))
	h.broadcast([]byte("b"))

	if h.count() != 1 {
		t.Fatalf("count = %d, want 1", h.count())
	}
	if msg := <-slow.send; string(msg) != "a" {
		t.Errorf("slow got %q", msg)
	}
	if _, ok := <-slow.send; ok {
		t.Error("slow client's channel should be closed")
	}
	if len(fast.send) != 2 {
		t.Errorf("fast client buffered %d, want 2", len(fast.send))
	}

	h.closeAll()
	if h.count() != 0 {
		t.Errorf("count after closeAll = %d", h.count())
	}
	h.remove(fast)
}
