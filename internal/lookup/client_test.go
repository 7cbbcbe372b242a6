package lookup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestParseReply(t *testing.T) {
	cases := []struct {
		body string
		want string
		ok   bool
	}{
		{"move:e2e4", "e2e4", true},
		{"egtb:a7a8q\x00", "a7a8q", true},
		{"search:g1f3|e2e4", "g1f3", true},
		{" move:d2d4 \n", "d2d4", true},
		{"nobestmove", "", false},
		{"invalid board", "", false},
		{"move:", "", false},
	}
	for _, tc := range cases {
		got, err := ParseReply(tc.body)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseReply(%q) = %q, %v; want %q", tc.body, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrNoBestMove) {
			t.Fatalf("ParseReply(%q) err = %v, want ErrNoBestMove", tc.body, err)
		}
	}
}

func TestBestMoveSendsQuery(t *testing.T) {
	var (
		mu                          sync.Mutex
		gotAction, gotBoard, gotHdr string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAction = r.URL.Query().Get("action")
		gotBoard = r.URL.Query().Get("board")
		gotHdr = r.Header.Get("X-Agent")
		mu.Unlock()
		fmt.Fprint(w, "move:e7e5")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Agent": "test", " ": "skip"}
	}))
	fen := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1"
	mv, err := c.BestMove(context.Background(), fen)
	if err != nil {
		t.Fatalf("BestMove: %v", err)
	}
	if mv != "e7e5" {
		t.Fatalf("move = %q", mv)
	}
	mu.Lock()
	defer mu.Unlock()
	if gotAction != "querybest" || gotBoard != fen || gotHdr != "test" {
		t.Fatalf("request action=%q board=%q header=%q", gotAction, gotBoard, gotHdr)
	}
}

func TestBestMoveRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "search:g1f3")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	mv, err := c.BestMove(context.Background(), "startpos")
	if err != nil || mv != "g1f3" {
		t.Fatalf("BestMove = %q, %v", mv, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestBestMoveClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	if _, err := c.BestMove(context.Background(), "startpos"); err == nil {
		t.Fatalf("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestBestMoveNoMove(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "nobestmove")
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).BestMove(context.Background(), "startpos"); !errors.Is(err, ErrNoBestMove) {
		t.Fatalf("err = %v, want ErrNoBestMove", err)
	}
}

func TestBestMoveTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, "move:e2e4")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond), WithRetry(1))
	if _, err := c.BestMove(context.Background(), "startpos"); err == nil {
		t.Fatalf("expected timeout error")
	}
}
