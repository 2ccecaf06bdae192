package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestRedirectResolver(maxHops int) *RedirectResolver {
	return NewRedirectResolver(maxHops, 2*time.Second, zerolog.Nop())
}

func TestResolveFollowsChain(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/middle", http.StatusFound)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		// Relative Location must be normalized against the current URL.
		w.Header().Set("Location", "/final")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	got := newTestRedirectResolver(5).Resolve(context.Background(), srv.URL+"/short")
	if want := srv.URL + "/final"; got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveStopsAtHopLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		http.Redirect(w, r, fmt.Sprintf("/hop-%d", n), http.StatusFound)
	}))
	defer srv.Close()

	got := newTestRedirectResolver(3).Resolve(context.Background(), srv.URL+"/hop-0")
	if hits.Load() != 3 {
		t.Fatalf("issued %d probes, want 3", hits.Load())
	}
	if got == srv.URL+"/hop-0" {
		t.Fatal("expected resolver to advance through followed hops")
	}
}

func TestResolveTerminatesOnCycle(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/a", http.StatusFound)
	})

	done := make(chan string, 1)
	go func() {
		done <- newTestRedirectResolver(5).Resolve(context.Background(), srv.URL+"/a")
	}()
	select {
	case got := <-done:
		if got != srv.URL+"/a" && got != srv.URL+"/b" {
			t.Fatalf("cycle resolution escaped the loop: %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("resolver did not terminate on a redirect cycle")
	}
}

func TestResolveDegradesToInputOnError(t *testing.T) {
	// Nothing listens here; resolution must fall back to the input URL.
	got := newTestRedirectResolver(5).Resolve(context.Background(), "http://127.0.0.1:1/dead")
	if got != "http://127.0.0.1:1/dead" {
		t.Fatalf("Resolve = %q, want input unchanged", got)
	}
}

func TestResolveNonRedirectReturnsInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("probe used %s, want HEAD", r.Method)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got := newTestRedirectResolver(5).Resolve(context.Background(), srv.URL+"/page")
	if got != srv.URL+"/page" {
		t.Fatalf("Resolve = %q, want %q", got, srv.URL+"/page")
	}
}

func TestResolveMissingLocationReturnsCurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	got := newTestRedirectResolver(5).Resolve(context.Background(), srv.URL+"/x")
	if got != srv.URL+"/x" {
		t.Fatalf("Resolve = %q, want %q", got, srv.URL+"/x")
	}
}
