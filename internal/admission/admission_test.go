package admission

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestAllowUnderLimit(t *testing.T) {
	l := NewSlidingWindow(time.Minute, 5)

	for i := 0; i < 5; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d refused, want admitted", i+1)
		}
	}
}

func TestRefuseOverLimit(t *testing.T) {
	l := NewSlidingWindow(time.Minute, 5)

	for i := 0; i < 5; i++ {
		l.Allow("1.2.3.4")
	}
	if l.Allow("1.2.3.4") {
		t.Error("request 6 admitted, want refused")
	}

	// A different identity is unaffected.
	if !l.Allow("5.6.7.8") {
		t.Error("other identity refused, want admitted")
	}
}

func TestRefusedAttemptsCount(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewSlidingWindowWithClock(time.Minute, 3, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		l.Allow("a")
	}
	// Refused attempts still extend the window: after max refusals, the
	// window holds max+refusals timestamps.
	for i := 0; i < 10; i++ {
		if l.Allow("a") {
			t.Fatalf("attempt %d admitted, want refused", i+4)
		}
	}
}

func TestWindowExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewSlidingWindowWithClock(time.Minute, 2, func() time.Time { return now })

	l.Allow("a")
	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("3rd request admitted, want refused")
	}

	// Step past the window: old attempts (including the refused one) are
	// pruned and the identity is admitted again.
	now = now.Add(61 * time.Second)
	if !l.Allow("a") {
		t.Error("request after window elapsed refused, want admitted")
	}
}

func TestReset(t *testing.T) {
	l := NewSlidingWindow(time.Minute, 1)

	l.Allow("a")
	if l.Allow("a") {
		t.Fatal("2nd request admitted, want refused")
	}
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("request after Reset refused, want admitted")
	}
}

func TestConcurrentSameIdentity(t *testing.T) {
	const max = 100
	l := NewSlidingWindow(time.Minute, max)

	var wg sync.WaitGroup
	admitted := make(chan bool, 4*max)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < max/2; i++ {
				admitted <- l.Allow("same")
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for ok := range admitted {
		if ok {
			count++
		}
	}
	// All attempts land inside one window, so exactly max are admitted.
	if count != max {
		t.Errorf("admitted %d requests, want %d", count, max)
	}
}

func TestClientIdentity(t *testing.T) {
	tests := []struct {
		remoteAddr string
		xff        string
		want       string
	}{
		{"10.0.0.9:4312", "", "10.0.0.9"},
		{"10.0.0.9:4312", "203.0.113.7", "203.0.113.7"},
		{"10.0.0.9:4312", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"10.0.0.9:4312", " 203.0.113.7 , 10.0.0.1", "203.0.113.7"},
		{"[::1]:4312", "", "::1"},
	}

	for i, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if tt.xff != "" {
			r.Header.Set("X-Forwarded-For", tt.xff)
		}
		if got := ClientIdentity(r); got != tt.want {
			t.Errorf("case %d: ClientIdentity() = %q, want %q", i, got, tt.want)
		}
	}
}

func BenchmarkAllow(b *testing.B) {
	l := NewSlidingWindow(time.Minute, 1000)
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			l.Allow(fmt.Sprintf("id-%d", i%16))
			i++
		}
	})
}
