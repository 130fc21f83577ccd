package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	goRWT "github.com/MrEthical07/goRWT"
	"github.com/alicebob/miniredis/v2"
)

const testSecret = "middleware-secret"

func newGuardEngine(t *testing.T, mutate func(*goRWT.Config)) (*goRWT.Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := goRWT.DefaultConfig()
	cfg.Store.Addrs = []string{mr.Addr()}
	cfg.Store.MaxRetries = -1
	cfg.Store.DialTimeout = 200 * time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	engine, err := goRWT.New().WithConfig(cfg).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func signSession(t *testing.T, engine *goRWT.Engine) string {
	t.Helper()
	id, err := engine.Sign(context.Background(), map[string]any{"user": "alice", "role": "admin"}, testSecret)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return id
}

func recordHandler(t *testing.T, seen *goRWT.Record, seenID *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec, ok := RecordFromContext(r.Context())
		if !ok {
			t.Error("expected record in context")
		}
		id, ok := IdentifierFromContext(r.Context())
		if !ok {
			t.Error("expected identifier in context")
		}
		*seen = rec
		*seenID = id
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardAttachesRecord(t *testing.T) {
	engine, _ := newGuardEngine(t, nil)
	id := signSession(t, engine)

	var seen goRWT.Record
	var seenID string
	h := Guard(engine, StaticSecret(testSecret))(recordHandler(t, &seen, &seenID))

	rec := serve(h, "Bearer "+id)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if seen["user"] != "alice" || seen["role"] != "admin" {
		t.Fatalf("unexpected record %v", seen)
	}
	if seenID != id {
		t.Fatalf("expected identifier %q, got %q", id, seenID)
	}
}

func TestGuardRejects(t *testing.T) {
	engine, _ := newGuardEngine(t, nil)
	id := signSession(t, engine)

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	})

	tests := []struct {
		name   string
		engine *goRWT.Engine
		secret SecretFunc
		header string
	}{
		{name: "missing header", engine: engine, secret: StaticSecret(testSecret)},
		{name: "basic scheme", engine: engine, secret: StaticSecret(testSecret), header: "Basic " + id},
		{name: "empty bearer", engine: engine, secret: StaticSecret(testSecret), header: "Bearer "},
		{name: "unknown identifier", engine: engine, secret: StaticSecret(testSecret), header: "Bearer nope"},
		{name: "wrong secret", engine: engine, secret: StaticSecret("other"), header: "Bearer " + id},
		{name: "empty secret", engine: engine, secret: StaticSecret(""), header: "Bearer " + id},
		{name: "nil secret func", engine: engine, header: "Bearer " + id},
		{name: "nil engine", secret: StaticSecret(testSecret), header: "Bearer " + id},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(Guard(tc.engine, tc.secret)(next), tc.header)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestGuardRateLimited(t *testing.T) {
	engine, _ := newGuardEngine(t, func(cfg *goRWT.Config) {
		cfg.Security.EnableVerifyThrottle = true
		cfg.Security.MaxVerifyMisses = 1
	})
	id := signSession(t, engine)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if rec := serve(Guard(engine, StaticSecret("guess"))(next), "Bearer "+id); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for first miss, got %d", rec.Code)
	}
	if rec := serve(Guard(engine, StaticSecret(testSecret))(next), "Bearer "+id); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once throttled, got %d", rec.Code)
	}
}

func TestGuardStoreUnavailable(t *testing.T) {
	engine, mr := newGuardEngine(t, nil)
	id := signSession(t, engine)
	mr.Close()

	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler must not run")
	})

	if rec := serve(Guard(engine, StaticSecret(testSecret))(next), "Bearer "+id); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGuardForwardsClientIP(t *testing.T) {
	sink := goRWT.NewChannelSink(4)
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	defer mr.Close()

	cfg := goRWT.DefaultConfig()
	cfg.Store.Addrs = []string{mr.Addr()}
	cfg.Audit.Enabled = true
	engine, err := goRWT.New().WithConfig(cfg).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	id := signSession(t, engine)
	<-sink.Events()

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.RemoteAddr = "203.0.113.7:4242"
	req.Header.Set("Authorization", "Bearer "+id)
	Guard(engine, StaticSecret(testSecret))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(httptest.NewRecorder(), req)

	select {
	case ev := <-sink.Events():
		if ev.IP != "203.0.113.7" {
			t.Fatalf("expected forwarded client IP, got %q", ev.IP)
		}
	case <-time.After(time.Second):
		t.Fatal("expected verify audit event")
	}
}

func TestRequireSlidingResetsTTL(t *testing.T) {
	engine, mr := newGuardEngine(t, func(cfg *goRWT.Config) {
		cfg.Session.Expire = time.Hour
	})
	id := signSession(t, engine)
	mr.FastForward(40 * time.Minute)

	var seen goRWT.Record
	var seenID string
	h := RequireSliding(engine, StaticSecret(testSecret))(recordHandler(t, &seen, &seenID))

	if rec := serve(h, "Bearer "+id); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	ttl, ok, err := engine.TTL(context.Background(), id, testSecret)
	if err != nil || !ok {
		t.Fatalf("TTL failed: ok=%v err=%v", ok, err)
	}
	if ttl < 59*time.Minute {
		t.Fatalf("expected TTL reset to ~1h, got %s", ttl)
	}

	mr.FastForward(50 * time.Minute)
	if rec := serve(h, "Bearer "+id); rec.Code != http.StatusNoContent {
		t.Fatalf("expected sliding session to survive, got %d", rec.Code)
	}
}

func TestGuardDoesNotExtendByDefault(t *testing.T) {
	engine, mr := newGuardEngine(t, nil)
	id := signSession(t, engine)
	mr.FastForward(40 * time.Minute)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if rec := serve(Guard(engine, StaticSecret(testSecret))(next), "Bearer "+id); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	mr.FastForward(30 * time.Minute)
	if rec := serve(Guard(engine, StaticSecret(testSecret))(next), "Bearer "+id); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected expired session to be rejected, got %d", rec.Code)
	}
}
