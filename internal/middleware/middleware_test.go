package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sceneit-backend/internal/apperror"
	"sceneit-backend/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeTokens struct {
	valid    map[string]string
	subjErr  error
	validate int
}

func (f *fakeTokens) ValidateJWT(token string) bool {
	f.validate++
	_, ok := f.valid[token]
	return ok
}

func (f *fakeTokens) UsernameFromJWT(token string) (string, error) {
	if f.subjErr != nil {
		return "", f.subjErr
	}
	return f.valid[token], nil
}

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	u, ok := f[username]
	if !ok {
		return nil, errors.New("user not found")
	}
	return u, nil
}

func setupAuthRouter(tokens *fakeTokens, users fakeUsers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperror.Middleware(), Authenticate(tokens, users))
	r.GET("/public", func(c *gin.Context) {
		_, ok := PrincipalFrom(c)
		if ok {
			c.String(http.StatusOK, "authenticated")
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/private", RequireAuth(), func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, p.Username)
	})
	return r
}

func get(r http.Handler, path, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate_ResolvesPrincipal(t *testing.T) {
	tokens := &fakeTokens{valid: map[string]string{"good": "bob"}}
	users := fakeUsers{"bob": {ID: 7, Username: "bob", Role: models.RoleUser}}
	r := setupAuthRouter(tokens, users)

	rec := get(r, "/private", "Bearer good")
	if rec.Code != http.StatusOK || rec.Body.String() != "bob" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestAuthenticate_NeverAbortsPublicRoutes(t *testing.T) {
	tokens := &fakeTokens{valid: map[string]string{"good": "ghost"}}
	r := setupAuthRouter(tokens, fakeUsers{})

	for _, header := range []string{"", "Bearer bad", "Basic Ym9iOnB3", "Bearer ", "Bearer good"} {
		rec := get(r, "/public", header)
		if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
			t.Errorf("header %q: got %d %q", header, rec.Code, rec.Body.String())
		}
	}
}

func TestAuthenticate_SkipsValidationWithoutBearerPrefix(t *testing.T) {
	tokens := &fakeTokens{valid: map[string]string{"good": "bob"}}
	r := setupAuthRouter(tokens, fakeUsers{})

	get(r, "/public", "good")
	if tokens.validate != 0 {
		t.Errorf("ValidateJWT called %d times for a header without Bearer prefix", tokens.validate)
	}
}

func TestRequireAuth_EntryPointBody(t *testing.T) {
	tokens := &fakeTokens{
		valid:   map[string]string{"good": "bob"},
		subjErr: errors.New("no subject"),
	}
	users := fakeUsers{"bob": {ID: 7, Username: "bob"}}
	r := setupAuthRouter(tokens, users)

	for _, header := range []string{"", "Bearer expired", "Bearer good"} {
		rec := get(r, "/private", header)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
		if got := rec.Body.String(); got != `{"message":"Unauthorized","status":401}` {
			t.Errorf("header %q: body %s", header, got)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"Bearer   abc ", "abc", true},
		{"bearer abc", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, token, ok, tt.token, tt.ok)
		}
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RequestLogger())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	rec := get(r, "/", "")
	generated := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("generated id %q is not a uuid: %v", generated, err)
	}
	if rec.Body.String() != generated {
		t.Errorf("context id %q != header id %q", rec.Body.String(), generated)
	}

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != incoming {
		t.Errorf("incoming id not reused: got %q want %q", got, incoming)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got == "<script>" {
		t.Error("malformed incoming id should be replaced")
	}
}

func setupLimiter(t *testing.T, limit int, window time.Duration, hooks ...redis.Hook) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	for _, h := range hooks {
		rdb.AddHook(h)
	}
	t.Cleanup(func() { _ = rdb.Close() })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperror.Middleware())
	r.POST("/login", RateLimit(rdb, "auth", limit, window), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, mr
}

func postLogin(r http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	r, _ := setupLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, rec.Code)
		}
	}
	rec := postLogin(r, "10.0.0.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Body.String() != `{"message":"Too many requests, please try again later."}` {
		t.Errorf("body = %s", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	if rec := postLogin(r, "10.0.0.2"); rec.Code != http.StatusNoContent {
		t.Errorf("other ip: expected 204, got %d", rec.Code)
	}
}

func TestRateLimit_WindowResets(t *testing.T) {
	r, mr := setupLimiter(t, 1, time.Minute)

	postLogin(r, "10.0.0.1")
	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	mr.FastForward(61 * time.Second)
	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
		t.Errorf("after window: expected 204, got %d", rec.Code)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	r, mr := setupLimiter(t, 1, time.Minute)
	mr.Close()

	for i := 0; i < 3; i++ {
		if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d with redis down: expected 204, got %d", i+1, rec.Code)
		}
	}
}

// expireFailure makes the first EXPIRE sent to Redis fail. Before failing
// it runs partial, which lets a test leave state behind the way a write
// that reached Redis before the connection dropped would.
type expireFailure struct {
	fired   bool
	partial func()
}

func (h *expireFailure) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *expireFailure) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if h.trip([]redis.Cmder{cmd}) {
			return errors.New("expire: connection reset by peer")
		}
		return next(ctx, cmd)
	}
}

func (h *expireFailure) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if h.trip(cmds) {
			return errors.New("expire: connection reset by peer")
		}
		return next(ctx, cmds)
	}
}

func (h *expireFailure) trip(cmds []redis.Cmder) bool {
	if h.fired {
		return false
	}
	for _, cmd := range cmds {
		if cmd.Name() == "expire" {
			h.fired = true
			if h.partial != nil {
				h.partial()
			}
			return true
		}
	}
	return false
}

func TestRateLimit_FailedExpireDoesNotLockOut(t *testing.T) {
	const key = "ratelimit:auth:10.0.0.1"
	hook := &expireFailure{}
	r, mr := setupLimiter(t, 2, time.Minute, hook)
	hook.partial = func() {
		if _, err := mr.Incr(key, 1); err != nil {
			t.Errorf("seed counter: %v", err)
		}
	}

	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
		t.Fatalf("request during failure: expected 204, got %d", rec.Code)
	}
	if !hook.fired {
		t.Fatal("expire was never sent")
	}
	if mr.Exists(key) && mr.TTL(key) <= 0 {
		t.Fatalf("counter left without a TTL")
	}

	for i := 0; i < 2; i++ {
		if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, rec.Code)
		}
	}
	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl = %v, want within the window", ttl)
	}

	mr.FastForward(61 * time.Second)
	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
		t.Errorf("after window: expected 204, got %d", rec.Code)
	}
}

func TestRateLimit_RestoresMissingTTL(t *testing.T) {
	const key = "ratelimit:auth:10.0.0.1"
	r, mr := setupLimiter(t, 2, time.Minute)
	// A counter written without an expiry, past the limit.
	if err := mr.Set(key, "5"); err != nil {
		t.Fatal(err)
	}

	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if ttl := mr.TTL(key); ttl <= 0 {
		t.Fatalf("ttl = %v, want one restored", ttl)
	}

	mr.FastForward(24 * time.Hour)
	if rec := postLogin(r, "10.0.0.1"); rec.Code != http.StatusNoContent {
		t.Errorf("a day later: expected 204, got %d", rec.Code)
	}
}
