package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/registry"
)

var quiet = log.New(io.Discard, "", 0)

type fakeStore struct {
	registrants []registry.Registrant
	err         error
	panic       bool
}

func (f *fakeStore) FindByID(_ context.Context, id int64) (*registry.Registrant, error) {
	if f.panic {
		panic("store exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.registrants {
		if f.registrants[i].ID == id {
			return &f.registrants[i], nil
		}
	}
	return nil, registry.ErrNotFound
}

func (f *fakeStore) FindByIdentifier(_ context.Context, ident string) ([]registry.Registrant, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []registry.Registrant
	for _, r := range f.registrants {
		if r.Email == ident || r.Mobile == ident {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, registry.ErrNotFound
	}
	return out, nil
}

type fakeCache struct {
	mu         sync.Mutex
	data       map[string][]byte
	gets, sets int
	err        error
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	return nil
}

var registrants = []registry.Registrant{
	{ID: 1, Name: "Ada Lovelace", Email: "ada@example.com", Mobile: "5550101", AttendanceDay1: true},
	{ID: 2, Name: "Alan Turing", Email: "alan@example.com", Mobile: "5550102", AttendanceDay1: true, AttendanceDay2: true},
	{ID: 3, Name: "Grace Hopper", Email: "grace@example.com", Mobile: "5550103"},
	{ID: 4, Name: "Katherine Johnson", Email: "kj@example.com", Mobile: "5550104", AttendanceDay2: true},
}

// templateDir writes 0.pdf and 1.pdf; 2.pdf is left missing.
func templateDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, file := range []string{registry.TemplateBothDays, registry.TemplateDay1} {
		pdf := fpdf.New("L", "pt", "Letter", "")
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 24)
		pdf.Text(300, 300, "{{name}}")
		if err := pdf.OutputFileAndClose(filepath.Join(dir, file)); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newTestServer(t *testing.T, secret string, store registry.Store, cache Cache) *Server {
	t.Helper()
	ed, err := certfill.New(certfill.WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{TemplateDir: templateDir(t), JWTSecret: secret, Redis: &CacheConf{}}
	cfg.setDefaults()
	return New(cfg, store, ed, cache, quiet)
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	if m.Type != "error" {
		t.Errorf("message type = %q", m.Type)
	}
	return m.Message
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, "", &fakeStore{registrants: registrants}, nil)

	form := url.Values{"identifier": {"5550102"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Registrants) != 1 || resp.Registrants[0].Name != "Alan Turing" || resp.Registrants[0].Token != "" {
		t.Errorf("response = %+v", resp)
	}
}

func TestLoginJSONIssuesTokens(t *testing.T) {
	s := newTestServer(t, "s3cret", &fakeStore{registrants: registrants}, nil)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"identifier":"ada@example.com"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := do(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Registrants) != 1 {
		t.Fatalf("response = %+v", resp)
	}
	if err := VerifyToken([]byte("s3cret"), resp.Registrants[0].Token, 1, time.Now()); err != nil {
		t.Errorf("issued token: %v", err)
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
		body  string
		code  int
	}{
		{"unknown", &fakeStore{registrants: registrants}, "identifier=nobody", http.StatusUnauthorized},
		{"empty", &fakeStore{registrants: registrants}, "identifier=+", http.StatusBadRequest},
		{"database", &fakeStore{err: errors.New("connection refused")}, "identifier=ada@example.com", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "", tt.store, nil)
			req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := do(s, req)
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			errorMessage(t, rec)
		})
	}
}

func TestCertificate(t *testing.T) {
	cache := &fakeCache{data: map[string][]byte{}}
	s := newTestServer(t, "", &fakeStore{registrants: registrants}, cache)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/certificate/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=certificate_Ada_Lovelace.pdf" {
		t.Errorf("Content-Disposition = %q", cd)
	}
	first := rec.Body.Bytes()
	if !bytes.HasPrefix(first, []byte("%PDF-")) {
		t.Fatal("body is not a PDF")
	}

	// second download comes from the cache
	rec = do(s, httptest.NewRequest(http.MethodGet, "/certificate/1", nil))
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), first) {
		t.Errorf("cached download differs (status %d)", rec.Code)
	}
	if cache.gets != 2 || cache.sets != 1 {
		t.Errorf("cache gets/sets = %d/%d, want 2/1", cache.gets, cache.sets)
	}
}

func TestCertificateCacheErrorsIgnored(t *testing.T) {
	cache := &fakeCache{data: map[string][]byte{}, err: errors.New("redis down")}
	s := newTestServer(t, "", &fakeStore{registrants: registrants}, cache)
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/certificate/2", nil)); rec.Code != http.StatusOK {
		t.Errorf("status = %d: %s", rec.Code, rec.Body)
	}
}

func TestCertificateFailures(t *testing.T) {
	tests := []struct {
		path string
		code int
	}{
		{"/certificate/99", http.StatusNotFound},
		{"/certificate/abc", http.StatusNotFound},
		{"/certificate/3", http.StatusForbidden},           // no attendance
		{"/certificate/4", http.StatusInternalServerError}, // 2.pdf missing
	}
	s := newTestServer(t, "", &fakeStore{registrants: registrants}, nil)
	for _, tt := range tests {
		rec := do(s, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.code)
			continue
		}
		errorMessage(t, rec)
	}
}

func TestCertificateRequiresToken(t *testing.T) {
	secret := []byte("s3cret")
	s := newTestServer(t, string(secret), &fakeStore{registrants: registrants}, nil)
	own, err := IssueToken(secret, 1, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	other, _ := IssueToken(secret, 2, time.Hour, time.Now())
	expired, _ := IssueToken(secret, 1, time.Hour, time.Now().Add(-2*time.Hour))
	forged, _ := IssueToken([]byte("wrong"), 1, time.Hour, time.Now())

	tests := []struct {
		auth string
		code int
	}{
		{"", http.StatusUnauthorized},
		{"Bearer " + other, http.StatusUnauthorized},
		{"Bearer " + expired, http.StatusUnauthorized},
		{"Bearer " + forged, http.StatusUnauthorized},
		{"Bearer " + own, http.StatusOK},
	}
	for i, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/certificate/1", nil)
		if tt.auth != "" {
			req.Header.Set("Authorization", tt.auth)
		}
		if rec := do(s, req); rec.Code != tt.code {
			t.Errorf("case %d: status = %d, want %d", i, rec.Code, tt.code)
		}
	}
}

func TestPanicRecovered(t *testing.T) {
	s := newTestServer(t, "", &fakeStore{panic: true}, nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/certificate/1", nil))
	if rec.Code != http.StatusInternalServerError || errorMessage(t, rec) != "internal server error" {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, "", &fakeStore{}, nil)
	if rec := do(s, httptest.NewRequest(http.MethodGet, "/login", nil)); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "certfill.json")
	data := `{"listen": ":8080", "template_dir": "/srv/certs", "sql": {"type": "mysql", "host": "db", "port": 3306},
		"redis": {"host": "cache", "port": 6379}, "jwt_secret": "from-file"}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvJWTSecret, "from-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8080" || cfg.JWTSecret != "from-env" || cfg.SQL.Type != "mysql" || cfg.AppName != "certfill" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.TokenTTL() != time.Hour || cfg.ShutdownTimeout() != 10*time.Second || cfg.Redis.TTLSec != 86400 {
		t.Errorf("defaults = %v, %v, %d", cfg.TokenTTL(), cfg.ShutdownTimeout(), cfg.Redis.TTLSec)
	}

	if err := os.WriteFile(path, []byte(`{"listen": ":8080"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("config without template_dir accepted")
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey([]byte("template"), "Ada Lovelace")
	if a != CacheKey([]byte("template"), "Ada Lovelace") {
		t.Error("CacheKey is not deterministic")
	}
	if a == CacheKey([]byte("template"), "Alan Turing") || a == CacheKey([]byte("other"), "Ada Lovelace") {
		t.Error("CacheKey collides")
	}
	// the separator keeps template and name apart
	if CacheKey([]byte("ab"), "c") == CacheKey([]byte("a"), "bc") {
		t.Error("CacheKey ignores the boundary")
	}
	if !strings.HasPrefix(a, "certfill:cert:") || len(a) != len("certfill:cert:")+64 {
		t.Errorf("CacheKey = %q", a)
	}
}
