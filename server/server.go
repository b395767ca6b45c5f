// Package server is the certificate download service: registrants log in
// with their id, mobile number or email and download a certificate
// generated from the template matching their attendance.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/lvillar/certfill"
	"github.com/lvillar/certfill/registry"
)

// Server serves the HTTP API.
type Server struct {
	store       registry.Store
	editor      *certfill.Editor
	templateDir string
	cache       Cache // optional
	cacheTTL    time.Duration
	secret      []byte // empty disables tokens
	tokenTTL    time.Duration
	logger      *log.Logger
	now         func() time.Time
}

// New returns a server for cfg. cache may be nil.
func New(cfg *Config, store registry.Store, ed *certfill.Editor, cache Cache, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		store:       store,
		editor:      ed,
		templateDir: cfg.TemplateDir,
		cache:       cache,
		secret:      []byte(cfg.JWTSecret),
		tokenTTL:    cfg.TokenTTL(),
		logger:      logger,
		now:         time.Now,
	}
	if cfg.Redis != nil {
		s.cacheTTL = time.Duration(cfg.Redis.TTLSec) * time.Second
	}
	return s
}

// Handler returns the routes wrapped in panic recovery.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /certificate/{id}", s.handleCertificate)
	return s.recoverWrapper(mux)
}

func (s *Server) recoverWrapper(inner http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Printf("[PANIC] recovered: %v\n%s", rec, debug.Stack())
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		inner.ServeHTTP(w, r)
	})
}

// Message is the JSON body of error responses.
type Message struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("[ERROR] writing JSON to response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, Message{Type: "error", Message: msg})
}

func (s *Server) writePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Printf("[ERROR] writing PDF to response: %v", err)
	}
}

// LoginEntry is a registrant in the login response, with a download token
// when tokens are enabled.
type LoginEntry struct {
	registry.Registrant
	Token string `json:"token,omitempty"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Registrants []LoginEntry `json:"registrants"`
}

// identifier reads the login identifier from a JSON or form body.
func identifier(w http.ResponseWriter, r *http.Request) string {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body struct {
			Identifier string `json:"identifier"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
			return ""
		}
		return strings.TrimSpace(body.Identifier)
	}
	return strings.TrimSpace(r.FormValue("identifier"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ident := identifier(w, r)
	if ident == "" {
		s.writeError(w, http.StatusBadRequest, "identifier is required")
		return
	}

	found, err := s.store.FindByIdentifier(r.Context(), ident)
	if errors.Is(err, registry.ErrNotFound) {
		s.writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		s.logger.Printf("[ERROR] login lookup: %v", err)
		s.writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	resp := LoginResponse{Registrants: make([]LoginEntry, len(found))}
	for i, reg := range found {
		resp.Registrants[i].Registrant = reg
		if len(s.secret) == 0 {
			continue
		}
		token, err := IssueToken(s.secret, reg.ID, s.tokenTTL, s.now())
		if err != nil {
			s.logger.Printf("[ERROR] issuing token for %d: %v", reg.ID, err)
			s.writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp.Registrants[i].Token = token
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func bearer(r *http.Request) string {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if len(s.secret) > 0 {
		if err := VerifyToken(s.secret, bearer(r), id, s.now()); err != nil {
			s.logger.Printf("[WARN] certificate %d: %v", id, err)
			s.writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
	}

	reg, err := s.store.FindByID(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.logger.Printf("[ERROR] certificate %d: lookup: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "unexpected server error while generating certificate")
		return
	}

	file, err := registry.TemplateFor(reg)
	if err != nil {
		s.writeError(w, http.StatusForbidden, "no attendance recorded, certificate could not be provided")
		return
	}

	name := certfill.FormatName(reg.Name, "")
	data, err := s.certificate(r, filepath.Join(s.templateDir, file), name)
	if err != nil {
		s.logger.Printf("[ERROR] certificate %d: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "error generating certificate")
		return
	}
	s.writePDF(w, certfill.OutputFilename(name), data)
}

// certificate returns the filled template, from the cache when possible.
// Cache failures are logged and otherwise ignored.
func (s *Server) certificate(r *http.Request, templatePath, name string) ([]byte, error) {
	template, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("registrant has no name")
	}

	var key string
	if s.cache != nil {
		key = CacheKey(template, name)
		data, found, err := s.cache.Get(r.Context(), key)
		if err != nil {
			s.logger.Printf("[WARN] cache get: %v", err)
		} else if found {
			return data, nil
		}
	}

	out, err := s.editor.Edit(template, name)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(r.Context(), key, out.PDF, s.cacheTTL); err != nil {
			s.logger.Printf("[WARN] cache set: %v", err)
		}
	}
	return out.PDF, nil
}
