// Package portaltest provides an in-process fake of the document portal
// for tests.
package portaltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/yndnr/ncabridge-go/internal/portal"
)

// Server is a fake portal. Protected routes require the uid cookie.
type Server struct {
	srv *httptest.Server

	mu        sync.Mutex
	nonce     string
	userID    int64
	verify    func(signature, nonce string) bool
	nextDocID int64
	documents map[int64]string
	created   []portal.CreateDocumentRequest
	cosigned  []portal.AddSignRequest
	partners  []portal.Partner
	pending   []portal.DocumentSummary
	signed    []portal.DocumentSummary
	failNext  map[string]int
}

// NewServer starts a fake portal that is closed when the test ends.
// Check accepts any non-empty signature for the current nonce until
// SetVerifier says otherwise.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		nonce:     "nonce-1",
		userID:    42,
		nextDocID: 100,
		documents: make(map[int64]string),
		failNext:  make(map[string]int),
	}
	s.verify = func(signature, nonce string) bool {
		return signature != "" && nonce == s.nonce
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /get", s.handleNonce)
	mux.HandleFunc("POST /check", s.handleCheck)
	mux.HandleFunc("POST /documents", s.requireUser(s.handleCreate))
	mux.HandleFunc("GET /documents/partners", s.requireUser(s.handlePartners))
	mux.HandleFunc("GET /documents/pending", s.requireUser(s.handleList(func() []portal.DocumentSummary { return s.pending })))
	mux.HandleFunc("GET /documents/signed", s.requireUser(s.handleList(func() []portal.DocumentSummary { return s.signed })))
	mux.HandleFunc("GET /sign/getbase64", s.requireUser(s.handleContent))
	mux.HandleFunc("POST /sign/addsign", s.requireUser(s.handleAddSign))

	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the base URL of the fake portal.
func (s *Server) URL() string { return s.srv.URL }

// Nonce returns the nonce the portal hands out.
func (s *Server) Nonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce
}

// SetNonce changes the nonce handed out by POST /get. Empty simulates a
// broken upstream.
func (s *Server) SetNonce(n string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonce = n
}

// SetVerifier replaces the signature check used by POST /check.
func (s *Server) SetVerifier(fn func(signature, nonce string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verify = fn
}

// UserID returns the ID assigned on successful check.
func (s *Server) UserID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// PutDocument stores content under id for GET /sign/getbase64.
func (s *Server) PutDocument(id int64, fileBase64 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[id] = fileBase64
}

// SetPartners sets the partner search results.
func (s *Server) SetPartners(p []portal.Partner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.partners = p
}

// SetPending sets the pending documents list.
func (s *Server) SetPending(docs []portal.DocumentSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = docs
}

// SetSigned sets the signed documents list.
func (s *Server) SetSigned(docs []portal.DocumentSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signed = docs
}

// FailNext makes the next n requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[path] = n
}

// Created returns the documents uploaded so far.
func (s *Server) Created() []portal.CreateDocumentRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]portal.CreateDocumentRequest(nil), s.created...)
}

// CoSigned returns the co-signatures submitted so far.
func (s *Server) CoSigned() []portal.AddSignRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]portal.AddSignRequest(nil), s.cosigned...)
}

func (s *Server) handleNonce(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nonce": s.Nonce()})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}

	var body struct {
		Signature string `json:"signature"`
		Nonce     string `json:"nonce"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Signature == "" || body.Nonce == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []string{"body", "signature"}, "msg": "field required"}},
		})
		return
	}

	s.mu.Lock()
	ok := s.verify(body.Signature, body.Nonce)
	uid := s.userID
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "signature verification failed"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     portal.SessionCookie,
		Value:    strconv.FormatInt(uid, 10),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"user_id": uid})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}

	var req portal.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.FileName == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "file_name is required"})
		return
	}

	s.mu.Lock()
	s.nextDocID++
	id := s.nextDocID
	s.documents[id] = req.FileBase64
	s.created = append(s.created, req)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"document_id": id})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}

	id, err := strconv.ParseInt(r.URL.Query().Get("document_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "document_id must be an integer"})
		return
	}

	s.mu.Lock()
	content, ok := s.documents[id]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "document not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_id": id, "file_base64": content})
}

func (s *Server) handleAddSign(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}

	var req portal.AddSignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	s.mu.Lock()
	s.cosigned = append(s.cosigned, req)
	uid := s.userID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, portal.AddSignResult{
		OK:            true,
		UserID:        uid,
		DocumentID:    req.DocumentID,
		FileBase64Len: len(req.FileBase64),
		SignatureLen:  len(req.Signature),
	})
}

func (s *Server) handlePartners(w http.ResponseWriter, r *http.Request) {
	if s.failed(w, r) {
		return
	}

	s.mu.Lock()
	results := append([]portal.Partner{}, s.partners...)
	s.mu.Unlock()

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit < len(results) {
		results = results[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleList(get func() []portal.DocumentSummary) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.failed(w, r) {
			return
		}
		s.mu.Lock()
		docs := append([]portal.DocumentSummary{}, get()...)
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	}
}

func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(portal.SessionCookie); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) failed(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	n := s.failNext[r.URL.Path]
	if n > 0 {
		s.failNext[r.URL.Path] = n - 1
	}
	s.mu.Unlock()

	if n > 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "internal failure"})
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
