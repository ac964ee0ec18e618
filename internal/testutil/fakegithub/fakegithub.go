// Package fakegithub provides an in-process GitHub releases API for tests.
// It implements just the endpoints shipper uses: get release by tag, create
// release, and upload release asset.
package fakegithub

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

// Release is a release stored by the fake server.
type Release struct {
	ID         int64  `json:"id"`
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
	UploadURL  string `json:"upload_url"`
}

// Asset is an uploaded release asset.
type Asset struct {
	ReleaseID   int64
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// Server is a fake GitHub API server.
type Server struct {
	*httptest.Server

	owner string
	repo  string

	mu             sync.Mutex
	nextID         int64
	releases       map[string]*Release
	assets         []Asset
	createAttempts int
	lookups        int

	// lookupStatus, when set, forces the status code returned by release lookups.
	lookupStatus int
	// createStatus, when set, forces the status code returned by creates.
	createStatus int

	holdN    int
	held     int
	released chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLookupStatus makes every release lookup fail with status.
func WithLookupStatus(status int) Option {
	return func(s *Server) { s.lookupStatus = status }
}

// WithCreateStatus makes every release create fail with status.
func WithCreateStatus(status int) Option {
	return func(s *Server) { s.createStatus = status }
}

// WithHeldLookups blocks the first n lookups of a missing release until all
// n have arrived, forcing concurrent callers into a create race.
func WithHeldLookups(n int) Option {
	return func(s *Server) {
		s.holdN = n
		s.released = make(chan struct{})
	}
}

// New starts a fake server for owner/repo. It is closed when the test ends.
func New(t testing.TB, owner, repo string, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		owner:    owner,
		repo:     repo,
		releases: make(map[string]*Release),
	}
	for _, opt := range opts {
		opt(s)
	}

	prefix := fmt.Sprintf("/repos/%s/%s/releases", owner, repo)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+prefix+"/tags/{tag...}", s.handleGet)
	mux.HandleFunc("POST "+prefix, s.handleCreate)
	mux.HandleFunc("POST "+prefix+"/{id}/assets", s.handleUpload)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// Seed stores an existing release for tag and returns it.
func (s *Server) Seed(tag string) Release {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.addLocked(tag)
}

// Release returns the stored release for tag.
func (s *Server) Release(tag string) (Release, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.releases[tag]
	if !ok {
		return Release{}, false
	}
	return *r, true
}

// ReleaseCount returns how many releases exist.
func (s *Server) ReleaseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.releases)
}

// CreateAttempts returns how many create requests were received.
func (s *Server) CreateAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createAttempts
}

// Lookups returns how many release lookups were received.
func (s *Server) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

// Assets returns the uploaded assets in arrival order.
func (s *Server) Assets() []Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Asset(nil), s.assets...)
}

func (s *Server) addLocked(tag string) *Release {
	s.nextID++
	r := &Release{
		ID:         s.nextID,
		TagName:    tag,
		Name:       tag,
		Prerelease: true,
		UploadURL:  fmt.Sprintf("%s/repos/%s/%s/releases/%d/assets{?name,label}", s.URL, s.owner, s.repo, s.nextID),
	}
	s.releases[tag] = r
	return r
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")

	s.mu.Lock()
	s.lookups++
	if s.lookupStatus != 0 {
		status := s.lookupStatus
		s.mu.Unlock()
		writeError(w, status, "forced lookup failure")
		return
	}
	rel, ok := s.releases[tag]
	var wait chan struct{}
	if !ok && s.held < s.holdN {
		s.held++
		wait = s.released
		if s.held == s.holdN {
			close(s.released)
		}
	}
	s.mu.Unlock()

	if wait != nil {
		select {
		case <-wait:
		case <-time.After(5 * time.Second):
		}
	}

	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, rel)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req Release
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.createAttempts++

	if s.createStatus != 0 {
		writeError(w, s.createStatus, "forced create failure")
		return
	}
	if _, exists := s.releases[req.TagName]; exists {
		writeError(w, http.StatusUnprocessableEntity, "Validation Failed")
		return
	}
	rel := s.addLocked(req.TagName)
	rel.Name = req.Name
	rel.Prerelease = req.Prerelease
	rel.Draft = req.Draft
	writeJSON(w, http.StatusCreated, rel)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	asset := Asset{
		ReleaseID:   id,
		Name:        r.URL.Query().Get("name"),
		ContentType: r.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}

	s.mu.Lock()
	s.assets = append(s.assets, asset)
	n := len(s.assets)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":                   n,
		"name":                 asset.Name,
		"size":                 asset.Size,
		"content_type":         asset.ContentType,
		"browser_download_url": fmt.Sprintf("%s/download/%d/%s", s.URL, id, asset.Name),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
