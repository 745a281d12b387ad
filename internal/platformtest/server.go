// Package platformtest provides an in-memory GitHub REST API for tests.
// It serves the handful of endpoints the CLI calls, records every request,
// and lets a test inject failures per route.
package platformtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Request is a request the server received.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// CommitStatus is one context of a combined status.
type CommitStatus struct {
	Context     string `json:"context"`
	State       string `json:"state"`
	Description string `json:"description,omitempty"`
	TargetURL   string `json:"target_url,omitempty"`
}

// Deployment is a deployment record as the API returns it.
type Deployment struct {
	ID          int64  `json:"id"`
	SHA         string `json:"sha"`
	Ref         string `json:"ref"`
	Task        string `json:"task,omitempty"`
	Environment string `json:"environment"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// DeploymentStatus is one status entry of a deployment.
type DeploymentStatus struct {
	State          string `json:"state"`
	Description    string `json:"description,omitempty"`
	LogURL         string `json:"log_url,omitempty"`
	EnvironmentURL string `json:"environment_url,omitempty"`
}

type injected struct {
	status int
	body   string
	times  int
}

type asset struct {
	id       int64
	name     string
	data     []byte
	redirect bool
}

type release struct {
	tag    string
	body   string
	assets []*asset
}

type reply struct {
	status int
	body   any
}

// Repo is the server-side state of one repository.
type Repo struct {
	s *Server

	fullName      string
	defaultBranch string
	refs          map[string]string
	statuses      map[string]combined
	createReply   *reply
	deployments   []Deployment
	depStatuses   map[int64][]DeploymentStatus
	release       *release
}

type combined struct {
	state    string
	statuses []CommitStatus
}

// Server is a fake GitHub API.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	repos    map[string]*Repo
	assets   map[int64]*asset
	failures map[string]*injected
	requests []Request
	nextID   int64
	// assetDelay holds back asset bodies, direct or redirected.
	assetDelay time.Duration
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		repos:    make(map[string]*Repo),
		assets:   make(map[int64]*asset),
		failures: make(map[string]*injected),
		nextID:   1,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Get("/repos/{owner}/{repo}", s.getRepo)
	r.Get("/repos/{owner}/{repo}/commits/*", s.getCommit)
	r.Post("/repos/{owner}/{repo}/deployments", s.createDeployment)
	r.Get("/repos/{owner}/{repo}/deployments", s.listDeployments)
	r.Get("/repos/{owner}/{repo}/deployments/{id}/statuses", s.listDeploymentStatuses)
	r.Get("/repos/{owner}/{repo}/releases/latest", s.latestRelease)
	r.Get("/repos/{owner}/{repo}/releases/assets/{id}", s.downloadAsset)
	r.Get("/storage/{id}", s.serveStorage)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the base URL to hand to an API client.
func (s *Server) APIURL() string {
	return s.URL + "/"
}

// AddRepo registers a repository.
func (s *Server) AddRepo(fullName, defaultBranch string) *Repo {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Repo{
		s:             s,
		fullName:      fullName,
		defaultBranch: defaultBranch,
		refs:          make(map[string]string),
		statuses:      make(map[string]combined),
		depStatuses:   make(map[int64][]DeploymentStatus),
	}
	s.repos[fullName] = r
	return r
}

// SetNextDeploymentID sets the ID the next created deployment receives.
func (s *Server) SetNextDeploymentID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = id
}

// DelayAssets makes every asset download wait d before answering.
func (s *Server) DelayAssets(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assetDelay = d
}

// Fail makes the next times requests matching method and path prefix
// answer status with a JSON message. times <= 0 fails every request.
func (s *Server) Fail(method, pathPrefix string, status int, message string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+pathPrefix] = &injected{status: status, body: message, times: times}
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched method and path prefix.
func (s *Server) Count(method, pathPrefix string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, pathPrefix) {
			n++
		}
	}
	return n
}

// CreatedDeployments returns the decoded bodies of every create call.
func (s *Server) CreatedDeployments() []map[string]any {
	var out []map[string]any
	for _, r := range s.Requests() {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.Path, "/deployments") {
			continue
		}
		var body map[string]any
		if err := json.Unmarshal(r.Body, &body); err == nil {
			out = append(out, body)
		}
	}
	return out
}

// SetRef points ref at sha.
func (r *Repo) SetRef(ref, sha string) *Repo {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.refs[ref] = sha
	return r
}

// SetStatus sets the combined status of ref.
func (r *Repo) SetStatus(ref, state string, statuses ...CommitStatus) *Repo {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.statuses[ref] = combined{state: state, statuses: statuses}
	return r
}

// RespondToCreate makes create calls answer status with body instead of
// creating a record.
func (r *Repo) RespondToCreate(status int, body any) *Repo {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.createReply = &reply{status: status, body: body}
	return r
}

// AddDeployment seeds an existing deployment. Later additions are newer.
func (r *Repo) AddDeployment(d Deployment) *Repo {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.deployments = append([]Deployment{d}, r.deployments...)
	return r
}

// SetDeploymentStatuses sets the statuses of deployment id, newest first.
func (r *Repo) SetDeploymentStatuses(id int64, statuses ...DeploymentStatus) *Repo {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.depStatuses[id] = statuses
	return r
}

// SetRelease publishes the latest release.
func (r *Repo) SetRelease(tag, body string) *Repo {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.release = &release{tag: tag, body: body}
	return r
}

// AddAsset attaches a file to the latest release and returns its ID. With
// redirect set, the asset endpoint answers 302 to a storage URL, the way
// the real API does.
func (r *Repo) AddAsset(name string, data []byte, redirect bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.release == nil {
		r.release = &release{tag: "v0.0.0"}
	}
	id := int64(1000 + len(r.s.assets))
	a := &asset{id: id, name: name, data: data, redirect: redirect}
	r.release.assets = append(r.release.assets, a)
	r.s.assets[id] = a
	return id
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Header: req.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, req)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		var hit *injected
		keys := make([]string, 0, len(s.failures))
		for k := range s.failures {
			keys = append(keys, k)
		}
		// longest prefix wins
		sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
		for _, k := range keys {
			if strings.HasPrefix(req.Method+" "+req.URL.Path, k) {
				f := s.failures[k]
				hit = f
				if f.times > 0 {
					f.times--
					if f.times == 0 {
						delete(s.failures, k)
					}
				}
				break
			}
		}
		s.mu.Unlock()

		if hit != nil {
			writeJSON(w, hit.status, map[string]string{"message": hit.body})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) repo(w http.ResponseWriter, req *http.Request) *Repo {
	name := chi.URLParam(req, "owner") + "/" + chi.URLParam(req, "repo")
	s.mu.Lock()
	r := s.repos[name]
	s.mu.Unlock()
	if r == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	}
	return r
}

func (s *Server) getRepo(w http.ResponseWriter, req *http.Request) {
	r := s.repo(w, req)
	if r == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"full_name":      r.fullName,
		"default_branch": r.defaultBranch,
	})
}

func (s *Server) getCommit(w http.ResponseWriter, req *http.Request) {
	r := s.repo(w, req)
	if r == nil {
		return
	}
	rest, err := url.PathUnescape(chi.URLParam(req, "*"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ref, ok := strings.CutSuffix(rest, "/status"); ok {
		c, found := r.statuses[ref]
		if !found {
			c = combined{state: "pending"}
		}
		statuses := c.statuses
		if statuses == nil {
			statuses = []CommitStatus{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":       c.state,
			"sha":         r.refs[ref],
			"total_count": len(statuses),
			"statuses":    statuses,
		})
		return
	}

	sha, ok := r.refs[rest]
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "No commit found for SHA: " + rest})
		return
	}
	if strings.Contains(req.Header.Get("Accept"), "sha") {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, sha)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sha": sha})
}

func (s *Server) createDeployment(w http.ResponseWriter, req *http.Request) {
	r := s.repo(w, req)
	if r == nil {
		return
	}

	var body struct {
		Ref         string `json:"ref"`
		Task        string `json:"task"`
		Environment string `json:"environment"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.createReply != nil {
		writeJSON(w, r.createReply.status, r.createReply.body)
		return
	}

	sha := body.Ref
	if resolved, ok := r.refs[body.Ref]; ok {
		sha = resolved
	}
	d := Deployment{
		ID:          s.nextID,
		SHA:         sha,
		Ref:         body.Ref,
		Task:        body.Task,
		Environment: body.Environment,
		Description: body.Description,
	}
	s.nextID++
	r.deployments = append([]Deployment{d}, r.deployments...)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) listDeployments(w http.ResponseWriter, req *http.Request) {
	r := s.repo(w, req)
	if r == nil {
		return
	}
	env := req.URL.Query().Get("environment")
	perPage, _ := strconv.Atoi(req.URL.Query().Get("per_page"))

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Deployment{}
	for _, d := range r.deployments {
		if env != "" && d.Environment != env {
			continue
		}
		out = append(out, d)
		if perPage > 0 && len(out) == perPage {
			break
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listDeploymentStatuses(w http.ResponseWriter, req *http.Request) {
	r := s.repo(w, req)
	if r == nil {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := r.depStatuses[id]
	if statuses == nil {
		statuses = []DeploymentStatus{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) latestRelease(w http.ResponseWriter, req *http.Request) {
	r := s.repo(w, req)
	if r == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.release == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}

	assets := make([]map[string]any, 0, len(r.release.assets))
	for _, a := range r.release.assets {
		assets = append(assets, map[string]any{
			"id":                   a.id,
			"name":                 a.name,
			"size":                 len(a.data),
			"browser_download_url": fmt.Sprintf("%s/%s/releases/download/%s/%s", s.URL, r.fullName, r.release.tag, a.name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tag_name": r.release.tag,
		"name":     r.release.tag,
		"body":     r.release.body,
		"assets":   assets,
	})
}

func (s *Server) downloadAsset(w http.ResponseWriter, req *http.Request) {
	if s.repo(w, req) == nil {
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)

	s.mu.Lock()
	a := s.assets[id]
	delay := s.assetDelay
	s.mu.Unlock()

	if a != nil && !a.redirect && !wait(req, delay) {
		return
	}

	switch {
	case a == nil:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	case a.redirect:
		http.Redirect(w, req, fmt.Sprintf("%s/storage/%d", s.URL, id), http.StatusFound)
	default:
		writeBytes(w, a.data)
	}
}

func (s *Server) serveStorage(w http.ResponseWriter, req *http.Request) {
	if req.Header.Get("Authorization") != "" {
		http.Error(w, "only one auth mechanism allowed", http.StatusBadRequest)
		return
	}
	id, _ := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)

	s.mu.Lock()
	a := s.assets[id]
	delay := s.assetDelay
	s.mu.Unlock()

	if a == nil {
		http.NotFound(w, req)
		return
	}
	if !wait(req, delay) {
		return
	}
	writeBytes(w, a.data)
}

// wait sleeps for d unless the client goes away first.
func wait(req *http.Request, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-req.Context().Done():
		return false
	}
}

func writeBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
