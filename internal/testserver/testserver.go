// Package testserver runs a fake identity and compute cloud for tests.
package testserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Paths of the fake services, relative to the server URL.
const (
	IdentityPath = "/identity/v3"
	ComputePath  = "/compute/v2.1"

	DefaultUsername  = "demo"
	DefaultPassword  = "secret"
	DefaultAppCredID = "app-cred-id"
	DefaultAppSecret = "app-cred-secret"
	DefaultRegion    = "RegionOne"
	NoAuthToken      = "no-auth"

	// MaxMicroversion is advertised by the compute version document.
	MaxMicroversion = "2.79"
)

// Instance is a server held by the fake compute service.
type Instance struct {
	ID         string
	Name       string
	Status     string
	Created    time.Time
	FlavorID   string
	ImageID    string
	TenantID   string
	UserID     string
	AccessIPv4 string
	AccessIPv6 string
	Metadata   map[string]string
}

// Flavor is a flavor held by the fake compute service.
type Flavor struct {
	ID    string
	Name  string
	RAM   int
	VCPUs int
	Disk  int
}

// RecordedRequest is a request received by the compute service.
type RecordedRequest struct {
	Method      string
	EscapedPath string
	RawQuery    string
	Token       string
	RequestID   string
	APIVersion  string
}

// Server is a fake cloud listening on a local port.
type Server struct {
	*httptest.Server

	mutex         sync.Mutex
	instances     []Instance
	flavors       []Flavor
	issued        map[string]bool
	tokenTTL      time.Duration
	allowNoAuth   bool
	maxLimit      int
	tokenRequests int
	requests      []RecordedRequest
	authBodies    []map[string]interface{}
}

// Option configures a Server.
type Option func(*Server)

// WithInstances replaces the default servers.
func WithInstances(instances ...Instance) Option {
	return func(s *Server) {
		s.instances = instances
	}
}

// WithFlavors replaces the default flavors.
func WithFlavors(flavors ...Flavor) Option {
	return func(s *Server) {
		s.flavors = flavors
	}
}

// WithTokenTTL sets the lifetime of issued tokens. Zero omits expires_at.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.tokenTTL = ttl
	}
}

// WithMaxLimit caps every list page at limit items, whatever the request
// asks for, the way Nova applies max_limit.
func WithMaxLimit(limit int) Option {
	return func(s *Server) {
		s.maxLimit = limit
	}
}

// WithoutNoAuth rejects the "no-auth" token.
func WithoutNoAuth() Option {
	return func(s *Server) {
		s.allowNoAuth = false
	}
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	server := &Server{
		instances:   DefaultInstances(),
		flavors:     DefaultFlavors(),
		issued:      make(map[string]bool),
		tokenTTL:    time.Hour,
		allowNoAuth: true,
	}

	for _, opt := range opts {
		opt(server)
	}

	server.Server = httptest.NewServer(server.router())
	t.Cleanup(server.Close)

	return server
}

// DefaultInstances returns three servers created one hour apart.
func DefaultInstances() []Instance {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	return []Instance{
		{
			ID: "22c91117-08de-4894-9aa9-6ef382400985", Name: "web-1", Status: "ACTIVE", Created: base,
			FlavorID: "1", ImageID: "img-1", TenantID: "tenant-1", UserID: "user-1",
			AccessIPv4: "10.0.0.11", Metadata: map[string]string{"role": "web"},
		},
		{
			ID: "5a6b7c8d-0000-4000-8000-000000000002", Name: "db-1", Status: "SHUTOFF", Created: base.Add(time.Hour),
			FlavorID: "2", ImageID: "img-1", TenantID: "tenant-1", UserID: "user-1",
			AccessIPv4: "10.0.0.12",
		},
		{
			ID: "9f8e7d6c-0000-4000-8000-000000000003", Name: "app-1", Status: "ACTIVE", Created: base.Add(2 * time.Hour),
			FlavorID: "1", ImageID: "img-2", TenantID: "tenant-1", UserID: "user-2",
			AccessIPv6: "fd00::13",
		},
	}
}

// DefaultFlavors returns two flavors.
func DefaultFlavors() []Flavor {
	return []Flavor{
		{ID: "1", Name: "m1.tiny", RAM: 512, VCPUs: 1, Disk: 1},
		{ID: "2", Name: "m1.small", RAM: 2048, VCPUs: 1, Disk: 20},
	}
}

// IdentityURL returns the identity v3 URL.
func (s *Server) IdentityURL() string {
	return s.URL + IdentityPath
}

// ComputeURL returns the compute endpoint URL.
func (s *Server) ComputeURL() string {
	return s.URL + ComputePath
}

// TokenRequests returns how many tokens were requested.
func (s *Server) TokenRequests() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.tokenRequests
}

// Requests returns the compute requests received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	requests := make([]RecordedRequest, len(s.requests))
	copy(requests, s.requests)

	return requests
}

// LastRequest returns the most recent compute request.
func (s *Server) LastRequest() RecordedRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.requests) == 0 {
		return RecordedRequest{}
	}

	return s.requests[len(s.requests)-1]
}

// AuthBodies returns the decoded bodies of token requests.
func (s *Server) AuthBodies() []map[string]interface{} {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]map[string]interface{}(nil), s.authBodies...)
}

// RevokeTokens makes every issued token invalid.
func (s *Server) RevokeTokens() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.issued = make(map[string]bool)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post(IdentityPath+"/auth/tokens", s.handleIssueToken)

	r.Get("/compute", s.handleVersions)
	r.Get("/compute/", s.handleVersions)

	r.Route(ComputePath, func(r chi.Router) {
		r.Use(s.record)
		r.Get("/", s.handleVersion)

		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)

			r.Get("/servers", s.handleListServers)
			r.Get("/servers/{id}", s.handleGetServer)
			r.Get("/flavors", s.handleListFlavors)
			r.Get("/flavors/{id}", s.handleGetFlavor)
		})
	})

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mutex.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:      r.Method,
			EscapedPath: r.URL.EscapedPath(),
			RawQuery:    r.URL.RawQuery,
			Token:       r.Header.Get("X-Auth-Token"),
			RequestID:   r.Header.Get("X-OpenStack-Request-ID"),
			APIVersion:  r.Header.Get("OpenStack-API-Version"),
		})
		s.mutex.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")

		s.mutex.Lock()
		valid := s.issued[token] || (s.allowNoAuth && token == NoAuthToken)
		s.mutex.Unlock()

		if !valid {
			writeFault(w, http.StatusUnauthorized, "unauthorized", "The request you have made requires authentication.")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}

	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		writeFault(w, http.StatusBadRequest, "error", "malformed request body")

		return
	}

	s.mutex.Lock()
	s.tokenRequests++
	s.authBodies = append(s.authBodies, body)
	sequence := s.tokenRequests
	s.mutex.Unlock()

	if !validCredentials(body) {
		writeFault(w, http.StatusUnauthorized, "error", "The request you have made requires authentication.")

		return
	}

	token := fmt.Sprintf("token-%d", sequence)

	s.mutex.Lock()
	s.issued[token] = true
	s.mutex.Unlock()

	now := time.Now().UTC()
	tokenBody := map[string]interface{}{
		"issued_at": now.Format(time.RFC3339),
		"methods":   []string{"password"},
		"catalog":   s.catalog(),
	}

	if s.tokenTTL > 0 {
		tokenBody["expires_at"] = now.Add(s.tokenTTL).Format("2006-01-02T15:04:05.000000Z")
	}

	w.Header().Set("X-Subject-Token", token)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"token": tokenBody})
}

func (s *Server) catalog() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"id":   "compute-id",
			"type": "compute",
			"name": "nova",
			"endpoints": []map[string]interface{}{
				{"id": "c1", "interface": "public", "region": DefaultRegion, "region_id": DefaultRegion, "url": s.ComputeURL()},
				{"id": "c2", "interface": "internal", "region": DefaultRegion, "region_id": DefaultRegion, "url": s.URL + "/internal/compute/v2.1"},
			},
		},
		{
			"id":   "identity-id",
			"type": "identity",
			"name": "keystone",
			"endpoints": []map[string]interface{}{
				{"id": "i1", "interface": "public", "region": DefaultRegion, "region_id": DefaultRegion, "url": s.IdentityURL()},
			},
		},
	}
}

func validCredentials(body map[string]interface{}) bool {
	identity := dig(body, "auth", "identity")

	if password := dig(identity, "password", "user"); password != nil {
		return password["name"] == DefaultUsername && password["password"] == DefaultPassword
	}

	if appCred := dig(identity, "application_credential"); appCred != nil {
		return appCred["id"] == DefaultAppCredID && appCred["secret"] == DefaultAppSecret
	}

	return false
}

func dig(doc map[string]interface{}, keys ...string) map[string]interface{} {
	current := doc

	for _, key := range keys {
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return nil
		}

		current = next
	}

	return current
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"versions": []map[string]interface{}{
			{"id": "v2.0", "status": "SUPPORTED", "version": "", "min_version": "", "links": selfLink(s.URL + "/compute/v2/")},
			s.versionDoc(),
		},
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"version": s.versionDoc()})
}

func (s *Server) versionDoc() map[string]interface{} {
	return map[string]interface{}{
		"id":          "v2.1",
		"status":      "CURRENT",
		"version":     MaxMicroversion,
		"min_version": "2.1",
		"updated":     "2013-07-23T11:33:21Z",
		"links":       selfLink(s.ComputeURL() + "/"),
	}
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	instances := append([]Instance(nil), s.instances...)
	s.mutex.Unlock()

	page, ok := paginate(w, r, s.maxLimit, instances, func(i Instance) string { return i.ID }, instanceSortValue)
	if !ok {
		return
	}

	summaries := make([]map[string]interface{}, 0, len(page))
	for _, instance := range page {
		summaries = append(summaries, map[string]interface{}{
			"id":    instance.ID,
			"name":  instance.Name,
			"links": selfLink(s.ComputeURL() + "/servers/" + instance.ID),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"servers": summaries})
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeFault(w, http.StatusBadRequest, "badRequest", "malformed server id")

		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, instance := range s.instances {
		if instance.ID == id {
			writeJSON(w, http.StatusOK, map[string]interface{}{"server": s.serverDetail(instance)})

			return
		}
	}

	writeFault(w, http.StatusNotFound, "itemNotFound", fmt.Sprintf("Instance %s could not be found.", id))
}

func (s *Server) serverDetail(instance Instance) map[string]interface{} {
	metadata := instance.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	addresses := map[string]interface{}{}
	if instance.AccessIPv4 != "" {
		addresses["private"] = []map[string]interface{}{
			{"addr": instance.AccessIPv4, "version": 4, "OS-EXT-IPS:type": "fixed"},
		}
	}

	return map[string]interface{}{
		"id":         instance.ID,
		"name":       instance.Name,
		"status":     instance.Status,
		"created":    instance.Created.Format(time.RFC3339),
		"updated":    instance.Created.Add(time.Minute).Format(time.RFC3339),
		"tenant_id":  instance.TenantID,
		"user_id":    instance.UserID,
		"accessIPv4": instance.AccessIPv4,
		"accessIPv6": instance.AccessIPv6,
		"addresses":  addresses,
		"metadata":   metadata,
		"hostId":     "host-" + instance.TenantID,
		"flavor":     map[string]interface{}{"id": instance.FlavorID, "links": selfLink(s.ComputeURL() + "/flavors/" + instance.FlavorID)},
		"image":      map[string]interface{}{"id": instance.ImageID, "links": selfLink(s.URL + "/images/" + instance.ImageID)},
		"links":      selfLink(s.ComputeURL() + "/servers/" + instance.ID),
	}
}

func (s *Server) handleListFlavors(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	flavors := append([]Flavor(nil), s.flavors...)
	s.mutex.Unlock()

	page, ok := paginate(w, r, s.maxLimit, flavors, func(f Flavor) string { return f.ID }, flavorSortValue)
	if !ok {
		return
	}

	summaries := make([]map[string]interface{}, 0, len(page))
	for _, flavor := range page {
		summaries = append(summaries, map[string]interface{}{
			"id":    flavor.ID,
			"name":  flavor.Name,
			"links": selfLink(s.ComputeURL() + "/flavors/" + flavor.ID),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"flavors": summaries})
}

func (s *Server) handleGetFlavor(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(chi.URLParam(r, "id"))
	if err != nil {
		writeFault(w, http.StatusBadRequest, "badRequest", "malformed flavor id")

		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, flavor := range s.flavors {
		if flavor.ID == id {
			writeJSON(w, http.StatusOK, map[string]interface{}{"flavor": map[string]interface{}{
				"id":    flavor.ID,
				"name":  flavor.Name,
				"ram":   flavor.RAM,
				"vcpus": flavor.VCPUs,
				"disk":  flavor.Disk,
				"links": selfLink(s.ComputeURL() + "/flavors/" + flavor.ID),
			}})

			return
		}
	}

	writeFault(w, http.StatusNotFound, "itemNotFound", fmt.Sprintf("Flavor %s could not be found.", id))
}

func instanceSortValue(instance Instance, key string) (string, bool) {
	switch key {
	case "name", "display_name":
		return instance.Name, true
	case "created", "created_at":
		return instance.Created.Format(time.RFC3339), true
	case "status", "vm_state":
		return instance.Status, true
	case "uuid", "id":
		return instance.ID, true
	default:
		return "", false
	}
}

func flavorSortValue(flavor Flavor, key string) (string, bool) {
	switch key {
	case "name":
		return flavor.Name, true
	case "flavorid", "id":
		return flavor.ID, true
	case "memory_mb", "ram":
		return fmt.Sprintf("%010d", flavor.RAM), true
	default:
		return "", false
	}
}

// paginate applies sort_key/sort_dir, marker and limit the way Nova does.
// A positive maxLimit caps the page.
func paginate[T any](
	w http.ResponseWriter,
	r *http.Request,
	maxLimit int,
	items []T,
	id func(T) string,
	sortValue func(T, string) (string, bool),
) ([]T, bool) {
	query := r.URL.Query()
	keys := query["sort_key"]
	dirs := query["sort_dir"]

	var zero T

	for i, key := range keys {
		if _, ok := sortValue(zero, key); !ok {
			writeFault(w, http.StatusBadRequest, "badRequest", fmt.Sprintf("Invalid sort_key %s", key))

			return nil, false
		}

		if i < len(dirs) && dirs[i] != "asc" && dirs[i] != "desc" {
			writeFault(w, http.StatusBadRequest, "badRequest", fmt.Sprintf("Invalid sort_dir %s", dirs[i]))

			return nil, false
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		for i, key := range keys {
			left, _ := sortValue(items[a], key)
			right, _ := sortValue(items[b], key)

			if left == right {
				continue
			}

			if i < len(dirs) && dirs[i] == "desc" {
				return left > right
			}

			return left < right
		}

		return false
	})

	if markers := query["marker"]; len(markers) > 0 {
		found := -1

		for i, item := range items {
			if id(item) == markers[0] {
				found = i

				break
			}
		}

		if found < 0 {
			writeFault(w, http.StatusBadRequest, "badRequest", fmt.Sprintf("marker [%s] not found", markers[0]))

			return nil, false
		}

		items = items[found+1:]
	}

	if limits := query["limit"]; len(limits) > 0 {
		limit, err := strconv.Atoi(limits[0])
		if err != nil || limit < 0 {
			writeFault(w, http.StatusBadRequest, "badRequest", "limit param must be an integer")

			return nil, false
		}

		if limit < len(items) {
			items = items[:limit]
		}
	}

	if maxLimit > 0 && maxLimit < len(items) {
		items = items[:maxLimit]
	}

	return items, true
}

func selfLink(href string) []map[string]string {
	return []map[string]string{{"href": href, "rel": "self"}}
}

func writeFault(w http.ResponseWriter, status int, name, message string) {
	writeJSON(w, status, map[string]interface{}{
		name: map[string]interface{}{"message": message, "code": status},
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
