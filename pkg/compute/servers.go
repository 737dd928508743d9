// Package compute provides typed access to the compute (Nova v2.1) API.
package compute

import (
	"context"
	"time"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/session"
)

// ServerSortKey is a field servers can be sorted by.
type ServerSortKey string

// Sort keys accepted by the servers collection.
const (
	ServerSortByName    ServerSortKey = "display_name"
	ServerSortByCreated ServerSortKey = "created_at"
	ServerSortByStatus  ServerSortKey = "vm_state"
	ServerSortByID      ServerSortKey = "uuid"
)

// ServerListRequest is a one-page request for servers.
type ServerListRequest = session.ListRequest[ServerSummary]

// NewService returns a wrapper for the compute service of s.
func NewService(s *session.Session) session.ServiceWrapper {
	return session.NewServiceWrapper(s, constants.ServiceTypeCompute)
}

// ServerManager gives access to servers.
type ServerManager struct {
	service session.ServiceWrapper
}

// NewServerManager creates a manager on top of service.
func NewServerManager(service session.ServiceWrapper) *ServerManager {
	return &ServerManager{service: service}
}

// Servers creates a server manager for the compute service of s.
func Servers(s *session.Session) *ServerManager {
	return NewServerManager(NewService(s))
}

// List starts a list request with no marker, limit or sort.
func (m *ServerManager) List() ServerListRequest {
	return session.NewListRequest[ServerSummary](m.service, func() *serversRoot { return &serversRoot{} }, "servers")
}

// Get fetches one server by id.
func (m *ServerManager) Get(ctx context.Context, id string) (*Server, error) {
	return getServer(ctx, m.service, id)
}

// All fetches every server, walking pages of pageSize items.
func (m *ServerManager) All(ctx context.Context, pageSize int) ([]ServerSummary, error) {
	return session.FetchAll(ctx, m.List().WithLimit(pageSize), ServerSummary.ID)
}

func getServer(ctx context.Context, service session.ServiceWrapper, id string) (*Server, error) {
	var root serverRoot

	err := service.Get(ctx, []string{"servers", id}, nil, &root)
	if err != nil {
		return nil, err
	}

	return &Server{record: *root.Server, service: service}, nil
}

// ServerSummary is a server as returned by the list call.
type ServerSummary struct {
	record  summaryRecord
	service session.ServiceWrapper
}

// ID returns the server id.
func (s ServerSummary) ID() string {
	return s.record.ID
}

// Name returns the server name.
func (s ServerSummary) Name() string {
	return s.record.Name
}

// Links returns the resource links.
func (s ServerSummary) Links() osapi.Links {
	return s.record.Links
}

// Details fetches the full server. Every call is a new request.
func (s ServerSummary) Details(ctx context.Context) (*Server, error) {
	return getServer(ctx, s.service, s.record.ID)
}

// Server is a snapshot of a server's full representation.
type Server struct {
	record  serverRecord
	service session.ServiceWrapper
}

// ID returns the server id.
func (s *Server) ID() string {
	return s.record.ID
}

// Name returns the server name.
func (s *Server) Name() string {
	return s.record.Name
}

// Status returns the server status, e.g. ACTIVE.
func (s *Server) Status() string {
	return s.record.Status
}

// Created returns the creation time.
func (s *Server) Created() time.Time {
	return s.record.Created
}

// Updated returns the last update time.
func (s *Server) Updated() time.Time {
	return s.record.Updated
}

// TenantID returns the owning project id.
func (s *Server) TenantID() string {
	return s.record.TenantID
}

// UserID returns the id of the user who created the server.
func (s *Server) UserID() string {
	return s.record.UserID
}

// HostID returns the obfuscated host id.
func (s *Server) HostID() string {
	return s.record.HostID
}

// AccessIPv4 returns the IPv4 access address.
func (s *Server) AccessIPv4() string {
	return s.record.AccessIPv4
}

// AccessIPv6 returns the IPv6 access address.
func (s *Server) AccessIPv6() string {
	return s.record.AccessIPv6
}

// Addresses returns the addresses per network.
func (s *Server) Addresses() map[string][]Address {
	return s.record.Addresses
}

// Metadata returns the server metadata.
func (s *Server) Metadata() map[string]string {
	return s.record.Metadata
}

// FlavorID returns the flavor id.
func (s *Server) FlavorID() string {
	return s.record.Flavor.ID
}

// ImageID returns the image id, or an empty string for volume-backed servers.
func (s *Server) ImageID() string {
	return s.record.Image.ID
}

// Links returns the resource links.
func (s *Server) Links() osapi.Links {
	return s.record.Links
}

// Flavor fetches the server's flavor.
func (s *Server) Flavor(ctx context.Context) (*Flavor, error) {
	return getFlavor(ctx, s.service, s.record.Flavor.ID)
}

// Refresh fetches the current state of the server as a new value.
func (s *Server) Refresh(ctx context.Context) (*Server, error) {
	return getServer(ctx, s.service, s.record.ID)
}
