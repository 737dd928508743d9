package compute

import (
	"context"

	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/session"
)

// FlavorSortKey is a field flavors can be sorted by.
type FlavorSortKey string

// Sort keys accepted by the flavors collection.
const (
	FlavorSortByName   FlavorSortKey = "name"
	FlavorSortByID     FlavorSortKey = "flavorid"
	FlavorSortByMemory FlavorSortKey = "memory_mb"
)

// FlavorListRequest is a one-page request for flavors.
type FlavorListRequest = session.ListRequest[FlavorSummary]

// FlavorManager gives access to flavors.
type FlavorManager struct {
	service session.ServiceWrapper
}

// NewFlavorManager creates a manager on top of service.
func NewFlavorManager(service session.ServiceWrapper) *FlavorManager {
	return &FlavorManager{service: service}
}

// Flavors creates a flavor manager for the compute service of s.
func Flavors(s *session.Session) *FlavorManager {
	return NewFlavorManager(NewService(s))
}

// List starts a list request with no marker, limit or sort.
func (m *FlavorManager) List() FlavorListRequest {
	return session.NewListRequest[FlavorSummary](m.service, func() *flavorsRoot { return &flavorsRoot{} }, "flavors")
}

// Get fetches one flavor by id.
func (m *FlavorManager) Get(ctx context.Context, id string) (*Flavor, error) {
	return getFlavor(ctx, m.service, id)
}

// All fetches every flavor, walking pages of pageSize items.
func (m *FlavorManager) All(ctx context.Context, pageSize int) ([]FlavorSummary, error) {
	return session.FetchAll(ctx, m.List().WithLimit(pageSize), FlavorSummary.ID)
}

func getFlavor(ctx context.Context, service session.ServiceWrapper, id string) (*Flavor, error) {
	var root flavorRoot

	err := service.Get(ctx, []string{"flavors", id}, nil, &root)
	if err != nil {
		return nil, err
	}

	return &Flavor{record: *root.Flavor}, nil
}

// FlavorSummary is a flavor as returned by the list call.
type FlavorSummary struct {
	record  summaryRecord
	service session.ServiceWrapper
}

// ID returns the flavor id.
func (f FlavorSummary) ID() string {
	return f.record.ID
}

// Name returns the flavor name.
func (f FlavorSummary) Name() string {
	return f.record.Name
}

// Links returns the resource links.
func (f FlavorSummary) Links() osapi.Links {
	return f.record.Links
}

// Details fetches the full flavor.
func (f FlavorSummary) Details(ctx context.Context) (*Flavor, error) {
	return getFlavor(ctx, f.service, f.record.ID)
}

// Flavor describes the resources given to a server.
type Flavor struct {
	record flavorRecord
}

// ID returns the flavor id.
func (f *Flavor) ID() string { return f.record.ID }

// Name returns the flavor name.
func (f *Flavor) Name() string { return f.record.Name }

// RAM returns the memory size in MiB.
func (f *Flavor) RAM() int { return f.record.RAM }

// VCPUs returns the number of virtual CPUs.
func (f *Flavor) VCPUs() int { return f.record.VCPUs }

// Disk returns the root disk size in GiB.
func (f *Flavor) Disk() int { return f.record.Disk }

// Ephemeral returns the ephemeral disk size in GiB.
func (f *Flavor) Ephemeral() int { return f.record.Ephemeral }

// IsPublic reports whether the flavor is visible to every project. Missing
// values count as public.
func (f *Flavor) IsPublic() bool { return f.record.IsPublic == nil || *f.record.IsPublic }

// Links returns the resource links.
func (f *Flavor) Links() osapi.Links { return f.record.Links }
