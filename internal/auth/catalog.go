package auth

import (
	"fmt"
	"net/url"
)

// CatalogEndpoint is one endpoint of a catalog service.
type CatalogEndpoint struct {
	ID        string `json:"id"                  yaml:"id"`
	Interface string `json:"interface"           yaml:"interface"`
	Region    string `json:"region,omitempty"    yaml:"region,omitempty"`
	RegionID  string `json:"region_id,omitempty" yaml:"region_id,omitempty"`
	URL       string `json:"url"                 yaml:"url"`
}

// CatalogEntry is a service of the identity service catalog.
type CatalogEntry struct {
	ID        string            `json:"id"             yaml:"id"`
	Type      string            `json:"type"           yaml:"type"`
	Name      string            `json:"name,omitempty" yaml:"name,omitempty"`
	Endpoints []CatalogEndpoint `json:"endpoints"      yaml:"endpoints"`
}

// Catalog is the service catalog returned with a token.
type Catalog []CatalogEntry

// Find returns the URL of the first endpoint matching serviceType and
// iface. An empty region matches any region.
func (c Catalog) Find(serviceType, iface, region string) (*url.URL, error) {
	for _, entry := range c {
		if entry.Type != serviceType {
			continue
		}

		for _, endpoint := range entry.Endpoints {
			if endpoint.Interface != iface {
				continue
			}

			if region != "" && endpoint.Region != region && endpoint.RegionID != region {
				continue
			}

			parsed, err := ParseEndpoint(endpoint.URL)
			if err != nil {
				return nil, fmt.Errorf("catalog endpoint %s for %s: %w", endpoint.URL, serviceType, err)
			}

			return parsed, nil
		}
	}

	return nil, errEndpointNotFound(serviceType, iface, region)
}
