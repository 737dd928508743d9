package compute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/fivetwenty-io/osapi/pkg/session"
)

// Address is one network address of a server.
type Address struct {
	Addr    string `json:"addr"            yaml:"addr"`
	Version int    `json:"version"         yaml:"version"`
	Type    string `json:"OS-EXT-IPS:type" yaml:"type,omitempty"`
	MAC     string `json:"OS-EXT-IPS-MAC:mac_addr,omitempty" yaml:"mac,omitempty"`
}

// Reference points to another resource by id. Compute returns an empty
// string instead of an object for servers booted from a volume.
type Reference struct {
	ID    string      `json:"id"              yaml:"id"`
	Links osapi.Links `json:"links,omitempty" yaml:"links,omitempty"`
}

// UnmarshalJSON accepts an object or an empty string.
func (r *Reference) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte(`""`)) || bytes.Equal(trimmed, []byte("null")) {
		*r = Reference{}

		return nil
	}

	type plain Reference

	var decoded plain

	err := json.Unmarshal(trimmed, &decoded)
	if err != nil {
		return fmt.Errorf("decoding reference: %w", err)
	}

	*r = Reference(decoded)

	return nil
}

type summaryRecord struct {
	ID    string      `json:"id"    validate:"required"`
	Name  string      `json:"name"  validate:"required"`
	Links osapi.Links `json:"links"`
}

type serverRecord struct {
	ID         string               `json:"id"         validate:"required"`
	Name       string               `json:"name"       validate:"required"`
	Status     string               `json:"status"`
	Created    time.Time            `json:"created"`
	Updated    time.Time            `json:"updated"`
	TenantID   string               `json:"tenant_id"`
	UserID     string               `json:"user_id"`
	HostID     string               `json:"hostId"`
	AccessIPv4 string               `json:"accessIPv4"`
	AccessIPv6 string               `json:"accessIPv6"`
	Addresses  map[string][]Address `json:"addresses"`
	Metadata   map[string]string    `json:"metadata"`
	Flavor     Reference            `json:"flavor"`
	Image      Reference            `json:"image"`
	Links      osapi.Links          `json:"links"`
}

type flavorRecord struct {
	ID         string      `json:"id"    validate:"required"`
	Name       string      `json:"name"  validate:"required"`
	RAM        int         `json:"ram"`
	VCPUs      int         `json:"vcpus"`
	Disk       int         `json:"disk"`
	Ephemeral  int         `json:"OS-FLV-EXT-DATA:ephemeral"`
	IsPublic   *bool       `json:"os-flavor-access:is_public"`
	RXTXFactor float64     `json:"rxtx_factor"`
	Links      osapi.Links `json:"links"`
}

type serversRoot struct {
	Servers []summaryRecord `json:"servers" validate:"required,dive"`
}

// Items binds every decoded summary to service.
func (r *serversRoot) Items(service session.ServiceWrapper) []ServerSummary {
	items := make([]ServerSummary, len(r.Servers))
	for i, record := range r.Servers {
		items[i] = ServerSummary{record: record, service: service}
	}

	return items
}

type serverRoot struct {
	Server *serverRecord `json:"server" validate:"required"`
}

type flavorsRoot struct {
	Flavors []summaryRecord `json:"flavors" validate:"required,dive"`
}

// Items binds every decoded summary to service.
func (r *flavorsRoot) Items(service session.ServiceWrapper) []FlavorSummary {
	items := make([]FlavorSummary, len(r.Flavors))
	for i, record := range r.Flavors {
		items[i] = FlavorSummary{record: record, service: service}
	}

	return items
}

type flavorRoot struct {
	Flavor *flavorRecord `json:"flavor" validate:"required"`
}
