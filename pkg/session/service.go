package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/osapi/internal/constants"
	"github.com/fivetwenty-io/osapi/pkg/osapi"
	"github.com/go-playground/validator/v10"
)

// Static errors for err113 compliance.
var (
	ErrInvalidAPIVersion = errors.New("invalid API version")
)

var payloadValidator = validator.New(validator.WithRequiredStructEnabled())

// APIVersion is a service microversion such as 2.79. The zero value means no
// version is requested.
type APIVersion struct {
	Major int
	Minor int
}

// ParseAPIVersion accepts "2.79", "v2.1" and "2".
func ParseAPIVersion(raw string) (APIVersion, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "v")

	majorPart, minorPart, hasMinor := strings.Cut(trimmed, ".")

	major, err := strconv.Atoi(majorPart)
	if err != nil || major < 0 {
		return APIVersion{}, fmt.Errorf("%w: %q", ErrInvalidAPIVersion, raw)
	}

	version := APIVersion{Major: major}

	if hasMinor {
		minor, err := strconv.Atoi(minorPart)
		if err != nil || minor < 0 {
			return APIVersion{}, fmt.Errorf("%w: %q", ErrInvalidAPIVersion, raw)
		}

		version.Minor = minor
	}

	return version, nil
}

// String renders the version as "major.minor".
func (v APIVersion) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// IsZero reports whether no version is set.
func (v APIVersion) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// Less reports whether v is older than other.
func (v APIVersion) Less(other APIVersion) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}

	return v.Minor < other.Minor
}

// VersionInfo is one entry of a service version document.
type VersionInfo struct {
	ID         string      `json:"id"          yaml:"id"`
	Status     string      `json:"status"      yaml:"status"`
	Version    string      `json:"version"     yaml:"version"`
	MinVersion string      `json:"min_version" yaml:"min_version"`
	Updated    string      `json:"updated"     yaml:"updated"`
	Links      osapi.Links `json:"links"       yaml:"links"`
}

// VersionRange is the microversion range a service supports.
type VersionRange struct {
	ID  string
	Min APIVersion
	Max APIVersion
}

// Supports reports whether version lies within the range. The zero version
// is always supported.
func (r VersionRange) Supports(version APIVersion) bool {
	if version.IsZero() {
		return true
	}

	if r.Max.IsZero() {
		return false
	}

	return !version.Less(r.Min) && !r.Max.Less(version)
}

type versionDocument struct {
	Version  *VersionInfo  `json:"version"`
	Versions []VersionInfo `json:"versions"`
}

// ServiceWrapper issues requests to one service type of a session. It is a
// small value; copying it yields an independent wrapper over the same
// session.
type ServiceWrapper struct {
	session     *Session
	serviceType string
	version     APIVersion
}

// NewServiceWrapper creates a wrapper for serviceType.
func NewServiceWrapper(session *Session, serviceType string) ServiceWrapper {
	return ServiceWrapper{session: session, serviceType: serviceType}
}

// WithAPIVersion returns a copy that sends the OpenStack-API-Version header.
func (w ServiceWrapper) WithAPIVersion(version APIVersion) ServiceWrapper {
	w.version = version

	return w
}

// Session returns the underlying session.
func (w ServiceWrapper) Session() *Session {
	return w.session
}

// ServiceType returns the catalog type this wrapper talks to.
func (w ServiceWrapper) ServiceType() string {
	return w.serviceType
}

// APIVersion returns the requested microversion.
func (w ServiceWrapper) APIVersion() APIVersion {
	return w.version
}

// Endpoint resolves the service base URL.
func (w ServiceWrapper) Endpoint(ctx context.Context) (*url.URL, error) {
	return w.session.Endpoint(ctx, w.serviceType)
}

// Get fetches path segments with query and decodes the JSON body into out.
func (w ServiceWrapper) Get(ctx context.Context, segments []string, query *osapi.Query, out interface{}) error {
	return w.Do(ctx, http.MethodGet, segments, query, nil, out)
}

// Post sends body as JSON and decodes the response into out when out is not nil.
func (w ServiceWrapper) Post(ctx context.Context, segments []string, body, out interface{}) error {
	return w.Do(ctx, http.MethodPost, segments, nil, body, out)
}

// Put sends body as JSON and decodes the response into out when out is not nil.
func (w ServiceWrapper) Put(ctx context.Context, segments []string, body, out interface{}) error {
	return w.Do(ctx, http.MethodPut, segments, nil, body, out)
}

// Delete removes the resource at path segments.
func (w ServiceWrapper) Delete(ctx context.Context, segments []string) error {
	return w.Do(ctx, http.MethodDelete, segments, nil, nil, nil)
}

// Do sends a request and decodes the response into out. Each segment is
// escaped on its own, so a segment containing "/" stays one segment.
func (w ServiceWrapper) Do(ctx context.Context, method string, segments []string, query *osapi.Query, body, out interface{}) error {
	req := &osapi.Request{
		Method:  method,
		URL:     EscapePath(segments...),
		Query:   query,
		Headers: make(http.Header),
	}

	if !w.version.IsZero() {
		req.Headers.Set(constants.HeaderAPIVersion, w.serviceType+" "+w.version.String())
	}

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}

		req.Body = data
	}

	resp, err := w.session.Request(ctx, w.serviceType, req)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	return decode(method, resp, out)
}

// DiscoverVersion reads the version document at the service root and returns
// the range of the CURRENT version.
func (w ServiceWrapper) DiscoverVersion(ctx context.Context) (*VersionRange, error) {
	var document versionDocument

	resp, err := w.session.Request(ctx, w.serviceType, &osapi.Request{Method: http.MethodGet})
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(resp.Body, &document)
	if err != nil {
		return nil, osapi.NewDecodeError(http.MethodGet, resp.URL, resp.StatusCode, err)
	}

	candidates := document.Versions
	if document.Version != nil {
		candidates = append([]VersionInfo{*document.Version}, candidates...)
	}

	for _, info := range candidates {
		if info.Status != "CURRENT" {
			continue
		}

		return versionRange(http.MethodGet, resp, info)
	}

	return nil, osapi.NewDecodeError(http.MethodGet, resp.URL, resp.StatusCode,
		fmt.Errorf("%w for service %q", osapi.ErrNoCurrentVersion, w.serviceType))
}

// NegotiateVersion returns a copy pinned to version after checking the
// service supports it.
func (w ServiceWrapper) NegotiateVersion(ctx context.Context, version APIVersion) (ServiceWrapper, error) {
	supported, err := w.DiscoverVersion(ctx)
	if err != nil {
		return w, err
	}

	if !supported.Supports(version) {
		return w, fmt.Errorf("%w: %s %s (supported %s to %s)",
			osapi.ErrUnsupportedVersion, w.serviceType, version, supported.Min, supported.Max)
	}

	return w.WithAPIVersion(version), nil
}

func versionRange(method string, resp *osapi.Response, info VersionInfo) (*VersionRange, error) {
	result := &VersionRange{ID: info.ID}

	if info.Version == "" {
		return result, nil
	}

	maxVersion, err := ParseAPIVersion(info.Version)
	if err != nil {
		return nil, osapi.NewDecodeError(method, resp.URL, resp.StatusCode, err)
	}

	result.Max = maxVersion

	if info.MinVersion == "" {
		return result, nil
	}

	minVersion, err := ParseAPIVersion(info.MinVersion)
	if err != nil {
		return nil, osapi.NewDecodeError(method, resp.URL, resp.StatusCode, err)
	}

	result.Min = minVersion

	return result, nil
}

func decode(method string, resp *osapi.Response, out interface{}) error {
	err := json.Unmarshal(resp.Body, out)
	if err != nil {
		return osapi.NewDecodeError(method, resp.URL, resp.StatusCode, err)
	}

	if !isStructPointer(out) {
		return nil
	}

	err = payloadValidator.Struct(out)
	if err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			err = fmt.Errorf("%w: %s", osapi.ErrMissingField, validationErrs[0].Namespace())
		}

		return osapi.NewDecodeError(method, resp.URL, resp.StatusCode, err)
	}

	return nil
}

func isStructPointer(value interface{}) bool {
	rv := reflect.ValueOf(value)

	return rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Struct
}
