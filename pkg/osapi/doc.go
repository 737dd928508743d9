// Package osapi provides the shared types, interfaces, and helpers of the
// OpenStack API client.
//
// # Overview
//
// The osapi package defines the vocabulary every other package speaks:
// Token and AuthMethod for authentication, Request, Response and Transport
// for the HTTP exchange, Query and Sort for list parameters, and the error
// taxonomy. The session package composes these into authenticated requests,
// service packages such as compute add typed resources on top, and the
// osclient package wires everything from a Config. Most consumers should
// start with osclient.
//
//	cli, err := osclient.New(ctx, &osapi.Config{
//	  AuthURL:     "https://keystone.example.com:5000/v3",
//	  Username:    "demo",
//	  Password:    os.Getenv("OS_PASSWORD"),
//	  ProjectName: "demo",
//	})
//	if err != nil { log.Fatal(err) }
//
// # Queries
//
// Query is an ordered, multi-valued parameter list. Repeated keys keep their
// insertion order, which matters for paired parameters such as
// sort_key/sort_dir:
//
//	q := osapi.NewQuery().Push("sort_key", "display_name").Push("sort_dir", "asc")
//
// # Errors
//
// Failures are reported as one of four kinds:
//
//   - ConfigurationError: invalid settings, detected before any I/O.
//   - AuthenticationError: no token or no endpoint could be obtained.
//   - TransportError: the request never produced an HTTP response.
//   - ProtocolError: a non-2xx status or an undecodable body.
//
// Helpers such as IsNotFound, IsUnauthorized, and IsProtocolError branch on
// these without type assertions.
//
// # Interceptors and caching
//
// InterceptorChain hooks requests and responses for metrics and rate
// limiting. Cache stores identity tokens together with their service
// catalog; MemoryCache, FileCache and NATSKVCache are provided, and
// CacheChain layers them.
package osapi
