// Package osclient provides the main entry point for creating OpenStack API
// clients.
//
// It layers configuration, HTTP transport and authentication on top of the
// session and service packages. Most applications build a client here and use
// its managers, for example Servers() and Flavors().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/osapi/pkg/osapi"
//	  "github.com/fivetwenty-io/osapi/pkg/osclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // A standalone service without authentication:
//	  cli, err := osclient.NewWithEndpoint(ctx, "http://127.0.0.1:8774/v2.1")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or Keystone v3 with a password:
//	  cli, err = osclient.New(ctx, &osapi.Config{
//	    AuthURL:     "https://keystone.example.com/v3",
//	    Username:    "demo",
//	    Password:    "secret",
//	    ProjectName: "demo",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Or from OS_* variables:
//	  cli, err = osclient.FromEnv(ctx)
//	  if err != nil { log.Fatal(err) }
//
//	  servers, err := cli.Servers().List().WithLimit(10).Fetch(ctx)
//	  if err != nil { log.Fatal(err) }
//
//	  for _, summary := range servers {
//	    server, err := summary.Details(ctx)
//	    if err != nil { log.Fatal(err) }
//	    log.Println(server.Name(), server.Status())
//	  }
//	}
//
// Retries
//
// Retries are disabled by default. Set Config.RetryMax to retry connection
// errors, 429 and 5xx responses with exponential backoff.
//
// Token cache
//
// Set Config.TokenCache to share identity tokens between clients, for example
// an osapi.FileCache between command invocations or an osapi.NATSKVCache
// between processes.
package osclient
