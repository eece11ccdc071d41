// Package api provides the HTTP REST API for HomeLink Core.
//
// It exposes account management, the OAuth2 endpoints used for Alexa
// account linking, the device registry, and the Smart Home directive
// endpoint.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
