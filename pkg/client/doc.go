// Package client is the Go SDK for the Threat Sentinel HTTP API.
//
// Classify a batch of events:
//
//	c, err := client.New("http://localhost:8080")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := c.Classify(ctx, []client.Event{
//	    {Message: "Leaked private key found in logs", Source: "3.3.3.3"},
//	})
//
// # Administrative calls
//
// Resetting engine state, port scans and appending to the security log
// require an admin token. Exchange the admin secret once and the client
// attaches the token to every later request:
//
//	if _, err := c.Login(ctx, os.Getenv("SENTINEL_ADMIN_SECRET")); err != nil {
//	    log.Fatal(err)
//	}
//	scan, err := c.ScanNetwork(ctx, "10.0.0.7", 1, 1024)
//
// # Errors
//
// Non-2xx responses are returned as *APIError. Use errors.Is with
// ErrUnauthorized, ErrNotFound or ErrUpstream to branch on the common cases.
package client
