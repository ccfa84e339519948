// Package identity guards the operator endpoints. Operators exchange a shared
// admin secret, stored only as a bcrypt hash, for a short-lived HS256 admin
// token that the HTTP middleware verifies on every privileged request.
package identity
