// Package auth is the access-control core of Campus Core.
//
// It owns user accounts (credential store), password hashing, failed
// login throttling, session lifecycle, and the role/capability model.
// The Service type composes these into the six operations the
// dashboard layer calls: login, logout, authorize, and the
// user-management operations.
//
// Internal components report structured sentinel errors upward; the
// Service is the only translator to caller-facing failures, and the
// HTTP layer above maps those to responses.
package auth
