// Package store defines the aggregate persistence interface. Each subsystem
// (permission, resourcetype, role, assignment, grant, policy) defines its
// own store interface and the composite Store composes them all.
// Backends: Memory, Postgres, SQLite and MongoDB.
package store

import (
	"context"

	"github.com/xraph/bastion/assignment"
	"github.com/xraph/bastion/grant"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/resourcetype"
	"github.com/xraph/bastion/role"
)

// Store is the aggregate persistence interface. A single backend implements
// every subsystem store.
type Store interface {
	permission.Store
	resourcetype.Store
	role.Store
	assignment.Store
	grant.Store
	policy.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
