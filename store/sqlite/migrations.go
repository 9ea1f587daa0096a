package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Bastion store (SQLite).
var Migrations = migrate.NewGroup("bastion")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_catalog",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_resource_types (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bastion_permissions (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL UNIQUE,
    resource_type TEXT NOT NULL,
    risk_level    TEXT NOT NULL DEFAULT 'low',
    description   TEXT NOT NULL DEFAULT '',
    is_system     INTEGER NOT NULL DEFAULT 0,
    is_active     INTEGER NOT NULL DEFAULT 1,
    metadata      TEXT NOT NULL DEFAULT '{}',
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_permissions_resource_type ON bastion_permissions (resource_type);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS bastion_permissions;
DROP TABLE IF EXISTS bastion_resource_types;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_roles (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    is_system   INTEGER NOT NULL DEFAULT 0,
    is_active   INTEGER NOT NULL DEFAULT 1,
    metadata    TEXT NOT NULL DEFAULT '{}',
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS bastion_role_permissions (
    role_id       TEXT NOT NULL,
    permission_id TEXT NOT NULL,
    PRIMARY KEY (role_id, permission_id)
);

CREATE TABLE IF NOT EXISTS bastion_role_parents (
    role_id   TEXT NOT NULL,
    parent_id TEXT NOT NULL,
    PRIMARY KEY (role_id, parent_id),
    CHECK (role_id <> parent_id)
);

CREATE INDEX IF NOT EXISTS idx_bastion_role_parents_parent ON bastion_role_parents (parent_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS bastion_role_parents;
DROP TABLE IF EXISTS bastion_role_permissions;
DROP TABLE IF EXISTS bastion_roles;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_assignments",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_assignments (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    role_id     TEXT NOT NULL,
    is_active   INTEGER NOT NULL DEFAULT 1,
    granted_by  TEXT NOT NULL DEFAULT '',
    assigned_at TEXT NOT NULL DEFAULT (datetime('now')),
    revoked_at  TEXT,
    UNIQUE (user_id, role_id)
);

CREATE INDEX IF NOT EXISTS idx_bastion_assignments_user ON bastion_assignments (user_id, is_active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_assignments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_grants",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_grants (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    permission_id TEXT NOT NULL,
    resource_id   TEXT NOT NULL DEFAULT '',
    schedule_type TEXT NOT NULL,
    valid_from    TEXT NOT NULL,
    valid_until   TEXT,
    time_zone     TEXT NOT NULL DEFAULT '',
    days_of_week  TEXT NOT NULL DEFAULT 'null',
    time_ranges   TEXT NOT NULL DEFAULT 'null',
    max_uses      INTEGER CHECK (max_uses IS NULL OR max_uses >= 1),
    current_uses  INTEGER NOT NULL DEFAULT 0 CHECK (current_uses >= 0),
    is_active     INTEGER NOT NULL DEFAULT 1,
    granted_by    TEXT NOT NULL DEFAULT '',
    reason        TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at    TEXT NOT NULL DEFAULT (datetime('now')),
    CHECK (max_uses IS NULL OR current_uses <= max_uses)
);

CREATE INDEX IF NOT EXISTS idx_bastion_grants_user_permission ON bastion_grants (user_id, permission_id);
CREATE INDEX IF NOT EXISTS idx_bastion_grants_permission ON bastion_grants (permission_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_policies",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS bastion_policies (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL UNIQUE,
    description    TEXT NOT NULL DEFAULT '',
    condition_type TEXT NOT NULL,
    condition_data TEXT NOT NULL DEFAULT '{}',
    is_global      INTEGER NOT NULL DEFAULT 0,
    targets        TEXT NOT NULL DEFAULT 'null',
    risk_level     TEXT NOT NULL DEFAULT '',
    is_active      INTEGER NOT NULL DEFAULT 1,
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_bastion_policies_active ON bastion_policies (is_active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS bastion_policies`)
				return err
			},
		},
	)
}
