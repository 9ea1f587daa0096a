// Package resourcetype defines the ResourceType catalog entry that
// permissions and conditional policies refer to by name.
package resourcetype

import (
	"time"

	"github.com/xraph/bastion/id"
)

// ResourceType names a kind of protected object, for example "document".
type ResourceType struct {
	ID          id.ResourceTypeID `json:"id" db:"id"`
	Name        string            `json:"name" db:"name"`
	Description string            `json:"description,omitempty" db:"description"`
	Metadata    map[string]any    `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// ListFilter contains filters for listing resource types.
type ListFilter struct {
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}
