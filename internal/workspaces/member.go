// Package workspaces maps authenticated users onto the workspace and plan
// tier that generation runs are billed against.
package workspaces

import "time"

// Member is a user's workspace membership, keyed by OIDC subject.
type Member struct {
	Sub         string    `bson:"_id" json:"sub"`
	Email       string    `bson:"email" json:"email"`
	Name        string    `bson:"name" json:"name"`
	WorkspaceID string    `bson:"workspaceId" json:"workspaceId"`
	Plan        string    `bson:"plan" json:"plan"`
	CreatedAt   time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Principal is the caller identity handlers pass to the pipeline.
type Principal struct {
	UserID      string `json:"userId"`
	WorkspaceID string `json:"workspaceId"`
	Plan        string `json:"plan"`
	Email       string `json:"email,omitempty"`
	Name        string `json:"name,omitempty"`
}
