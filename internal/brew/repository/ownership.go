package repository

import (
	"context"
	"fmt"
)

// Ownership resolves projects and brands against the workspace that
// references them. Both collections are written by the workspace service;
// this service only reads them.
type Ownership interface {
	ProjectOwned(ctx context.Context, workspaceID, projectID string) (bool, error)
	BrandOwned(ctx context.Context, workspaceID, brandID string) (bool, error)
}

// AccessError reports a project or brand that does not exist in the caller's
// workspace. The two cases are indistinguishable to the caller.
type AccessError struct {
	Kind string
	ID   string
}

func (e *AccessError) Error() string {
	return e.Kind + " not found or access denied"
}

// CheckOwnership returns an *AccessError for the first reference that
// workspaceID does not own. Empty ids are skipped.
func CheckOwnership(ctx context.Context, o Ownership, workspaceID, projectID, brandID string) error {
	if projectID != "" {
		ok, err := o.ProjectOwned(ctx, workspaceID, projectID)
		if err != nil {
			return fmt.Errorf("check project %s: %w", projectID, err)
		}
		if !ok {
			return &AccessError{Kind: "Project", ID: projectID}
		}
	}
	if brandID != "" {
		ok, err := o.BrandOwned(ctx, workspaceID, brandID)
		if err != nil {
			return fmt.Errorf("check brand %s: %w", brandID, err)
		}
		if !ok {
			return &AccessError{Kind: "Brand", ID: brandID}
		}
	}
	return nil
}
