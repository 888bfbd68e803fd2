package workspaces

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/slidecoffee/brew-service/internal/quota"
)

var ErrNoSubject = errors.New("token has no subject")

// Service resolves callers into principals.
type Service struct {
	repo        Repository
	defaultPlan string
}

func NewService(r Repository) *Service {
	return &Service{repo: r, defaultPlan: quota.DefaultPlanID}
}

// ResolvePrincipal upserts the member for the token subject. A first-time
// member gets a personal workspace on the default plan. workspace_id and
// plan claims, when present, take precedence over the stored values.
func (s *Service) ResolvePrincipal(ctx context.Context, claims map[string]interface{}) (*Principal, error) {
	sub := claimString(claims, "sub")
	if sub == "" {
		return nil, ErrNoSubject
	}
	name := claimString(claims, "name")
	if name == "" {
		name = claimString(claims, "preferred_username")
	}
	m, err := s.repo.UpsertBySub(ctx, &Member{
		Sub:         sub,
		Email:       claimString(claims, "email"),
		Name:        name,
		WorkspaceID: uuid.NewString(),
		Plan:        s.defaultPlan,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert member: %w", err)
	}

	p := &Principal{UserID: m.Sub, WorkspaceID: m.WorkspaceID, Plan: m.Plan, Email: m.Email, Name: m.Name}
	if ws := claimString(claims, "workspace_id", "workspaceId"); ws != "" {
		p.WorkspaceID = ws
	}
	if plan := claimString(claims, "plan"); plan != "" {
		p.Plan = plan
	}
	p.Plan = quota.LookupPlan(p.Plan).ID
	return p, nil
}

func claimString(claims map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
