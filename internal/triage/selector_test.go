package triage

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/helpdesk-triage/internal/domain"
)

type fakeFinder struct {
	moderators []domain.User
	admins     []domain.User
	err        error
}

func (f *fakeFinder) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	switch role {
	case domain.RoleModerator:
		return f.moderators, nil
	case domain.RoleAdmin:
		return f.admins, nil
	}
	return nil, nil
}

func TestSelectAssigneeMatchesModeratorBySkillSubstring(t *testing.T) {
	finder := &fakeFinder{
		moderators: []domain.User{
			{ID: "m1", Name: "Ada", Role: domain.RoleModerator, Skills: []string{"Networking"}},
			{ID: "m2", Name: "Lin", Role: domain.RoleModerator, Skills: []string{"Payments/Stripe integration"}},
		},
		admins: []domain.User{{ID: "a1", Role: domain.RoleAdmin}},
	}
	got, err := NewSelector(finder).SelectAssignee(context.Background(), []string{"payments"})
	if err != nil {
		t.Fatalf("SelectAssignee: %v", err)
	}
	if got == nil || got.ID != "m2" {
		t.Errorf("assignee = %+v, want m2", got)
	}
}

func TestSelectAssigneeFallsBackToAdmin(t *testing.T) {
	finder := &fakeFinder{
		moderators: []domain.User{
			{ID: "m1", Role: domain.RoleModerator, Skills: []string{"Frontend", "CSS"}},
		},
		admins: []domain.User{{ID: "a1", Role: domain.RoleAdmin}, {ID: "a2", Role: domain.RoleAdmin}},
	}
	got, err := NewSelector(finder).SelectAssignee(context.Background(), []string{"Rust"})
	if err != nil {
		t.Fatalf("SelectAssignee: %v", err)
	}
	if got == nil || got.ID != "a1" {
		t.Errorf("assignee = %+v, want first admin a1", got)
	}
}

func TestSelectAssigneeEmptySkillsSkipsModeratorSearch(t *testing.T) {
	finder := &fakeFinder{
		moderators: []domain.User{{ID: "m1", Role: domain.RoleModerator, Skills: []string{"Anything"}}},
		admins:     []domain.User{{ID: "a1", Role: domain.RoleAdmin}},
	}
	got, err := NewSelector(finder).SelectAssignee(context.Background(), nil)
	if err != nil {
		t.Fatalf("SelectAssignee: %v", err)
	}
	if got == nil || got.ID != "a1" {
		t.Errorf("assignee = %+v, want admin a1", got)
	}
}

func TestSelectAssigneeNoneAvailable(t *testing.T) {
	got, err := NewSelector(&fakeFinder{}).SelectAssignee(context.Background(), []string{"Go"})
	if err != nil {
		t.Fatalf("SelectAssignee: %v", err)
	}
	if got != nil {
		t.Errorf("assignee = %+v, want nil", got)
	}
}

func TestSelectAssigneePropagatesStorageError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("connection reset")}
	_, err := NewSelector(finder).SelectAssignee(context.Background(), []string{"Go"})
	if err == nil {
		t.Fatal("expected storage error to propagate")
	}
}

func TestSkillsMatch(t *testing.T) {
	cases := []struct {
		name      string
		wanted    []string
		candidate []string
		want      bool
	}{
		{"case-insensitive substring", []string{"rust"}, []string{"Rust tooling"}, true},
		{"no overlap", []string{"Rust"}, []string{"Go", "Python"}, false},
		{"any-of wanted", []string{"Kafka", "Go"}, []string{"Golang services"}, true},
		{"blank token ignored", []string{"  "}, []string{"anything"}, false},
		{"empty candidate", []string{"Go"}, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := skillsMatch(tc.wanted, tc.candidate); got != tc.want {
				t.Errorf("skillsMatch(%v, %v) = %v, want %v", tc.wanted, tc.candidate, got, tc.want)
			}
		})
	}
}
