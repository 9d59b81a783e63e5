package lifecycle

import "context"

// PlanStore reads and mutates individualized education plans. Lookups by
// student always target the active version.
type PlanStore interface {
	// GetActivePlan returns sentinel.ErrNotFound when the student has no
	// active plan.
	GetActivePlan(ctx context.Context, studentID string) (*Plan, error)
	CreateDraft(ctx context.Context, plan Plan) error
	// UpsertCollaborator is keyed on (plan, user) so re-delivered events
	// never create duplicate collaborator rows.
	UpsertCollaborator(ctx context.Context, planID, userID, role string) error
	UpdateEvaluation(ctx context.Context, planID string, evaluation map[string]any) error
}

// ServicePlanStore reads and mutates specialized-service plans.
type ServicePlanStore interface {
	// GetLatest returns sentinel.ErrNotFound when the student has none.
	GetLatest(ctx context.Context, studentID string) (*ServicePlan, error)
	CreateDraft(ctx context.Context, plan ServicePlan) error
}

// AccessStore maintains teacher-to-student access grants, keyed on
// (student, user) so recomputation is idempotent.
type AccessStore interface {
	UpsertAccess(ctx context.Context, studentID, userID, role string) error
}

// RosterStore resolves class membership.
type RosterStore interface {
	ListClassTeachers(ctx context.Context, classID string) ([]string, error)
}

// GuardianStore resolves the guardians linked to a student.
type GuardianStore interface {
	ListGuardians(ctx context.Context, studentID string) ([]string, error)
}

// NotificationStore persists guardian notifications.
type NotificationStore interface {
	InsertAll(ctx context.Context, notifications []Notification) error
}

// Stores bundles every collaborator the lifecycle policies touch.
type Stores struct {
	Plans         PlanStore
	ServicePlans  ServicePlanStore
	Access        AccessStore
	Rosters       RosterStore
	Guardians     GuardianStore
	Notifications NotificationStore
}
