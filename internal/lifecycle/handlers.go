// Package lifecycle holds the fixed set of reactive policies registered on
// the event bus: draft plan creation for new students, access recomputation
// on roster changes, guardian notifications on plan approval and evaluation
// updates on recorded service sessions. Every policy writes through upserts
// keyed on natural composite keys so re-delivered events are harmless.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"peicollab/internal/events"
	"peicollab/pkg/platform/sentinel"
)

// Emitter lets policies emit follow-up events without owning the bus.
type Emitter interface {
	Emit(ctx context.Context, eventType events.Type, data, metadata map[string]any) events.Result
}

// Registry wires the lifecycle policies to their collaborator stores.
type Registry struct {
	stores  Stores
	emitter Emitter
	logger  *slog.Logger
	clock   func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock overrides the time source, for tests.
func WithClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) { r.clock = clock }
}

func NewRegistry(stores Stores, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		stores: stores,
		logger: logger,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register subscribes every policy on the bus. Follow-up events the policies
// emit go through the same bus.
func (r *Registry) Register(bus *events.Bus) {
	r.emitter = bus
	bus.On(events.StudentCreated, r.HandleStudentCreated)
	bus.On(events.ClassChanged, r.HandleClassChanged)
	bus.On(events.ClassUpdated, r.HandleClassChanged)
	bus.On(events.TeacherAssigned, r.HandleTeacherAssigned)
	bus.On(events.PlanApproved, r.HandlePlanApproved)
	bus.On(events.ServiceSessionRecorded, r.HandleSessionRecorded)
}

// HandleStudentCreated creates a draft individualized plan and a draft
// specialized-service plan for the new student, each only if no active one
// exists, and emits a creation event for each draft it makes.
func (r *Registry) HandleStudentCreated(ctx context.Context, event events.Event) error {
	studentID := stringField(event.Data, "id")
	schoolID := stringField(event.Data, "school_id")
	tenantID := event.TenantID
	if studentID == "" || schoolID == "" || tenantID == "" {
		return nil
	}

	var errs []error

	_, err := r.stores.Plans.GetActivePlan(ctx, studentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		plan := Plan{
			ID:            uuid.NewString(),
			TenantID:      tenantID,
			StudentID:     studentID,
			SchoolID:      schoolID,
			Status:        StatusDraft,
			VersionNumber: 1,
			ActiveVersion: true,
			CreatedBy:     event.UserID,
			CreatedAt:     r.clock().UTC(),
		}
		if err := r.stores.Plans.CreateDraft(ctx, plan); err != nil {
			errs = append(errs, fmt.Errorf("create draft plan: %w", err))
		} else {
			r.emitter.Emit(ctx, events.PlanCreated, map[string]any{
				"id":         plan.ID,
				"student_id": studentID,
				"school_id":  schoolID,
				"tenant_id":  tenantID,
			}, nil)
		}
	} else if err != nil {
		errs = append(errs, fmt.Errorf("check active plan: %w", err))
	}

	_, err = r.stores.ServicePlans.GetLatest(ctx, studentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		plan := ServicePlan{
			ID:        uuid.NewString(),
			TenantID:  tenantID,
			StudentID: studentID,
			Status:    StatusDraft,
			CreatedAt: r.clock().UTC(),
		}
		if err := r.stores.ServicePlans.CreateDraft(ctx, plan); err != nil {
			errs = append(errs, fmt.Errorf("create draft service plan: %w", err))
		} else {
			r.emitter.Emit(ctx, events.ServicePlanCreated, map[string]any{
				"id":         plan.ID,
				"student_id": studentID,
				"tenant_id":  tenantID,
			}, nil)
		}
	} else if err != nil {
		errs = append(errs, fmt.Errorf("check latest service plan: %w", err))
	}

	return errors.Join(errs...)
}

// HandleClassChanged recomputes teacher access grants for the affected
// roster. Upserts keyed on (student, user) keep recomputation idempotent.
func (r *Registry) HandleClassChanged(ctx context.Context, event events.Event) error {
	classID := stringField(event.Data, "id")
	studentIDs := stringSlice(event.Data, "student_ids")
	if classID == "" || len(studentIDs) == 0 {
		return nil
	}

	teacherIDs, err := r.stores.Rosters.ListClassTeachers(ctx, classID)
	if err != nil {
		return fmt.Errorf("list class teachers: %w", err)
	}

	var errs []error
	for _, studentID := range studentIDs {
		for _, teacherID := range teacherIDs {
			if err := r.stores.Access.UpsertAccess(ctx, studentID, teacherID, RoleTeacher); err != nil {
				errs = append(errs, fmt.Errorf("upsert access %s/%s: %w", studentID, teacherID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// HandleTeacherAssigned grants the teacher access to the class's students
// and adds them as editor on each student's active plan.
func (r *Registry) HandleTeacherAssigned(ctx context.Context, event events.Event) error {
	teacherID := stringField(event.Data, "teacher_id")
	classID := stringField(event.Data, "class_id")
	studentIDs := stringSlice(event.Data, "student_ids")
	if teacherID == "" || classID == "" {
		return nil
	}

	var errs []error
	for _, studentID := range studentIDs {
		if err := r.stores.Access.UpsertAccess(ctx, studentID, teacherID, RoleTeacher); err != nil {
			errs = append(errs, fmt.Errorf("upsert access %s/%s: %w", studentID, teacherID, err))
			continue
		}

		plan, err := r.stores.Plans.GetActivePlan(ctx, studentID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("get active plan for %s: %w", studentID, err))
			continue
		}
		if err := r.stores.Plans.UpsertCollaborator(ctx, plan.ID, teacherID, RoleEditor); err != nil {
			errs = append(errs, fmt.Errorf("upsert collaborator %s/%s: %w", plan.ID, teacherID, err))
		}
	}
	return errors.Join(errs...)
}

// HandlePlanApproved fans out a notification to every guardian linked to the
// student. The approval event itself already reached broadcast and webhooks
// through the bus, so the policy emits nothing further.
func (r *Registry) HandlePlanApproved(ctx context.Context, event events.Event) error {
	planID := stringField(event.Data, "id")
	studentID := stringField(event.Data, "student_id")
	if planID == "" || studentID == "" {
		return nil
	}

	guardianIDs, err := r.stores.Guardians.ListGuardians(ctx, studentID)
	if err != nil {
		return fmt.Errorf("list guardians: %w", err)
	}
	if len(guardianIDs) == 0 {
		return nil
	}

	now := r.clock().UTC()
	notifications := make([]Notification, len(guardianIDs))
	for i, guardianID := range guardianIDs {
		notifications[i] = Notification{
			ID:        uuid.NewString(),
			UserID:    guardianID,
			PlanID:    planID,
			Type:      NotificationPlanApproved,
			CreatedAt: now,
		}
	}
	if err := r.stores.Notifications.InsertAll(ctx, notifications); err != nil {
		return fmt.Errorf("insert guardian notifications: %w", err)
	}
	return nil
}

// HandleSessionRecorded appends a structured session note to the student's
// active plan's evaluation record and emits a plan update event.
func (r *Registry) HandleSessionRecorded(ctx context.Context, event events.Event) error {
	servicePlanID := stringField(event.Data, "service_plan_id")
	studentID := stringField(event.Data, "student_id")
	session, hasSession := event.Data["session_data"].(map[string]any)
	if servicePlanID == "" || studentID == "" || !hasSession {
		return nil
	}

	plan, err := r.stores.Plans.GetActivePlan(ctx, studentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get active plan: %w", err)
	}

	now := r.clock().UTC().Format(time.RFC3339)
	note := SessionNote{
		ServicePlanID: servicePlanID,
		SessionDate:   stringField(session, "date"),
		Notes:         stringField(session, "notes"),
		Progress:      stringField(session, "progress"),
		CreatedAt:     now,
	}

	evaluation := make(map[string]any, len(plan.EvaluationData)+2)
	for k, v := range plan.EvaluationData {
		evaluation[k] = v
	}
	sessions, _ := evaluation["service_sessions"].([]any)
	evaluation["service_sessions"] = append(sessions, note)
	evaluation["last_service_update"] = now

	if err := r.stores.Plans.UpdateEvaluation(ctx, plan.ID, evaluation); err != nil {
		return fmt.Errorf("update plan evaluation: %w", err)
	}

	r.emitter.Emit(ctx, events.PlanUpdated, map[string]any{
		"id":          plan.ID,
		"student_id":  studentID,
		"update_type": "service_session",
	}, nil)
	return nil
}

func stringField(data map[string]any, key string) string {
	v, _ := data[key].(string)
	return v
}

func stringSlice(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
