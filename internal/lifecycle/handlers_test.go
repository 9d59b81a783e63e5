package lifecycle

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peicollab/internal/audit"
	"peicollab/internal/events"
)

type eventRecorder struct {
	mu    sync.Mutex
	types []events.Type
}

func (r *eventRecorder) record(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, event.Type)
	return nil
}

func (r *eventRecorder) count(eventType events.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.types {
		if t == eventType {
			n++
		}
	}
	return n
}

type harness struct {
	bus        *events.Bus
	store      *MemoryStore
	auditStore *audit.MemoryStore
	seen       *eventRecorder
}

func newHarness(t *testing.T) harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	auditStore := audit.NewMemoryStore()
	trail := audit.NewTrail(auditStore, logger)
	bus := events.NewBus(trail, logger)

	store := NewMemoryStore()
	registry := NewRegistry(store.Stores(), logger)
	registry.Register(bus)

	seen := &eventRecorder{}
	bus.On(events.Wildcard, seen.record)

	return harness{bus: bus, store: store, auditStore: auditStore, seen: seen}
}

func TestStudentCreatedCascade(t *testing.T) {
	t.Run("creates one draft plan and one draft service plan with follow-up events", func(t *testing.T) {
		h := newHarness(t)

		result := h.bus.Emit(context.Background(), events.StudentCreated,
			map[string]any{"id": "s1", "school_id": "sch1", "tenant_id": "t1"}, nil)
		assert.Empty(t, result.HandlerErrors)

		plans := h.store.Plans()
		require.Len(t, plans, 1)
		assert.Equal(t, "s1", plans[0].StudentID)
		assert.Equal(t, "sch1", plans[0].SchoolID)
		assert.Equal(t, "t1", plans[0].TenantID)
		assert.Equal(t, StatusDraft, plans[0].Status)
		assert.Equal(t, 1, plans[0].VersionNumber)
		assert.True(t, plans[0].ActiveVersion)

		servicePlans := h.store.ServicePlans()
		require.Len(t, servicePlans, 1)
		assert.Equal(t, "s1", servicePlans[0].StudentID)
		assert.Equal(t, StatusDraft, servicePlans[0].Status)

		assert.Equal(t, 1, h.seen.count(events.PlanCreated))
		assert.Equal(t, 1, h.seen.count(events.ServicePlanCreated))

		rows, err := h.auditStore.List(context.Background(), audit.Filter{
			TenantID:   "t1",
			EntityType: audit.EntityStudent,
			Action:     audit.ActionInsert,
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "s1", rows[0].EntityID)
	})

	t.Run("is idempotent against re-delivery", func(t *testing.T) {
		h := newHarness(t)
		data := map[string]any{"id": "s1", "school_id": "sch1", "tenant_id": "t1"}

		h.bus.Emit(context.Background(), events.StudentCreated, data, nil)
		h.bus.Emit(context.Background(), events.StudentCreated, data, nil)

		assert.Len(t, h.store.Plans(), 1)
		assert.Len(t, h.store.ServicePlans(), 1)
		assert.Equal(t, 1, h.seen.count(events.PlanCreated))
		assert.Equal(t, 1, h.seen.count(events.ServicePlanCreated))
	})

	t.Run("ignores events with incomplete payload", func(t *testing.T) {
		h := newHarness(t)

		result := h.bus.Emit(context.Background(), events.StudentCreated,
			map[string]any{"id": "s1"}, nil)
		assert.Empty(t, result.HandlerErrors)
		assert.Empty(t, h.store.Plans())
	})
}

func TestClassChanged(t *testing.T) {
	t.Run("recomputes access for every student/teacher pair", func(t *testing.T) {
		h := newHarness(t)
		h.store.SetClassTeachers("class-1", "teacher-1", "teacher-2")

		h.bus.Emit(context.Background(), events.ClassChanged, map[string]any{
			"id":          "class-1",
			"student_ids": []any{"s1", "s2"},
			"tenant_id":   "t1",
		}, nil)

		for _, studentID := range []string{"s1", "s2"} {
			for _, teacherID := range []string{"teacher-1", "teacher-2"} {
				role, ok := h.store.AccessRole(studentID, teacherID)
				require.True(t, ok, "missing access %s/%s", studentID, teacherID)
				assert.Equal(t, RoleTeacher, role)
			}
		}
	})

	t.Run("class.updated triggers the same recomputation", func(t *testing.T) {
		h := newHarness(t)
		h.store.SetClassTeachers("class-1", "teacher-1")

		h.bus.Emit(context.Background(), events.ClassUpdated, map[string]any{
			"id":          "class-1",
			"student_ids": []any{"s1"},
			"tenant_id":   "t1",
		}, nil)

		_, ok := h.store.AccessRole("s1", "teacher-1")
		assert.True(t, ok)
	})
}

func TestTeacherAssigned(t *testing.T) {
	t.Run("grants access and joins the active plan as editor", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.CreateDraft(context.Background(), Plan{
			ID: "plan-1", TenantID: "t1", StudentID: "s1", SchoolID: "sch1",
			Status: StatusDraft, VersionNumber: 1, ActiveVersion: true,
		}))

		h.bus.Emit(context.Background(), events.TeacherAssigned, map[string]any{
			"teacher_id":  "teacher-1",
			"class_id":    "class-1",
			"student_ids": []any{"s1"},
			"tenant_id":   "t1",
		}, nil)

		role, ok := h.store.AccessRole("s1", "teacher-1")
		require.True(t, ok)
		assert.Equal(t, RoleTeacher, role)

		role, ok = h.store.CollaboratorRole("plan-1", "teacher-1")
		require.True(t, ok)
		assert.Equal(t, RoleEditor, role)
	})

	t.Run("students without an active plan still get the access grant", func(t *testing.T) {
		h := newHarness(t)

		result := h.bus.Emit(context.Background(), events.TeacherAssigned, map[string]any{
			"teacher_id":  "teacher-1",
			"class_id":    "class-1",
			"student_ids": []any{"s1"},
			"tenant_id":   "t1",
		}, nil)
		assert.Empty(t, result.HandlerErrors)

		_, ok := h.store.AccessRole("s1", "teacher-1")
		assert.True(t, ok)
	})
}

func TestPlanApproved(t *testing.T) {
	t.Run("notifies every linked guardian once", func(t *testing.T) {
		h := newHarness(t)
		h.store.SetGuardians("s1", "guardian-1", "guardian-2")

		h.bus.Emit(context.Background(), events.PlanApproved, map[string]any{
			"id":         "plan-1",
			"student_id": "s1",
			"tenant_id":  "t1",
		}, nil)

		notifications := h.store.Notifications()
		require.Len(t, notifications, 2)
		for _, n := range notifications {
			assert.Equal(t, "plan-1", n.PlanID)
			assert.Equal(t, NotificationPlanApproved, n.Type)
			assert.False(t, n.Read)
		}

		// The approval itself reached the bus once; no recursive re-emit.
		assert.Equal(t, 1, h.seen.count(events.PlanApproved))
	})

	t.Run("no guardians means no notifications", func(t *testing.T) {
		h := newHarness(t)

		h.bus.Emit(context.Background(), events.PlanApproved, map[string]any{
			"id":         "plan-1",
			"student_id": "s1",
			"tenant_id":  "t1",
		}, nil)
		assert.Empty(t, h.store.Notifications())
	})
}

func TestSessionRecorded(t *testing.T) {
	sessionData := map[string]any{
		"date":     "2026-05-10",
		"notes":    "worked on reading comprehension",
		"progress": "improving",
	}

	t.Run("appends a session note to the active plan and emits an update", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.CreateDraft(context.Background(), Plan{
			ID: "plan-1", TenantID: "t1", StudentID: "s1", SchoolID: "sch1",
			Status: StatusDraft, VersionNumber: 1, ActiveVersion: true,
			EvaluationData: map[string]any{"baseline": "initial assessment"},
		}))

		h.bus.Emit(context.Background(), events.ServiceSessionRecorded, map[string]any{
			"service_plan_id": "sp-1",
			"student_id":      "s1",
			"session_data":    sessionData,
			"tenant_id":       "t1",
		}, nil)

		plans := h.store.Plans()
		require.Len(t, plans, 1)
		evaluation := plans[0].EvaluationData
		assert.Equal(t, "initial assessment", evaluation["baseline"])
		sessions, ok := evaluation["service_sessions"].([]any)
		require.True(t, ok)
		require.Len(t, sessions, 1)
		note, ok := sessions[0].(SessionNote)
		require.True(t, ok)
		assert.Equal(t, "sp-1", note.ServicePlanID)
		assert.Equal(t, "2026-05-10", note.SessionDate)
		assert.NotEmpty(t, evaluation["last_service_update"])

		assert.Equal(t, 1, h.seen.count(events.PlanUpdated))
	})

	t.Run("successive sessions accumulate", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.store.CreateDraft(context.Background(), Plan{
			ID: "plan-1", TenantID: "t1", StudentID: "s1", SchoolID: "sch1",
			Status: StatusDraft, VersionNumber: 1, ActiveVersion: true,
		}))

		data := map[string]any{
			"service_plan_id": "sp-1",
			"student_id":      "s1",
			"session_data":    sessionData,
			"tenant_id":       "t1",
		}
		h.bus.Emit(context.Background(), events.ServiceSessionRecorded, data, nil)
		h.bus.Emit(context.Background(), events.ServiceSessionRecorded, data, nil)

		plans := h.store.Plans()
		require.Len(t, plans, 1)
		sessions, ok := plans[0].EvaluationData["service_sessions"].([]any)
		require.True(t, ok)
		assert.Len(t, sessions, 2)
	})

	t.Run("no active plan is a quiet no-op", func(t *testing.T) {
		h := newHarness(t)

		result := h.bus.Emit(context.Background(), events.ServiceSessionRecorded, map[string]any{
			"service_plan_id": "sp-1",
			"student_id":      "s1",
			"session_data":    sessionData,
			"tenant_id":       "t1",
		}, nil)
		assert.Empty(t, result.HandlerErrors)
		assert.Equal(t, 0, h.seen.count(events.PlanUpdated))
	})
}
