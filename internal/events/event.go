// Package events implements the in-process domain event bus: local handler
// fan-out, best-effort cross-client broadcast, audit projection and webhook
// dispatch, all triggered by a single Emit.
package events

import (
	"context"
	"time"
)

// Type is the dotted domain event taxonomy. Closed set: new event types must
// be added here and classified in classify.go before anything can emit them.
type Type string

const (
	StudentCreated Type = "student.created"
	StudentUpdated Type = "student.updated"
	StudentDeleted Type = "student.deleted"

	ClassCreated Type = "class.created"
	ClassUpdated Type = "class.updated"
	ClassChanged Type = "class.changed"

	TeacherAssigned   Type = "teacher.assigned"
	TeacherUnassigned Type = "teacher.unassigned"

	PlanCreated  Type = "plan.created"
	PlanUpdated  Type = "plan.updated"
	PlanApproved Type = "plan.approved"
	PlanReturned Type = "plan.returned"

	ServicePlanCreated     Type = "service_plan.created"
	ServicePlanUpdated     Type = "service_plan.updated"
	ServiceSessionRecorded Type = "service_plan.session.recorded"

	EnrollmentCreated   Type = "enrollment.created"
	EnrollmentUpdated   Type = "enrollment.updated"
	EnrollmentCompleted Type = "enrollment.completed"

	// Wildcard handlers receive every event regardless of type.
	Wildcard Type = "*"
)

// Event is the immutable envelope built once per Emit and shared by local
// dispatch, broadcast, audit projection and webhook delivery. JSON field
// names are the cross-client wire format.
type Event struct {
	Type      Type           `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"userId,omitempty"`
	TenantID  string         `json:"tenantId,omitempty"`
	SchoolID  string         `json:"schoolId,omitempty"`
	Data      map[string]any `json:"data"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EntityID extracts the subject entity id from the payload, checking the
// conventional keys in order. Returns "" when the payload carries none.
func (e Event) EntityID() string {
	for _, key := range []string{"id", "recordId", "entityId"} {
		if v, ok := e.Data[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Handler reacts to one event. Errors are logged and isolated; they never
// affect sibling handlers or the emitting caller.
type Handler func(ctx context.Context, event Event) error
