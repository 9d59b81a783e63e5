package lifecycle

import "time"

// Plan is an individualized education plan. One active version per student.
type Plan struct {
	ID             string         `json:"id"`
	TenantID       string         `json:"tenant_id"`
	StudentID      string         `json:"student_id"`
	SchoolID       string         `json:"school_id"`
	Status         string         `json:"status"`
	VersionNumber  int            `json:"version_number"`
	ActiveVersion  bool           `json:"is_active_version"`
	CreatedBy      string         `json:"created_by,omitempty"`
	EvaluationData map[string]any `json:"evaluation_data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ServicePlan is a specialized-service plan attached to a student.
type ServicePlan struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	StudentID string    `json:"student_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification is one guardian-facing message created by a lifecycle policy.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PlanID    string    `json:"plan_id"`
	Type      string    `json:"notification_type"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionNote is the structured record appended to a plan's evaluation data
// when a specialized-service session is recorded.
type SessionNote struct {
	ServicePlanID string `json:"service_plan_id"`
	SessionDate   string `json:"session_date"`
	Notes         string `json:"notes"`
	Progress      string `json:"progress"`
	CreatedAt     string `json:"created_at"`
}

const (
	StatusDraft = "draft"

	RoleTeacher = "teacher"
	RoleEditor  = "editor"

	NotificationPlanApproved = "plan_approved"
)
