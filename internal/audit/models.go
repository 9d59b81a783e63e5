package audit

import "time"

// Action classifies what happened to an entity. The set is closed; compliance
// queries group and filter on it.
type Action string

const (
	ActionInsert    Action = "INSERT"
	ActionUpdate    Action = "UPDATE"
	ActionDelete    Action = "DELETE"
	ActionRead      Action = "READ"
	ActionExport    Action = "EXPORT"
	ActionAnonymize Action = "ANONYMIZE"
)

// EntityType names the kind of record an audit event refers to. Closed enum:
// new entity types must be added here before anything can audit them.
type EntityType string

const (
	EntityStudent       EntityType = "student"
	EntityPlan          EntityType = "plan"
	EntityServicePlan   EntityType = "service_plan"
	EntityEnrollment    EntityType = "enrollment"
	EntityClass         EntityType = "class"
	EntityProfessional  EntityType = "professional"
	EntityGuardian      EntityType = "guardian"
	EntityUser          EntityType = "user"
	EntityConsent       EntityType = "consent"
	EntityDSRRequest    EntityType = "dsr_request"
	EntityRetentionRule EntityType = "retention_rule"
	EntitySystem        EntityType = "system"
)

// Event is one append-only row of the audit trail. Never updated or deleted.
type Event struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenant_id"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     Action         `json:"action"`
	ActorID    string         `json:"actor_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Entry is the caller-facing payload for Trail.Log. Tenant and actor may be
// left empty; the trail resolves them best-effort from the request context.
type Entry struct {
	TenantID   string
	EntityType EntityType
	EntityID   string
	Action     Action
	ActorID    string
	Metadata   map[string]any
}

// Filter narrows GetTrail reads. TenantID is required; everything else is
// optional. Zero Limit applies the default page size.
type Filter struct {
	TenantID   string
	EntityType EntityType
	EntityID   string
	Action     Action
	ActorID    string
	From       time.Time
	To         time.Time
	Limit      int
}
