package events

import "peicollab/internal/audit"

// Classification is the audit projection of one event type.
type Classification struct {
	Entity audit.EntityType
	Action audit.Action
}

// Classify maps an event type to its audit projection. The mapping is
// exhaustive over the Type constants; event types without a create/update/
// delete suffix project as READ. Unknown types report ok=false and are
// skipped by the projection with a warning.
func Classify(t Type) (Classification, bool) {
	c, ok := classifications[t]
	return c, ok
}

var classifications = map[Type]Classification{
	StudentCreated: {audit.EntityStudent, audit.ActionInsert},
	StudentUpdated: {audit.EntityStudent, audit.ActionUpdate},
	StudentDeleted: {audit.EntityStudent, audit.ActionDelete},

	ClassCreated: {audit.EntityClass, audit.ActionInsert},
	ClassUpdated: {audit.EntityClass, audit.ActionUpdate},
	ClassChanged: {audit.EntityClass, audit.ActionRead},

	TeacherAssigned:   {audit.EntityProfessional, audit.ActionRead},
	TeacherUnassigned: {audit.EntityProfessional, audit.ActionRead},

	PlanCreated:  {audit.EntityPlan, audit.ActionInsert},
	PlanUpdated:  {audit.EntityPlan, audit.ActionUpdate},
	PlanApproved: {audit.EntityPlan, audit.ActionRead},
	PlanReturned: {audit.EntityPlan, audit.ActionRead},

	ServicePlanCreated:     {audit.EntityServicePlan, audit.ActionInsert},
	ServicePlanUpdated:     {audit.EntityServicePlan, audit.ActionUpdate},
	ServiceSessionRecorded: {audit.EntityServicePlan, audit.ActionRead},

	EnrollmentCreated:   {audit.EntityEnrollment, audit.ActionInsert},
	EnrollmentUpdated:   {audit.EntityEnrollment, audit.ActionUpdate},
	EnrollmentCompleted: {audit.EntityEnrollment, audit.ActionRead},
}
