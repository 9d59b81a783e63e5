package lifecycle

import (
	"context"
	"sync"

	"peicollab/pkg/platform/sentinel"
)

// MemoryStore implements every lifecycle store interface in memory, for
// tests and local development.
type MemoryStore struct {
	mu            sync.RWMutex
	plans         map[string]Plan
	servicePlans  map[string]ServicePlan
	access        map[[2]string]string // (student, user) -> role
	collaborators map[[2]string]string // (plan, user) -> role
	classTeachers map[string][]string
	guardians     map[string][]string
	notifications []Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:         make(map[string]Plan),
		servicePlans:  make(map[string]ServicePlan),
		access:        make(map[[2]string]string),
		collaborators: make(map[[2]string]string),
		classTeachers: make(map[string][]string),
		guardians:     make(map[string][]string),
	}
}

// Stores returns the store bundle backed by this instance.
func (s *MemoryStore) Stores() Stores {
	return Stores{
		Plans:         s,
		ServicePlans:  memoryServicePlans{s},
		Access:        s,
		Rosters:       s,
		Guardians:     s,
		Notifications: s,
	}
}

func (s *MemoryStore) GetActivePlan(_ context.Context, studentID string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, plan := range s.plans {
		if plan.StudentID == studentID && plan.ActiveVersion {
			p := plan
			return &p, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryStore) CreateDraft(_ context.Context, plan Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan
	return nil
}

func (s *MemoryStore) UpsertCollaborator(_ context.Context, planID, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collaborators[[2]string{planID, userID}] = role
	return nil
}

func (s *MemoryStore) UpdateEvaluation(_ context.Context, planID string, evaluation map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planID]
	if !ok {
		return sentinel.ErrNotFound
	}
	plan.EvaluationData = evaluation
	s.plans[planID] = plan
	return nil
}

// memoryServicePlans is the ServicePlanStore view of a MemoryStore; a
// separate type because PlanStore claims the CreateDraft method name.
type memoryServicePlans struct {
	s *MemoryStore
}

func (v memoryServicePlans) GetLatest(_ context.Context, studentID string) (*ServicePlan, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var latest *ServicePlan
	for _, plan := range v.s.servicePlans {
		if plan.StudentID != studentID {
			continue
		}
		if latest == nil || plan.CreatedAt.After(latest.CreatedAt) {
			p := plan
			latest = &p
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest, nil
}

func (v memoryServicePlans) CreateDraft(_ context.Context, plan ServicePlan) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.servicePlans[plan.ID] = plan
	return nil
}

func (s *MemoryStore) UpsertAccess(_ context.Context, studentID, userID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access[[2]string{studentID, userID}] = role
	return nil
}

func (s *MemoryStore) ListClassTeachers(_ context.Context, classID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.classTeachers[classID]...), nil
}

func (s *MemoryStore) ListGuardians(_ context.Context, studentID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.guardians[studentID]...), nil
}

func (s *MemoryStore) InsertAll(_ context.Context, notifications []Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, notifications...)
	return nil
}

// Seed and inspection helpers for tests.

func (s *MemoryStore) SetClassTeachers(classID string, teacherIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.classTeachers[classID] = teacherIDs
}

func (s *MemoryStore) SetGuardians(studentID string, guardianIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guardians[studentID] = guardianIDs
}

func (s *MemoryStore) AccessRole(studentID, userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.access[[2]string{studentID, userID}]
	return role, ok
}

func (s *MemoryStore) CollaboratorRole(planID, userID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.collaborators[[2]string{planID, userID}]
	return role, ok
}

func (s *MemoryStore) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

func (s *MemoryStore) Plans() []Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		out = append(out, plan)
	}
	return out
}

func (s *MemoryStore) ServicePlans() []ServicePlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ServicePlan, 0, len(s.servicePlans))
	for _, plan := range s.servicePlans {
		out = append(out, plan)
	}
	return out
}
