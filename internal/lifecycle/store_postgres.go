package lifecycle

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"peicollab/pkg/platform/sentinel"
)

// PostgresStore implements the lifecycle store interfaces against the plans,
// service_plans, student_access, plan_collaborators, class_teachers,
// student_guardians and plan_notifications tables.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Stores returns the store bundle backed by this instance.
func (s *PostgresStore) Stores() Stores {
	return Stores{
		Plans:         s,
		ServicePlans:  postgresServicePlans{s},
		Access:        s,
		Rosters:       s,
		Guardians:     s,
		Notifications: s,
	}
}

func (s *PostgresStore) GetActivePlan(ctx context.Context, studentID string) (*Plan, error) {
	var plan Plan
	var evaluation []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, student_id, school_id, status, version_number, is_active_version,
			COALESCE(created_by, ''), evaluation_data, created_at, updated_at
		FROM plans
		WHERE student_id = $1 AND is_active_version = TRUE`,
		studentID,
	).Scan(&plan.ID, &plan.TenantID, &plan.StudentID, &plan.SchoolID, &plan.Status,
		&plan.VersionNumber, &plan.ActiveVersion, &plan.CreatedBy, &evaluation,
		&plan.CreatedAt, &plan.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active plan: %w", err)
	}
	if len(evaluation) > 0 {
		if err := json.Unmarshal(evaluation, &plan.EvaluationData); err != nil {
			return nil, fmt.Errorf("unmarshal evaluation data: %w", err)
		}
	}
	return &plan, nil
}

func (s *PostgresStore) CreateDraft(ctx context.Context, plan Plan) error {
	evaluation, err := json.Marshal(plan.EvaluationData)
	if err != nil {
		return fmt.Errorf("marshal evaluation data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (id, tenant_id, student_id, school_id, status, version_number,
			is_active_version, created_by, evaluation_data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $10)`,
		plan.ID, plan.TenantID, plan.StudentID, plan.SchoolID, plan.Status,
		plan.VersionNumber, plan.ActiveVersion, plan.CreatedBy, evaluation, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertCollaborator(ctx context.Context, planID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plan_collaborators (plan_id, user_id, role, permissions)
		VALUES ($1, $2, $3, '{}')
		ON CONFLICT (plan_id, user_id) DO UPDATE SET role = EXCLUDED.role`,
		planID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("upsert plan collaborator: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateEvaluation(ctx context.Context, planID string, evaluation map[string]any) error {
	data, err := json.Marshal(evaluation)
	if err != nil {
		return fmt.Errorf("marshal evaluation data: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE plans SET evaluation_data = $2, updated_at = NOW() WHERE id = $1`,
		planID, data,
	)
	if err != nil {
		return fmt.Errorf("update plan evaluation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plan evaluation rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// postgresServicePlans is the ServicePlanStore view of a PostgresStore; a
// separate type because PlanStore claims the CreateDraft method name.
type postgresServicePlans struct {
	s *PostgresStore
}

func (v postgresServicePlans) GetLatest(ctx context.Context, studentID string) (*ServicePlan, error) {
	var plan ServicePlan
	err := v.s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, student_id, status, created_at
		FROM service_plans
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		studentID,
	).Scan(&plan.ID, &plan.TenantID, &plan.StudentID, &plan.Status, &plan.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest service plan: %w", err)
	}
	return &plan, nil
}

func (v postgresServicePlans) CreateDraft(ctx context.Context, plan ServicePlan) error {
	_, err := v.s.db.ExecContext(ctx, `
		INSERT INTO service_plans (id, tenant_id, student_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		plan.ID, plan.TenantID, plan.StudentID, plan.Status, plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert service plan draft: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpsertAccess(ctx context.Context, studentID, userID, role string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO student_access (student_id, user_id, role, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (student_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = NOW()`,
		studentID, userID, role,
	)
	if err != nil {
		return fmt.Errorf("upsert student access: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListClassTeachers(ctx context.Context, classID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT teacher_id FROM class_teachers WHERE class_id = $1`, classID)
}

func (s *PostgresStore) ListGuardians(ctx context.Context, studentID string) ([]string, error) {
	return s.listIDs(ctx, `SELECT guardian_user_id FROM student_guardians WHERE student_id = $1`, studentID)
}

func (s *PostgresStore) listIDs(ctx context.Context, query, arg string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ids: %w", err)
	}
	return ids, nil
}

func (s *PostgresStore) InsertAll(ctx context.Context, notifications []Notification) error {
	for _, n := range notifications {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO plan_notifications (id, user_id, plan_id, notification_type, is_read, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, n.UserID, n.PlanID, n.Type, n.Read, n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert plan notification: %w", err)
		}
	}
	return nil
}
