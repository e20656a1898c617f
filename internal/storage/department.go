package storage

import (
	"context"
	"database/sql"

	"receipts-backend/internal/models"
)

func (s *Storage) CreateDepartment(ctx context.Context, orgID string, input models.CreateDepartmentInput) (*models.Department, error) {
	var dept models.Department
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO departments (organization_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, description, created_at
	`, orgID, input.Name, input.Description).
		Scan(&dept.ID, &dept.OrganizationID, &dept.Name, &dept.Description, &dept.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

func (s *Storage) ListDepartments(ctx context.Context, orgID string) ([]models.Department, error) {
	depts := make([]models.Department, 0)
	err := s.db.SelectContext(ctx, &depts, `
		SELECT d.id, d.organization_id, d.name, d.description, d.created_at,
		       COUNT(m.id) FILTER (WHERE m.is_active) AS member_count
		FROM departments d
		LEFT JOIN organization_members m ON m.department_id = d.id
		WHERE d.organization_id = $1
		GROUP BY d.id
		ORDER BY d.name
	`, orgID)
	return depts, err
}

func (s *Storage) GetDepartment(ctx context.Context, orgID, deptID string) (*models.Department, error) {
	var dept models.Department
	err := s.db.GetContext(ctx, &dept, `
		SELECT id, organization_id, name, description, 0 AS member_count, created_at
		FROM departments
		WHERE id = $1 AND organization_id = $2
	`, deptID, orgID)
	if err == sql.ErrNoRows {
		return nil, ErrDepartmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dept, nil
}

// DeleteDepartment removes the department row. Memberships survive; the
// FK sets their department_id to NULL so members only lose the tag.
func (s *Storage) DeleteDepartment(ctx context.Context, orgID, deptID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM departments
		WHERE id = $1 AND organization_id = $2
	`, deptID, orgID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDepartmentNotFound
	}
	return nil
}
