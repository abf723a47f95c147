package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hrdesign/internal/domain"
)

const projectColumns = `id,company_id,status,diagnosis_status,organization_status,performance_status,compensation_status,ceo_philosophy_status,created_by,created_at,updated_at,locked_at`

// stepColumns maps step keys to their status column. Keys outside this map are rejected before SQL is built.
var stepColumns = map[string]string{
	"diagnosis":    "diagnosis_status",
	"organization": "organization_status",
	"performance":  "performance_status",
	"compensation": "compensation_status",
}

func scanProject(row interface{ Scan(...any) error }) (domain.Project, error) {
	var p domain.Project
	var locked sql.NullString
	err := row.Scan(&p.ID, &p.CompanyID, &p.Status, &p.DiagnosisStatus, &p.OrganizationStatus, &p.PerformanceStatus,
		&p.CompensationStatus, &p.CEOPhilosophyStatus, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &locked)
	if err != nil {
		return p, err
	}
	p.LockedAt = stringPtr(locked)
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.CompanyID, p.Status, p.DiagnosisStatus, p.OrganizationStatus, p.PerformanceStatus, p.CompensationStatus,
		p.CEOPhilosophyStatus, p.CreatedBy, p.CreatedAt, p.UpdatedAt, nullableStringPtr(p.LockedAt))
	return err
}

func (r Repo) GetProject(ctx context.Context, tx *sql.Tx, id string) (domain.Project, error) {
	p, err := scanProject(r.q(tx).QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

type ProjectFilters struct {
	CompanyID string
	Status    string
	// StepStatus selects projects where any step has this raw status.
	StepStatus string
	Limit      int
}

func (r Repo) ListProjects(ctx context.Context, f ProjectFilters) ([]domain.Project, error) {
	var clauses []string
	var args []any
	if f.CompanyID != "" {
		clauses = append(clauses, "company_id=?")
		args = append(args, f.CompanyID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.StepStatus != "" {
		clauses = append(clauses, "(diagnosis_status=? OR organization_status=? OR performance_status=? OR compensation_status=?)")
		args = append(args, f.StepStatus, f.StepStatus, f.StepStatus, f.StepStatus)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + projectColumns + ` FROM projects ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateStepStatus moves a step from one raw status to another on an active project.
// It returns ErrConflict when the row no longer holds the expected status.
func (r Repo) UpdateStepStatus(ctx context.Context, tx *sql.Tx, projectID, step, from, to, now string) error {
	col, ok := stepColumns[step]
	if !ok {
		return fmt.Errorf("unknown step %q", step)
	}
	res, err := r.q(tx).ExecContext(ctx,
		fmt.Sprintf(`UPDATE projects SET %s=?, updated_at=? WHERE id=? AND %s=? AND status='active'`, col, col),
		to, now, projectID, from)
	return affectedOrConflict(res, err)
}

func (r Repo) UpdatePhilosophyStatus(ctx context.Context, tx *sql.Tx, projectID, from, to, now string) error {
	res, err := r.q(tx).ExecContext(ctx,
		`UPDATE projects SET ceo_philosophy_status=?, updated_at=? WHERE id=? AND ceo_philosophy_status=? AND status='active'`,
		to, now, projectID, from)
	return affectedOrConflict(res, err)
}

// LockProject freezes every step, the philosophy gate and the project itself.
func (r Repo) LockProject(ctx context.Context, tx *sql.Tx, projectID, now string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET
  status='locked',
  diagnosis_status='locked',
  organization_status='locked',
  performance_status='locked',
  compensation_status='locked',
  ceo_philosophy_status='locked',
  locked_at=?,
  updated_at=?
WHERE id=? AND status='active'`, now, now, projectID)
	return affectedOrConflict(res, err)
}

func (r Repo) CountProjectsByStatus(ctx context.Context) (map[string]int, error) {
	return countBy(ctx, r.DB, `SELECT status, COUNT(*) FROM projects GROUP BY status`)
}

// UpsertStepData stores the autosaved form for a step. Last write wins.
func (r Repo) UpsertStepData(ctx context.Context, tx *sql.Tx, d domain.StepData) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO step_data(project_id,step,payload_json,updated_by,updated_at) VALUES (?,?,?,?,?)
ON CONFLICT(project_id,step) DO UPDATE SET payload_json=excluded.payload_json, updated_by=excluded.updated_by, updated_at=excluded.updated_at`,
		d.ProjectID, d.Step, d.PayloadJSON, d.UpdatedBy, d.UpdatedAt)
	return err
}

func (r Repo) GetStepData(ctx context.Context, projectID, step string) (domain.StepData, error) {
	var d domain.StepData
	err := r.DB.QueryRowContext(ctx, `SELECT project_id,step,payload_json,updated_by,updated_at FROM step_data WHERE project_id=? AND step=?`, projectID, step).
		Scan(&d.ProjectID, &d.Step, &d.PayloadJSON, &d.UpdatedBy, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}
