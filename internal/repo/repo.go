package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hrdesign/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrDuplicate = errors.New("already exists")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q picks the transaction when one is in flight.
func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) InsertCompany(ctx context.Context, tx *sql.Tx, c domain.Company) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO companies(id,name,industry_id,subcategory_id,logo_url,created_at) VALUES (?,?,?,?,?,?)`,
		c.ID, c.Name, nullableStringPtr(c.IndustryID), nullableStringPtr(c.SubcategoryID), c.LogoURL, c.CreatedAt)
	return err
}

func (r Repo) GetCompany(ctx context.Context, tx *sql.Tx, id string) (domain.Company, error) {
	var c domain.Company
	var industry, sub sql.NullString
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,name,industry_id,subcategory_id,logo_url,created_at FROM companies WHERE id=?`, id).
		Scan(&c.ID, &c.Name, &industry, &sub, &c.LogoURL, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	c.IndustryID = stringPtr(industry)
	c.SubcategoryID = stringPtr(sub)
	return c, err
}

func (r Repo) CountCompanies(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`).Scan(&n)
	return n, err
}

const userColumns = `id,company_id,name,email,password_hash,role,appearance,created_at`

func scanUser(row interface{ Scan(...any) error }) (domain.User, error) {
	var u domain.User
	var company sql.NullString
	if err := row.Scan(&u.ID, &company, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Appearance, &u.CreatedAt); err != nil {
		return u, err
	}
	u.CompanyID = stringPtr(company)
	return u, nil
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) error {
	if u.Appearance == "" {
		u.Appearance = "system"
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO users(`+userColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		u.ID, nullableStringPtr(u.CompanyID), u.Name, strings.ToLower(u.Email), u.PasswordHash, u.Role, u.Appearance, u.CreatedAt)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("user %s: %w", u.Email, ErrDuplicate)
	}
	return err
}

func (r Repo) GetUser(ctx context.Context, tx *sql.Tx, id string) (domain.User, error) {
	u, err := scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) GetUserByEmail(ctx context.Context, tx *sql.Tx, email string) (domain.User, error) {
	u, err := scanUser(r.q(tx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	return u, err
}

// ListCompanyUsers returns users of a company, optionally narrowed to one role.
func (r Repo) ListCompanyUsers(ctx context.Context, tx *sql.Tx, companyID, role string) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE company_id=?`
	args := []any{companyID}
	if role != "" {
		query += ` AND role=?`
		args = append(args, role)
	}
	query += ` ORDER BY created_at, id`
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

// SetUserRole moves a user into a role and company.
func (r Repo) SetUserRole(ctx context.Context, tx *sql.Tx, userID, companyID, role string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET role=?, company_id=? WHERE id=?`, role, companyID, userID)
	return affectedOrNotFound(res, err)
}

func (r Repo) SetUserPassword(ctx context.Context, tx *sql.Tx, userID, hash string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, hash, userID)
	return affectedOrNotFound(res, err)
}

func (r Repo) SetAppearance(ctx context.Context, userID, appearance string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET appearance=? WHERE id=?`, appearance, userID)
	return affectedOrNotFound(res, err)
}

// CountUsersByRole is used by the admin dashboard.
func (r Repo) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	return countBy(ctx, r.DB, `SELECT role, COUNT(*) FROM users GROUP BY role`)
}

func countBy(ctx context.Context, q querier, query string, args ...any) (map[string]int, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		res[key] = count
	}
	return res, rows.Err()
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func affectedOrConflict(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// duplicate maps a unique violation to ErrDuplicate.
func duplicate(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
