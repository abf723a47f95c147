package repo

import (
	"context"
	"database/sql"
	"fmt"

	"hrdesign/internal/domain"
)

// Catalog tables that support generic deletion.
const (
	TableIndustries                   = "industries"
	TableSubcategories                = "subcategories"
	TableCEOQuestions                 = "ceo_questions"
	TablePerformanceSnapshotQuestions = "performance_snapshot_questions"
	TableOrganizationalIssues         = "organizational_issues"
)

var catalogTables = map[string]bool{
	TableIndustries:                   true,
	TableSubcategories:                true,
	TableCEOQuestions:                 true,
	TablePerformanceSnapshotQuestions: true,
	TableOrganizationalIssues:         true,
}

// DeleteCatalogRow removes one row of a catalog table.
func (r Repo) DeleteCatalogRow(ctx context.Context, tx *sql.Tx, table, id string) error {
	if !catalogTables[table] {
		return fmt.Errorf("unknown catalog table %q", table)
	}
	res, err := r.q(tx).ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, table), id)
	return affectedOrNotFound(res, err)
}

func (r Repo) ListIndustries(ctx context.Context) ([]domain.Industry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name,sort_order FROM industries ORDER BY sort_order, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Industry
	for rows.Next() {
		var i domain.Industry
		if err := rows.Scan(&i.ID, &i.Name, &i.Order); err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

func (r Repo) GetIndustry(ctx context.Context, tx *sql.Tx, id string) (domain.Industry, error) {
	var i domain.Industry
	err := r.q(tx).QueryRowContext(ctx, `SELECT id,name,sort_order FROM industries WHERE id=?`, id).Scan(&i.ID, &i.Name, &i.Order)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	return i, err
}

func (r Repo) InsertIndustry(ctx context.Context, tx *sql.Tx, i domain.Industry) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO industries(id,name,sort_order) VALUES (?,?,?)`, i.ID, i.Name, i.Order)
	return duplicate(err)
}

func (r Repo) UpdateIndustry(ctx context.Context, tx *sql.Tx, i domain.Industry) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE industries SET name=?, sort_order=? WHERE id=?`, i.Name, i.Order, i.ID)
	return affectedOrNotFound(res, err)
}

func (r Repo) ListSubcategories(ctx context.Context, industryID string) ([]domain.Subcategory, error) {
	query := `SELECT id,industry_id,name,sort_order FROM subcategories`
	var args []any
	if industryID != "" {
		query += ` WHERE industry_id=?`
		args = append(args, industryID)
	}
	query += ` ORDER BY industry_id, sort_order, name`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Subcategory
	for rows.Next() {
		var s domain.Subcategory
		if err := rows.Scan(&s.ID, &s.IndustryID, &s.Name, &s.Order); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertSubcategory(ctx context.Context, tx *sql.Tx, s domain.Subcategory) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO subcategories(id,industry_id,name,sort_order) VALUES (?,?,?,?)`, s.ID, s.IndustryID, s.Name, s.Order)
	return duplicate(err)
}

func (r Repo) UpdateSubcategory(ctx context.Context, tx *sql.Tx, s domain.Subcategory) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE subcategories SET industry_id=?, name=?, sort_order=? WHERE id=?`, s.IndustryID, s.Name, s.Order, s.ID)
	return affectedOrNotFound(res, err)
}

const ceoQuestionColumns = `id,section,question_text,question_type,options_json,sort_order,required`

// ListCEOQuestions returns questions ordered by section then order; section narrows when set.
func (r Repo) ListCEOQuestions(ctx context.Context, section string) ([]domain.CEOQuestion, error) {
	query := `SELECT ` + ceoQuestionColumns + ` FROM ceo_questions`
	var args []any
	if section != "" {
		query += ` WHERE section=?`
		args = append(args, section)
	}
	query += ` ORDER BY section, sort_order, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CEOQuestion
	for rows.Next() {
		var q domain.CEOQuestion
		var required int
		if err := rows.Scan(&q.ID, &q.Section, &q.QuestionText, &q.QuestionType, &q.OptionsJSON, &q.Order, &required); err != nil {
			return nil, err
		}
		q.Required = required == 1
		res = append(res, q)
	}
	return res, rows.Err()
}

func (r Repo) InsertCEOQuestion(ctx context.Context, tx *sql.Tx, q domain.CEOQuestion) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO ceo_questions(`+ceoQuestionColumns+`) VALUES (?,?,?,?,?,?,?)`,
		q.ID, q.Section, q.QuestionText, q.QuestionType, q.OptionsJSON, q.Order, boolInt(q.Required))
	return duplicate(err)
}

func (r Repo) UpdateCEOQuestion(ctx context.Context, tx *sql.Tx, q domain.CEOQuestion) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE ceo_questions SET section=?, question_text=?, question_type=?, options_json=?, sort_order=?, required=? WHERE id=?`,
		q.Section, q.QuestionText, q.QuestionType, q.OptionsJSON, q.Order, boolInt(q.Required), q.ID)
	return affectedOrNotFound(res, err)
}

const snapshotColumns = `id,question_text,category,answer_type,options_json,sort_order,required`

func (r Repo) ListPerformanceSnapshotQuestions(ctx context.Context) ([]domain.PerformanceSnapshotQuestion, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+snapshotColumns+` FROM performance_snapshot_questions ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PerformanceSnapshotQuestion
	for rows.Next() {
		var q domain.PerformanceSnapshotQuestion
		var required int
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.Category, &q.AnswerType, &q.OptionsJSON, &q.Order, &required); err != nil {
			return nil, err
		}
		q.Required = required == 1
		res = append(res, q)
	}
	return res, rows.Err()
}

func (r Repo) InsertPerformanceSnapshotQuestion(ctx context.Context, tx *sql.Tx, q domain.PerformanceSnapshotQuestion) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO performance_snapshot_questions(`+snapshotColumns+`) VALUES (?,?,?,?,?,?,?)`,
		q.ID, q.QuestionText, q.Category, q.AnswerType, q.OptionsJSON, q.Order, boolInt(q.Required))
	return duplicate(err)
}

func (r Repo) UpdatePerformanceSnapshotQuestion(ctx context.Context, tx *sql.Tx, q domain.PerformanceSnapshotQuestion) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE performance_snapshot_questions SET question_text=?, category=?, answer_type=?, options_json=?, sort_order=?, required=? WHERE id=?`,
		q.QuestionText, q.Category, q.AnswerType, q.OptionsJSON, q.Order, boolInt(q.Required), q.ID)
	return affectedOrNotFound(res, err)
}

func (r Repo) ListOrganizationalIssues(ctx context.Context) ([]domain.OrganizationalIssue, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,category,name,sort_order FROM organizational_issues ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.OrganizationalIssue
	for rows.Next() {
		var i domain.OrganizationalIssue
		if err := rows.Scan(&i.ID, &i.Category, &i.Name, &i.Order); err != nil {
			return nil, err
		}
		res = append(res, i)
	}
	return res, rows.Err()
}

func (r Repo) InsertOrganizationalIssue(ctx context.Context, tx *sql.Tx, i domain.OrganizationalIssue) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO organizational_issues(id,category,name,sort_order) VALUES (?,?,?,?)`, i.ID, i.Category, i.Name, i.Order)
	return duplicate(err)
}

func (r Repo) UpdateOrganizationalIssue(ctx context.Context, tx *sql.Tx, i domain.OrganizationalIssue) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE organizational_issues SET category=?, name=?, sort_order=? WHERE id=?`, i.Category, i.Name, i.Order, i.ID)
	return affectedOrNotFound(res, err)
}
