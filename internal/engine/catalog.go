package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"hrdesign/internal/domain"
	"hrdesign/internal/events"
	"hrdesign/internal/options"
	"hrdesign/internal/repo"
	"hrdesign/internal/survey"
)

// Catalog inputs carry Order as a pointer so a missing order is told apart from zero.
type IndustryInput struct {
	ID    string
	Name  string
	Order *int
}

type SubcategoryInput struct {
	ID         string
	IndustryID string
	Name       string
	Order      *int
}

type CEOQuestionInput struct {
	ID           string
	Section      string
	QuestionText string
	QuestionType string
	OptionsJSON  string
	Order        *int
	Required     bool
}

type SnapshotQuestionInput struct {
	ID           string
	QuestionText string
	Category     string
	AnswerType   string
	OptionsJSON  string
	Order        *int
	Required     bool
}

type IssueInput struct {
	ID       string
	Category string
	Name     string
	Order    *int
}

var (
	ceoQuestionTypes    = []string{"likert", "slider", "text", "textarea", "select", "multi_select"}
	snapshotAnswerTypes = []string{"text", "select", "multi_select", "scale"}
	catalogKindsByTable = map[string]string{repo.TableIndustries: "industry", repo.TableSubcategories: "subcategory", repo.TableCEOQuestions: "ceo_question", repo.TablePerformanceSnapshotQuestions: "performance_snapshot_question", repo.TableOrganizationalIssues: "organizational_issue"}
	errIDRequired       = FieldError{Field: "id", Message: "required"}
)

func required(fe *FieldErrors, field, v string) {
	if strings.TrimSpace(v) == "" {
		fe.add(field, "required")
	}
}

func requiredOrder(fe *FieldErrors, order *int) int {
	if order == nil {
		fe.add("order", "required")
		return 0
	}
	if *order < 0 {
		fe.add("order", "must be zero or greater")
	}
	return *order
}

func oneOf(fe *FieldErrors, field, v string, allowed []string) {
	if strings.TrimSpace(v) == "" {
		fe.add(field, "required")
		return
	}
	for _, a := range allowed {
		if a == v {
			return
		}
	}
	fe.add(field, "must be one of "+strings.Join(allowed, ", "))
}

// canonicalOptions validates a stored options column and rewrites it as value/label pairs.
func canonicalOptions(fe *FieldErrors, raw, kind string) string {
	raw = strings.TrimSpace(raw)
	opts, err := options.Parse(raw)
	if err != nil {
		fe.add("options", "must be a list of strings or value/label pairs")
		return ""
	}
	if kind == "select" && len(opts) == 0 {
		fe.add("options", "required for select questions")
		return ""
	}
	enc, err := options.Encode(opts)
	if err != nil {
		fe.add("options", err.Error())
	}
	return enc
}

func catalogID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}

// saveCatalog runs one catalog write and its event in a transaction.
func (e Engine) saveCatalog(ctx context.Context, table, id, op, actorID string, write func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := write(tx); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return FieldError{Field: "id", Message: "already exists"}
		}
		return err
	}
	payload := events.EventPayload{"table": table, "op": op}
	if err := e.append(ctx, tx, events.CatalogChanged, "", events.KindCatalog, catalogKindsByTable[table]+":"+id, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) SaveIndustry(ctx context.Context, in IndustryInput, create bool, actorID string) (domain.Industry, error) {
	var fe FieldErrors
	required(&fe, "name", in.Name)
	order := requiredOrder(&fe, in.Order)
	if !create && strings.TrimSpace(in.ID) == "" {
		fe = append(fe, errIDRequired)
	}
	if err := fe.err(); err != nil {
		return domain.Industry{}, err
	}
	i := domain.Industry{ID: catalogID(in.ID), Name: strings.TrimSpace(in.Name), Order: order}
	err := e.saveCatalog(ctx, repo.TableIndustries, i.ID, opName(create), actorID, func(tx *sql.Tx) error {
		if create {
			return e.Repo.InsertIndustry(ctx, tx, i)
		}
		return e.Repo.UpdateIndustry(ctx, tx, i)
	})
	return i, err
}

func (e Engine) SaveSubcategory(ctx context.Context, in SubcategoryInput, create bool, actorID string) (domain.Subcategory, error) {
	var fe FieldErrors
	required(&fe, "name", in.Name)
	required(&fe, "industry_id", in.IndustryID)
	order := requiredOrder(&fe, in.Order)
	if !create && strings.TrimSpace(in.ID) == "" {
		fe = append(fe, errIDRequired)
	}
	if err := fe.err(); err != nil {
		return domain.Subcategory{}, err
	}
	s := domain.Subcategory{ID: catalogID(in.ID), IndustryID: strings.TrimSpace(in.IndustryID), Name: strings.TrimSpace(in.Name), Order: order}
	err := e.saveCatalog(ctx, repo.TableSubcategories, s.ID, opName(create), actorID, func(tx *sql.Tx) error {
		if _, err := e.Repo.GetIndustry(ctx, tx, s.IndustryID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return FieldError{Field: "industry_id", Message: "unknown industry"}
			}
			return err
		}
		if create {
			return e.Repo.InsertSubcategory(ctx, tx, s)
		}
		return e.Repo.UpdateSubcategory(ctx, tx, s)
	})
	return s, err
}

func (e Engine) SaveCEOQuestion(ctx context.Context, in CEOQuestionInput, create bool, actorID string) (domain.CEOQuestion, error) {
	var fe FieldErrors
	required(&fe, "question_text", in.QuestionText)
	if _, ok := survey.ParseSection(in.Section); !ok || in.Section == string(survey.SectionIntro) {
		fe.add("section", "must be a survey section")
	}
	oneOf(&fe, "question_type", in.QuestionType, ceoQuestionTypes)
	order := requiredOrder(&fe, in.Order)
	opts := canonicalOptions(&fe, in.OptionsJSON, in.QuestionType)
	if !create && strings.TrimSpace(in.ID) == "" {
		fe = append(fe, errIDRequired)
	}
	if err := fe.err(); err != nil {
		return domain.CEOQuestion{}, err
	}
	q := domain.CEOQuestion{
		ID:           catalogID(in.ID),
		Section:      in.Section,
		QuestionText: strings.TrimSpace(in.QuestionText),
		QuestionType: in.QuestionType,
		OptionsJSON:  opts,
		Order:        order,
		Required:     in.Required,
	}
	err := e.saveCatalog(ctx, repo.TableCEOQuestions, q.ID, opName(create), actorID, func(tx *sql.Tx) error {
		if create {
			return e.Repo.InsertCEOQuestion(ctx, tx, q)
		}
		return e.Repo.UpdateCEOQuestion(ctx, tx, q)
	})
	return q, err
}

func (e Engine) SavePerformanceSnapshotQuestion(ctx context.Context, in SnapshotQuestionInput, create bool, actorID string) (domain.PerformanceSnapshotQuestion, error) {
	var fe FieldErrors
	required(&fe, "question_text", in.QuestionText)
	required(&fe, "category", in.Category)
	oneOf(&fe, "answer_type", in.AnswerType, snapshotAnswerTypes)
	order := requiredOrder(&fe, in.Order)
	opts := canonicalOptions(&fe, in.OptionsJSON, in.AnswerType)
	if !create && strings.TrimSpace(in.ID) == "" {
		fe = append(fe, errIDRequired)
	}
	if err := fe.err(); err != nil {
		return domain.PerformanceSnapshotQuestion{}, err
	}
	q := domain.PerformanceSnapshotQuestion{
		ID:           catalogID(in.ID),
		QuestionText: strings.TrimSpace(in.QuestionText),
		Category:     strings.TrimSpace(in.Category),
		AnswerType:   in.AnswerType,
		OptionsJSON:  opts,
		Order:        order,
		Required:     in.Required,
	}
	err := e.saveCatalog(ctx, repo.TablePerformanceSnapshotQuestions, q.ID, opName(create), actorID, func(tx *sql.Tx) error {
		if create {
			return e.Repo.InsertPerformanceSnapshotQuestion(ctx, tx, q)
		}
		return e.Repo.UpdatePerformanceSnapshotQuestion(ctx, tx, q)
	})
	return q, err
}

// SaveOrganizationalIssue accepts categories outside the taxonomy; they are shown under others.
func (e Engine) SaveOrganizationalIssue(ctx context.Context, in IssueInput, create bool, actorID string) (domain.OrganizationalIssue, error) {
	var fe FieldErrors
	required(&fe, "name", in.Name)
	required(&fe, "category", in.Category)
	order := requiredOrder(&fe, in.Order)
	if !create && strings.TrimSpace(in.ID) == "" {
		fe = append(fe, errIDRequired)
	}
	if err := fe.err(); err != nil {
		return domain.OrganizationalIssue{}, err
	}
	i := domain.OrganizationalIssue{ID: catalogID(in.ID), Category: strings.TrimSpace(in.Category), Name: strings.TrimSpace(in.Name), Order: order}
	err := e.saveCatalog(ctx, repo.TableOrganizationalIssues, i.ID, opName(create), actorID, func(tx *sql.Tx) error {
		if create {
			return e.Repo.InsertOrganizationalIssue(ctx, tx, i)
		}
		return e.Repo.UpdateOrganizationalIssue(ctx, tx, i)
	})
	return i, err
}

// DeleteCatalogItem removes a catalog row. There is no undo, so confirm must be set.
func (e Engine) DeleteCatalogItem(ctx context.Context, table, id string, confirm bool, actorID string) error {
	if _, ok := catalogKindsByTable[table]; !ok {
		return FieldError{Field: "table", Message: "unknown catalog"}
	}
	if !confirm {
		return ErrConfirmationRequired
	}
	return e.saveCatalog(ctx, table, id, "delete", actorID, func(tx *sql.Tx) error {
		return e.Repo.DeleteCatalogRow(ctx, tx, table, id)
	})
}

func opName(create bool) string {
	if create {
		return "create"
	}
	return "update"
}
