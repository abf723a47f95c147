package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrdesign/internal/domain"
	"hrdesign/internal/events"
	"hrdesign/internal/options"
	"hrdesign/internal/repo"
)

const dateLayout = "2006-01-02"

type KPITokenOptions struct {
	ProjectID     string
	ReviewerName  string
	ReviewerEmail string
	// ExpiresOn is the last valid day (YYYY-MM-DD). Empty uses kpi.default_valid_days.
	ExpiresOn string
	ActorID   string
}

type SnapshotQuestion struct {
	ID         string           `json:"id"`
	Text       string           `json:"question_text"`
	Category   string           `json:"category"`
	AnswerType string           `json:"answer_type"`
	Options    []options.Option `json:"options"`
	Order      int              `json:"order"`
	Required   bool             `json:"required"`
}

// KPIReviewView is what a reviewer sees behind a review link.
type KPIReviewView struct {
	Token     domain.KPIReviewToken `json:"token"`
	Remaining int                   `json:"remaining"`
	Expired   bool                  `json:"expired"`
	Questions []SnapshotQuestion    `json:"questions"`
}

type KPIReviewInput struct {
	Answers map[string]any `json:"answers"`
	Comment string         `json:"comment,omitempty"`
}

func (e Engine) maxSubmissions() int {
	if e.Config != nil && e.Config.KPI.MaxSubmissions > 0 {
		return e.Config.KPI.MaxSubmissions
	}
	return 3
}

func (e Engine) today() string {
	return e.now().UTC().Format(dateLayout)
}

// CreateKPIReviewToken issues a review link for an external reviewer.
func (e Engine) CreateKPIReviewToken(ctx context.Context, opts KPITokenOptions) (domain.KPIReviewToken, error) {
	var fe FieldErrors
	if strings.TrimSpace(opts.ReviewerName) == "" {
		fe.add("reviewer_name", "required")
	}
	if !validEmail(opts.ReviewerEmail) {
		fe.add("reviewer_email", "must be a valid email address")
	}
	expires := strings.TrimSpace(opts.ExpiresOn)
	if expires == "" {
		days := 14
		if e.Config != nil && e.Config.KPI.DefaultValidDays > 0 {
			days = e.Config.KPI.DefaultValidDays
		}
		expires = e.now().UTC().AddDate(0, 0, days).Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, expires); err != nil {
		fe.add("expires_on", "must be a date (YYYY-MM-DD)")
	} else if expires < e.today() {
		fe.add("expires_on", "must not be in the past")
	}
	if err := fe.err(); err != nil {
		return domain.KPIReviewToken{}, err
	}
	token, err := randomToken(32)
	if err != nil {
		return domain.KPIReviewToken{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.KPIReviewToken{}, err
	}
	defer tx.Rollback()

	p, err := e.loadActive(ctx, tx, opts.ProjectID)
	if err != nil {
		return domain.KPIReviewToken{}, err
	}
	t := domain.KPIReviewToken{
		ID:            uuid.NewString(),
		Token:         token,
		ProjectID:     p.ID,
		ReviewerName:  strings.TrimSpace(opts.ReviewerName),
		ReviewerEmail: strings.ToLower(strings.TrimSpace(opts.ReviewerEmail)),
		ExpiresOn:     expires,
		MaxUses:       e.maxSubmissions(),
		CreatedBy:     opts.ActorID,
		CreatedAt:     e.stamp(),
	}
	if err := e.Repo.InsertKPIToken(ctx, tx, t); err != nil {
		return domain.KPIReviewToken{}, err
	}
	if err := e.append(ctx, tx, events.KPITokenCreated, p.ID, events.KindKPIToken, t.ID, opts.ActorID, events.EventPayload{"reviewer_email": t.ReviewerEmail, "expires_on": t.ExpiresOn, "max_uses": t.MaxUses}); err != nil {
		return domain.KPIReviewToken{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.KPIReviewToken{}, err
	}
	return t, nil
}

func (e Engine) snapshotQuestions(ctx context.Context) ([]SnapshotQuestion, error) {
	rows, err := e.Repo.ListPerformanceSnapshotQuestions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SnapshotQuestion, 0, len(rows))
	for _, q := range rows {
		opts, err := options.Parse(q.OptionsJSON)
		if err != nil {
			return nil, fmt.Errorf("question %s options: %w", q.ID, err)
		}
		out = append(out, SnapshotQuestion{
			ID:         q.ID,
			Text:       q.QuestionText,
			Category:   q.Category,
			AnswerType: q.AnswerType,
			Options:    opts,
			Order:      q.Order,
			Required:   q.Required,
		})
	}
	return out, nil
}

func (e Engine) GetKPIReviewToken(ctx context.Context, token string) (KPIReviewView, error) {
	t, err := e.Repo.GetKPIToken(ctx, nil, token)
	if err != nil {
		return KPIReviewView{}, err
	}
	qs, err := e.snapshotQuestions(ctx)
	if err != nil {
		return KPIReviewView{}, err
	}
	remaining := t.MaxUses - t.Uses
	if remaining < 0 {
		remaining = 0
	}
	return KPIReviewView{Token: t, Remaining: remaining, Expired: e.today() > t.ExpiresOn, Questions: qs}, nil
}

// checkAnswers rejects unknown question ids, missing required answers and values outside a select's options.
func checkAnswers(qs []SnapshotQuestion, answers map[string]any) error {
	var fe FieldErrors
	known := make(map[string]SnapshotQuestion, len(qs))
	for _, q := range qs {
		known[q.ID] = q
	}
	for id, v := range answers {
		q, ok := known[id]
		if !ok {
			fe.add("answers."+id, "unknown question")
			continue
		}
		if q.AnswerType == "select" && len(q.Options) > 0 && !options.Contains(q.Options, fmt.Sprint(v)) {
			fe.add("answers."+id, "not one of the allowed options")
		}
	}
	for _, q := range qs {
		if !q.Required {
			continue
		}
		v, ok := answers[q.ID]
		if !ok || v == nil || fmt.Sprint(v) == "" {
			fe.add("answers."+q.ID, "required")
		}
	}
	return fe.err()
}

// SubmitKPIReview records one review. The use counter is spent with a conditional update
// so concurrent submissions cannot exceed max_uses.
func (e Engine) SubmitKPIReview(ctx context.Context, token string, in KPIReviewInput) (domain.KPIReview, error) {
	qs, err := e.snapshotQuestions(ctx)
	if err != nil {
		return domain.KPIReview{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.KPIReview{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetKPIToken(ctx, tx, token)
	if err != nil {
		return domain.KPIReview{}, err
	}
	if e.today() > t.ExpiresOn {
		return domain.KPIReview{}, ErrTokenExpired
	}
	if t.Uses >= t.MaxUses {
		return domain.KPIReview{}, ErrTokenExhausted
	}
	if err := checkAnswers(qs, in.Answers); err != nil {
		return domain.KPIReview{}, err
	}
	if err := e.Repo.ConsumeKPIToken(ctx, tx, t.ID); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.KPIReview{}, ErrTokenExhausted
		}
		return domain.KPIReview{}, err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return domain.KPIReview{}, err
	}
	rv := domain.KPIReview{
		ID:          uuid.NewString(),
		TokenID:     t.ID,
		ProjectID:   t.ProjectID,
		PayloadJSON: string(payload),
		SubmittedAt: e.stamp(),
	}
	if err := e.Repo.InsertKPIReview(ctx, tx, rv); err != nil {
		return domain.KPIReview{}, err
	}
	if err := e.append(ctx, tx, events.KPIReviewSubmitted, t.ProjectID, events.KindKPIToken, t.ID, events.SystemActor, events.EventPayload{"review_id": rv.ID, "use": t.Uses + 1}); err != nil {
		return domain.KPIReview{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.KPIReview{}, err
	}
	return rv, nil
}

func (e Engine) ListKPIReviews(ctx context.Context, projectID string) ([]domain.KPIReview, error) {
	if _, err := e.Repo.GetProject(ctx, nil, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListKPIReviews(ctx, projectID)
}
