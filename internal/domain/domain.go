package domain

// Roles a user can hold.
const (
	RoleHRManager  = "hr_manager"
	RoleCEO        = "ceo"
	RoleConsultant = "consultant"
	RoleAdmin      = "admin"
)

var Roles = []string{RoleHRManager, RoleCEO, RoleConsultant, RoleAdmin}

func ValidRole(r string) bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

type Company struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	IndustryID    *string `json:"industry_id,omitempty"`
	SubcategoryID *string `json:"subcategory_id,omitempty"`
	LogoURL       string  `json:"logo_url,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

type User struct {
	ID           string  `json:"id"`
	CompanyID    *string `json:"company_id,omitempty"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	PasswordHash string  `json:"-"`
	Role         string  `json:"role" enum:"hr_manager,ceo,consultant,admin"`
	Appearance   string  `json:"appearance" enum:"light,dark,system"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

// Project carries one raw status per step plus the CEO philosophy gate.
type Project struct {
	ID                  string  `json:"id"`
	CompanyID           string  `json:"company_id"`
	Status              string  `json:"status" enum:"active,locked"`
	DiagnosisStatus     string  `json:"diagnosis_status"`
	OrganizationStatus  string  `json:"organization_status"`
	PerformanceStatus   string  `json:"performance_status"`
	CompensationStatus  string  `json:"compensation_status"`
	CEOPhilosophyStatus string  `json:"ceo_philosophy_status" enum:"not_started,in_progress,completed,locked"`
	CreatedBy           string  `json:"created_by"`
	CreatedAt           string  `json:"created_at" format:"date-time"`
	UpdatedAt           string  `json:"updated_at" format:"date-time"`
	LockedAt            *string `json:"locked_at,omitempty" format:"date-time"`
}

const (
	ProjectActive = "active"
	ProjectLocked = "locked"
)

// StepStatuses returns the raw step mapping keyed by step name.
func (p Project) StepStatuses() map[string]string {
	return map[string]string{
		"diagnosis":    p.DiagnosisStatus,
		"organization": p.OrganizationStatus,
		"performance":  p.PerformanceStatus,
		"compensation": p.CompensationStatus,
	}
}

type StepData struct {
	ProjectID   string `json:"project_id"`
	Step        string `json:"step"`
	PayloadJSON string `json:"payload_json"`
	UpdatedBy   string `json:"updated_by"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type SurveyResponse struct {
	ProjectID      string  `json:"project_id"`
	UserID         string  `json:"user_id"`
	CurrentSection int     `json:"current_section"`
	HasAgreed      bool    `json:"has_agreed"`
	PayloadJSON    string  `json:"payload_json"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
	SubmittedAt    *string `json:"submitted_at,omitempty" format:"date-time"`
}

const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationRejected = "rejected"
)

type Invitation struct {
	ID          string  `json:"id"`
	Token       string  `json:"-"`
	CompanyID   string  `json:"company_id"`
	ProjectID   *string `json:"project_id,omitempty"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Status      string  `json:"status" enum:"pending,accepted,rejected"`
	InvitedBy   string  `json:"invited_by"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	ExpiresAt   string  `json:"expires_at" format:"date-time"`
	RespondedAt *string `json:"responded_at,omitempty" format:"date-time"`
}

const (
	RoleRequestPending  = "pending"
	RoleRequestApproved = "approved"
	RoleRequestRejected = "rejected"
)

type RoleRequest struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	CompanyID string  `json:"company_id"`
	Status    string  `json:"status" enum:"pending,approved,rejected"`
	Note      string  `json:"note,omitempty"`
	DecidedBy *string `json:"decided_by,omitempty"`
	DecidedAt *string `json:"decided_at,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type KPIReviewToken struct {
	ID            string `json:"id"`
	Token         string `json:"-"`
	ProjectID     string `json:"project_id"`
	ReviewerName  string `json:"reviewer_name"`
	ReviewerEmail string `json:"reviewer_email"`
	ExpiresOn     string `json:"expires_on" format:"date"`
	MaxUses       int    `json:"max_uses"`
	Uses          int    `json:"uses"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type KPIReview struct {
	ID          string `json:"id"`
	TokenID     string `json:"token_id"`
	ProjectID   string `json:"project_id"`
	PayloadJSON string `json:"payload_json"`
	SubmittedAt string `json:"submitted_at" format:"date-time"`
}

type Industry struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
}

type Subcategory struct {
	ID         string `json:"id"`
	IndustryID string `json:"industry_id"`
	Name       string `json:"name"`
	Order      int    `json:"order"`
}

type CEOQuestion struct {
	ID           string `json:"id"`
	Section      string `json:"section"`
	QuestionText string `json:"question_text"`
	QuestionType string `json:"question_type" enum:"likert,slider,text,textarea,select,multi_select"`
	OptionsJSON  string `json:"options_json,omitempty"`
	Order        int    `json:"order"`
	Required     bool   `json:"required"`
}

type PerformanceSnapshotQuestion struct {
	ID           string `json:"id"`
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
	AnswerType   string `json:"answer_type" enum:"text,select,multi_select,scale"`
	OptionsJSON  string `json:"options_json,omitempty"`
	Order        int    `json:"order"`
	Required     bool   `json:"required"`
}

type OrganizationalIssue struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
}

const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxSent       = "sent"
	OutboxFailed     = "failed"
)

type OutboxMessage struct {
	ID          string  `json:"id"`
	Event       string  `json:"event"`
	Recipient   string  `json:"recipient"`
	PayloadJSON string  `json:"payload_json"`
	Status      string  `json:"status" enum:"pending,processing,sent,failed"`
	Attempts    int     `json:"attempts"`
	LastError   string  `json:"last_error,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	SentAt      *string `json:"sent_at,omitempty" format:"date-time"`
}

type Session struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	ExpiresAt string  `json:"expires_at" format:"date-time"`
	RevokedAt *string `json:"revoked_at,omitempty" format:"date-time"`
}

type PasswordResetOTP struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	CodeHash  string  `json:"-"`
	ExpiresAt string  `json:"expires_at" format:"date-time"`
	UsedAt    *string `json:"used_at,omitempty" format:"date-time"`
	Attempts  int     `json:"attempts"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
