// Package notify builds, renders and delivers transactional mail.
package notify

import (
	"fmt"
	"strings"

	"hrdesign/internal/routes"
)

// Event names, one per notification type.
const (
	EventCEORoleApproved     = "ceo_role_approved"
	EventInvitationSent      = "invitation_sent"
	EventInvitationRejected  = "invitation_rejected"
	EventDiagnosisSubmitted  = "diagnosis_submitted"
	EventPhilosophyCompleted = "philosophy_completed"
	EventStepSubmitted       = "step_submitted"
	EventStepUnlocked        = "step_unlocked"
	EventSystemLocked        = "system_locked"
	EventPasswordResetOTP    = "password_reset_otp"
)

const ChannelMail = "mail"

type Action struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Message is the channel-neutral content of a mail.
type Message struct {
	Subject     string   `json:"subject"`
	Greeting    string   `json:"greeting,omitempty"`
	IntroLines  []string `json:"intro_lines,omitempty"`
	Action      *Action  `json:"action,omitempty"`
	OutroLines  []string `json:"outro_lines,omitempty"`
	Salutation  string   `json:"salutation,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	AcceptURL   string   `json:"accept_url,omitempty"`
	RejectURL   string   `json:"reject_url,omitempty"`
	LoginURL    string   `json:"login_url,omitempty"`
}

type Recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

func (r Recipient) greeting() string {
	if strings.TrimSpace(r.Name) == "" {
		return "Hello,"
	}
	return fmt.Sprintf("Hello %s,", r.Name)
}

// Notification is one mail-worthy event.
type Notification interface {
	Event() string
	Channels() []string
	// Queued reports whether delivery goes through the outbox instead of inline.
	Queued() bool
	Message(links routes.Resolver) Message
}

type mailOnly struct{}

func (mailOnly) Channels() []string { return []string{ChannelMail} }

const defaultSalutation = "Regards,\nThe HR Design team"

type CEORoleApproved struct {
	mailOnly
	CompanyName string
}

func (CEORoleApproved) Event() string { return EventCEORoleApproved }
func (CEORoleApproved) Queued() bool  { return true }

func (n CEORoleApproved) Message(links routes.Resolver) Message {
	login := links.MustURL(routes.Login)
	return Message{
		Subject:     "Your CEO access has been approved",
		IntroLines:  []string{fmt.Sprintf("Your request to act as CEO for %s has been approved.", n.CompanyName)},
		Action:      &Action{Text: "Log in", URL: login},
		OutroLines:  []string{"You can now review submissions and answer the management philosophy survey."},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
		LoginURL:    login,
	}
}

type InvitationSent struct {
	mailOnly
	CompanyName string
	InviterName string
	Token       string
	ExpiresAt   string
}

func (InvitationSent) Event() string { return EventInvitationSent }
func (InvitationSent) Queued() bool  { return true }

func (n InvitationSent) Message(links routes.Resolver) Message {
	accept := links.MustURL(routes.InvitationsAccept, "token", n.Token)
	return Message{
		Subject: fmt.Sprintf("You are invited to join %s on HR Design", n.CompanyName),
		IntroLines: []string{
			fmt.Sprintf("%s invited you to take part in the HR system design of %s as CEO.", n.InviterName, n.CompanyName),
			fmt.Sprintf("The invitation expires on %s.", n.ExpiresAt),
		},
		Action:      &Action{Text: "Accept invitation", URL: accept},
		OutroLines:  []string{"If you were not expecting this invitation you can decline it."},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
		AcceptURL:   accept,
		RejectURL:   accept + "?decision=reject",
		LoginURL:    links.MustURL(routes.Login),
	}
}

type InvitationRejected struct {
	mailOnly
	CompanyName  string
	InviteeEmail string
}

func (InvitationRejected) Event() string { return EventInvitationRejected }
func (InvitationRejected) Queued() bool  { return true }

func (n InvitationRejected) Message(links routes.Resolver) Message {
	return Message{
		Subject:     "An invitation was declined",
		IntroLines:  []string{fmt.Sprintf("%s declined the invitation to join %s.", n.InviteeEmail, n.CompanyName)},
		Action:      &Action{Text: "Open dashboard", URL: links.MustURL(routes.HRManagerDashboard)},
		OutroLines:  []string{"You can send a new invitation from the dashboard."},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
	}
}

type DiagnosisSubmitted struct {
	mailOnly
	CompanyName string
	ProjectID   string
	SubmittedBy string
}

func (DiagnosisSubmitted) Event() string { return EventDiagnosisSubmitted }
func (DiagnosisSubmitted) Queued() bool  { return true }

func (n DiagnosisSubmitted) Message(links routes.Resolver) Message {
	return Message{
		Subject:     "The diagnosis is ready for your review",
		IntroLines:  []string{fmt.Sprintf("%s submitted the diagnosis for %s.", n.SubmittedBy, n.CompanyName)},
		Action:      &Action{Text: "Review diagnosis", URL: links.MustURL(routes.CEOReviewDiagnosis, "project", n.ProjectID)},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
	}
}

type PhilosophyCompleted struct {
	mailOnly
	CompanyName string
	ProjectID   string
	CEOName     string
}

func (PhilosophyCompleted) Event() string { return EventPhilosophyCompleted }
func (PhilosophyCompleted) Queued() bool  { return true }

func (n PhilosophyCompleted) Message(links routes.Resolver) Message {
	return Message{
		Subject:     "The CEO completed the management philosophy survey",
		IntroLines:  []string{fmt.Sprintf("%s completed the management philosophy survey for %s.", n.CEOName, n.CompanyName), "Organization design is now available."},
		Action:      &Action{Text: "Continue", URL: links.MustURL(routes.DashboardHRManager)},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
	}
}

type StepSubmitted struct {
	mailOnly
	CompanyName string
	ProjectID   string
	StepTitle   string
}

func (StepSubmitted) Event() string { return EventStepSubmitted }
func (StepSubmitted) Queued() bool  { return false }

func (n StepSubmitted) Message(links routes.Resolver) Message {
	return Message{
		Subject:     fmt.Sprintf("%s was submitted", n.StepTitle),
		IntroLines:  []string{fmt.Sprintf("%s for %s was submitted and waits for approval.", n.StepTitle, n.CompanyName)},
		Action:      &Action{Text: "Open dashboard", URL: links.MustURL(routes.DashboardCEO)},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
	}
}

type StepUnlocked struct {
	mailOnly
	CompanyName string
	ProjectID   string
	StepTitle   string
}

func (StepUnlocked) Event() string { return EventStepUnlocked }
func (StepUnlocked) Queued() bool  { return false }

func (n StepUnlocked) Message(links routes.Resolver) Message {
	return Message{
		Subject:     fmt.Sprintf("%s is now unlocked", n.StepTitle),
		IntroLines:  []string{fmt.Sprintf("Everything before it is done. You can start %s for %s.", n.StepTitle, n.CompanyName)},
		Action:      &Action{Text: "Start now", URL: links.MustURL(routes.HRManagerDashboard)},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
	}
}

type SystemLocked struct {
	mailOnly
	CompanyName string
	ProjectID   string
}

func (SystemLocked) Event() string { return EventSystemLocked }
func (SystemLocked) Queued() bool  { return true }

func (n SystemLocked) Message(links routes.Resolver) Message {
	return Message{
		Subject:     "The HR system design is final",
		IntroLines:  []string{fmt.Sprintf("All steps for %s were completed and the design is now locked.", n.CompanyName)},
		Action:      &Action{Text: "View overview", URL: links.MustURL(routes.HRSystemOverview, "project", n.ProjectID)},
		OutroLines:  []string{"The locked design is read-only."},
		Salutation:  defaultSalutation,
		CompanyName: n.CompanyName,
	}
}

type PasswordResetOTP struct {
	mailOnly
	Code      string
	ExpiresIn string
}

func (PasswordResetOTP) Event() string { return EventPasswordResetOTP }
func (PasswordResetOTP) Queued() bool  { return false }

func (n PasswordResetOTP) Message(links routes.Resolver) Message {
	login := links.MustURL(routes.Login)
	return Message{
		Subject:    "Your password reset code",
		IntroLines: []string{fmt.Sprintf("Your one-time code is %s.", n.Code), fmt.Sprintf("It expires in %s.", n.ExpiresIn)},
		OutroLines: []string{"If you did not request a reset, ignore this mail."},
		Salutation: defaultSalutation,
		LoginURL:   login,
	}
}
