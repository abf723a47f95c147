package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrProjectLocked        = errors.New("project is locked")
	ErrStepLocked           = errors.New("step is locked until the previous step is completed")
	ErrStepNotEditable      = errors.New("step is not in progress")
	ErrStaleStatus          = errors.New("status was changed by another request")
	ErrNotAllCompleted      = errors.New("every step must be completed before the project can be locked")
	ErrPhilosophySubmitted  = errors.New("philosophy survey already submitted")
	ErrInvitationExpired    = errors.New("invitation has expired")
	ErrInvitationUsed       = errors.New("invitation has already been answered")
	ErrTokenExpired         = errors.New("review link has expired")
	ErrTokenExhausted       = errors.New("review link has no submissions left")
	ErrConfirmationRequired = errors.New("deletion requires confirm=true")
	ErrRoleRequestPending   = errors.New("a role request is already pending")
	ErrRoleRequestDecided   = errors.New("role request was already decided")
	ErrAlreadyCEO           = errors.New("user already holds the ceo role")
	ErrOtherCompany         = errors.New("user belongs to another company")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrInvalidCode          = errors.New("invalid or expired code")
)

// FieldError is a validation failure on one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors collects every failing field of one input.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, f := range e {
		parts = append(parts, f.Error())
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, "; ")
}

// Map keys messages by field; the first message for a field wins.
func (e FieldErrors) Map() map[string]string {
	out := make(map[string]string, len(e))
	for _, f := range e {
		if _, ok := out[f.Field]; !ok {
			out[f.Field] = f.Message
		}
	}
	return out
}

func (e *FieldErrors) add(field, msg string) {
	*e = append(*e, FieldError{Field: field, Message: msg})
}

func (e FieldErrors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// NotificationError reports a mail that failed after its state change committed.
type NotificationError struct {
	Event string
	Err   error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification %s: %v", e.Event, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
