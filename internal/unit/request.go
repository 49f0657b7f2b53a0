package unit

import (
	"fmt"

	"github.com/safedrive/reminderd/internal/domain"
)

// Request is a structured intake request naming the subject application, the
// permission category and the acting principal. All three are mandatory.
type Request struct {
	SubjectID   string
	CategoryID  string
	PrincipalID string
}

// NewRequest builds an intake request from the three identifiers.
func NewRequest(subjectID, categoryID, principalID string) Request {
	return Request{SubjectID: subjectID, CategoryID: categoryID, PrincipalID: principalID}
}

// Validate reports ErrMissingField when any identifier is absent.
func (r Request) Validate() error {
	switch {
	case r.SubjectID == "":
		return fmt.Errorf("%w: subject", ErrMissingField)
	case r.CategoryID == "":
		return fmt.Errorf("%w: category", ErrMissingField)
	case r.PrincipalID == "":
		return fmt.Errorf("%w: principal", ErrMissingField)
	}
	return nil
}

func (r Request) reminder() domain.Reminder {
	return domain.Reminder{
		SubjectID:   r.SubjectID,
		CategoryID:  r.CategoryID,
		PrincipalID: r.PrincipalID,
	}
}
