// Package service contains the business rules of the volunteer marketplace.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this)      → validates, authorizes, orchestrates
//	Repository (data)   → reads/writes the document store
//
// Services depend on the repository interfaces, never on a concrete backend,
// and return apperror values. They know nothing about HTTP: the caller's
// identity arrives as a plain email string ("" for an anonymous request).
//
// OWNERSHIP:
// Every mutation of a post or application goes through Policy.CheckOwner,
// parameterized by the email that owns the resource:
//
//	post create/update/delete → post.organizerEmail
//	application submit       → application.applicantEmail
//	application status       → application.postCreatorEmail
//
// A Policy with Strict=false, the default, skips these checks and keeps the
// selective-protection map the SPA was built against. STRICT_OWNERSHIP turns
// them on.
package service

import (
	"github.com/sakif/volunteerhub/internal/apperror"
)

// Policy is the single ownership check shared by the mutating services.
type Policy struct {
	Strict bool
}

// CheckOwner reports whether actor may mutate a resource owned by owner.
// Anonymous actors get ErrUnauthorized, other users ErrForbidden.
func (p Policy) CheckOwner(actor, owner string) error {
	if !p.Strict {
		return nil
	}
	if actor == "" {
		return apperror.Unauthorized("unauthorized access")
	}
	if actor != owner {
		return apperror.Forbidden("forbidden access")
	}
	return nil
}

// Recorder receives domain events worth counting. metrics.Registry implements it.
type Recorder interface {
	ApplicationSubmitted(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) ApplicationSubmitted(string) {}

// Submission outcomes passed to Recorder.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)
