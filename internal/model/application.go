package model

import "time"

// ApplicationStatus is the lifecycle state an organizer assigns to an Application.
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusAccepted    ApplicationStatus = "accepted"
	StatusWaitlisted  ApplicationStatus = "waitlisted"
	StatusDeclined    ApplicationStatus = "declined"
)

// IsKnown reports whether s is one of the five statuses the frontend renders.
func (s ApplicationStatus) IsKnown() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusAccepted, StatusWaitlisted, StatusDeclined:
		return true
	}
	return false
}

// Application is a volunteer's request to participate in a Post.
//
// PostCreatorEmail is copied from the Post when the application is created and
// is never re-derived. At most one Application exists per (PostID, ApplicantEmail).
type Application struct {
	ID               string            `json:"_id"              bson:"_id"`
	PostID           string            `json:"postId"           bson:"postId"`
	ApplicantEmail   string            `json:"applicantEmail"   bson:"applicantEmail"`
	PostCreatorEmail string            `json:"postCreatorEmail" bson:"postCreatorEmail"`
	Status           ApplicationStatus `json:"status"           bson:"status"`
	CreatedAt        time.Time         `json:"createdAt"        bson:"createdAt"`
}

// ApplicationView is an Application enriched with fields from the Post and,
// for organizer listings, the applicant's User record. Response only.
type ApplicationView struct {
	Application
	PostTitle     string `json:"postTitle"`
	PostCategory  string `json:"postCategory"`
	ApplicantName string `json:"applicantName,omitempty"`
}
