// Package model defines the data structures used throughout the application.
//
// STRUCT TAGS:
// Each field carries two tags: `json:"..."` for the REST API and `bson:"..."`
// for the MongoDB document. The identifier is exposed as "_id" in both so the
// SPA sees the same shape regardless of which store backs the server.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Categories is the fixed list a Post's category must come from.
var Categories = []string{
	"Healthcare",
	"Education",
	"Social Service",
	"Animal Welfare",
	"Environment",
	"Community Development",
	"Disaster Relief",
}

// IsValidCategory reports whether c is one of Categories (exact match).
func IsValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Post is a volunteer-opportunity listing created by an organizer.
//
// InterestedVolunteers is a derived counter. It starts at 0 and changes only
// when an Application is submitted; client updates never write it.
//
// Deadline is stored as a canonical RFC3339 UTC string (see NormalizeDeadline).
type Post struct {
	ID                   string    `json:"_id"                  bson:"_id"`
	Title                string    `json:"title"                bson:"title"`
	Category             string    `json:"category"             bson:"category"`
	PhotoURL             string    `json:"photoURL"             bson:"photoURL"`
	Deadline             string    `json:"deadline"             bson:"deadline"`
	Location             string    `json:"location"             bson:"location"`
	Description          string    `json:"description"          bson:"description"`
	OrganizerName        string    `json:"organizerName"        bson:"organizerName"`
	OrganizerEmail       string    `json:"organizerEmail"       bson:"organizerEmail"`
	VolunteersNeeded     int       `json:"volunteersNeeded"     bson:"volunteersNeeded"`
	InterestedVolunteers int       `json:"interestedVolunteers" bson:"interestedVolunteers"`
	CreatedAt            time.Time `json:"createdAt"            bson:"createdAt"`
}

// PostPatch carries a partial update. Nil fields are left unchanged.
// It has no InterestedVolunteers field: the counter is not client-writable.
type PostPatch struct {
	Title            *string `json:"title,omitempty"`
	Category         *string `json:"category,omitempty"`
	PhotoURL         *string `json:"photoURL,omitempty"`
	Deadline         *string `json:"deadline,omitempty"`
	Location         *string `json:"location,omitempty"`
	Description      *string `json:"description,omitempty"`
	OrganizerName    *string `json:"organizerName,omitempty"`
	OrganizerEmail   *string `json:"organizerEmail,omitempty"`
	VolunteersNeeded *int    `json:"volunteersNeeded,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Category == nil && p.PhotoURL == nil &&
		p.Deadline == nil && p.Location == nil && p.Description == nil &&
		p.OrganizerName == nil && p.OrganizerEmail == nil && p.VolunteersNeeded == nil
}

// deadlineLayouts are the input forms accepted for a deadline, tried in order.
var deadlineLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDeadline parses a deadline in any accepted layout. Layouts without a
// zone are read as UTC.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized deadline %q", s)
}

// NormalizeDeadline converts an accepted deadline into the canonical stored
// form: RFC3339 in UTC with millisecond precision.
func NormalizeDeadline(s string) (string, error) {
	t, err := ParseDeadline(s)
	if err != nil {
		return "", err
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), nil
}

// IsActive reports whether the post's deadline is at or after now.
// A deadline that cannot be parsed is treated as expired.
func (p *Post) IsActive(now time.Time) bool {
	t, err := ParseDeadline(p.Deadline)
	if err != nil {
		return false
	}
	return !t.Before(now)
}
