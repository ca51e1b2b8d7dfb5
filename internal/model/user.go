package model

import "time"

// User is a person who signed in through the identity provider.
//
// Email is the natural key (unique index in both stores). AppliedCampaigns is
// a denormalized cache of the Post IDs this user has applied to; it holds each
// ID at most once and is kept in step with the Application collection by the
// submission write and the reconciler.
type User struct {
	ID               string    `json:"_id"              bson:"_id"`
	DisplayName      string    `json:"displayName"      bson:"displayName"`
	Email            string    `json:"email"            bson:"email"`
	PhotoURL         string    `json:"photoURL"         bson:"photoURL"`
	AppliedCampaigns []string  `json:"appliedCampaigns" bson:"appliedCampaigns"`
	CreatedAt        time.Time `json:"createdAt"        bson:"createdAt"`
}
