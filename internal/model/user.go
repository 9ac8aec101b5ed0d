// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a locally known account.
//
// Google OAuth is the only identity provider, and a record is only ever
// created from claims whose email Google attests as verified, so the email
// is the external key. We still mint our own internal string ID (xid) so
// primary keys aren't tied to a third party's numbering scheme.
//
// Name and PictureURL are snapshots taken at first sign-in. Repeat logins
// never refresh them — there is deliberately no profile-sync path, so the
// local record may drift from Google's.
type User struct {
	ID         string    `json:"id"         db:"id"`
	Email      string    `json:"email"      db:"email"`       // Verified Google email, unique
	Name       string    `json:"name"       db:"name"`        // Display name at first sign-in
	PictureURL string    `json:"pictureUrl" db:"picture_url"` // Profile picture at first sign-in
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}
