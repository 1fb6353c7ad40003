package identityimage

import "time"

// IdentityImage is a photo of a student's identity document
type IdentityImage struct {
	ID         int64
	Path       string
	UploadedAt time.Time
	Approve    bool
	UserID     int64

	// Populated from JOIN
	Fullname  string
	StudentID string
}
