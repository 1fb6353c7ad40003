package identityimage

const timeLayout = "2006-01-02T15:04:05Z"

// IdentityImageResponse represents an identity image
type IdentityImageResponse struct {
	ID         int64  `json:"id"`
	Path       string `json:"path"`
	UploadedAt string `json:"uploaded_at"`
	Approve    bool   `json:"approve"`
	UserID     int64  `json:"user_id"`
	Fullname   string `json:"fullname,omitempty"`
	StudentID  string `json:"student_id,omitempty"`
}

// ToResponse converts an IdentityImage model to an IdentityImageResponse DTO
func (i *IdentityImage) ToResponse() *IdentityImageResponse {
	return &IdentityImageResponse{
		ID:         i.ID,
		Path:       i.Path,
		UploadedAt: i.UploadedAt.Format(timeLayout),
		Approve:    i.Approve,
		UserID:     i.UserID,
		Fullname:   i.Fullname,
		StudentID:  i.StudentID,
	}
}

func toResponses(items []*IdentityImage) []*IdentityImageResponse {
	out := make([]*IdentityImageResponse, len(items))
	for i, item := range items {
		out[i] = item.ToResponse()
	}
	return out
}
