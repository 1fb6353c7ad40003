package manager

import "github.com/fkhayef/eventcheckin/pkg/validate"

// CreateManagerRequest represents the request body for creating a manager
type CreateManagerRequest struct {
	Fullname string  `json:"fullname" validate:"required"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	IsAdmin  bool    `json:"is_admin"`
	Username string  `json:"username" validate:"required,min=5,max=50"`
	Password string  `json:"password" validate:"required,min=5,max=50"`
}

func (req *CreateManagerRequest) Validate() error {
	errs := validate.Errors{}
	errs.Check("fullname", validate.Fullname(req.Fullname))
	errs.Check("username", validate.Username(req.Username))
	errs.Check("password", validate.Password(req.Password))
	if req.Phone != nil {
		errs.Check("phone", validate.Phone(*req.Phone))
	}
	if req.Email != nil {
		errs.Check("email", validate.Email(*req.Email))
	}
	return errs.Err()
}

// UpdateManagerRequest represents the request body for updating a manager.
// IsAdmin is honoured only for admin callers.
type UpdateManagerRequest struct {
	Fullname *string `json:"fullname,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Username *string `json:"username,omitempty"`
	IsAdmin  *bool   `json:"is_admin,omitempty"`
}

func (req *UpdateManagerRequest) Validate() error {
	errs := validate.Errors{}
	if req.Fullname != nil {
		errs.Check("fullname", validate.Fullname(*req.Fullname))
	}
	if req.Username != nil {
		errs.Check("username", validate.Username(*req.Username))
	}
	if req.Phone != nil {
		errs.Check("phone", validate.Phone(*req.Phone))
	}
	if req.Email != nil {
		errs.Check("email", validate.Email(*req.Email))
	}
	return errs.Err()
}

// ChangePasswordRequest is used by a manager changing their own password
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// SetPasswordRequest is used by an admin to override a password
type SetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

// ManagerResponse represents the response for a single manager
type ManagerResponse struct {
	ID          int64   `json:"id"`
	Fullname    string  `json:"fullname"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	IsAdmin     bool    `json:"is_admin"`
	AvatarImage *string `json:"avatar_image,omitempty"`
	Username    string  `json:"username"`
	CreatedAt   string  `json:"created_at"`
}

// AvatarResponse is returned after an avatar upload
type AvatarResponse struct {
	URL string `json:"url"`
}

// ToResponse converts a Manager model to a ManagerResponse DTO
func (m *Manager) ToResponse() *ManagerResponse {
	return &ManagerResponse{
		ID:          m.ID,
		Fullname:    m.Fullname,
		Email:       m.Email,
		Phone:       m.Phone,
		IsAdmin:     m.IsAdmin,
		AvatarImage: m.AvatarImage,
		Username:    m.Username,
		CreatedAt:   m.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
