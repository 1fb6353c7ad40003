package location

import (
	"strings"

	"github.com/fkhayef/eventcheckin/pkg/validate"
)

// CreateLocationRequest represents the request body for creating a location
type CreateLocationRequest struct {
	Name      string  `json:"name"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Radius    float64 `json:"radius"`
}

func (req *CreateLocationRequest) Validate() error {
	errs := validate.Errors{}
	if strings.TrimSpace(req.Name) == "" {
		errs.Check("name", "name is required")
	}
	errs.Check("longitude", validate.NonNegative("longitude", req.Longitude))
	errs.Check("latitude", validate.NonNegative("latitude", req.Latitude))
	errs.Check("radius", validate.NonNegative("radius", req.Radius))
	return errs.Err()
}

// UpdateLocationRequest represents the request body for updating a location
type UpdateLocationRequest struct {
	Name      *string  `json:"name,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Radius    *float64 `json:"radius,omitempty"`
}

func (req *UpdateLocationRequest) Validate() error {
	errs := validate.Errors{}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		errs.Check("name", "name is required")
	}
	if req.Longitude != nil {
		errs.Check("longitude", validate.NonNegative("longitude", *req.Longitude))
	}
	if req.Latitude != nil {
		errs.Check("latitude", validate.NonNegative("latitude", *req.Latitude))
	}
	if req.Radius != nil {
		errs.Check("radius", validate.NonNegative("radius", *req.Radius))
	}
	return errs.Err()
}
