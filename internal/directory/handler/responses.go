package handler

import (
	"time"

	"juntas/internal/directory/models"
)

// UserResponse never carries the password hash.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"fullName"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserListResponse struct {
	Items []UserResponse `json:"items"`
}

type PatientResponse struct {
	ID             string    `json:"id"`
	FullName       string    `json:"fullName"`
	DocumentNumber string    `json:"documentNumber"`
	Email          *string   `json:"email"`
	Phone          *string   `json:"phone"`
	CreatedAt      time.Time `json:"createdAt"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID.String(),
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role.String(),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

func toPatientResponse(p *models.Patient) PatientResponse {
	return PatientResponse{
		ID:             p.ID.String(),
		FullName:       p.FullName,
		DocumentNumber: p.DocumentNumber,
		Email:          p.Email,
		Phone:          p.Phone,
		CreatedAt:      p.CreatedAt,
	}
}
