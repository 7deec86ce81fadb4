package transport

import (
	"strings"
	"time"

	"github.com/Skotchmaster/taskvault/internal/models"
)

type RegisterRequest struct {
	Name     string      `json:"name" validate:"required,min=2,max=100"`
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=6,max=72"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=USER ADMIN"`
}

func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *RefreshRequest) Normalize() {
	r.RefreshToken = strings.TrimSpace(r.RefreshToken)
}

type CreateTaskRequest struct {
	Title       string            `json:"title" validate:"required,min=3,max=200"`
	Description string            `json:"description" validate:"required,min=10,max=2000"`
	Status      models.TaskStatus `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
}

func (r *CreateTaskRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
}

type UpdateTaskRequest struct {
	Title       *string            `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string            `json:"description" validate:"omitempty,min=10,max=2000"`
	Status      *models.TaskStatus `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
}

func (r *UpdateTaskRequest) Normalize() {
	if r.Title != nil {
		v := strings.TrimSpace(*r.Title)
		r.Title = &v
	}
	if r.Description != nil {
		v := strings.TrimSpace(*r.Description)
		r.Description = &v
	}
}

func (r UpdateTaskRequest) Update() models.TaskUpdate {
	return models.TaskUpdate{Title: r.Title, Description: r.Description, Status: r.Status}
}

type AuthResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type TokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type HealthResponse struct {
	Status      string       `json:"status"`
	Timestamp   time.Time    `json:"timestamp"`
	Uptime      float64      `json:"uptime"`
	Environment string       `json:"environment"`
	Database    string       `json:"database"`
	Memory      HealthMemory `json:"memory"`
}

// HealthMemory is reported in megabytes.
type HealthMemory struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}
