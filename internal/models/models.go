package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

type TaskStatus string

const (
	StatusTodo       TaskStatus = "TODO"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"        json:"id"`
	Name         string    `gorm:"size:100;not null"                  json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"      json:"email"`
	PasswordHash string    `gorm:"not null"                           json:"-"`
	Role         Role      `gorm:"type:varchar(16);not null;default:USER" json:"role"`
	RefreshToken *string   `gorm:"size:64"                            json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Tasks []Task `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

type Task struct {
	ID          string     `gorm:"type:varchar(36);primaryKey"              json:"id"`
	Title       string     `gorm:"size:200;not null"                        json:"title"`
	Description string     `gorm:"size:2000;not null"                       json:"description"`
	Status      TaskStatus `gorm:"type:varchar(16);not null;default:TODO;index" json:"status"`
	UserID      string     `gorm:"type:varchar(36);not null;index"          json:"userId"`
	CreatedAt   time.Time  `gorm:"index"                                    json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	User *TaskOwner `gorm:"-" json:"user,omitempty"`
}

// TaskOwner is the owner projection embedded in task responses.
type TaskOwner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PublicUser never carries the password hash or the refresh digest.
type PublicUser struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

type UserWithTaskCount struct {
	PublicUser
	TaskCount int64 `json:"taskCount"`
}

type TaskSummary struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
}

type UserDetail struct {
	PublicUser
	Tasks []TaskSummary `json:"tasks"`
}

type TaskStats struct {
	Total      int64 `json:"total"`
	Todo       int64 `json:"todo"`
	InProgress int64 `json:"inProgress"`
	Done       int64 `json:"done"`
}

type UserStats struct {
	TotalUsers int64 `json:"totalUsers"`
	AdminCount int64 `json:"adminCount"`
	UserCount  int64 `json:"userCount"`
}

// TaskUpdate holds the mutable task fields; nil means unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
}

func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil
}

type Page struct {
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

type TaskSearchResult struct {
	Items []Task `json:"items"`
	Page
}
