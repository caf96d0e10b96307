package model

import "time"

// StudentStatus is the approval state of a self-registered student.
type StudentStatus string

const (
	StudentStatusPending  StudentStatus = "pending"
	StudentStatusApproved StudentStatus = "approved"
	StudentStatusRejected StudentStatus = "rejected"
)

// Student represents a student user.
type Student struct {
	ID           int           `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Course       string        `json:"course"`
	Status       StudentStatus `json:"status"`
	PasswordHash string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// RegisterStudentRequest is the payload for student self-registration.
type RegisterStudentRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Name     string `json:"name" binding:"required,min=2,max=100"`
	Course   string `json:"course" binding:"required,min=2,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
}

// ReviewStudentRequest approves or rejects a pending registration.
type ReviewStudentRequest struct {
	Status StudentStatus `json:"status" binding:"required,oneof=approved rejected"`
}
