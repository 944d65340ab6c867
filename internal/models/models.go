// Package models defines request, response, and record types shared across the service.
package models

import "time"

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /register. Role is "user" or "admin".
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Question is the body of POST /ask.
type Question struct {
	Query string `json:"query"`
}

// UserInfo is the public view of a credential record (no password hash).
type UserInfo struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// UploadRecord describes a file retained in the upload directory.
type UploadRecord struct {
	Filename   string    `json:"filename"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}
