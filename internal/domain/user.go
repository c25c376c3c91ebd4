// Package domain contains entity without logic, just meta-data
package domain

type UserID string

// User identifies a call party as the backend reports it.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
}
