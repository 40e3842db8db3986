// Package auth backs the residents portal: accounts, password sign-in and
// session lookup behind a small Provider interface.
//
// The portal is independent of the marketing site. Nothing in the submission
// pipeline depends on this package.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrNoSession          = errors.New("not signed in")
)

// MinPasswordLen is the shortest password SignUp accepts.
const MinPasswordLen = 8

// Role decides which dashboard a user sees.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// User is a portal account.
type User struct {
	ID        string
	Email     string
	Name      string
	Level     string
	Gender    string
	Role      Role
	CreatedAt time.Time
}

// SignUpParams are the fields of the sign-up form.
type SignUpParams struct {
	Email    string
	Password string
	Name     string
	Level    string
	Gender   string
	Role     Role
}

// Session is an authenticated browser session.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Provider is everything the portal needs from an identity backend.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignUp(ctx context.Context, p SignUpParams) (User, error)
	SignOut(ctx context.Context, token string) error
	CurrentUser(ctx context.Context, token string) (User, error)
}

// FieldError reports one bad sign-up field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Genders are the accepted values of SignUpParams.Gender.
var Genders = []string{"Male", "Female"}

// normalize trims p and checks it. The returned params have a lower-case
// email and a default role.
func normalize(p SignUpParams) (SignUpParams, error) {
	p.Email = normalizeEmail(p.Email)
	p.Name = strings.TrimSpace(p.Name)
	p.Level = strings.TrimSpace(p.Level)
	p.Gender = strings.TrimSpace(p.Gender)
	if p.Role == "" {
		p.Role = RoleStudent
	}

	switch {
	case p.Name == "":
		return p, &FieldError{Field: "name", Message: "Full name is required"}
	case p.Level == "":
		return p, &FieldError{Field: "level", Message: "Level is required"}
	case p.Gender != "Male" && p.Gender != "Female":
		return p, &FieldError{Field: "gender", Message: "Please choose Male or Female"}
	case !validEmail(p.Email):
		return p, &FieldError{Field: "email", Message: "Please enter a valid email address"}
	case len(p.Password) < MinPasswordLen:
		return p, &FieldError{Field: "password", Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLen)}
	case p.Role != RoleStudent && p.Role != RoleAdmin:
		return p, &FieldError{Field: "role", Message: "Unknown role"}
	}
	return p, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// hashPassword uses bcrypt at the default cost.
func hashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func checkPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// newToken returns a random URL-safe session token.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// tokenHash is what gets stored, so a leaked table cannot be replayed.
func tokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MenuItem is one entry of a dashboard menu.
type MenuItem struct {
	Label       string
	Description string
}

// Menu returns the dashboard entries for u's role. The hostel features behind
// them are not offered on this site.
func Menu(u User) []MenuItem {
	if u.Role == RoleAdmin {
		return []MenuItem{
			{Label: "View Students", Description: "Browse registered residents"},
			{Label: "Manage Complaints", Description: "Review and resolve complaints"},
			{Label: "Room Occupancy", Description: "See which rooms are taken"},
			{Label: "Allocate Rooms", Description: "Assign residents to rooms"},
		}
	}
	return []MenuItem{
		{Label: "Submit Complaint", Description: "Report a problem with your room"},
		{Label: "View My Complaints", Description: "Track complaints you have filed"},
	}
}
