// Package models defines the persistent entities of the MathsIA API and
// the domain vocabulary (roles, school levels, memocard types, difficulty
// levels) shared between handlers and repositories.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User roles.
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// UserRoles lists the valid user roles.
var UserRoles = []string{RoleAdmin, RoleStudent}

// SchoolLevels lists the supported school levels, youngest first.
var SchoolLevels = []string{"6e", "5e", "4e", "3e", "2nde", "1ere", "Terminale"}

// IsValidRole checks if a role string is valid.
func IsValidRole(role string) bool {
	return contains(UserRoles, role)
}

// IsValidSchoolLevel checks if a school level string is valid.
func IsValidSchoolLevel(level string) bool {
	return contains(SchoolLevels, level)
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

// StudentProfile holds the student-specific part of a user document.
type StudentProfile struct {
	Level     string     `bson:"level" json:"level"`
	ClassName string     `bson:"class_name,omitempty" json:"class_name,omitempty"`
	BirthDate *time.Time `bson:"birth_date,omitempty" json:"birth_date,omitempty"`
}

// User represents a user as stored in the users collection.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username       string             `bson:"username" json:"username"`
	Email          string             `bson:"email" json:"email"`
	FullName       string             `bson:"full_name" json:"full_name"`
	Role           string             `bson:"role" json:"role"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	HashedPassword string             `bson:"hashed_password" json:"-"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
	LastLogin      *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	StudentProfile *StudentProfile    `bson:"student_profile,omitempty" json:"student_profile,omitempty"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsStudent reports whether the user has the student role.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}
