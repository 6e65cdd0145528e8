package store

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"sceneit-backend/internal/models"
)

// validate backs the store-boundary checks that hold even when a caller
// skipped request validation.
var validate = validator.New()

// ValidateUser checks the column rules of the users table.
func ValidateUser(u *models.User) error {
	if strings.TrimSpace(u.Username) == "" || utf8.RuneCountInString(u.Username) > models.UsernameMaxLen {
		return ErrInvalidUsername
	}
	if u.Email != nil {
		if err := validate.Var(*u.Email, "required,email"); err != nil {
			return ErrInvalidEmail
		}
	}
	return nil
}

// ValidateMedia checks the column rules of the medias table. The minimum
// title length is a request rule and is not enforced here.
func ValidateMedia(m *models.Media) error {
	if strings.TrimSpace(m.Title) == "" || !m.Type.Valid() {
		return ErrInvalidMedia
	}
	if m.SourceType != nil && !m.SourceType.Valid() {
		return ErrInvalidMedia
	}
	return nil
}

// ValidateCollection checks the column rules of the collections table.
func ValidateCollection(c *models.Collection) error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Slug) == "" {
		return ErrInvalidCollection
	}
	return nil
}
