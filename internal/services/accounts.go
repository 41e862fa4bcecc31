package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"naftapp/internal/models"
	"naftapp/internal/utils"

	"github.com/sirupsen/logrus"
)

const minPasswordLen = 6

// AccountService backs the session login: signup and password checks.
type AccountService struct {
	Deps
}

func NewAccountService(d Deps) *AccountService {
	return &AccountService{Deps: d}
}

func (s *AccountService) Signup(ctx context.Context, name, email, password string) (*models.User, error) {
	errs := ValidationErrors{}
	name = SanitizeText(name)
	if name == "" {
		errs.Add("name", "is required")
	} else if utf8.RuneCountInString(name) > 80 {
		errs.Add("name", "must be at most 80 characters")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		errs.Add("email", "must be a valid email address")
	}
	if len(password) < minPasswordLen {
		errs.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	db := s.DB.WithContext(ctx)
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrConflict("email already registered")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{Name: name, Email: email, Password: hash, Role: models.RoleUser}
	if err := db.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict("email already registered")
		}
		return nil, err
	}

	s.Log.WithFields(logrus.Fields{"operation": "signup", "user_id": user.ID}).Info("User registered")
	return &user, nil
}

// Authenticate checks credentials. Unknown email and wrong password fail the same way.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if isNotFound(err) {
			return nil, &Error{Kind: KindUnauthenticated, Message: "invalid email or password"}
		}
		return nil, err
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, &Error{Kind: KindUnauthenticated, Message: "invalid email or password"}
	}
	return &user, nil
}
