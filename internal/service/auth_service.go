package service

import (
	"errors"
	"strings"
	"time"

	"stkpay/config"
	"stkpay/internal/auth"
	"stkpay/internal/domain"
	"stkpay/internal/models"
	"stkpay/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	cfg      *config.Config
	userRepo *repository.UserRepository
	audit    *repository.AuditRepository
}

func NewAuthService(cfg *config.Config, userRepo *repository.UserRepository, audit *repository.AuditRepository) *AuthService {
	return &AuthService{cfg: cfg, userRepo: userRepo, audit: audit}
}

// Login checks admin credentials and issues an access token.
func (s *AuthService) Login(email, password, ip string) (*models.User, string, error) {
	u, err := s.userRepo.GetByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrInvalidCreds
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCreds
	}
	if !u.IsAdmin() {
		return nil, "", ErrInvalidCreds
	}
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, "", err
	}
	now := time.Now()
	_ = s.userRepo.TouchLogin(u.ID, now)
	u.LastLoginAt = &now
	if s.audit != nil {
		_ = s.audit.Record(&u.ID, domain.AuditAdminLogin, "user", u.Email, ip, nil)
	}
	return u, access, nil
}
