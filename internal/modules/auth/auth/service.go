package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/medvault/portal/internal/models"
	jwtpkg "github.com/medvault/portal/internal/pkg/jwt"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultFailureDelay = 3 * time.Second

type Service struct {
	db     *gorm.DB
	issuer *jwtpkg.Issuer
	// failureDelay slows down credential guessing.
	failureDelay time.Duration
}

func NewService(db *gorm.DB, issuer *jwtpkg.Issuer) *Service {
	return &Service{db: db, issuer: issuer, failureDelay: defaultFailureDelay}
}

// Login checks the password and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password, ip string) (string, time.Time, error) {
	var u models.UserModel
	if err := s.db.WithContext(ctx).Select("id, password").
		Where("username = ?", strings.TrimSpace(username)).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.delay(ctx)
			return "", time.Time{}, errAuthUserNotFound
		}
		return "", time.Time{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		s.delay(ctx)
		return "", time.Time{}, errAuthWrongPassword
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&models.UserModel{}).Where("id = ?", u.ID).
		Updates(map[string]any{"last_login_time": now, "last_login_ip": ip}).Error; err != nil {
		return "", time.Time{}, err
	}
	return s.issuer.Sign(u.ID)
}

// Register creates the portal's account. Only one account may exist.
func (s *Service) Register(ctx context.Context, dto *RegisterDTO) (*models.UserModel, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.UserModel{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	username := strings.TrimSpace(dto.Username)
	u := models.UserModel{
		Username: username,
		Password: string(hash),
		Name:     displayName(dto.Name, username),
		Mail:     strings.TrimSpace(dto.Mail),
	}
	return &u, s.db.WithContext(ctx).Create(&u).Error
}

// Me loads the authenticated user.
func (s *Service) Me(ctx context.Context, userID string) (*models.UserModel, error) {
	var u models.UserModel
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *Service) delay(ctx context.Context) {
	if s.failureDelay <= 0 {
		return
	}
	t := time.NewTimer(s.failureDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
