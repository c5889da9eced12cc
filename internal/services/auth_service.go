package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sentinelmesh/console/internal/config"
	"github.com/sentinelmesh/console/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserDisabled       = errors.New("account disabled")
	ErrEmailTaken         = errors.New("email already registered")
)

const tokenTTL = 24 * time.Hour

// AuthService handles console operator authentication. Repeated bad logins
// are escalated per source IP by the access engine, so the service itself
// carries no lockout state.
type AuthService struct {
	db     *gorm.DB
	secret []byte
}

func NewAuthService(db *gorm.DB, cfg config.Config) *AuthService {
	secret := cfg.JWTSecret
	if secret == "" {
		// Ephemeral secret: sessions do not survive a restart.
		secret = uuid.NewString()
	}
	return &AuthService{db: db, secret: []byte(secret)}
}

// Register creates a user. The first registered user becomes admin.
func (s *AuthService) Register(email, password, name string) (*models.User, error) {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}

	var existing models.User
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user := &models.User{
		UUID:    uuid.NewString(),
		Email:   email,
		Name:    name,
		Role:    "user",
		Enabled: true,
	}
	if count == 0 {
		user.Role = "admin"
	}
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and returns a signed JWT.
func (s *AuthService) Login(email, password string) (string, error) {
	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !user.Enabled {
		return "", ErrUserDisabled
	}
	if !user.CheckPassword(password) {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	user.LastLogin = &now
	if err := s.db.Save(&user).Error; err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"user_id": user.ID,
		"role":    user.Role,
		"exp":     now.Add(tokenTTL).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses a JWT and returns the embedded user id and role.
func (s *AuthService) ValidateToken(tokenString string) (uint, string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidCredentials
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidCredentials
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return 0, "", ErrInvalidCredentials
	}
	role, _ := claims["role"].(string)
	return uint(userID), role, nil
}

// GetUserByID loads a user row.
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
