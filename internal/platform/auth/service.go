package auth

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	ErrBadCredential = errors.New("authentication failed")
)

type Service struct {
	store    UserStore
	secret   []byte
	tokenTTL time.Duration
}

func NewService(db *sql.DB, secret []byte, tokenTTL time.Duration) *Service {
	return &Service{store: NewStore(db), secret: secret, tokenTTL: tokenTTL}
}

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*User, string, error)
	Login(ctx context.Context, email, password string) (*User, string, error)
	Profile(ctx context.Context, userID int64) (*User, error)
}

func (s *Service) Register(ctx context.Context, email, password, name string) (*User, string, error) {
	exists, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if exists != nil {
		return nil, "", ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", err
	}

	u := &User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         "user",
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if u == nil {
		return nil, "", ErrBadCredential
	}
	if u.IsDisabled {
		return nil, "", ErrBadCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrBadCredential
	}

	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	return u, nil
}

func (s *Service) issueToken(u *User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   strconv.FormatInt(u.UserID, 10),
		"email": u.Email,
		"role":  u.Role,
		"exp":   time.Now().Add(s.tokenTTL).Unix(),
	})
	return token.SignedString(s.secret)
}
