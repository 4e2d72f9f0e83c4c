package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/robojust/storefront-backend/internal/users"
	pkgauth "github.com/robojust/storefront-backend/pkg/auth"
	"github.com/robojust/storefront-backend/pkg/config"
	"github.com/robojust/storefront-backend/pkg/db/models"
	pkgerrors "github.com/robojust/storefront-backend/pkg/errors"
	"github.com/robojust/storefront-backend/pkg/security"
)

type fakeUserRepo struct {
	byEmail   map[string]*models.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]*models.User{}}
}

func (f *fakeUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	user := dto.ToModel()
	user.ID = uuid.New()
	f.byEmail[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "robojust",
		ExpirationMinutes: 30,
	}
}

func buildTestService(t *testing.T, repo *fakeUserRepo) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		JWTConfig:      testJWTConfig(),
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestRegisterThenLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := buildTestService(t, repo)

	registered, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Asha Patel",
		Email:    "Asha@Example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if registered.User.Email != "asha@example.com" {
		t.Fatalf("email not normalized: %s", registered.User.Email)
	}

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    "asha@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != registered.User.ID {
		t.Fatalf("token user = %s, want %s", claims.UserID, registered.User.ID)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := buildTestService(t, repo)

	req := RegisterRequest{Name: "Asha Patel", Email: "asha@example.com", Password: "correct-horse"}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}

	_, err := svc.Register(context.Background(), req)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterRacingDuplicateMapsToConflict(t *testing.T) {
	repo := newFakeUserRepo()
	repo.createErr = errors.New(`duplicate key value violates unique constraint "idx_users_email"`)
	svc := buildTestService(t, repo)

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Asha Patel",
		Email:    "asha@example.com",
		Password: "correct-horse",
	})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := buildTestService(t, repo)

	hash, err := security.HashPassword("right-password", config.PasswordConfig{ArgonMemoryKB: 8192, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo.byEmail["asha@example.com"] = &models.User{ID: uuid.New(), Email: "asha@example.com", PasswordHash: hash}

	_, err = svc.Login(context.Background(), LoginRequest{Email: "asha@example.com", Password: "wrong"})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := buildTestService(t, repo)

	_, err := svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "whatever"})
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
