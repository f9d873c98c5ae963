package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"article-cms/config"
	"article-cms/models"
	"article-cms/repositories"
	"article-cms/testutil"
)

func TestAuthRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(repositories.NewUserRepository(testutil.NewTestDB(t)))

	registered, err := svc.Register(ctx, models.RegisterRequest{
		Username: "editor",
		Email:    "Editor@Example.com",
		Password: "password123",
		Role:     models.RoleEditor,
	})
	require.NoError(t, err)
	assert.Equal(t, "editor@example.com", registered.User.Email)
	assert.NotEqual(t, "password123", registered.User.Password)

	token, err := jwt.Parse(registered.Token, func(*jwt.Token) (interface{}, error) {
		return config.JWTSecret, nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, "editor@example.com", claims["email"])
	assert.Equal(t, "editor", claims["role"])

	loggedIn, err := svc.Login(ctx, models.LoginRequest{Email: "editor@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	user, err := svc.GetUserByID(ctx, registered.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "editor", user.Username)
}

func TestAuthRejectsDuplicatesAndBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(repositories.NewUserRepository(testutil.NewTestDB(t)))

	req := models.RegisterRequest{Username: "writer", Email: "writer@example.com", Password: "password123"}
	res, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.RoleWriter, res.User.Role)

	_, err = svc.Register(ctx, req)
	var conflict models.ErrorConflict
	assert.ErrorAs(t, err, &conflict)

	_, err = svc.Register(ctx, models.RegisterRequest{Username: "x", Email: "x@example.com", Password: "password123", Role: "owner"})
	assert.True(t, models.IsValidation(err))

	_, err = svc.Login(ctx, models.LoginRequest{Email: "writer@example.com", Password: "wrong"})
	var unauthorized models.ErrorUnauthorized
	assert.ErrorAs(t, err, &unauthorized)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.ErrorAs(t, err, &unauthorized)

	_, err = svc.GetUserByID(ctx, 999)
	assert.True(t, models.IsNotFound(err))
}
