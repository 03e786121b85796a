package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/model"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/utils"
)

type memUsers struct {
	byID map[uint64]model.User
}

func (m *memUsers) Create(_ context.Context, email, password, role string, cost int) (uint64, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id := uint64(len(m.byID) + 1)
	m.byID[id] = model.User{ID: id, Email: email, PasswordHash: hash, Role: role, IsActive: true}
	return id, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.byID {
		if u.Email == repository.NormalizeEmail(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id uint64, hash string) error {
	u := m.byID[id]
	u.PasswordHash = hash
	m.byID[id] = u
	return nil
}

type memTokens struct {
	owner   map[string]uint64
	revoked map[uint64]bool
}

func (m *memTokens) StoreRefresh(_ context.Context, userID uint64, hash string, _ time.Time) error {
	m.owner[hash] = userID
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string, _ time.Time) (uint64, error) {
	uid, ok := m.owner[hash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return uid, nil
}

func (m *memTokens) Rotate(_ context.Context, userID uint64, oldHash, newHash string, _ time.Time) error {
	if _, ok := m.owner[oldHash]; !ok {
		return repository.ErrNotFound
	}
	delete(m.owner, oldHash)
	m.owner[newHash] = userID
	return nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	delete(m.owner, hash)
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	m.revoked[userID] = true
	return nil
}

func newAuth() (*AuthHandler, *memUsers, *memTokens) {
	cfg := config.Config{
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     bcrypt.MinCost,
		AdminEmails:    []string{"boss@example.com"},
	}
	users := &memUsers{byID: map[uint64]model.User{}}
	tokens := &memTokens{owner: map[string]uint64{}, revoked: map[uint64]bool{}}
	return NewAuthHandler(cfg, users, tokens, discardLogger()), users, tokens
}

func TestRegister_Roles(t *testing.T) {
	h, users, _ := newAuth()

	rec := call(http.MethodPost, "/v1/auth/register", "/v1/auth/register", `{"email":"Fan@Example.com","password":"popcorn123"}`, nil, 0, h.Register)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode(t, rec)["user"].(map[string]interface{})
	assert.Equal(t, "fan@example.com", user["email"])
	assert.Equal(t, model.RoleCustomer, user["role"])

	rec = call(http.MethodPost, "/v1/auth/register", "/v1/auth/register", `{"email":"boss@example.com","password":"popcorn123"}`, nil, 0, h.Register)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.RoleAdmin, users.byID[2].Role)

	rec = call(http.MethodPost, "/v1/auth/register", "/v1/auth/register", `{"email":"fan@example.com","password":"popcorn123"}`, nil, 0, h.Register)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = call(http.MethodPost, "/v1/auth/register", "/v1/auth/register", `{"email":"x@example.com","password":"short"}`, nil, 0, h.Register)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	h, users, _ := newAuth()
	_, err := users.Create(context.Background(), "fan@example.com", "popcorn123", model.RoleCustomer, bcrypt.MinCost)
	require.NoError(t, err)

	rec := call(http.MethodPost, "/v1/auth/login", "/v1/auth/login", `{"email":"fan@example.com","password":"popcorn123"}`, nil, 0, h.Login)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	access := decode(t, rec)["access"].(map[string]interface{})["token"].(string)
	uid, role, err := utils.ParseAccessToken("test-secret", access)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), uid)
	assert.Equal(t, model.RoleCustomer, role)

	rec = call(http.MethodPost, "/v1/auth/login", "/v1/auth/login", `{"email":"fan@example.com","password":"wrongpass"}`, nil, 0, h.Login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u := users.byID[1]
	u.IsActive = false
	users.byID[1] = u
	rec = call(http.MethodPost, "/v1/auth/login", "/v1/auth/login", `{"email":"fan@example.com","password":"popcorn123"}`, nil, 0, h.Login)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh_Rotates(t *testing.T) {
	h, _, tokens := newAuth()
	rec := call(http.MethodPost, "/v1/auth/register", "/v1/auth/register", `{"email":"fan@example.com","password":"popcorn123"}`, nil, 0, h.Register)
	require.Equal(t, http.StatusCreated, rec.Code)
	raw := decode(t, rec)["refresh"].(map[string]interface{})["token"].(string)

	rec = call(http.MethodPost, "/v1/auth/refresh", "/v1/auth/refresh", `{"refresh_token":"`+raw+`"}`, nil, 0, h.Refresh)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	_, stillThere := tokens.owner[utils.HashRefreshRaw(raw)]
	assert.False(t, stillThere)

	rec = call(http.MethodPost, "/v1/auth/refresh", "/v1/auth/refresh", `{"refresh_token":"`+raw+`"}`, nil, 0, h.Refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	h, _, tokens := newAuth()
	rec := call(http.MethodPost, "/v1/auth/logout", "/v1/auth/logout", `{}`, nil, 0, h.Logout)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	access, err := utils.NewAccessToken("test-secret", 9, model.RoleCustomer, 15)
	require.NoError(t, err)
	rec = call(http.MethodPost, "/v1/auth/logout", "/v1/auth/logout", `{}`,
		map[string]string{"Authorization": "Bearer " + access.Token}, 0, h.Logout)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, tokens.revoked[9])
}

func TestMe(t *testing.T) {
	h, users, _ := newAuth()
	users.byID[4] = model.User{ID: 4, Email: "fan@example.com", Role: model.RoleCustomer, IsActive: true}
	rec := call(http.MethodGet, "/v1/me", "/v1/me", "", nil, 4, h.Me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":4,"email":"fan@example.com","role":"CUSTOMER"}`, rec.Body.String())
}
