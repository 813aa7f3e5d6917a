// Package users manages tracker accounts and the JWT identity handed to the
// API layer. Accounts live in a JSON file; the public profile of each account
// is mirrored into the document store so audit references
// ("users/<uid>") resolve.
package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/houzhh15/mergeq/cmd/server/internal/docstore"
	"github.com/houzhh15/mergeq/cmd/server/internal/models"
)

// ErrInvalidCredentials is returned for unknown users and wrong passwords
// alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// User is one tracker account. Password holds a sha256 hex hash.
type User struct {
	UID         string    `json:"uid"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	Password    string    `json:"password_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Proxy returns the denormalized identity embedded in documents.
func (u *User) Proxy() models.UserProxy {
	return models.UserProxy{UID: u.UID, DisplayName: u.DisplayName, Email: u.Email}
}

// DocPath returns the document-store path of the account's public profile.
func (u *User) DocPath() string {
	return "users/" + u.UID
}

// Claims are the custom JWT claims carried by identity tokens.
type Claims struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Manager owns the account file and JWT signing.
type Manager struct {
	mu        sync.RWMutex
	users     map[string]*User // keyed by username
	secretKey []byte
	storePath string
	docs      docstore.Store
}

// NewManager loads accounts from <storeDir>/users.json and mirrors their
// public profiles into the document store.
func NewManager(ctx context.Context, storeDir string, secret []byte, docs docstore.Store) (*Manager, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret key required")
	}
	m := &Manager{
		users:     map[string]*User{},
		secretKey: secret,
		storePath: filepath.Join(storeDir, "users.json"),
		docs:      docs,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if err := m.mirrorProfile(ctx, u); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func hashPassword(pw string) string {
	s := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(s[:])
}

func (m *Manager) load() error {
	b, err := os.ReadFile(m.storePath)
	if err != nil {
		return nil // first run
	}
	var arr []*User
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	for _, u := range arr {
		m.users[u.Username] = u
	}
	return nil
}

func (m *Manager) save() error {
	arr := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		arr = append(arr, u)
	}
	b, _ := json.MarshalIndent(arr, "", "  ")
	if err := os.MkdirAll(filepath.Dir(m.storePath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(m.storePath, b, 0o644)
}

// mirrorProfile writes the account's public profile (never the password
// hash) to the document store.
func (m *Manager) mirrorProfile(ctx context.Context, u *User) error {
	doc, err := docstore.Encode(u.Proxy())
	if err != nil {
		return err
	}
	return m.docs.Set(ctx, u.DocPath(), doc)
}

// EnsureDefaultAdmin creates an admin account when the account file is
// empty, so a fresh deployment is reachable.
func (m *Manager) EnsureDefaultAdmin(ctx context.Context, defaultPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.users) > 0 {
		return nil
	}
	now := time.Now()
	admin := &User{
		UID:         uuid.NewString(),
		Username:    "admin",
		DisplayName: "Administrator",
		Password:    hashPassword(defaultPassword),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.users[admin.Username] = admin
	if err := m.mirrorProfile(ctx, admin); err != nil {
		return err
	}
	return m.save()
}

// CreateUser registers a new account with a unique username.
func (m *Manager) CreateUser(ctx context.Context, username, password, displayName, email string) (*User, error) {
	if username == "" {
		return nil, errors.New("username required")
	}
	if password == "" {
		return nil, errors.New("password required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[username]; exists {
		return nil, errors.New("user exists")
	}
	now := time.Now()
	u := &User{
		UID:         uuid.NewString(),
		Username:    username,
		DisplayName: displayName,
		Email:       email,
		Password:    hashPassword(password),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.users[username] = u
	if err := m.mirrorProfile(ctx, u); err != nil {
		return nil, err
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	cpy := *u
	cpy.Password = ""
	return &cpy, nil
}

// Authenticate verifies a username/password pair.
func (m *Manager) Authenticate(username, password string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok || u.Password != hashPassword(password) {
		return nil, ErrInvalidCredentials
	}
	cpy := *u
	cpy.Password = ""
	return &cpy, nil
}

// GenerateToken issues an identity token for the account.
func (m *Manager) GenerateToken(username string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return "", errors.New("not found")
	}
	claims := Claims{
		UID:         u.UID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(m.secretKey)
}

// ParseToken verifies a token and returns its claims.
func (m *Manager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims")
	}
	return claims, nil
}
