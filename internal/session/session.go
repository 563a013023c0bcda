// Package session provides Valkey-backed sessions for the admin UI.
// The browser holds only a random ID in a cookie; the payload is stored as
// JSON in Valkey and expires with the key's TTL.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// CookieName is the name of the session cookie sent to the browser.
	CookieName = "folio_session"

	// DefaultTTL is how long a session lives in Valkey.
	DefaultTTL = 12 * time.Hour

	keyPrefix = "session:"
	idLength  = 32
)

// Data is the session payload: who is signed in and whether they have
// passed the second factor.
type Data struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	TwoFADone bool      `json:"two_fa_done"`
	CreatedAt time.Time `json:"created_at"`
}

// Store manages session lifecycle in Valkey.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore creates a session store. secure marks the cookie Secure and
// should be true whenever the admin is served over TLS.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{client: client, ttl: DefaultTTL, secure: secure}
}

// Create stores data under a fresh ID and sets the session cookie.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}

	data.CreatedAt = time.Now()
	if err := s.save(ctx, id, data); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
	return id, nil
}

// Get returns the session named by the request cookie, or nil when there
// is no cookie or the session has expired.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	payload, err := s.client.Get(ctx, keyPrefix+cookie.Value).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}
	return &data, nil
}

// Update replaces the payload of the current session and resets its TTL.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return errors.New("session update: no cookie")
	}
	return s.save(ctx, cookie.Value, data)
}

// Destroy removes the session and expires the cookie.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}

	if err := s.client.Del(ctx, keyPrefix+cookie.Value).Err(); err != nil {
		return fmt.Errorf("session destroy: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		MaxAge:   -1,
	})
	return nil
}

func (s *Store) save(ctx context.Context, id string, data *Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+id, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

func generateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
