// Package session persists the authentication credential across restarts.
// It is the only source of truth for whether the user is logged in.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"commitlens/internal/logging"
	"commitlens/internal/model"
)

// Well-known keys in the state database.
const (
	KeyAccessToken  = "access_token"
	KeyUser         = "user"
	KeyConsumedCode = "oauth_consumed_code"
)

// Backend is the persistence medium. *storage.KV satisfies it.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Store reads and writes the Credential.
type Store struct {
	kv  Backend
	log logging.Logger
}

// NewStore wraps kv.
func NewStore(kv Backend, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	return &Store{kv: kv, log: log.With("component", "session")}
}

// Credential returns the stored credential. Partial or malformed state is
// purged and reported as absent; callers never see an error for it.
func (s *Store) Credential(ctx context.Context) (model.Credential, bool) {
	token, hasToken, err := s.kv.Get(ctx, KeyAccessToken)
	if err != nil {
		s.log.Error("read token", "error", err)
		return model.Credential{}, false
	}
	raw, hasUser, err := s.kv.Get(ctx, KeyUser)
	if err != nil {
		s.log.Error("read user", "error", err)
		return model.Credential{}, false
	}
	if !hasToken && !hasUser {
		return model.Credential{}, false
	}

	var user model.Identity
	if hasUser {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			s.log.Warn("stored user is not valid json, purging", "error", err)
			s.purge(ctx)
			return model.Credential{}, false
		}
	}
	cred := model.Credential{Token: token, User: user}
	if !cred.Valid() {
		s.log.Warn("stored credential incomplete, purging", "has_token", hasToken, "has_user", hasUser)
		s.purge(ctx)
		return model.Credential{}, false
	}
	return cred, true
}

// LoggedIn reports whether a usable credential is stored.
func (s *Store) LoggedIn(ctx context.Context) bool {
	_, ok := s.Credential(ctx)
	return ok
}

// Save persists cred. An incomplete credential is rejected.
func (s *Store) Save(ctx context.Context, cred model.Credential) error {
	if !cred.Valid() {
		return fmt.Errorf("refusing to store credential without token and login")
	}
	user, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.kv.SetMany(ctx, map[string]string{
		KeyAccessToken: cred.Token,
		KeyUser:        string(user),
	}); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	s.log.Info("credential stored", "login", cred.User.Login, "token", logging.TokenTail(cred.Token))
	return nil
}

// Clear removes the credential (logout or expiry).
func (s *Store) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAccessToken, KeyUser); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	s.log.Info("credential cleared")
	return nil
}

// MarkConsumed records that code has been exchanged successfully.
// Only a digest of the code is stored.
func (s *Store) MarkConsumed(ctx context.Context, code string) error {
	return s.kv.SetMany(ctx, map[string]string{KeyConsumedCode: digest(code)})
}

// Consumed reports whether code was the last successfully exchanged code.
func (s *Store) Consumed(ctx context.Context, code string) bool {
	if code == "" {
		return false
	}
	v, ok, err := s.kv.Get(ctx, KeyConsumedCode)
	if err != nil {
		s.log.Error("read consumed code", "error", err)
		return false
	}
	return ok && v == digest(code)
}

func (s *Store) purge(ctx context.Context) {
	if err := s.kv.Delete(ctx, KeyAccessToken, KeyUser); err != nil {
		s.log.Error("purge credential", "error", err)
	}
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
