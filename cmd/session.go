package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// saveToken writes the CLI session token with owner-only permissions.
func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return eris.Wrap(err, "session: create token dir")
	}
	return eris.Wrap(os.WriteFile(path, []byte(token+"\n"), 0o600), "session: write token")
}

// loadToken returns the stored CLI session token, or "" when there is none.
func loadToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrap(err, "session: read token")
	}
	return strings.TrimSpace(string(data)), nil
}

func clearToken(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return eris.Wrap(err, "session: remove token")
	}
	return nil
}

// localSecret returns the per-install token signing secret kept next to the
// token file, creating it on first use. It signs CLI sessions when no
// auth.token_secret is configured.
func localSecret(tokenFile string) (string, error) {
	path := filepath.Join(filepath.Dir(tokenFile), "secret")
	if data, err := os.ReadFile(path); err == nil {
		if s := strings.TrimSpace(string(data)); s != "" {
			return s, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", eris.Wrap(err, "session: read secret")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", eris.Wrap(err, "session: generate secret")
	}
	secret := hex.EncodeToString(buf)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", eris.Wrap(err, "session: create secret dir")
	}
	if err := os.WriteFile(path, []byte(secret+"\n"), 0o600); err != nil {
		return "", eris.Wrap(err, "session: write secret")
	}
	return secret, nil
}

// currentSession resolves the stored CLI session.
func currentSession(ctx context.Context, env *appEnv) (*model.Session, error) {
	token, err := loadToken(cfg.Auth.TokenFile)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, eris.Wrap(model.ErrNotAuthenticated, "not logged in, run `blocktrace login`")
	}
	return env.Auth.Resolve(ctx, token)
}
