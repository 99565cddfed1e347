package paramstore

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
)

// TokenSource resolves an API token from SSM on first use and caches the
// result, success or failure, for the life of the process.
type TokenSource struct {
	getter Getter
	name   string

	once  sync.Once
	token string
	err   error
}

func NewTokenSource(g Getter, name string) (*TokenSource, error) {
	if g == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("paramstore: token parameter name must not be empty")
	}
	return &TokenSource{getter: g, name: name}, nil
}

func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.once.Do(func() {
		s.token, s.err = GetToken(ctx, s.getter, s.name)
	})
	return s.token, s.err
}

// StaticToken is a fixed token, typically read from the environment.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", errors.New("paramstore: token is empty")
	}
	return string(t), nil
}

// EnvToken returns a StaticToken holding the value of the named variable.
func EnvToken(key string) StaticToken {
	return StaticToken(os.Getenv(key))
}
