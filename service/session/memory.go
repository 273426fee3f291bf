package session

import (
	"context"
	"sync"
	"time"

	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/ids"
	"github.com/Infinite-Chess/infinitechess.org-sub008/tools/security"
	"github.com/pkg/errors"
)

// MemoryStore 进程内的会话存储，开发模式和单测用
type MemoryStore struct {
	mu     sync.Mutex
	opts   security.Options
	tokens map[string]string // hash -> user id
	now    func() time.Time
}

func NewMemoryStore(opts security.Options) *MemoryStore {
	return &MemoryStore{opts: opts, tokens: make(map[string]string), now: time.Now}
}

func (s *MemoryStore) Issue(_ context.Context, m Member) (string, time.Time, error) {
	return s.IssueAt(m, s.now())
}

// IssueAt 指定签发时间（模拟旧令牌）
func (s *MemoryStore) IssueAt(m Member, at time.Time) (string, time.Time, error) {
	return s.issue(m, ids.GenerateString(), at)
}

func (s *MemoryStore) issue(m Member, sessionID string, at time.Time) (string, time.Time, error) {
	tok, hash, exp, err := security.Generate(s.opts, m.UserID, m.Username, m.Roles, ids.GenerateString(), sessionID, at)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session token")
	}
	s.mu.Lock()
	s.tokens[hash] = m.UserID
	s.mu.Unlock()
	return tok, exp, nil
}

func (s *MemoryStore) Validate(_ context.Context, token string) (Validation, error) {
	claims, err := security.Verify(s.opts, token)
	if err != nil {
		return Validation{}, nil
	}
	s.mu.Lock()
	owner, ok := s.tokens[security.HashToken(token)]
	s.mu.Unlock()
	if !ok || owner != claims.UserID() {
		return Validation{}, nil
	}
	return Validation{
		Valid:     true,
		Member:    Member{UserID: claims.UserID(), Username: claims.Username, Roles: claims.Roles},
		IssuedAt:  claims.IssuedTime(),
		SessionID: claims.SessionID(),
	}, nil
}

func (s *MemoryStore) IssueReplacement(_ context.Context, m Member, oldToken string) (string, time.Time, error) {
	tok, exp, err := s.issue(m, carriedSessionID(s.opts, oldToken), s.now())
	if err != nil {
		return "", time.Time{}, err
	}
	s.mu.Lock()
	delete(s.tokens, security.HashToken(oldToken))
	s.mu.Unlock()
	return tok, exp, nil
}

func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.tokens, security.HashToken(token))
	s.mu.Unlock()
	return nil
}
