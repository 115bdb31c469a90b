package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/authentic/backend/internal/model"
	"github.com/jackc/pgx/v5"
)

var errFakeNoRows = pgx.ErrNoRows

// fakeStore is an in-memory stand-in for the Postgres store with the same
// atomicity guarantees: consume and rotate are single-winner under the lock.
type fakeStore struct {
	mu         sync.Mutex
	users      map[string]*model.User
	challenges map[int64]*model.OtpChallenge
	sessions   map[string]*model.RefreshSession
	nextOtpID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]*model.User),
		challenges: make(map[int64]*model.OtpChallenge),
		sessions:   make(map[string]*model.RefreshSession),
	}
}

func (f *fakeStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == user.Email {
			return nil, errors.New("duplicate key value violates unique constraint")
		}
	}
	stored := *user
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.users[stored.ID] = &stored
	copied := stored
	return &copied, nil
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, errFakeNoRows
}

func (f *fakeStore) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, errFakeNoRows
}

func (f *fakeStore) LinkGoogleAccount(ctx context.Context, userID, googleID string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, errFakeNoRows
	}
	u.Provider = model.ProviderGoogle
	u.GoogleID = googleID
	u.UpdatedAt = time.Now()
	copied := *u
	return &copied, nil
}

func (f *fakeStore) InsertOtpChallenge(ctx context.Context, userID, code string, expiresAt time.Time) (*model.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOtpID++
	ch := &model.OtpChallenge{
		ID:        f.nextOtpID,
		UserID:    userID,
		Code:      code,
		Status:    model.OtpStatusPending,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	f.challenges[ch.ID] = ch
	copied := *ch
	return &copied, nil
}

func (f *fakeStore) GetLatestPendingOtp(ctx context.Context, userID string) (*model.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.OtpChallenge
	for _, ch := range f.challenges {
		if ch.UserID != userID || ch.Consumed {
			continue
		}
		if latest == nil || ch.ID > latest.ID {
			latest = ch
		}
	}
	if latest == nil {
		return nil, errFakeNoRows
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeStore) GetPendingOtpByCode(ctx context.Context, code string) (*model.OtpChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.OtpChallenge
	for _, ch := range f.challenges {
		if ch.Code != code || ch.Consumed {
			continue
		}
		if latest == nil || ch.ID > latest.ID {
			latest = ch
		}
	}
	if latest == nil {
		return nil, errFakeNoRows
	}
	copied := *latest
	return &copied, nil
}

func (f *fakeStore) ConsumeOtp(ctx context.Context, challengeID int64, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.challenges[challengeID]
	if !ok || ch.Consumed {
		return false, nil
	}
	ch.Consumed = true
	ch.Status = status
	return true, nil
}

func (f *fakeStore) ConsumeAllPendingOtps(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.challenges {
		if ch.UserID == userID && !ch.Consumed {
			ch.Consumed = true
			ch.Status = model.OtpStatusUsed
		}
	}
	return nil
}

func (f *fakeStore) InsertRefreshSession(ctx context.Context, session *model.RefreshSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *session
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.sessions[stored.ID] = &stored
	return nil
}

func (f *fakeStore) GetRefreshSessionByHash(ctx context.Context, userID, tokenHash string) (*model.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash {
			copied := *s
			return &copied, nil
		}
	}
	return nil, errFakeNoRows
}

func (f *fakeStore) RevokeRefreshSession(ctx context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok || !s.IsValid {
		return false, nil
	}
	s.IsValid = false
	s.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) RotateRefreshSession(ctx context.Context, oldSessionID string, next *model.RefreshSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.sessions[oldSessionID]
	if !ok || !old.IsValid {
		return false, nil
	}
	old.IsValid = false
	old.ReplacedByHash = next.TokenHash
	old.UpdatedAt = time.Now()

	stored := *next
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	f.sessions[stored.ID] = &stored
	return true, nil
}

func (f *fakeStore) ListRefreshSessionsByUser(ctx context.Context, userID string, limit int) ([]model.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sessions []model.RefreshSession
	for _, s := range f.sessions {
		if s.UserID == userID {
			sessions = append(sessions, *s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	if len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

func (f *fakeStore) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeStore) latestChallengeFor(userID string) *model.OtpChallenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.OtpChallenge
	for _, ch := range f.challenges {
		if ch.UserID != userID {
			continue
		}
		if latest == nil || ch.ID > latest.ID {
			latest = ch
		}
	}
	if latest == nil {
		return nil
	}
	copied := *latest
	return &copied
}

// failingStore reports the same outage error from every call.
type failingStore struct{ err error }

func (f *failingStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	return nil, f.err
}

func (f *failingStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, f.err
}

func (f *failingStore) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	return nil, f.err
}

func (f *failingStore) LinkGoogleAccount(ctx context.Context, userID, googleID string) (*model.User, error) {
	return nil, f.err
}

func (f *failingStore) InsertOtpChallenge(ctx context.Context, userID, code string, expiresAt time.Time) (*model.OtpChallenge, error) {
	return nil, f.err
}

func (f *failingStore) GetLatestPendingOtp(ctx context.Context, userID string) (*model.OtpChallenge, error) {
	return nil, f.err
}

func (f *failingStore) GetPendingOtpByCode(ctx context.Context, code string) (*model.OtpChallenge, error) {
	return nil, f.err
}

func (f *failingStore) ConsumeOtp(ctx context.Context, challengeID int64, status string) (bool, error) {
	return false, f.err
}

func (f *failingStore) ConsumeAllPendingOtps(ctx context.Context, userID string) error {
	return f.err
}

func (f *failingStore) InsertRefreshSession(ctx context.Context, session *model.RefreshSession) error {
	return f.err
}

func (f *failingStore) GetRefreshSessionByHash(ctx context.Context, userID, tokenHash string) (*model.RefreshSession, error) {
	return nil, f.err
}

func (f *failingStore) RevokeRefreshSession(ctx context.Context, sessionID string) (bool, error) {
	return false, f.err
}

func (f *failingStore) RotateRefreshSession(ctx context.Context, oldSessionID string, next *model.RefreshSession) (bool, error) {
	return false, f.err
}

func (f *failingStore) ListRefreshSessionsByUser(ctx context.Context, userID string, limit int) ([]model.RefreshSession, error) {
	return nil, f.err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (f *fakeNotifier) IsConfigured() bool { return true }

func (f *fakeNotifier) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp unavailable")
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeIdentityVerifier struct {
	configured  bool
	redirectURI string
	identity    *model.FederatedIdentity
	err         error
}

func (f *fakeIdentityVerifier) IsConfigured() bool { return f.configured }

func (f *fakeIdentityVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*model.FederatedIdentity, error) {
	return f.identity, f.err
}

func (f *fakeIdentityVerifier) ExchangeCode(ctx context.Context, code, redirectURI string) (*model.FederatedIdentity, error) {
	return f.identity, f.err
}

func (f *fakeIdentityVerifier) RedirectURI() string { return f.redirectURI }

type fakeCaptcha struct {
	configured bool
	pass       bool
}

func (f *fakeCaptcha) IsConfigured() bool { return f.configured }

func (f *fakeCaptcha) Verify(ctx context.Context, token string) bool { return f.pass }
