package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	"github.com/healthquiz/quiz-api/internal/domain/quiz"
	apperrors "github.com/healthquiz/quiz-api/internal/errors"
	"github.com/healthquiz/quiz-api/internal/service"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

// memAccountRepo is a minimal in-memory AccountRepository for handler tests.
type memAccountRepo struct {
	accounts map[string]*model.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[string]*model.Account)}
}

func copyAccount(a *model.Account) *model.Account {
	out := *a
	out.ActiveSessions = append([]model.Session(nil), a.ActiveSessions...)
	if a.Suspension != nil {
		s := *a.Suspension
		out.Suspension = &s
	}
	if a.Subscription != nil {
		s := *a.Subscription
		out.Subscription = &s
	}
	return &out
}

func (m *memAccountRepo) Create(_ context.Context, account *model.Account) (*model.Account, error) {
	if _, ok := m.accounts[account.Username]; ok {
		return nil, apperrors.Conflict("username already exists")
	}
	stored := copyAccount(account)
	stored.Version = 1
	m.accounts[account.Username] = stored
	return copyAccount(stored), nil
}

func (m *memAccountRepo) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	acct, ok := m.accounts[username]
	if !ok {
		return nil, apperrors.NotFound("account not found")
	}
	return copyAccount(acct), nil
}

func (m *memAccountRepo) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	for _, acct := range m.accounts {
		if acct.Email == email {
			return copyAccount(acct), nil
		}
	}
	return nil, apperrors.NotFound("account not found")
}

func (m *memAccountRepo) Save(_ context.Context, account *model.Account) (*model.Account, error) {
	stored, ok := m.accounts[account.Username]
	if !ok || stored.Version != account.Version {
		return nil, apperrors.Conflict("account was modified concurrently")
	}
	next := copyAccount(account)
	next.Version++
	m.accounts[account.Username] = next
	return copyAccount(next), nil
}

func (m *memAccountRepo) PurgeExpiredSessions(context.Context, time.Time) (int, error) {
	return 0, nil
}

func (m *memAccountRepo) ClearExpiredSuspensions(context.Context, time.Time) (int, error) {
	return 0, nil
}

// memEventRepo is a minimal in-memory SecurityEventRepository.
type memEventRepo struct {
	appended []core.AppendSecurityEventParams
}

func (m *memEventRepo) Append(_ context.Context, params core.AppendSecurityEventParams) error {
	m.appended = append(m.appended, params)
	return nil
}

func (m *memEventRepo) CountRecentByType(_ context.Context, _ string, eventType model.SecurityEventType, _ time.Time) (int, error) {
	count := 0
	for _, p := range m.appended {
		if p.EventType == eventType {
			count++
		}
	}
	return count, nil
}

func (m *memEventRepo) ListRecent(_ context.Context, username string, limit int) ([]*model.SecurityEvent, error) {
	var out []*model.SecurityEvent
	for i := len(m.appended) - 1; i >= 0 && len(out) < limit; i-- {
		p := m.appended[i]
		if p.Username != username {
			continue
		}
		out = append(out, &model.SecurityEvent{
			Username:  p.Username,
			EventType: p.EventType,
			IP:        p.IP,
			Details:   p.Details,
		})
	}
	return out, nil
}

// memCodeRepo is a minimal in-memory AccessCodeRepository.
type memCodeRepo struct {
	codes map[string]*model.AccessCode
}

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{codes: make(map[string]*model.AccessCode)}
}

func (m *memCodeRepo) Create(_ context.Context, params core.CreateAccessCodeParams) (*model.AccessCode, error) {
	if _, ok := m.codes[params.Code]; ok {
		return nil, apperrors.Conflict("code already exists")
	}
	code := &model.AccessCode{Code: params.Code, Plan: params.Plan, Username: params.Username, Reference: params.Reference}
	m.codes[params.Code] = code
	out := *code
	return &out, nil
}

func (m *memCodeRepo) GetByCode(_ context.Context, code string) (*model.AccessCode, error) {
	stored, ok := m.codes[code]
	if !ok {
		return nil, apperrors.NotFound("access code not found")
	}
	out := *stored
	return &out, nil
}

func (m *memCodeRepo) MarkUsed(_ context.Context, code, username string, usedAt time.Time) (*model.AccessCode, error) {
	stored, ok := m.codes[code]
	if !ok {
		return nil, apperrors.NotFound("access code not found")
	}
	if stored.Used {
		return nil, apperrors.Conflict("access code already used")
	}
	stored.Used = true
	stored.UsedBy = &username
	stored.UsedAt = &usedAt
	out := *stored
	return &out, nil
}

func (m *memCodeRepo) Counts(context.Context) (int, int, error) {
	available := 0
	for _, c := range m.codes {
		if !c.Used {
			available++
		}
	}
	return available, len(m.codes), nil
}

type routerFixture struct {
	handler  http.Handler
	accounts *memAccountRepo
	events   *memEventRepo
	codes    *memCodeRepo
	clock    *data.FixedTimeProvider
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	accounts := newMemAccountRepo()
	events := &memEventRepo{}
	codes := newMemCodeRepo()
	clock := data.NewFixedTimeProvider(testNow)

	authSvc, err := service.NewAuthService(service.AuthServiceOptions{
		Accounts: accounts,
		Events:   events,
		Time:     clock,
		Security: config.SecurityConfig{BcryptCost: bcrypt.MinCost, MaxSessions: 3},
	})
	require.NoError(t, err)

	bank, err := quiz.Load()
	require.NoError(t, err)
	quizSvc, err := service.NewQuizService(service.QuizServiceOptions{Bank: bank, Seed: 1})
	require.NoError(t, err)

	codeSvc, err := service.NewAccessCodeService(service.AccessCodeServiceOptions{
		Codes:    codes,
		Accounts: accounts,
		Time:     clock,
	})
	require.NoError(t, err)

	handler := NewRouter(RouterServices{
		Auth:     authSvc,
		Quiz:     quizSvc,
		Codes:    codeSvc,
		AdminKey: "admin-secret",
	})

	return &routerFixture{handler: handler, accounts: accounts, events: events, codes: codes, clock: clock}
}

func (f *routerFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "1.2.3.4:5678"
	req.Header.Set("User-Agent", "test-agent")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
