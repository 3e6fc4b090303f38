package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gram-sevak/internal/domain"
	"github.com/gram-sevak/internal/infrastructure/memory"
	"github.com/gram-sevak/internal/infrastructure/smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type mockMailer struct{ mock.Mock }

func (m *mockMailer) Send(ctx context.Context, msg smtp.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockStore struct{ mock.Mock }

func (m *mockStore) Put(ctx context.Context, identity string, rec domain.CredentialRecord) error {
	return m.Called(ctx, identity, rec).Error(0)
}
func (m *mockStore) Get(ctx context.Context, identity string) (domain.CredentialRecord, bool, error) {
	args := m.Called(ctx, identity)
	rec, _ := args.Get(0).(domain.CredentialRecord)
	return rec, args.Bool(1), args.Error(2)
}
func (m *mockStore) Delete(ctx context.Context, identity string) error {
	return m.Called(ctx, identity).Error(0)
}
func (m *mockStore) Consume(ctx context.Context, identity string, rec domain.CredentialRecord) (bool, error) {
	args := m.Called(ctx, identity, rec)
	return args.Bool(0), args.Error(1)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// seqGenerator hands out codes in order.
type seqGenerator struct {
	mu    sync.Mutex
	codes []string
}

func (g *seqGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", errors.New("out of codes")
	}
	c := g.codes[0]
	g.codes = g.codes[1:]
	return c, nil
}

// --- builder ---

type fixture struct {
	svc    Service
	store  *memory.CredentialStore
	mailer *mockMailer
	clock  *fakeClock
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)}
	store := memory.NewCredentialStore(clk)
	t.Cleanup(func() { _ = store.Close() })
	ml := &mockMailer{}
	svc := NewService(ServiceDeps{
		Store:     store,
		Mailer:    ml,
		Generator: &seqGenerator{codes: codes},
		Clock:     clk,
	})
	return &fixture{svc: svc, store: store, mailer: ml, clock: clk}
}

// --- RequestCode ---

func TestRequestCode_StoresAndMailsNormalizedIdentity(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.MatchedBy(func(msg smtp.Message) bool {
		return len(msg.To) == 1 && msg.To[0] == "foo@bar.com" &&
			msg.Subject == codeSubject &&
			strings.Contains(msg.HTMLBody, "<b>123456</b>") &&
			strings.Contains(msg.TextBody, "123456")
	})).Return(nil)

	require.NoError(t, f.svc.RequestCode(context.Background(), "  Foo@Bar.com "))

	rec, ok, err := f.store.Get(context.Background(), "foo@bar.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "123456", rec.Code)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), rec.ExpiresAt)
	f.mailer.AssertExpectations(t)
}

func TestRequestCode_EmptyEmail_RejectedBeforeStoreOrMail(t *testing.T) {
	store := &mockStore{}
	ml := &mockMailer{}
	svc := NewService(ServiceDeps{Store: store, Mailer: ml})

	for _, email := range []string{"", "   "} {
		err := svc.RequestCode(context.Background(), email)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	}
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRequestCode_DispatchFailure_LeavesCodeStored(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("535 auth failed"))

	err := f.svc.RequestCode(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDispatchFailed))
	assert.Contains(t, err.Error(), "535 auth failed")

	_, ok, _ := f.store.Get(context.Background(), "a@x.com")
	assert.True(t, ok, "no rollback after a failed send")
}

func TestRequestCode_StoreFailure_SkipsMail(t *testing.T) {
	store := &mockStore{}
	ml := &mockMailer{}
	store.On("Put", mock.Anything, "a@x.com", mock.Anything).Return(errors.New("connection refused"))
	svc := NewService(ServiceDeps{Store: store, Mailer: ml, Generator: &seqGenerator{codes: []string{"123456"}}})

	err := svc.RequestCode(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrDispatchFailed))
	ml.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestRequestCode_GeneratorFailure(t *testing.T) {
	store := &mockStore{}
	svc := NewService(ServiceDeps{Store: store, Mailer: &mockMailer{}, Generator: &seqGenerator{}})
	assert.Error(t, svc.RequestCode(context.Background(), "a@x.com"))
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
}

// --- VerifyCode ---

func TestVerifyCode_SucceedsExactlyOnce(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))

	identity, err := f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identity)

	_, err = f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNoCodeFound)
}

func TestVerifyCode_AfterExpiry(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))

	f.clock.Advance(5*time.Minute + time.Millisecond)

	_, err := f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
	assert.Equal(t, 0, f.store.Len())

	_, err = f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNoCodeFound)
}

func TestVerifyCode_AtExactExpiryStillValid(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))

	f.clock.Advance(5 * time.Minute)

	_, err := f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.NoError(t, err)
}

func TestVerifyCode_ExpiredWrongCodeStillReportsExpired(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))
	f.clock.Advance(time.Hour)

	_, err := f.svc.VerifyCode(context.Background(), "a@x.com", "000000")
	assert.ErrorIs(t, err, domain.ErrCodeExpired)
}

func TestVerifyCode_WrongCodeAllowsRetry(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))

	_, err := f.svc.VerifyCode(context.Background(), "a@x.com", "000000")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)

	f.clock.Advance(time.Minute)
	_, err = f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.NoError(t, err)
}

func TestVerifyCode_ReissueInvalidatesPrevious(t *testing.T) {
	f := newFixture(t, "111111", "222222")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))

	_, err := f.svc.VerifyCode(context.Background(), "a@x.com", "111111")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCode) || errors.Is(err, domain.ErrNoCodeFound))

	_, err = f.svc.VerifyCode(context.Background(), "a@x.com", "222222")
	assert.NoError(t, err)
}

func TestVerifyCode_NormalizesEmail(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "  Foo@Bar.com "))

	identity, err := f.svc.VerifyCode(context.Background(), "foo@bar.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, "foo@bar.com", identity)
}

func TestVerifyCode_NoRecord(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNoCodeFound)
}

func TestVerifyCode_MissingFields_RejectedBeforeStore(t *testing.T) {
	store := &mockStore{}
	svc := NewService(ServiceDeps{Store: store, Mailer: &mockMailer{}})

	cases := []struct{ email, code string }{
		{"", "123456"},
		{"  ", "123456"},
		{"a@x.com", ""},
	}
	for _, c := range cases {
		_, err := svc.VerifyCode(context.Background(), c.email, c.code)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "email=%q code=%q", c.email, c.code)
	}
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestVerifyCode_LostConsumeRace(t *testing.T) {
	rec := domain.CredentialRecord{Code: "123456", ExpiresAt: time.Now().Add(time.Minute)}
	store := &mockStore{}
	store.On("Get", mock.Anything, "a@x.com").Return(rec, true, nil)
	store.On("Consume", mock.Anything, "a@x.com", rec).Return(false, nil)
	svc := NewService(ServiceDeps{Store: store, Mailer: &mockMailer{}})

	_, err := svc.VerifyCode(context.Background(), "a@x.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNoCodeFound)
}

func TestVerifyCode_StoreError(t *testing.T) {
	store := &mockStore{}
	store.On("Get", mock.Anything, "a@x.com").Return(nil, false, errors.New("timeout"))
	svc := NewService(ServiceDeps{Store: store, Mailer: &mockMailer{}})

	_, err := svc.VerifyCode(context.Background(), "a@x.com", "123456")
	require.Error(t, err)
	for _, sentinel := range []error{domain.ErrNoCodeFound, domain.ErrInvalidCode, domain.ErrCodeExpired, domain.ErrInvalidInput} {
		assert.False(t, errors.Is(err, sentinel))
	}
}

// --- concurrency ---

func TestConcurrentIssuanceForDifferentEmails(t *testing.T) {
	const n = 50
	codes := make([]string, n)
	for i := range codes {
		codes[i] = fmt.Sprintf("%06d", 100000+i)
	}
	f := newFixture(t, codes...)

	var mu sync.Mutex
	sent := map[string]string{}
	f.mailer.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		msg := args.Get(1).(smtp.Message)
		mu.Lock()
		sent[msg.To[0]] = msg.TextBody
		mu.Unlock()
	}).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.svc.RequestCode(context.Background(), fmt.Sprintf("user%d@x.com", i)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, f.store.Len())
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("user%d@x.com", i)
		rec, ok, _ := f.store.Get(context.Background(), email)
		require.True(t, ok)
		assert.Contains(t, sent[email], rec.Code, "each address receives its own code")
	}
}

func TestParallelVerificationsAdmitOnlyOne(t *testing.T) {
	f := newFixture(t, "123456")
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestCode(context.Background(), "a@x.com"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.VerifyCode(context.Background(), "a@x.com", "123456"); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}
