package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/boilerswap/backend/internal/account"
	"github.com/boilerswap/backend/internal/keyspace"
	"github.com/boilerswap/backend/internal/limiters"
	"github.com/boilerswap/backend/internal/password"
	"github.com/boilerswap/backend/internal/pending"
	"github.com/boilerswap/backend/internal/session"
)

type mailStub struct {
	mu   sync.Mutex
	sent []struct{ email, code string }
}

func (m *mailStub) SendCode(email, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, struct{ email, code string }{email, code})
}

func (m *mailStub) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no code was dispatched")
	}
	return m.sent[len(m.sent)-1].code
}

type testRig struct {
	engine *Engine
	users  *account.MemoryStore
	mail   *mailStub
	redis  *miniredis.Miniredis
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hasher, err := password.New(password.Config{
		Memory: 8192, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	if err != nil {
		t.Fatalf("hasher config rejected: %v", err)
	}

	users := account.NewMemoryStore()
	mail := &mailStub{}

	cfg := DefaultConfig()
	cfg.HashConcurrency = 2

	engine, err := New(cfg, users, pending.NewStore(rdb), session.NewStore(rdb, cfg.MaxSessions),
		limiters.NewLock(rdb), hasher, mail, nil, nil)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	return &testRig{engine: engine, users: users, mail: mail, redis: mr}
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name && c.MaxAge >= 0 {
			return c
		}
	}
	return nil
}

// signup walks email through authenticate(signup) and a correct verify,
// returning the session cookie set.
func (r *testRig) signup(t *testing.T, email, pw string) []*http.Cookie {
	t.Helper()
	ctx := context.Background()

	cookies, err := r.engine.Authenticate(ctx, email, pw, FlowSignup)
	if err != nil {
		t.Fatalf("Authenticate(signup) error: %v", err)
	}
	out, err := r.engine.Verify(ctx, r.mail.lastCode(t), cookies)
	if err != nil {
		t.Fatalf("Verify(signup code) error: %v", err)
	}
	return out
}

func TestAuthenticateRejectsMalformedInput(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cases := []struct {
		name, email, pw string
	}{
		{"non-campus email", "a@gmail.com", "pw"},
		{"empty password", "a@purdue.edu", ""},
		{"oversized email", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa@purdue.edu", "pw"},
	}
	for _, tc := range cases {
		_, err := rig.engine.Authenticate(ctx, tc.email, tc.pw, FlowSignup)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: got %v, want validation error", tc.name, err)
		}
	}
}

func TestAuthenticateRejectsRecoveryFlows(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	for _, flow := range []Flow{FlowForgot, FlowUpdate} {
		_, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw", flow)
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("flow %s: got %v, want ErrInvalidCredentials", flow, err)
		}
	}
}

func TestLoginUnknownAccountRejected(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.engine.Authenticate(context.Background(), "ghost@purdue.edu", "pw", FlowLogin)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestSignupVerifyIssuesSessionAndDurableIdentity(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cookies := rig.signup(t, "a@purdue.edu", "pw1")

	sess := cookieByName(cookies, cookieSession)
	if sess == nil {
		t.Fatal("no session cookie issued")
	}

	live, err := rig.engine.Authenticated(ctx, cookies)
	if err != nil {
		t.Fatalf("Authenticated error: %v", err)
	}
	if !live {
		t.Fatal("fresh session should be live")
	}

	user, err := rig.users.Get(ctx, "a@purdue.edu")
	if err != nil || user == nil {
		t.Fatalf("identity not persisted: user=%v err=%v", user, err)
	}
	match, err := rig.engine.verifyHash("pw1", user.PasswordHash)
	if err != nil || !match {
		t.Fatalf("stored hash does not verify: match=%v err=%v", match, err)
	}
}

func TestSignupWrongCodeConsumesRecordAndCreatesNothing(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowSignup)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}

	wrong := "000000"
	if wrong == rig.mail.lastCode(t) {
		wrong = "000001"
	}
	if _, err := rig.engine.Verify(ctx, wrong, cookies); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong code: got %v, want ErrInvalidCredentials", err)
	}

	if user, _ := rig.users.Get(ctx, "a@purdue.edu"); user != nil {
		t.Fatal("failed signup must not persist an identity")
	}

	// The record was consumed; even the real code is dead now.
	rig.redis.FastForward(2 * time.Second)
	if _, err := rig.engine.Verify(ctx, rig.mail.lastCode(t), cookies); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("replayed code: got %v, want ErrInvalidCredentials", err)
	}
}

func TestSignupExistingAccountRejected(t *testing.T) {
	rig := newTestRig(t)
	rig.signup(t, "a@purdue.edu", "pw1")

	_, err := rig.engine.Authenticate(context.Background(), "a@purdue.edu", "other", FlowSignup)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginWrongPasswordRejected(t *testing.T) {
	rig := newTestRig(t)
	rig.signup(t, "a@purdue.edu", "pw1")

	_, err := rig.engine.Authenticate(context.Background(), "a@purdue.edu", "pw2", FlowLogin)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRoundTrip(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.signup(t, "a@purdue.edu", "pw1")

	cookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowLogin)
	if err != nil {
		t.Fatalf("Authenticate(login) error: %v", err)
	}
	if cookieByName(cookies, cookieAuth) == nil {
		t.Fatal("login must issue the auth flow cookie")
	}

	out, err := rig.engine.Verify(ctx, rig.mail.lastCode(t), cookies)
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if cookieByName(out, cookieSession) == nil {
		t.Fatal("verified login must issue a session cookie")
	}
}

func TestVerifyWithoutCookieRejected(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.engine.Verify(context.Background(), "123456", nil)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestVerifyBadCodeShapeRejected(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowSignup)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}

	for _, bad := range []string{"", "12345", "1234567", "12345a", "12 456"} {
		if _, err := rig.engine.Verify(ctx, bad, cookies); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("code %q: got %v, want ErrInvalidCredentials", bad, err)
		}
	}

	// Shape failures never touch the record or the lock.
	rig.redis.FastForward(2 * time.Second)
	if _, err := rig.engine.Verify(ctx, rig.mail.lastCode(t), cookies); err != nil {
		t.Fatalf("real code after shape rejections: %v", err)
	}
}

func TestConcurrentVerifyExactlyOneWins(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowSignup)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	code := rig.mail.lastCode(t)

	const racers = 8
	var (
		start = make(chan struct{})
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := rig.engine.Verify(ctx, code, cookies); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("got %d successful verifications, want exactly 1", wins)
	}
}

func TestForgotFreezesAndRevokesSessions(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	sessionCookies := rig.signup(t, "a@purdue.edu", "pw1")

	if _, err := rig.engine.Forgot(ctx, "a@purdue.edu"); err != nil {
		t.Fatalf("Forgot error: %v", err)
	}

	user, _ := rig.users.Get(ctx, "a@purdue.edu")
	if user == nil || !user.Locked {
		t.Fatal("recovery must durably lock the account")
	}

	live, err := rig.engine.Authenticated(ctx, sessionCookies)
	if err != nil {
		t.Fatalf("Authenticated error: %v", err)
	}
	if live {
		t.Fatal("recovery must revoke existing sessions")
	}
}

func TestForgotMalformedEmailRejected(t *testing.T) {
	rig := newTestRig(t)

	_, err := rig.engine.Forgot(context.Background(), "a@gmail.com")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("got %v, want ErrInvalidCredentials", err)
	}
}

func TestForgotUnknownAndLockedAccountsIndistinguishable(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.signup(t, "a@purdue.edu", "pw1")
	if _, err := rig.engine.Forgot(ctx, "a@purdue.edu"); err != nil {
		t.Fatalf("first Forgot error: %v", err)
	}

	for _, email := range []string{"a@purdue.edu", "ghost@purdue.edu"} {
		cookies, err := rig.engine.Forgot(ctx, email)
		if err != nil {
			t.Fatalf("Forgot(%s) error: %v", email, err)
		}
		if cookieByName(cookies, cookieForgot) == nil {
			t.Fatalf("Forgot(%s) must issue a recovery cookie", email)
		}
	}
}

func TestFreezeStampRejectsEarlierLogin(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.signup(t, "a@purdue.edu", "pw1")

	loginCookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowLogin)
	if err != nil {
		t.Fatalf("Authenticate(login) error: %v", err)
	}
	loginCode := rig.mail.lastCode(t)

	if _, err := rig.engine.Forgot(ctx, "a@purdue.edu"); err != nil {
		t.Fatalf("Forgot error: %v", err)
	}

	// The login was issued before recovery began; its correct code must be
	// rejected and consumed.
	if _, err := rig.engine.Verify(ctx, loginCode, loginCookies); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("frozen login: got %v, want ErrInvalidCredentials", err)
	}

	rig.redis.FastForward(2 * time.Second)
	if _, err := rig.engine.Verify(ctx, loginCode, loginCookies); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("frozen login replay: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRecoveryRoundTrip(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.signup(t, "a@purdue.edu", "pw1")

	forgotCookies, err := rig.engine.Forgot(ctx, "a@purdue.edu")
	if err != nil {
		t.Fatalf("Forgot error: %v", err)
	}

	updateCookies, err := rig.engine.Verify(ctx, rig.mail.lastCode(t), forgotCookies)
	if err != nil {
		t.Fatalf("Verify(recovery code) error: %v", err)
	}
	if cookieByName(updateCookies, cookieUpdate) == nil {
		t.Fatal("recovery verification must issue the update cookie")
	}
	if cookieByName(updateCookies, cookieSession) != nil {
		t.Fatal("recovery verification must not issue a session yet")
	}

	sessionCookies, err := rig.engine.Verify(ctx, "pw2", updateCookies)
	if err != nil {
		t.Fatalf("Verify(new password) error: %v", err)
	}
	if cookieByName(sessionCookies, cookieSession) == nil {
		t.Fatal("completed recovery must issue a session cookie")
	}

	user, _ := rig.users.Get(ctx, "a@purdue.edu")
	if user == nil || user.Locked {
		t.Fatal("completed recovery must unlock the account")
	}
	match, err := rig.engine.verifyHash("pw2", user.PasswordHash)
	if err != nil || !match {
		t.Fatalf("new password not installed: match=%v err=%v", match, err)
	}
	if match, _ := rig.engine.verifyHash("pw1", user.PasswordHash); match {
		t.Fatal("old password must stop working after recovery")
	}
}

func TestLockedAccountCannotLogin(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.signup(t, "a@purdue.edu", "pw1")

	if _, err := rig.engine.Forgot(ctx, "a@purdue.edu"); err != nil {
		t.Fatalf("Forgot error: %v", err)
	}

	_, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowLogin)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("locked login: got %v, want ErrInvalidCredentials", err)
	}
}

func TestLogoutIdempotentAndClearsEverything(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	sessionCookies := rig.signup(t, "a@purdue.edu", "pw1")

	for i := 0; i < 2; i++ {
		cleared := rig.engine.Logout(ctx, sessionCookies)
		if len(cleared) != len(flowCookieNames) {
			t.Fatalf("logout cleared %d cookies, want %d", len(cleared), len(flowCookieNames))
		}
		for _, c := range cleared {
			if c.MaxAge >= 0 || c.Value != "" {
				t.Fatalf("cookie %s not cleared: MaxAge=%d Value=%q", c.Name, c.MaxAge, c.Value)
			}
		}
	}

	live, err := rig.engine.Authenticated(ctx, sessionCookies)
	if err != nil {
		t.Fatalf("Authenticated error: %v", err)
	}
	if live {
		t.Fatal("logout must kill the liveness key")
	}

	// No cookies at all is still a clean logout.
	if cleared := rig.engine.Logout(ctx, nil); len(cleared) != len(flowCookieNames) {
		t.Fatal("cookie-less logout must still clear the full set")
	}
}

func TestIssueCookieClearsSiblingsFirst(t *testing.T) {
	cookies := issueCookie(cookieSession, "abc", time.Hour)

	seen := make(map[string]*http.Cookie, len(cookies))
	for _, c := range cookies {
		seen[c.Name] = c
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteStrictMode || c.Path != "/" {
			t.Errorf("cookie %s missing hardening attributes", c.Name)
		}
	}

	for _, name := range flowCookieNames {
		c, ok := seen[name]
		if !ok {
			t.Fatalf("cookie %s absent from issue set", name)
		}
		if name == cookieSession {
			if c.Value != "abc" || c.MaxAge != 3600 {
				t.Fatalf("session cookie wrong: %+v", c)
			}
			continue
		}
		if c.MaxAge >= 0 {
			t.Errorf("sibling cookie %s not cleared", name)
		}
	}
}

func TestAttemptLockKeyedByIdentifier(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowSignup)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	id := cookieByName(cookies, cookieAuth).Value

	// Simulate a concurrent in-flight verification.
	held, err := rig.engine.locks.Acquire(ctx, keyspace.AttemptLock, id, time.Minute)
	if err != nil || !held {
		t.Fatalf("pre-acquire failed: held=%v err=%v", held, err)
	}

	if _, err := rig.engine.Verify(ctx, rig.mail.lastCode(t), cookies); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("held lock: got %v, want ErrInvalidCredentials", err)
	}

	// Lock expires, record is still there, the code still works.
	rig.redis.FastForward(2 * time.Minute)
	if _, err := rig.engine.Verify(ctx, rig.mail.lastCode(t), cookies); err != nil {
		t.Fatalf("verify after lock expiry: %v", err)
	}
}

func TestPendingRecordExpires(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	cookies, err := rig.engine.Authenticate(ctx, "a@purdue.edu", "pw1", FlowSignup)
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	code := rig.mail.lastCode(t)

	rig.redis.FastForward(11 * time.Minute)

	if _, err := rig.engine.Verify(ctx, code, cookies); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expired record: got %v, want ErrInvalidCredentials", err)
	}
	if user, _ := rig.users.Get(ctx, "a@purdue.edu"); user != nil {
		t.Fatal("expired signup must leave no durable trace")
	}
}
