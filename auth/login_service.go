package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// PasswordExchanger obtains a token for a user's credentials.
type PasswordExchanger interface {
	Password(ctx context.Context, email, password string) (*oauth2.Token, error)
}

// LoginService runs login attempts against the token endpoint and feeds their outcome into
// a session store. Only the most recent attempt is live: starting a new one cancels the
// previous one, and a late result from a superseded attempt is discarded.
type LoginService struct {
	store   *sessions.Store
	tokens  PasswordExchanger
	nowTime func() time.Time

	lock   sync.Mutex
	latest *Attempt
	wg     sync.WaitGroup
}

// LoginServiceOption defines a function type to modify the LoginService instance.
type LoginServiceOption func(*LoginService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) LoginServiceOption {
	return func(ls *LoginService) {
		ls.nowTime = nowFunc
	}
}

// Attempt is a single login attempt. Wait blocks until it has resolved.
type Attempt struct {
	ID     string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Wait returns nil if the attempt logged the user in, ErrLoginSuperseded if a newer attempt
// replaced it, or an error wrapping ErrLoginFailed.
func (a *Attempt) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed once the attempt has resolved.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

func NewLoginService(store *sessions.Store, tokens PasswordExchanger, options ...LoginServiceOption) (*LoginService, error) {
	if store == nil {
		return nil, errors.New("[NewLoginService] session store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewLoginService] token exchanger is required")
	}

	ls := &LoginService{
		store:   store,
		tokens:  tokens,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(ls)
	}
	return ls, nil
}

// Login dispatches LoginStart and begins exchanging the credentials in the background.
// Any attempt still in flight is cancelled and its result will not reach the store.
func (ls *LoginService) Login(ctx context.Context, email, password string) *Attempt {
	attemptCtx, cancel := context.WithCancel(ctx)
	attempt := &Attempt{
		ID:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	ls.lock.Lock()
	if ls.latest != nil {
		ls.latest.cancel()
	}
	ls.latest = attempt
	ls.store.Dispatch(ctx, sessions.LoginStart{Email: email, Password: password})
	ls.wg.Add(1)
	ls.lock.Unlock()

	log.Debug().Str("attempt", attempt.ID).Str("email", email).Msg("login started")

	go ls.run(attemptCtx, attempt, email, password)
	return attempt
}

func (ls *LoginService) run(ctx context.Context, attempt *Attempt, email, password string) {
	defer ls.wg.Done()
	defer close(attempt.done)
	defer attempt.cancel()

	tok, err := ls.tokens.Password(ctx, email, password)

	ls.lock.Lock()
	defer ls.lock.Unlock()

	if ls.latest != attempt {
		log.Debug().Str("attempt", attempt.ID).Msg("discarding superseded login result")
		attempt.err = autherrors.ErrLoginSuperseded
		return
	}
	ls.latest = nil

	if err != nil {
		log.Err(err).Str("attempt", attempt.ID).Msg("Login failed")
		ls.store.Dispatch(ctx, sessions.LoginFailure{Err: err})
		attempt.err = fmt.Errorf("%w: %w", autherrors.ErrLoginFailed, err)
		return
	}

	action := token.LoginSuccess(tok)
	if action.ExpirationSeconds == 0 && action.ExpiresIn > 0 {
		action = sessions.NewLoginSuccess(action.AccessToken, action.ExpiresIn, ls.nowTime())
	}
	ls.store.Dispatch(ctx, action)
}

// Logout cancels any in-flight attempt and clears the session.
func (ls *LoginService) Logout(ctx context.Context) {
	ls.lock.Lock()
	defer ls.lock.Unlock()

	if ls.latest != nil {
		ls.latest.cancel()
		ls.latest = nil
	}
	ls.store.Dispatch(ctx, sessions.Logout{})
}

// Wait blocks until every started attempt has resolved.
func (ls *LoginService) Wait() {
	ls.wg.Wait()
}
