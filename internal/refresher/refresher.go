// Package refresher keeps the tenant's OAuth token pair alive. It is the only
// writer of the account's tokens.
package refresher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/crm"
	"github.com/aman-churiwal/crm-relay/internal/metrics"
	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/aman-churiwal/crm-relay/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Exchanger trades a refresh token for a new token pair.
type Exchanger interface {
	RefreshToken(ctx context.Context, creds crm.Credentials, refreshToken string) (*oauth2.Token, error)
}

type Config struct {
	LocationID    string
	Credentials   crm.Credentials
	Interval      time.Duration // Default: 12h
	RetryInterval time.Duration // Default: 5m
	ExpirySkew    time.Duration // Default: 10m
	LockTTL       time.Duration // Default: 2m, also bounds one cycle
}

// Status is a snapshot of the refresh loop.
type Status struct {
	LastAttempt time.Time `json:"last_attempt"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	NextRun     time.Time `json:"next_run"`
	TokenExpiry time.Time `json:"token_expiry,omitempty"`
}

type Refresher struct {
	store     repository.AccountStore
	exchanger Exchanger
	locker    Locker
	metrics   *metrics.Metrics
	cfg       Config

	mu     sync.RWMutex
	status Status

	saveAttempts int
	saveBackoff  time.Duration
	saveTimeout  time.Duration
}

func New(store repository.AccountStore, exchanger Exchanger, locker Locker, m *metrics.Metrics, cfg Config) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 12 * time.Hour
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Minute
	}
	if cfg.ExpirySkew <= 0 {
		cfg.ExpirySkew = 10 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if locker == nil {
		locker = NewLocalLocker()
	}

	return &Refresher{
		store:        store,
		exchanger:    exchanger,
		locker:       locker,
		metrics:      m,
		cfg:          cfg,
		saveAttempts: 3,
		saveBackoff:  time.Second,
		saveTimeout:  30 * time.Second,
	}
}

// RefreshCycle rotates the token pair once: load, exchange, persist.
func (r *Refresher) RefreshCycle(ctx context.Context) (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.LockTTL)
	defer cancel()

	release, err := r.locker.Acquire(ctx, "refresh:"+r.cfg.LocationID, r.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	// load under the lock so the latest refresh token is used
	account, err := r.store.Load(ctx, r.cfg.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	token, err := r.exchanger.RefreshToken(ctx, r.cfg.Credentials, account.RefreshToken)
	if err != nil {
		var refreshErr *crm.RefreshError
		if errors.As(err, &refreshErr) && refreshErr.Body != "" {
			log.Printf("Token endpoint response for %s: %s", account.LocationID, refreshErr.Body)
		}
		return nil, err
	}

	updated := &models.Account{
		LocationID:   account.LocationID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	// the exchange already spent the old refresh token, so the save outlives
	// cancellation of the cycle
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), r.saveTimeout)
	defer saveCancel()
	if err := r.save(saveCtx, updated); err != nil {
		// the old refresh token is already spent at this point
		log.Printf("CRITICAL: new tokens for %s could not be persisted: %v", account.LocationID, err)
		return nil, err
	}

	if token.Expiry.IsZero() {
		token.Expiry = accessTokenExpiry(token.AccessToken)
	}

	log.Printf("Tokens refreshed for %s (access %s, expires %s)",
		account.LocationID, maskToken(token.AccessToken), formatExpiry(token.Expiry))

	return token, nil
}

func (r *Refresher) save(ctx context.Context, account *models.Account) error {
	var err error
	for attempt := 1; attempt <= r.saveAttempts; attempt++ {
		if err = r.store.SaveTokens(ctx, account); err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrAccountNotFound) {
			return err
		}

		log.Printf("Saving refreshed tokens failed (attempt %d/%d): %v", attempt, r.saveAttempts, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(time.Duration(attempt) * r.saveBackoff):
		}
	}
	return err
}

// Run refreshes immediately and then keeps rescheduling until ctx is done. A
// failed cycle never stops the loop; it is retried after RetryInterval.
func (r *Refresher) Run(ctx context.Context) {
	log.Printf("Token refresher started (interval: %v, retry: %v)", r.cfg.Interval, r.cfg.RetryInterval)

	for {
		token, err := r.RefreshCycle(ctx)
		if ctx.Err() != nil {
			log.Println("Token refresher stopped")
			return
		}

		delay := r.nextDelay(token, err, time.Now())
		r.record(token, err, delay)

		if err != nil {
			log.Printf("Token refresh failed, retrying in %v: %v", delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("Token refresher stopped")
			return
		case <-timer.C:
		}
	}
}

func (r *Refresher) nextDelay(token *oauth2.Token, err error, now time.Time) time.Duration {
	if err != nil {
		return r.cfg.RetryInterval
	}

	delay := r.cfg.Interval
	if token != nil && !token.Expiry.IsZero() {
		if untilExpiry := token.Expiry.Sub(now) - r.cfg.ExpirySkew; untilExpiry < delay {
			delay = untilExpiry
		}
	}
	if delay < r.cfg.RetryInterval {
		delay = r.cfg.RetryInterval
	}
	return delay
}

func (r *Refresher) record(token *oauth2.Token, err error, delay time.Duration) {
	now := time.Now()
	r.metrics.RecordTokenRefresh(err == nil)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.LastAttempt = now
	r.status.NextRun = now.Add(delay)
	if err != nil {
		r.status.LastError = err.Error()
		return
	}
	r.status.LastSuccess = now
	r.status.LastError = ""
	if token != nil {
		r.status.TokenExpiry = token.Expiry
	}
}

func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// accessTokenExpiry reads the exp claim without verifying the signature; the
// token is only inspected for scheduling.
func accessTokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format(time.RFC3339)
}

func maskToken(t string) string {
	if len(t) < 20 {
		return "***"
	}
	return "..." + t[len(t)-8:]
}
