package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/szaffarano/korrosync/internal/core/domain"
	"github.com/szaffarano/korrosync/internal/storage"
)

// GateConfig holds configuration for the admission pipeline.
type GateConfig struct {
	// Refill is the steady-state admission rate in requests per second.
	Refill rate.Limit

	// Burst is the token bucket capacity. A fresh client can submit up to
	// Burst requests back to back before refill pacing kicks in.
	Burst int
}

// DefaultGateConfig returns the default gate configuration.
func DefaultGateConfig() *GateConfig {
	return &GateConfig{
		Refill: 2,
		Burst:  5,
	}
}

// Limiter registry sweep cadence and the idle time after which a client
// bucket is dropped. An idle bucket refills completely well inside the
// TTL, so dropping and recreating it is indistinguishable to the client.
const (
	limiterSweepInterval = time.Minute
	limiterIdleTTL       = 3 * time.Minute
)

// Gate is the admission pipeline for authenticated requests.
//
// Stage order is fixed: the rate limit check runs before any credential
// work, so a flooding client is rejected without spending an argon2
// computation on it. The credential stage takes the same code path for
// unknown users and wrong passwords, hashing against a throwaway record
// when no real one exists, so response timing does not reveal which
// usernames are registered.
type Gate struct {
	store    storage.Store
	limiters *limiterRegistry
	cfg      *GateConfig
	logger   *slog.Logger

	// dummyHash is verified against when the username is unknown, to keep
	// the miss path as expensive as the hit path.
	dummyHash string

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewGate creates a Gate over the given store.
func NewGate(store storage.Store, cfg *GateConfig, logger *slog.Logger) (*Gate, error) {
	if cfg == nil {
		cfg = DefaultGateConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	dummy, err := domain.NewUser("gate-dummy", "gate-dummy-secret")
	if err != nil {
		return nil, err
	}

	g := &Gate{
		store:     store,
		limiters:  newLimiterRegistry(cfg.Refill, cfg.Burst),
		cfg:       cfg,
		logger:    logger,
		dummyHash: dummy.PasswordHash,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	go g.sweepLoop()

	return g, nil
}

// Close stops the limiter registry sweeper.
func (g *Gate) Close() error {
	close(g.stopCh)
	<-g.doneCh
	return nil
}

// sweepLoop periodically drops client buckets that have been idle long
// enough to be fully refilled, so the registry does not grow without
// bound under distinct client keys.
func (g *Gate) sweepLoop() {
	defer close(g.doneCh)

	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := g.limiters.sweep(time.Now().Add(-limiterIdleTTL)); n > 0 {
				g.logger.Debug("dropped idle rate limiters", "count", n)
			}
		case <-g.stopCh:
			return
		}
	}
}

// AdmitRequest contains the parameters for one admission decision.
type AdmitRequest struct {
	// ClientKey identifies the caller for rate limiting purposes,
	// typically the client IP.
	ClientKey string

	Username string
	Password string
}

// AdmitResult contains the outcome of a successful admission.
type AdmitResult struct {
	// User is the verified account.
	User *domain.User
}

// Admit runs the pipeline for one request. It returns ErrRateLimited if
// the client's bucket is empty, ErrUnauthorized if the credentials do not
// match a stored user, and the verified user otherwise.
func (g *Gate) Admit(ctx context.Context, req *AdmitRequest) (*AdmitResult, error) {
	if err := g.checkRateLimit(req.ClientKey); err != nil {
		return nil, err
	}
	return g.verifyCredentials(ctx, req.Username, req.Password)
}

// CheckRateLimit runs only the rate limiting stage, for endpoints that
// are throttled but unauthenticated, such as registration.
func (g *Gate) CheckRateLimit(clientKey string) error {
	return g.checkRateLimit(clientKey)
}

func (g *Gate) checkRateLimit(clientKey string) error {
	limiter := g.limiters.getOrCreate(clientKey)

	if !limiter.Allow() {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()

		return domain.ErrRateLimited.WithDetails(
			"retry after " + delay.Round(time.Millisecond).String(),
		)
	}

	return nil
}

func (g *Gate) verifyCredentials(ctx context.Context, username, password string) (*AdmitResult, error) {
	user, err := g.store.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if user == nil {
		// Burn the same hashing cost an existing user would.
		domain.VerifySecret(password, g.dummyHash)
		return nil, domain.ErrUnauthorized
	}

	if !user.Check(password) {
		return nil, domain.ErrUnauthorized
	}

	// Activity tracking is best effort. An admission must not fail
	// because the timestamp write lost a race.
	if err := g.store.TouchUser(ctx, username, time.Now().UnixMilli()); err != nil {
		g.logger.Warn("failed to record user activity",
			"username", username,
			"error", err)
	}

	return &AdmitResult{User: user}, nil
}

// limiterRegistry manages one token bucket per client key. Each entry
// tracks its last use so idle buckets can be swept.
type limiterRegistry struct {
	mu       sync.RWMutex
	limiters map[string]*clientLimiter
	refill   rate.Limit
	burst    int
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func newLimiterRegistry(refill rate.Limit, burst int) *limiterRegistry {
	return &limiterRegistry{
		limiters: make(map[string]*clientLimiter),
		refill:   refill,
		burst:    burst,
	}
}

func (r *limiterRegistry) getOrCreate(clientKey string) *rate.Limiter {
	now := time.Now().UnixNano()

	r.mu.RLock()
	entry, exists := r.limiters[clientKey]
	r.mu.RUnlock()

	if exists {
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.limiters[clientKey]; exists {
		entry.lastSeen.Store(now)
		return entry.limiter
	}

	entry = &clientLimiter{limiter: rate.NewLimiter(r.refill, r.burst)}
	entry.lastSeen.Store(now)
	r.limiters[clientKey] = entry

	return entry.limiter
}

// sweep removes entries not used since the cutoff and returns how many
// were dropped.
func (r *limiterRegistry) sweep(cutoff time.Time) int {
	threshold := cutoff.UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped int
	for key, entry := range r.limiters {
		if entry.lastSeen.Load() < threshold {
			delete(r.limiters, key)
			dropped++
		}
	}
	return dropped
}

func (r *limiterRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.limiters)
}
