// Package voting implements the Vote Service (section 4.7): apply_vote
// against the repository, gated by a per-client-identity cooldown and a
// rolling-window cap. The bucket store follows the teacher's
// internal/api/middleware/ratelimit.go shape (a mutex-guarded map of
// golang.org/x/time/rate limiters, keyed by client identity, with lazy
// per-entry expiry) generalized from one rate.Limiter per client to two —
// a burst-1 limiter for the cooldown and a burst-MaxPerWindow limiter for
// the rolling cap.
package voting

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Togather-Foundation/trustdirectory/internal/domain/facility"
)

// ErrRateLimited marks a vote rejected by the cooldown or rolling-window
// bucket; handlers map it to RateLimited/429.
var ErrRateLimited = errors.New("voting: rate limited")

// ErrInvalidVote marks an unrecognized vote kind.
var ErrInvalidVote = errors.New("voting: kind must be like or dislike")

// Limits configures the two buckets from section 4.7.
type Limits struct {
	Cooldown        time.Duration // minimum gap between two successful votes from one client
	Window          time.Duration // rolling window width
	MaxPerWindow    int           // max successful votes per client within Window
	CleanupInterval time.Duration
}

type limiterEntry struct {
	cooldown *rate.Limiter
	window   *rate.Limiter

	// pending holds the in-flight reservations for the vote currently being
	// applied to the repository, so a failed ApplyVote can cancel them and
	// hand the tokens back rather than permanently cost the client a slot.
	pending  []*rate.Reservation
	lastSeen time.Time
}

// Service applies votes to a facility.Repository, enforcing Limits per
// client identity. Client identity is an opaque string the transport layer
// derives (section 4.7: "the core treats it as an opaque bytestring").
type Service struct {
	repo   facility.Repository
	limits Limits

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	stop     chan struct{}
}

func New(repo facility.Repository, limits Limits) *Service {
	if limits.Cooldown <= 0 {
		limits.Cooldown = 60 * time.Second
	}
	if limits.Window <= 0 {
		limits.Window = 10 * time.Minute
	}
	if limits.MaxPerWindow <= 0 {
		limits.MaxPerWindow = 20
	}
	if limits.CleanupInterval <= 0 {
		limits.CleanupInterval = 5 * time.Minute
	}

	s := &Service{
		repo:     repo,
		limits:   limits,
		limiters: make(map[string]*limiterEntry),
		stop:     make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

// Stop halts the background cleanup goroutine.
func (s *Service) Stop() { close(s.stop) }

// Vote applies kind to facilityID on behalf of clientID, after checking the
// cooldown and rolling-window buckets. now is accepted as a parameter so
// tests can drive the clock deterministically.
func (s *Service) Vote(ctx context.Context, clientID, facilityID string, kind facility.VoteKind, now time.Time) (facility.VoteSummary, error) {
	switch kind {
	case facility.VoteLike, facility.VoteDislike:
	default:
		return facility.VoteSummary{}, ErrInvalidVote
	}

	if err := s.reserve(clientID, now); err != nil {
		return facility.VoteSummary{}, err
	}

	summary, err := s.repo.ApplyVote(ctx, facilityID, kind)
	if err != nil {
		// The tokens were reserved optimistically; cancel the reservations
		// so a NotFound (or any repository failure) doesn't permanently
		// cost the client its rate-limit budget.
		s.release(clientID, now)
		return facility.VoteSummary{}, err
	}
	return summary, nil
}

// reserve draws one token from both the cooldown and window limiters for
// clientID, mirroring the teacher's limiterStore.limiter lazy-create
// pattern but composing two buckets instead of one.
func (s *Service) reserve(clientID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.limiters[clientID]
	if !ok {
		entry = &limiterEntry{
			cooldown: rate.NewLimiter(rate.Every(s.limits.Cooldown), 1),
			window:   rate.NewLimiter(rate.Every(s.limits.Window/time.Duration(s.limits.MaxPerWindow)), s.limits.MaxPerWindow),
		}
		s.limiters[clientID] = entry
	}
	entry.lastSeen = now

	cooldownRes := entry.cooldown.ReserveN(now, 1)
	if !cooldownRes.OK() || cooldownRes.DelayFrom(now) > 0 {
		cooldownRes.CancelAt(now)
		return ErrRateLimited
	}

	windowRes := entry.window.ReserveN(now, 1)
	if !windowRes.OK() || windowRes.DelayFrom(now) > 0 {
		windowRes.CancelAt(now)
		cooldownRes.CancelAt(now)
		return ErrRateLimited
	}

	entry.pending = []*rate.Reservation{cooldownRes, windowRes}
	return nil
}

// release cancels clientID's most recent reservations, restoring both
// tokens after a failed ApplyVote.
func (s *Service) release(clientID string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.limiters[clientID]
	if !ok {
		return
	}
	for _, res := range entry.pending {
		res.CancelAt(now)
	}
	entry.pending = nil
}

func (s *Service) cleanupLoop() {
	ticker := time.NewTicker(s.limits.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stop:
			return
		}
	}
}

// cleanup removes limiter entries not seen within the window, preventing
// unbounded memory growth the same way the teacher's cleanupLoop does.
func (s *Service) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, entry := range s.limiters {
		if now.Sub(entry.lastSeen) > s.limits.Window && now.Sub(entry.lastSeen) > s.limits.Cooldown {
			delete(s.limiters, id)
		}
	}
}
