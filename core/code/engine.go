package code

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

var (
	// errors
	ErrInvalidCode = errors.New("confirmation code does not match")
	ErrExpiredCode = errors.New("confirmation code has expired")
	// ErrNoCode is the storage-level "never minted" state; Validate folds it
	// into ErrExpiredCode so students are always told to re-read the dashboard.
	ErrNoCode = errors.New("no confirmation code set")
)

type (
	Code struct {
		Value     string    `json:"code"`
		ExpiresAt time.Time `json:"expires_at"` // UTC
	}

	// Store persists codes; the authoritative copy lives on the course row.
	Store interface {
		// ReadCurrentCode returns ErrNoCode when no code was ever minted and
		// course.ErrNotFound when the course itself is gone.
		ReadCurrentCode(ctx context.Context, courseID string, exec ...core.DBExecutor) (Code, error)
		SetCurrentCode(ctx context.Context, courseID string, c Code, exec ...core.DBExecutor) error
		QueryCourseIDs(ctx context.Context, exec ...core.DBExecutor) ([]string, error)
	}

	// Engine hands out the currently valid confirmation code of each course,
	// minting a fresh one whenever the stored code is absent or expired.
	Engine struct {
		store  Store
		clock  core.Clock
		conf   core.CodeConfig
		logger core.Logger

		mu     sync.Mutex
		guards map[string]*sync.Mutex

		randInt func(max int) (int, error) // mockable

		started  bool
		stopOnce sync.Once
		stopCh   chan struct{}
		doneCh   chan struct{}
	}
)

func NewEngine(store Store, clock core.Clock, conf core.CodeConfig, logger core.Logger) *Engine {
	return &Engine{
		store:   store,
		clock:   clock,
		conf:    conf,
		logger:  logger,
		guards:  make(map[string]*sync.Mutex),
		randInt: cryptoRandInt,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// guard returns the course's mint lock, creating it on first use. Refreshes of
// distinct courses never contend.
func (e *Engine) guard(courseID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.guards[courseID]
	if !ok {
		g = &sync.Mutex{}
		e.guards[courseID] = g
	}
	return g
}

// Current returns the course's valid code, minting and persisting a new one
// when the stored code is absent or expired. Two concurrent calls observing an
// expired code produce exactly one mint and return the same value.
func (e *Engine) Current(ctx context.Context, courseID string) (Code, error) {
	g := e.guard(courseID)
	g.Lock()
	defer g.Unlock()

	now := e.clock.Now()
	c, err := e.store.ReadCurrentCode(ctx, courseID)
	switch {
	case err == nil:
		if now.Before(c.ExpiresAt) {
			return c, nil
		}
	case errors.Is(err, ErrNoCode):
	default:
		return Code{}, err
	}
	return e.mint(ctx, courseID, now)
}

// Validate checks a submitted code at instant `now`. A code is rejected as
// expired at exactly expires_at. Comparison is case-sensitive; the configured
// alphabet is upper-case, so clients upper-case user input. Validate never
// mints a replacement.
func (e *Engine) Validate(ctx context.Context, courseID, submitted string, now time.Time) error {
	c, err := e.store.ReadCurrentCode(ctx, courseID)
	if err != nil {
		if errors.Is(err, ErrNoCode) {
			return ErrExpiredCode
		}
		return err
	}
	if !now.Before(c.ExpiresAt) {
		return ErrExpiredCode
	}
	if c.Value != submitted {
		return ErrInvalidCode
	}
	return nil
}

func (e *Engine) mint(ctx context.Context, courseID string, now time.Time) (Code, error) {
	val, err := e.generate()
	if err != nil {
		return Code{}, core.NewStorageError(err, "generating confirmation code")
	}
	c := Code{Value: val, ExpiresAt: now.Add(e.conf.Lifetime)}
	if err = e.store.SetCurrentCode(ctx, courseID, c); err != nil {
		return Code{}, err
	}
	return c, nil
}

// generate draws a uniform random string over the configured alphabet.
func (e *Engine) generate() (string, error) {
	var b strings.Builder
	b.Grow(e.conf.Length)
	for i := 0; i < e.conf.Length; i++ {
		n, err := e.randInt(len(e.conf.Alphabet))
		if err != nil {
			return "", err
		}
		b.WriteByte(e.conf.Alphabet[n])
	}
	return b.String(), nil
}

func cryptoRandInt(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// StartRotation refreshes every course's code once, then keeps them hot by
// re-minting expired ones every code lifetime. Lazily minted codes stay valid
// until their own expiry; the loop only replaces what has already lapsed.
func (e *Engine) StartRotation() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.mu.Unlock()

	go func() {
		defer close(e.doneCh)

		e.refreshAll()

		ticker := time.NewTicker(e.conf.Lifetime)
		defer ticker.Stop()
		for {
			select {
			case <-e.stopCh:
				return
			case <-ticker.C:
				e.refreshAll()
			}
		}
	}()
}

// StopRotation stops the rotation loop and waits for the in-flight pass.
func (e *Engine) StopRotation() {
	e.stopOnce.Do(func() { close(e.stopCh) })

	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if started {
		<-e.doneCh
	}
}

func (e *Engine) refreshAll() {
	ctx := context.Background()

	ids, err := e.store.QueryCourseIDs(ctx)
	if err != nil {
		e.logger.Error(fmt.Sprintf("listing courses for code rotation: %v", err), err)
		return
	}
	for _, id := range ids {
		if _, err = e.Current(ctx, id); err != nil {
			e.logger.Warn(fmt.Sprintf("rotating code for course %s: %v", id, err))
		}
	}
}
