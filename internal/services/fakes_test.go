package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/moneypot/verifier/internal/events"
	"github.com/moneypot/verifier/internal/models"
	"github.com/moneypot/verifier/internal/repositories"
	"github.com/moneypot/verifier/internal/store"
)

var errUnavailable = errors.New("connection refused")

type memSecrets struct {
	mu      sync.Mutex
	rows    map[string]models.PotSecret
	failGet int
}

func newMemSecrets() *memSecrets { return &memSecrets{rows: map[string]models.PotSecret{}} }

func (m *memSecrets) UpsertSecret(_ context.Context, s *models.PotSecret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.RegisteredAt = time.Now()
	m.rows[s.PotID] = *s
	return nil
}

func (m *memSecrets) GetSecret(_ context.Context, potID string) (*models.PotSecret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet > 0 {
		m.failGet--
		return nil, errUnavailable
	}
	s, ok := m.rows[potID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

type memPots struct {
	mu   sync.Mutex
	rows map[string]models.Pot
}

func newMemPots() *memPots { return &memPots{rows: map[string]models.Pot{}} }

func (m *memPots) UpsertPot(_ context.Context, p *models.Pot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.rows[p.PotID]; ok {
		p.Active = old.Active
	} else {
		p.Active = true
	}
	m.rows[p.PotID] = *p
	return nil
}

func (m *memPots) GetPot(_ context.Context, potID string) (*models.Pot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[potID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &p, nil
}

func (m *memPots) ExpirePot(_ context.Context, potID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.rows[potID]
	p.PotID = potID
	p.Active = false
	m.rows[potID] = p
	return nil
}

func (m *memPots) ExpireDue(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, p := range m.rows {
		if p.Active && p.ExpiresAt != nil && !now.Before(*p.ExpiresAt) {
			p.Active = false
			m.rows[id] = p
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memPots) PurgeSecrets(context.Context, time.Time) (int64, error) { return 0, nil }

type memAttempts struct {
	mu       sync.Mutex
	rows     map[string]models.Attempt
	failMark int
}

func newMemAttempts() *memAttempts { return &memAttempts{rows: map[string]models.Attempt{}} }

func (m *memAttempts) Create(_ context.Context, a *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[a.AttemptID]; ok {
		return repositories.ErrConflict
	}
	a.CreatedAt = time.Now()
	m.rows[a.AttemptID] = *a
	return nil
}

func (m *memAttempts) GetByID(_ context.Context, id string) (*models.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (m *memAttempts) MarkChallengesIssued(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMark > 0 {
		m.failMark--
		return errUnavailable
	}
	a, ok := m.rows[id]
	if !ok || a.ChallengesIssuedAt != nil || a.CompletedAt != nil {
		return repositories.ErrConflict
	}
	a.ChallengesIssuedAt = &at
	m.rows[id] = a
	return nil
}

func (m *memAttempts) MarkCompleted(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if ok && a.CompletedAt == nil {
		a.CompletedAt = &at
		m.rows[id] = a
	}
	return nil
}

type memResults struct {
	mu         sync.Mutex
	rows       map[string]models.VerificationResult
	failInsert int
}

func newMemResults() *memResults { return &memResults{rows: map[string]models.VerificationResult{}} }

func (m *memResults) Insert(_ context.Context, r *models.VerificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert > 0 {
		m.failInsert--
		return errUnavailable
	}
	if _, ok := m.rows[r.AttemptID]; ok {
		return repositories.ErrConflict
	}
	m.rows[r.AttemptID] = *r
	return nil
}

func (m *memResults) Get(_ context.Context, id string) (*models.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &r, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Log(_ context.Context, e models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// flakyKV fails the next failSetNX SetNX calls.
type flakyKV struct {
	store.Interface
	mu        sync.Mutex
	failSetNX int
}

func (f *flakyKV) SetNX(ctx context.Context, key string, value []byte, expiry time.Duration) (bool, error) {
	f.mu.Lock()
	fail := f.failSetNX > 0
	if fail {
		f.failSetNX--
	}
	f.mu.Unlock()
	if fail {
		return false, errUnavailable
	}
	return f.Interface.SetNX(ctx, key, value, expiry)
}
