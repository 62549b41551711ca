package dummy

import (
	"context"
	"sync"
	"time"

	goCache "github.com/patrickmn/go-cache"
	"github.com/saasinvoice/billing/internal/types"
)

// Capture is what the dummy provider remembers about a charge
type Capture struct {
	Ref            string
	InvoiceID      string
	Amount         int64
	Currency       string
	Status         types.PaymentStatus
	FailureReason  *string
	Refunded       int64
	ProcessedAt    time.Time
	IdempotencyKey string
}

// Store holds dummy provider state. It is injected so tests and processes
// never share it through package globals.
type Store interface {
	SaveCapture(ctx context.Context, c *Capture)
	// CreateCapture stores c unless a capture with the same idempotency key
	// exists. It returns the stored capture and whether c was stored.
	CreateCapture(ctx context.Context, c *Capture) (*Capture, bool)
	GetCapture(ctx context.Context, ref string) (*Capture, bool)
	// GetByIdempotencyKey returns the capture previously made with key
	GetByIdempotencyKey(ctx context.Context, key string) (*Capture, bool)
	// AddRefund records amount against ref if the capture has that much left
	AddRefund(ctx context.Context, ref string, amount int64) (*Capture, bool)
}

const (
	captureKeyPrefix     = "dummy:capture:"
	idempotencyKeyPrefix = "dummy:idem:"
)

type memoryStore struct {
	mu    sync.Mutex
	cache *goCache.Cache
}

// NewMemoryStore keeps captures for the life of the process
func NewMemoryStore() Store {
	return &memoryStore{
		cache: goCache.New(goCache.NoExpiration, 0),
	}
}

func (s *memoryStore) SaveCapture(_ context.Context, c *Capture) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *c
	s.cache.Set(captureKeyPrefix+c.Ref, &copied, goCache.NoExpiration)
	if c.IdempotencyKey != "" {
		s.cache.Set(idempotencyKeyPrefix+c.IdempotencyKey, c.Ref, goCache.NoExpiration)
	}
}

func (s *memoryStore) CreateCapture(_ context.Context, c *Capture) (*Capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.IdempotencyKey != "" {
		if ref, ok := s.cache.Get(idempotencyKeyPrefix + c.IdempotencyKey); ok {
			if existing, ok := s.get(ref.(string)); ok {
				return existing, false
			}
		}
		s.cache.Set(idempotencyKeyPrefix+c.IdempotencyKey, c.Ref, goCache.NoExpiration)
	}

	copied := *c
	s.cache.Set(captureKeyPrefix+c.Ref, &copied, goCache.NoExpiration)
	stored := copied
	return &stored, true
}

func (s *memoryStore) GetCapture(_ context.Context, ref string) (*Capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ref)
}

func (s *memoryStore) GetByIdempotencyKey(_ context.Context, key string) (*Capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.cache.Get(idempotencyKeyPrefix + key)
	if !ok {
		return nil, false
	}
	return s.get(ref.(string))
}

func (s *memoryStore) AddRefund(_ context.Context, ref string, amount int64) (*Capture, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(captureKeyPrefix + ref)
	if !ok {
		return nil, false
	}
	c := v.(*Capture)
	if c.Refunded+amount > c.Amount {
		return nil, false
	}
	c.Refunded += amount
	copied := *c
	return &copied, true
}

func (s *memoryStore) get(ref string) (*Capture, bool) {
	v, ok := s.cache.Get(captureKeyPrefix + ref)
	if !ok {
		return nil, false
	}
	copied := *v.(*Capture)
	return &copied, true
}
