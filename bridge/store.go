package bridge

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Clock returns the current time. Stores take one so expiry is testable.
type Clock func() time.Time

// SettingsStore persists the global credentials record and one settings
// record per form. Absent records are reported as ErrNotFound.
type SettingsStore interface {
	GetCredentials(ctx context.Context) (Credentials, error)
	SaveCredentials(ctx context.Context, creds Credentials) error
	DeleteCredentials(ctx context.Context) error

	GetForm(ctx context.Context, id FormID) (FormSettings, error)
	SaveForm(ctx context.Context, settings FormSettings) error
	ListForms(ctx context.Context) ([]FormSettings, error)
	DeleteAllForms(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
}

// TransientCache holds short-lived values. Values are JSON encoded; a ttl of
// zero means no expiry.
type TransientCache interface {
	SetTransient(ctx context.Context, key string, value any, ttl time.Duration) error
	// GetTransient decodes the value into dst and reports whether it was found.
	GetTransient(ctx context.Context, key string, dst any) (bool, error)
	DeleteTransient(ctx context.Context, keys ...string) error
}

// MemoryStore keeps settings in process memory. It is used by tests and the
// "memory" store driver.
type MemoryStore struct {
	mu          sync.RWMutex
	credentials *Credentials
	forms       map[FormID]FormSettings
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{forms: make(map[FormID]FormSettings)}
}

func (m *MemoryStore) GetCredentials(_ context.Context) (Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.credentials == nil {
		return Credentials{}, ErrNotFound
	}
	return *m.credentials, nil
}

func (m *MemoryStore) SaveCredentials(_ context.Context, creds Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials = &creds
	return nil
}

func (m *MemoryStore) DeleteCredentials(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials = nil
	return nil
}

func (m *MemoryStore) GetForm(_ context.Context, id FormID) (FormSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.forms[id]
	if !ok {
		return FormSettings{}, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) SaveForm(_ context.Context, settings FormSettings) error {
	if settings.FormID == 0 {
		return ErrInvalidFormID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forms[settings.FormID] = settings
	return nil
}

func (m *MemoryStore) ListForms(_ context.Context) ([]FormSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FormSettings, 0, len(m.forms))
	for _, s := range m.forms {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FormID < out[j].FormID })
	return out, nil
}

func (m *MemoryStore) DeleteAllForms(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.forms))
	m.forms = make(map[FormID]FormSettings)
	return n, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
