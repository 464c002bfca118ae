package access_test

import (
	"context"
	"sync"
	"time"

	"github.com/valinor-ai/hrgate/internal/access"
)

func ptr[T any](v T) *T { return &v }

type grantKey struct{ resource, user int64 }

// fakeStore serves every store interface the composer needs from memory.
type fakeStore struct {
	attrs    map[int64]access.Attributes
	depts    map[int64]*int64
	grants   map[grantKey]*access.Grant
	policies map[string][]access.RulePolicy

	loadErr error
	ruleErr error
	block   bool

	mu    sync.Mutex
	loads int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		attrs:    map[int64]access.Attributes{},
		depts:    map[int64]*int64{},
		grants:   map[grantKey]*access.Grant{},
		policies: map[string][]access.RulePolicy{},
	}
}

func (f *fakeStore) Load(ctx context.Context, _ access.ResourceType, id int64) (access.Attributes, error) {
	f.mu.Lock()
	f.loads++
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	a, ok := f.attrs[id]
	if !ok {
		return nil, access.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) ProfileDepartment(_ context.Context, userID int64) (*int64, error) {
	return f.depts[userID], nil
}

func (f *fakeStore) FindGrant(_ context.Context, resourceID, userID int64) (*access.Grant, error) {
	return f.grants[grantKey{resourceID, userID}], nil
}

func (f *fakeStore) FindPoliciesByName(_ context.Context, name string) ([]access.RulePolicy, error) {
	if f.ruleErr != nil {
		return nil, f.ruleErr
	}
	return f.policies[name], nil
}

func (f *fakeStore) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

type recordingSink struct {
	mu        sync.Mutex
	decisions []access.Decision
}

func (s *recordingSink) Record(_ context.Context, d access.Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
}

func (s *recordingSink) all() []access.Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]access.Decision(nil), s.decisions...)
}

type panickingSink struct{}

func (panickingSink) Record(context.Context, access.Decision) { panic("sink exploded") }

type observation struct {
	route, verdict, gate string
}

type recordingObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (o *recordingObserver) ObserveDecision(route, verdict, gate string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.obs = append(o.obs, observation{route, verdict, gate})
}
