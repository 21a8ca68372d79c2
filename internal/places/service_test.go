package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/place-keeper/internal/errs"
	"github.com/and161185/place-keeper/internal/model"
	"github.com/and161185/place-keeper/internal/remote"
	"github.com/and161185/place-keeper/internal/session"
)

type fakeStore struct {
	records map[string]json.RawMessage
	nextKey string

	listErr    error
	createErr  error
	replaceErr error

	listCalls    int
	createCalls  int
	replaceCalls int
	deleteCalls  int

	onCreate func() // runs while the create is "in flight"
}

var _ remote.DocumentStore = (*fakeStore)(nil)

func (f *fakeStore) Create(_ context.Context, _ string, body any) (string, error) {
	f.createCalls++
	if f.onCreate != nil {
		f.onCreate()
	}
	if f.createErr != nil {
		return "", f.createErr
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	if f.records == nil {
		f.records = map[string]json.RawMessage{}
	}
	key := f.nextKey
	if key == "" {
		key = fmt.Sprintf("k%d", f.createCalls)
	}
	f.records[key] = b
	return key, nil
}

func (f *fakeStore) Replace(_ context.Context, _ string, key string, body any) error {
	f.replaceCalls++
	if f.replaceErr != nil {
		return f.replaceErr
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if f.records == nil {
		f.records = map[string]json.RawMessage{}
	}
	f.records[key] = b
	return nil
}

func (f *fakeStore) Delete(_ context.Context, _ string, key string) error {
	f.deleteCalls++
	delete(f.records, key)
	return nil
}

func (f *fakeStore) List(context.Context, string, *remote.Filter) (map[string]json.RawMessage, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := map[string]json.RawMessage{}
	for k, v := range f.records {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) Get(_ context.Context, _ string, key string) (json.RawMessage, error) {
	raw, ok := f.records[key]
	if !ok {
		return nil, &errs.NotFoundError{ID: key}
	}
	return raw, nil
}

type fakeUsers struct {
	id string
	ok bool
}

var _ session.UserSource = (*fakeUsers)(nil)

func (f *fakeUsers) CurrentUserID() (string, bool) { return f.id, f.ok }

var (
	dateA = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dateB = time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
)

func storedPlace(title, owner string) json.RawMessage {
	b, _ := json.Marshal(record{
		Title:         title,
		Description:   "desc",
		ImageURL:      "https://img.example.com/x.jpg",
		Price:         100,
		AvailableFrom: dateA.Format(time.RFC3339),
		AvailableTo:   dateB.Format(time.RFC3339),
		UserID:        owner,
	})
	return b
}

func TestFetchAll_ReplacesAndPublishes(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{
		"p2": storedPlace("Second", "u1"),
		"p1": storedPlace("First", "u1"),
	}}
	s := NewService(store, &fakeUsers{}, zap.NewNop())
	sub := s.Feed().Subscribe()
	<-sub.C // initial empty snapshot

	got, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 2 || got[0].ID != "p1" || got[1].ID != "p2" {
		t.Fatalf("want key-ordered collection, got %+v", got)
	}
	published := <-sub.C
	if len(published) != 2 || published[0].Title != "First" {
		t.Fatalf("published collection wrong: %+v", published)
	}
	if !published[0].AvailableFrom.Equal(dateA) {
		t.Fatalf("dates must round-trip, got %v", published[0].AvailableFrom)
	}
}

func TestFetchAll_FailureLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{"p1": storedPlace("A", "u1")}}
	s := NewService(store, &fakeUsers{}, zap.NewNop())
	if _, err := s.FetchAll(context.Background()); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}
	before := s.Feed().Snapshot()

	store.listErr = &errs.RemoteError{Status: 500, Body: "boom"}
	if _, err := s.FetchAll(context.Background()); !errors.Is(err, errs.ErrRemote) {
		t.Fatalf("want remote error, got %v", err)
	}
	after := s.Feed().Snapshot()
	if len(after) != len(before) || after[0] != before[0] {
		t.Fatalf("cache changed on failed fetch: %+v -> %+v", before, after)
	}
}

func TestAdd_GatedOnSession(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	s := NewService(store, &fakeUsers{ok: false}, zap.NewNop())

	_, err := s.Add(context.Background(), NewPlace{Title: "Cabin"})
	var ae *errs.AuthError
	if !errors.As(err, &ae) || ae.Reason != "no user found" {
		t.Fatalf("want AuthError(no user found), got %v", err)
	}
	if store.createCalls != 0 || store.listCalls != 0 {
		t.Fatalf("gated add must issue zero remote calls")
	}
}

func TestAdd_AppendsCommittedEntity(t *testing.T) {
	t.Parallel()

	store := &fakeStore{nextKey: "p9"}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())
	sub := s.Feed().Subscribe()
	<-sub.C

	got, err := s.Add(context.Background(), NewPlace{
		Title:         "Cabin",
		Description:   "desc",
		Price:         100,
		AvailableFrom: dateA,
		AvailableTo:   dateB,
		Location:      model.GeoPoint{Lat: 40.7, Lng: -74.1, Address: "1 Main St"},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.ID != "p9" || got.OwnerUserID != "u1" {
		t.Fatalf("committed entity wrong: %+v", got)
	}

	published := <-sub.C
	if len(published) != 1 || published[0].ID != "p9" || published[0].OwnerUserID != "u1" {
		t.Fatalf("published collection wrong: %+v", published)
	}

	// the server key round-trips through a subsequent fetch
	fetched, err := s.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(fetched) != 1 || fetched[0].ID != "p9" || fetched[0].Location.Address != "1 Main St" {
		t.Fatalf("round-trip wrong: %+v", fetched)
	}
}

func TestAdd_FailureLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	store := &fakeStore{createErr: &errs.RemoteError{Status: 503, Body: "down"}}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())

	if _, err := s.Add(context.Background(), NewPlace{Title: "Cabin"}); !errors.Is(err, errs.ErrRemote) {
		t.Fatalf("want remote error, got %v", err)
	}
	if got := s.Feed().Snapshot(); len(got) != 0 {
		t.Fatalf("cache changed on failed add: %+v", got)
	}
}

func TestAdd_SnapshotAtResolution(t *testing.T) {
	t.Parallel()

	store := &fakeStore{nextKey: "p9"}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())

	// another pipeline commits while the create is in flight; the append must
	// base on the collection as of the create resolving, not as of call time
	other := model.Place{ID: "p1", Title: "Earlier", OwnerUserID: "u2"}
	store.onCreate = func() {
		s.feed.Replace([]model.Place{other})
	}

	got, err := s.Add(context.Background(), NewPlace{Title: "Cabin"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	final := s.Feed().Snapshot()
	if len(final) != 2 || final[0].ID != "p1" || final[1].ID != got.ID {
		t.Fatalf("append lost a concurrent commit: %+v", final)
	}
}

func TestUpdate_ReadYourWrite(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{"5": storedPlace("A", "u1")}}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())
	if _, err := s.FetchAll(context.Background()); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	got, err := s.Update(context.Background(), "5", Patch{Title: "B", Description: "desc", ImageURL: "img", Price: 120})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != "5" || got.Title != "B" || got.OwnerUserID != "u1" {
		t.Fatalf("updated entity wrong: %+v", got)
	}
	if !got.AvailableFrom.Equal(dateA) || !got.AvailableTo.Equal(dateB) {
		t.Fatalf("immutable fields must carry over: %+v", got)
	}

	final := s.Feed().Snapshot()
	if len(final) != 1 || final[0].Title != "B" {
		t.Fatalf("collection must carry the new value only: %+v", final)
	}
	if store.replaceCalls != 1 {
		t.Fatalf("want exactly one remote replace, got %d", store.replaceCalls)
	}
}

func TestUpdate_LazyFillFetchesOnce(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{"p1": storedPlace("A", "u1")}}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())

	if _, err := s.Update(context.Background(), "p1", Patch{Title: "B"}); err != nil {
		t.Fatalf("Update on empty cache: %v", err)
	}
	if store.listCalls != 1 {
		t.Fatalf("want exactly one lazy fetch, got %d", store.listCalls)
	}
	if store.replaceCalls != 1 {
		t.Fatalf("want the update to proceed after the fill, got %d replaces", store.replaceCalls)
	}
}

func TestUpdate_MissingTarget(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{"p1": storedPlace("A", "u1")}}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())

	_, err := s.Update(context.Background(), "nope", Patch{Title: "B"})
	var nf *errs.NotFoundError
	if !errors.As(err, &nf) || nf.ID != "nope" {
		t.Fatalf("want NotFoundError(nope), got %v", err)
	}
	if store.replaceCalls != 0 {
		t.Fatalf("missing target must not hit the store")
	}
}

func TestUpdate_RemoteFailureLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{"5": storedPlace("A", "u1")}}
	s := NewService(store, &fakeUsers{id: "u1", ok: true}, zap.NewNop())
	if _, err := s.FetchAll(context.Background()); err != nil {
		t.Fatalf("seed fetch: %v", err)
	}

	store.replaceErr = &errs.RemoteError{Status: 500, Body: "boom"}
	if _, err := s.Update(context.Background(), "5", Patch{Title: "B"}); !errors.Is(err, errs.ErrRemote) {
		t.Fatalf("want remote error, got %v", err)
	}
	if got := s.Feed().Snapshot(); got[0].Title != "A" {
		t.Fatalf("failed update must not publish: %+v", got)
	}
}

func TestGet_LazyFillAndMiss(t *testing.T) {
	t.Parallel()

	store := &fakeStore{records: map[string]json.RawMessage{"p1": storedPlace("A", "u1")}}
	s := NewService(store, &fakeUsers{}, zap.NewNop())

	got, err := s.Get(context.Background(), "p1")
	if err != nil || got.Title != "A" {
		t.Fatalf("Get: %+v, %v", got, err)
	}
	if store.listCalls != 1 {
		t.Fatalf("want one lazy fetch, got %d", store.listCalls)
	}

	if _, err := s.Get(context.Background(), "p2"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if store.listCalls != 1 {
		t.Fatalf("warm cache must not refetch, got %d", store.listCalls)
	}
}
