// Package places maintains the reactive cache of offered places: the last
// committed collection plus the mutation pipelines that keep it consistent
// with the remote store.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/place-keeper/internal/cache"
	"github.com/and161185/place-keeper/internal/errs"
	"github.com/and161185/place-keeper/internal/model"
	"github.com/and161185/place-keeper/internal/remote"
	"github.com/and161185/place-keeper/internal/session"
)

// Collection is the document-store path of offered places.
const Collection = "offered-places"

// NewPlace collects caller input for Add. Ownership is resolved from the
// session, never supplied by the caller.
type NewPlace struct {
	Title         string
	Description   string
	ImageURL      string
	Price         float64
	AvailableFrom time.Time
	AvailableTo   time.Time
	Location      model.GeoPoint
}

// Patch carries the fields Update may change; availability dates, ownership
// and location are carried over from the existing place.
type Patch struct {
	Title       string
	Description string
	ImageURL    string
	Price       float64
}

// Service defines operations over the offered-places collection.
type Service interface {
	// FetchAll replaces the cache from the remote store and returns the
	// resulting collection. The cache is untouched on failure.
	FetchAll(ctx context.Context) ([]model.Place, error)

	// Get returns a single place from the cache, fetching first when the
	// cache is empty.
	Get(ctx context.Context, id string) (model.Place, error)

	// Add persists a new place owned by the current user and appends it to
	// the collection. Fails without a session before any remote call.
	Add(ctx context.Context, in NewPlace) (model.Place, error)

	// Update replaces the mutable fields of an existing place, committing
	// remotely before publishing locally.
	Update(ctx context.Context, id string, in Patch) (model.Place, error)

	// Feed exposes the replay-latest subscription surface.
	Feed() *cache.Feed[model.Place]
}

type ServiceImpl struct {
	store remote.DocumentStore
	users session.UserSource
	feed  *cache.Feed[model.Place]
	log   *zap.Logger

	// mu serializes mutating pipelines across their remote calls, so a later
	// mutation always observes the fully committed result of an earlier one.
	mu sync.Mutex
}

var _ Service = (*ServiceImpl)(nil)

// NewService constructs the places service with its dependencies.
func NewService(store remote.DocumentStore, users session.UserSource, log *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		store: store,
		users: users,
		feed:  cache.NewFeed[model.Place](log),
		log:   log,
	}
}

// Feed returns the subscription surface of the cache.
func (s *ServiceImpl) Feed() *cache.Feed[model.Place] { return s.feed }

// FetchAll replaces the cache wholesale from the remote store.
func (s *ServiceImpl) FetchAll(ctx context.Context) ([]model.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchLocked(ctx)
}

func (s *ServiceImpl) fetchLocked(ctx context.Context) ([]model.Place, error) {
	raw, err := s.store.List(ctx, Collection, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch places: %w", err)
	}
	list := make([]model.Place, 0, len(raw))
	for key, body := range raw {
		p, err := decode(key, body)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	// push keys sort by creation time, so key order is collection order
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	s.feed.Replace(list)
	return list, nil
}

// Get serves from the cache, lazily filling it on first use.
func (s *ServiceImpl) Get(ctx context.Context, id string) (model.Place, error) {
	list := s.feed.Snapshot()
	if len(list) == 0 {
		s.mu.Lock()
		var err error
		list, err = s.fetchLocked(ctx)
		s.mu.Unlock()
		if err != nil {
			return model.Place{}, err
		}
	}
	for _, p := range list {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Place{}, &errs.NotFoundError{ID: id}
}

// Add persists a candidate place and appends the committed entity. The
// candidate carries a provisional id that is replaced by the server key and
// never published.
func (s *ServiceImpl) Add(ctx context.Context, in NewPlace) (model.Place, error) {
	userID, ok := s.users.CurrentUserID()
	if !ok {
		return model.Place{}, errs.NoUser()
	}

	tmp, err := uuid.NewV4()
	if err != nil {
		return model.Place{}, err
	}
	pending := model.Place{
		ID:            tmp.String(),
		Title:         in.Title,
		Description:   in.Description,
		ImageURL:      in.ImageURL,
		Price:         in.Price,
		AvailableFrom: in.AvailableFrom,
		AvailableTo:   in.AvailableTo,
		OwnerUserID:   userID,
		Location:      in.Location,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.store.Create(ctx, Collection, encode(pending))
	if err != nil {
		return model.Place{}, fmt.Errorf("add place: %w", err)
	}
	committed := pending
	committed.ID = key

	// snapshot at resolution: the append bases on the collection as it stands
	// now that the create has resolved, not as it stood at call time
	next := append(s.feed.Snapshot(), committed)
	s.feed.Replace(next)

	s.log.Info("place added", zap.String("id", key), zap.String("ownerUserID", userID))
	return committed, nil
}

// Update patches a place by full replacement at its key. The remote commit
// strictly precedes the local one; a place is never shown as updated unless
// the store already accepted it.
func (s *ServiceImpl) Update(ctx context.Context, id string, in Patch) (model.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.feed.Snapshot()
	if len(current) == 0 {
		// lazy fill: never patch against a not-yet-populated cache
		var err error
		current, err = s.fetchLocked(ctx)
		if err != nil {
			return model.Place{}, err
		}
	}

	idx := -1
	for i := range current {
		if current[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Place{}, &errs.NotFoundError{ID: id}
	}

	old := current[idx]
	updated := model.Place{
		ID:            old.ID,
		Title:         in.Title,
		Description:   in.Description,
		ImageURL:      in.ImageURL,
		Price:         in.Price,
		AvailableFrom: old.AvailableFrom,
		AvailableTo:   old.AvailableTo,
		OwnerUserID:   old.OwnerUserID,
		Location:      old.Location,
	}

	if err := s.store.Replace(ctx, Collection, id, encode(updated)); err != nil {
		return model.Place{}, fmt.Errorf("update place %s: %w", id, err)
	}

	next := make([]model.Place, len(current))
	copy(next, current)
	next[idx] = updated
	s.feed.Replace(next)

	s.log.Info("place updated", zap.String("id", id))
	return updated, nil
}

// record is the wire shape of a place. Dates travel as RFC 3339 strings; the
// id never travels in the body, it is the resource key.
type record struct {
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ImageURL      string          `json:"imageUrl"`
	Price         float64         `json:"price"`
	AvailableFrom string          `json:"availableFrom"`
	AvailableTo   string          `json:"availableTo"`
	UserID        string          `json:"userId"`
	Location      *locationRecord `json:"location,omitempty"`
}

type locationRecord struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func encode(p model.Place) record {
	rec := record{
		Title:         p.Title,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		Price:         p.Price,
		AvailableFrom: p.AvailableFrom.UTC().Format(time.RFC3339),
		AvailableTo:   p.AvailableTo.UTC().Format(time.RFC3339),
		UserID:        p.OwnerUserID,
	}
	if p.Location != (model.GeoPoint{}) {
		rec.Location = &locationRecord{Lat: p.Location.Lat, Lng: p.Location.Lng, Address: p.Location.Address}
	}
	return rec
}

func decode(key string, raw json.RawMessage) (model.Place, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Place{}, fmt.Errorf("decode place %s: %w", key, err)
	}
	from, err := time.Parse(time.RFC3339, rec.AvailableFrom)
	if err != nil {
		return model.Place{}, fmt.Errorf("decode place %s: availableFrom: %w", key, err)
	}
	to, err := time.Parse(time.RFC3339, rec.AvailableTo)
	if err != nil {
		return model.Place{}, fmt.Errorf("decode place %s: availableTo: %w", key, err)
	}
	p := model.Place{
		ID:            key,
		Title:         rec.Title,
		Description:   rec.Description,
		ImageURL:      rec.ImageURL,
		Price:         rec.Price,
		AvailableFrom: from,
		AvailableTo:   to,
		OwnerUserID:   rec.UserID,
	}
	if rec.Location != nil {
		p.Location = model.GeoPoint{Lat: rec.Location.Lat, Lng: rec.Location.Lng, Address: rec.Location.Address}
	}
	return p, nil
}
