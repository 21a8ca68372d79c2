// Package bookings maintains the reactive cache of the current user's
// bookings. Unlike places, the collection is per-user: fetches filter by
// userId server-side, and bookings are never edited, only made and cancelled.
package bookings

import (
	"context"
	"encoding/json"
	"errors"
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

// Collection is the document-store path of bookings.
const Collection = "bookings"

// NewBooking collects caller input for Add. Place identity and imagery come
// from the place being booked; the owning user comes from the session.
type NewBooking struct {
	Place          model.Place
	GuestFirstName string
	GuestLastName  string
	GuestCount     int
	BookedFrom     time.Time
	BookedTo       time.Time
}

// Service defines operations over the bookings collection.
type Service interface {
	// FetchAll replaces the cache with the current user's bookings. The
	// cache is untouched on failure.
	FetchAll(ctx context.Context) ([]model.Booking, error)

	// Add books a place for the current user and appends the committed
	// booking. Fails without a session before any remote call.
	Add(ctx context.Context, in NewBooking) (model.Booking, error)

	// Cancel removes a booking remotely, then publishes the filtered
	// collection.
	Cancel(ctx context.Context, id string) error

	// Feed exposes the replay-latest subscription surface.
	Feed() *cache.Feed[model.Booking]
}

type ServiceImpl struct {
	store remote.DocumentStore
	users session.UserSource
	feed  *cache.Feed[model.Booking]
	log   *zap.Logger

	// mu serializes mutating pipelines across their remote calls, so a later
	// mutation always observes the fully committed result of an earlier one.
	mu sync.Mutex
}

var _ Service = (*ServiceImpl)(nil)

// NewService constructs the bookings service with its dependencies.
func NewService(store remote.DocumentStore, users session.UserSource, log *zap.Logger) *ServiceImpl {
	return &ServiceImpl{
		store: store,
		users: users,
		feed:  cache.NewFeed[model.Booking](log),
		log:   log,
	}
}

// Feed returns the subscription surface of the cache.
func (s *ServiceImpl) Feed() *cache.Feed[model.Booking] { return s.feed }

// FetchAll replaces the cache with the bookings of the current user, filtered
// by the store (filtering is the store's job, not the cache's).
func (s *ServiceImpl) FetchAll(ctx context.Context) ([]model.Booking, error) {
	userID, ok := s.users.CurrentUserID()
	if !ok {
		return nil, errs.NoUser()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.List(ctx, Collection, &remote.Filter{Field: "userId", Equals: userID})
	if err != nil {
		return nil, fmt.Errorf("fetch bookings: %w", err)
	}
	list := make([]model.Booking, 0, len(raw))
	for key, body := range raw {
		b, err := decode(key, body)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	s.feed.Replace(list)
	return list, nil
}

// Add books in.Place for the current user. GuestCount must be positive. The
// candidate carries a provisional id that is replaced by the server key and
// never published.
func (s *ServiceImpl) Add(ctx context.Context, in NewBooking) (model.Booking, error) {
	userID, ok := s.users.CurrentUserID()
	if !ok {
		return model.Booking{}, errs.NoUser()
	}
	if in.GuestCount <= 0 {
		return model.Booking{}, errors.New("validation: guest count must be positive")
	}
	if in.Place.ID == "" {
		return model.Booking{}, errors.New("validation: empty place id")
	}

	tmp, err := uuid.NewV4()
	if err != nil {
		return model.Booking{}, err
	}
	pending := model.Booking{
		ID:             tmp.String(),
		PlaceID:        in.Place.ID,
		UserID:         userID,
		PlaceTitle:     in.Place.Title,
		PlaceImage:     in.Place.ImageURL,
		GuestFirstName: in.GuestFirstName,
		GuestLastName:  in.GuestLastName,
		GuestCount:     in.GuestCount,
		BookedFrom:     in.BookedFrom,
		BookedTo:       in.BookedTo,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key, err := s.store.Create(ctx, Collection, encode(pending))
	if err != nil {
		return model.Booking{}, fmt.Errorf("add booking: %w", err)
	}
	committed := pending
	committed.ID = key

	// snapshot at resolution, same rule as places
	next := append(s.feed.Snapshot(), committed)
	s.feed.Replace(next)

	s.log.Info("booking added",
		zap.String("id", key),
		zap.String("placeID", in.Place.ID),
		zap.String("userID", userID),
	)
	return committed, nil
}

// Cancel deletes the booking remotely before publishing the filtered
// collection; a failed delete leaves the cache untouched.
func (s *ServiceImpl) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.feed.Snapshot()
	found := false
	next := make([]model.Booking, 0, len(current))
	for _, b := range current {
		if b.ID == id {
			found = true
			continue
		}
		next = append(next, b)
	}
	if !found {
		return &errs.NotFoundError{ID: id}
	}

	if err := s.store.Delete(ctx, Collection, id); err != nil {
		return fmt.Errorf("cancel booking %s: %w", id, err)
	}
	s.feed.Replace(next)

	s.log.Info("booking cancelled", zap.String("id", id))
	return nil
}

// record is the wire shape of a booking.
type record struct {
	PlaceID        string `json:"placeId"`
	UserID         string `json:"userId"`
	PlaceTitle     string `json:"placeTitle"`
	PlaceImage     string `json:"placeImage"`
	GuestFirstName string `json:"firstName"`
	GuestLastName  string `json:"lastName"`
	GuestCount     int    `json:"guestNumber"`
	BookedFrom     string `json:"bookedFrom"`
	BookedTo       string `json:"bookedTo"`
}

func encode(b model.Booking) record {
	return record{
		PlaceID:        b.PlaceID,
		UserID:         b.UserID,
		PlaceTitle:     b.PlaceTitle,
		PlaceImage:     b.PlaceImage,
		GuestFirstName: b.GuestFirstName,
		GuestLastName:  b.GuestLastName,
		GuestCount:     b.GuestCount,
		BookedFrom:     b.BookedFrom.UTC().Format(time.RFC3339),
		BookedTo:       b.BookedTo.UTC().Format(time.RFC3339),
	}
}

func decode(key string, raw json.RawMessage) (model.Booking, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Booking{}, fmt.Errorf("decode booking %s: %w", key, err)
	}
	from, err := time.Parse(time.RFC3339, rec.BookedFrom)
	if err != nil {
		return model.Booking{}, fmt.Errorf("decode booking %s: bookedFrom: %w", key, err)
	}
	to, err := time.Parse(time.RFC3339, rec.BookedTo)
	if err != nil {
		return model.Booking{}, fmt.Errorf("decode booking %s: bookedTo: %w", key, err)
	}
	return model.Booking{
		ID:             key,
		PlaceID:        rec.PlaceID,
		UserID:         rec.UserID,
		PlaceTitle:     rec.PlaceTitle,
		PlaceImage:     rec.PlaceImage,
		GuestFirstName: rec.GuestFirstName,
		GuestLastName:  rec.GuestLastName,
		GuestCount:     rec.GuestCount,
		BookedFrom:     from,
		BookedTo:       to,
	}, nil
}
