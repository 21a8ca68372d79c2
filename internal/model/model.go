// Package model defines domain entities shared by services and adapters.
package model

import "time"

// Session is the current authenticated identity and its validity window.
// Sessions are replaced wholesale, never partially updated.
type Session struct {
	UserID      string
	Token       string
	TokenExpiry time.Time
}

// Valid reports whether the session is usable at the given instant.
func (s Session) Valid(now time.Time) bool {
	return s.UserID != "" && now.Before(s.TokenExpiry)
}

// GeoPoint is a picked map location together with its reverse-geocoded address.
type GeoPoint struct {
	Lat     float64
	Lng     float64
	Address string
}

// Place is a rentable listing. Values are immutable: an update produces a new
// Place at the same ID, it never mutates fields in place.
type Place struct {
	ID            string // server-generated key
	Title         string
	Description   string
	ImageURL      string
	Price         float64
	AvailableFrom time.Time
	AvailableTo   time.Time
	OwnerUserID   string
	Location      GeoPoint
}

// Booking reserves a place for a guest over a date range. PlaceTitle and
// PlaceImage are denormalized from the place at booking time. Immutable once
// made; the app never edits a booking.
type Booking struct {
	ID             string // server-generated key
	PlaceID        string
	UserID         string
	PlaceTitle     string
	PlaceImage     string
	GuestFirstName string
	GuestLastName  string
	GuestCount     int
	BookedFrom     time.Time
	BookedTo       time.Time
}
