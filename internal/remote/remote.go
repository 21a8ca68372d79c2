// Package remote defines the external service boundaries the client core
// talks to: the document store, the identity provider, binary upload and
// reverse geocoding. Concrete backends live in subpackages.
package remote

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

// Filter narrows a List call server-side by field equality.
type Filter struct {
	Field  string
	Equals string
}

// DocumentStore provides create/replace/list/get/delete access to JSON
// resources addressed by server-generated keys.
type DocumentStore interface {
	// Create stores body as a new resource and returns its server key.
	Create(ctx context.Context, collection string, body any) (string, error)

	// Replace overwrites the resource at key wholesale.
	Replace(ctx context.Context, collection, key string, body any) error

	// Delete removes the resource at key.
	Delete(ctx context.Context, collection, key string) error

	// List returns every resource in the collection keyed by server key,
	// optionally narrowed by filter. An empty collection yields an empty map.
	List(ctx context.Context, collection string, filter *Filter) (map[string]json.RawMessage, error)

	// Get returns a single raw resource; errs.ErrNotFound when absent.
	Get(ctx context.Context, collection, key string) (json.RawMessage, error)
}

// AuthData is a successful identity-provider response.
type AuthData struct {
	UserID string
	Token  string
	TTL    time.Duration
}

// IdentityProvider exchanges credentials for a token at the external identity
// endpoint. Provider rejections surface as *errs.AuthError carrying the raw
// provider code (e.g. EMAIL_EXISTS).
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password string) (AuthData, error)
	SignIn(ctx context.Context, email, password string) (AuthData, error)
}

// UploadResult locates a stored binary.
type UploadResult struct {
	URL  string
	Path string
}

// Uploader stores a listing image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error)
}

// Geocoder resolves coordinates to a human-readable address.
type Geocoder interface {
	// ReverseGeocode returns the best formatted address for the coordinates;
	// errs.ErrNotFound when the provider has no result.
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}
