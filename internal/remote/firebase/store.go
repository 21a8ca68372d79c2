package firebase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/and161185/place-keeper/internal/errs"
	"github.com/and161185/place-keeper/internal/remote"
)

// Store implements remote.DocumentStore on the realtime-database REST API.
// Resources live at {base}/{collection}/{key}.json; POST to the collection
// returns the server-generated push key.
type Store struct {
	c    *Client
	base string
}

var _ remote.DocumentStore = (*Store)(nil)

// NewStore constructs a document store for the given database base URL.
func NewStore(c *Client, baseURL string) *Store {
	return &Store{c: c, base: strings.TrimRight(baseURL, "/")}
}

func (s *Store) url(collection, key string) string {
	if key == "" {
		return s.base + "/" + collection + ".json"
	}
	return s.base + "/" + collection + "/" + key + ".json"
}

// Create stores body as a new resource and returns the server push key.
func (s *Store) Create(ctx context.Context, collection string, body any) (string, error) {
	var resp struct {
		Name string `json:"name"`
	}
	if err := s.c.doJSON(ctx, http.MethodPost, s.url(collection, ""), body, &resp); err != nil {
		return "", err
	}
	if resp.Name == "" {
		return "", &errs.RemoteError{Body: "create: server returned no key"}
	}
	return resp.Name, nil
}

// Replace overwrites the resource at key wholesale.
func (s *Store) Replace(ctx context.Context, collection, key string, body any) error {
	return s.c.doJSON(ctx, http.MethodPut, s.url(collection, key), body, nil)
}

// Delete removes the resource at key.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	return s.c.doJSON(ctx, http.MethodDelete, s.url(collection, key), nil, nil)
}

// List returns the collection as a key-to-record map. The database answers
// "null" for an empty collection; that decodes to a nil map and is returned
// as empty.
func (s *Store) List(ctx context.Context, collection string, filter *remote.Filter) (map[string]json.RawMessage, error) {
	u := s.url(collection, "")
	if filter != nil {
		// equality filters require both orderBy and equalTo as quoted JSON strings
		q := url.Values{}
		q.Set("orderBy", strconv.Quote(filter.Field))
		q.Set("equalTo", strconv.Quote(filter.Equals))
		u += "?" + q.Encode()
	}
	var out map[string]json.RawMessage
	if err := s.c.doJSON(ctx, http.MethodGet, u, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]json.RawMessage{}
	}
	return out, nil
}

// Get returns a single raw resource.
func (s *Store) Get(ctx context.Context, collection, key string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := s.c.doJSON(ctx, http.MethodGet, s.url(collection, key), nil, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 || string(out) == "null" {
		return nil, &errs.NotFoundError{ID: key}
	}
	return out, nil
}
