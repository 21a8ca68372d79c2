package firebase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/and161185/place-keeper/internal/remote"
)

// Uploader implements remote.Uploader against the storage upload function,
// which accepts a multipart image and answers {imageUrl, imagePath}.
type Uploader struct {
	c        *Client
	endpoint string
}

var _ remote.Uploader = (*Uploader)(nil)

// NewUploader constructs an uploader for the given function endpoint.
func NewUploader(c *Client, endpoint string) *Uploader {
	return &Uploader{c: c, endpoint: endpoint}
}

// Upload streams the binary as the "image" form field.
func (u *Uploader) Upload(ctx context.Context, filename string, r io.Reader) (remote.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return remote.UploadResult{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(fw, r); err != nil {
		return remote.UploadResult{}, fmt.Errorf("read upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return remote.UploadResult{}, fmt.Errorf("finish upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &buf)
	if err != nil {
		return remote.UploadResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		ImageURL  string `json:"imageUrl"`
		ImagePath string `json:"imagePath"`
	}
	if err := u.c.do(req, &resp); err != nil {
		return remote.UploadResult{}, err
	}
	return remote.UploadResult{URL: resp.ImageURL, Path: resp.ImagePath}, nil
}
