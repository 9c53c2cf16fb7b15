package domain

import (
	"time"

	"github.com/google/uuid"
)

// Image is a produced or reference image held inline as raw bytes.
// Results fetched from provider URLs are re-encoded into this same
// representation before leaving the provider layer, so nothing downstream
// needs to branch on where an image came from.
type Image struct {
	ID        uuid.UUID `json:"id"`
	MIMEType  string    `json:"mime_type"`
	Data      []byte    `json:"data"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewImage creates an Image from inline bytes.
// Returns an error if the data is empty.
func NewImage(mimeType string, data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImageData
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	return &Image{
		ID:        uuid.New(),
		MIMEType:  mimeType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Outcome is the per-image result of one generation attempt: either a
// produced image or the error that prevented it. One generation call over
// N requested images yields exactly N outcomes in request order.
type Outcome struct {
	Image *Image
	Err   error
}

// OK reports whether the outcome carries a produced image.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Image != nil
}
