package core

import (
	"context"
	"io"
)

// Uploader is any service that can host an image and return its public URL.
// A failed upload surfaces an error and must never block the write that
// references the image; callers proceed with an empty URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (url string, err error)
}
