// Package uploadsvc hosts uploaded images on ImgBB and returns their public
// URLs. An upload failure surfaces as an error to the handler; it never
// blocks any store write.
package uploadsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core"
)

const uploadURL = "https://api.imgbb.com/1/upload"

type ImgBBService struct {
	key    string
	client *http.Client
}

var _ core.Uploader = (*ImgBBService)(nil)

func NewImgBBService(conf *core.Config) *ImgBBService {
	return &ImgBBService{
		key:    conf.ImgBBAPIKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (svc *ImgBBService) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", errors.Wrap(err, "preparing upload form")
	}
	if _, err = io.Copy(fw, r); err != nil {
		return "", errors.Wrap(err, "buffering image")
	}
	if err = mw.Close(); err != nil {
		return "", errors.Wrap(err, "finalizing upload form")
	}

	q := url.Values{"key": {svc.key}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL+"?"+q.Encode(), body)
	if err != nil {
		return "", errors.Wrap(err, "preparing upload request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "uploading image")
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			URL string `json:"url"`
		} `json:"data"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err = json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, "decoding upload response")
	}
	if res.StatusCode >= http.StatusBadRequest || !parsed.Success {
		if parsed.Error.Message != "" {
			return "", errors.Errorf("image host rejected upload: %s", parsed.Error.Message)
		}
		return "", errors.Errorf("image host rejected upload: status %d", res.StatusCode)
	}
	return parsed.Data.URL, nil
}
