package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// ImgBBUploader hosts images on imgbb and returns their public URL.
type ImgBBUploader struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewImgBBUploader(endpoint, apiKey string, timeout time.Duration) (*ImgBBUploader, error) {
	if apiKey == "" {
		return nil, errors.New("imgbb api key missing")
	}
	return &ImgBBUploader{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type imgbbResp struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
	Success bool `json:"success"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (u *ImgBBUploader) Upload(ctx context.Context, asset Asset, title string) (Reference, error) {
	if len(asset.Data) == 0 {
		return Reference{}, fmt.Errorf("%w: empty asset", ErrNoImage)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("key", u.apiKey); err != nil {
		return Reference{}, err
	}
	if err := writer.WriteField("name", Slugify(title)); err != nil {
		return Reference{}, err
	}
	part, err := writer.CreateFormFile("image", Filename(title, asset))
	if err != nil {
		return Reference{}, err
	}
	if _, err := part.Write(asset.Data); err != nil {
		return Reference{}, err
	}
	if err := writer.Close(); err != nil {
		return Reference{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return Reference{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return Reference{}, fmt.Errorf("imgbb request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reference{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Reference{}, fmt.Errorf("imgbb upload failed: HTTP %d %s", resp.StatusCode, truncate(string(raw), 200))
	}
	var data imgbbResp
	if err := json.Unmarshal(raw, &data); err != nil {
		return Reference{}, fmt.Errorf("parse imgbb response: %w", err)
	}
	if data.Data.URL == "" {
		msg := "missing url"
		if data.Error != nil {
			msg = data.Error.Message
		}
		return Reference{}, fmt.Errorf("imgbb upload failed: %s", msg)
	}
	return Reference{URL: data.Data.URL}, nil
}
