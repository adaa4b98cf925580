package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UploadTicket is what the server hands out for a new building: its id and
// one presigned PUT URL per asset.
type UploadTicket struct {
	Building struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"building"`
	GML struct {
		URL string `json:"url"`
	} `json:"gml"`
	Texture struct {
		URL string `json:"url"`
	} `json:"texture"`
}

// BuildingAPI is the part of the HTTP catalog the client drives.
type BuildingAPI interface {
	Create(ctx context.Context, accessToken, name string) (*UploadTicket, error)
	MarkUploaded(ctx context.Context, accessToken, id string) error
}

// apiError is a non-2xx answer of the HTTP API.
type apiError struct {
	Status int
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (e *apiError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s (%s)", e.Detail, e.Code)
}

func isUnauthorized(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusUnauthorized
}

type httpBuildings struct {
	base   string
	client *http.Client
}

func newHTTPBuildings(base string, client *http.Client) *httpBuildings {
	return &httpBuildings{base: strings.TrimRight(base, "/"), client: client}
}

func (h *httpBuildings) do(ctx context.Context, accessToken, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := &apiError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(ae)
		return ae
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (h *httpBuildings) Create(ctx context.Context, accessToken, name string) (*UploadTicket, error) {
	var t UploadTicket
	if err := h.do(ctx, accessToken, "/buildings", map[string]string{"name": name}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *httpBuildings) MarkUploaded(ctx context.Context, accessToken, id string) error {
	return h.do(ctx, accessToken, "/buildings/"+id+"/uploaded", nil, nil)
}
