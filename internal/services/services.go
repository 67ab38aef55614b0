package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/reelx/internal/shared"
)

// do sends req and decodes the JSON response into a T.
func do[T any](ctx context.Context, s Sender, req *Request) (T, error) {
	var out T
	resp, err := s.Send(ctx, req)
	if err != nil {
		return out, err
	}
	if err := DecodeJSON(resp, &out); err != nil {
		return out, err
	}
	return out, nil
}

// send sends req and discards the response body.
func send(ctx context.Context, s Sender, req *Request) error {
	_, err := s.Send(ctx, req)
	return err
}

func get(path string, query url.Values) *Request {
	return &Request{Method: http.MethodGet, Path: path, Query: query}
}

func post(path string, body any) *Request {
	return &Request{Method: http.MethodPost, Path: path, Body: body}
}

func patch(path string, body any) *Request {
	return &Request{Method: http.MethodPatch, Path: path, Body: body}
}

func del(path string) *Request {
	return &Request{Method: http.MethodDelete, Path: path}
}

func id(v int64) string {
	return strconv.FormatInt(v, 10)
}

func requireID(name string, v int64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %d", shared.ErrInvalidArgument, name, v)
	}
	return nil
}

func requireText(name, v string) error {
	if v == "" {
		return fmt.Errorf("%w: %s", shared.ErrMissingArgument, name)
	}
	return nil
}
