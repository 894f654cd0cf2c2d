// Package pagination implements offset/limit paging for list endpoints.
package pagination

import (
	"errors"
	"math"
	"net/url"
	"strconv"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

var (
	ErrInvalidLimit  = errors.New("limit must be a positive integer")
	ErrInvalidOffset = errors.New("offset must be a non-negative integer")
)

type Request struct {
	Limit  int
	Offset int
}

// FromQuery reads limit and offset from query parameters. Missing values
// fall back to DefaultLimit and zero; limits above maxLimit are clamped.
// Offsets so large that offset+limit would overflow are rejected.
func FromQuery(q url.Values, maxLimit int) (Request, error) {
	req := Request{Limit: DefaultLimit}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return Request{}, ErrInvalidLimit
		}
		req.Limit = limit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 || offset > math.MaxInt-maxLimit {
			return Request{}, ErrInvalidOffset
		}
		req.Offset = offset
	}

	return req, nil
}

// Info describes the page that was returned. Next and Previous are nil when
// there is no such page.
type Info struct {
	Limit    int  `json:"limit"`
	Next     *int `json:"next"`
	Previous *int `json:"previous"`
}

type Envelope[T any] struct {
	Data []T  `json:"data"`
	Page Info `json:"page"`
}

// NewEnvelope wraps a fetched page. Page.Limit is the number of items
// actually returned, not the requested limit; total is the unpaginated
// match count.
func NewEnvelope[T any](data []T, req Request, total int64) Envelope[T] {
	if data == nil {
		data = []T{}
	}

	info := Info{Limit: len(data)}
	if req.Offset <= math.MaxInt-req.Limit {
		if next := req.Offset + req.Limit; int64(next) < total {
			info.Next = &next
		}
	}
	if prev := req.Offset - req.Limit; prev >= 0 {
		info.Previous = &prev
	}

	return Envelope[T]{Data: data, Page: info}
}
