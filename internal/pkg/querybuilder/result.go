package querybuilder

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PagedResult is the envelope returned by every list endpoint. Pagination
// fields are nil when neither page nor cursor was requested.
type PagedResult[T any] struct {
	Results    []T     `json:"results"`
	Total      *int64  `json:"total,omitempty"`
	Page       *int    `json:"page,omitempty"`
	Limit      *int    `json:"limit,omitempty"`
	TotalPages *int    `json:"totalPages,omitempty"`
	HasMore    *bool   `json:"hasMore,omitempty"`
	NextCursor *string `json:"nextCursor,omitempty"`
}

// Identifier is implemented by entities that can be paged with a cursor.
type Identifier interface {
	CursorID() int64
}

func EncodeCursor(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeCursor accepts standard and URL-safe base64, padded or not.
func DecodeCursor(cursor string) (int64, error) {
	cursor = strings.TrimSpace(cursor)
	var raw []byte
	var err error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err = enc.DecodeString(cursor); err == nil {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("%w: malformed cursor", ErrInvalidQuery)
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: malformed cursor", ErrInvalidQuery)
	}
	return id, nil
}

func nextCursor[T any](items []T) *string {
	if len(items) == 0 {
		return nil
	}
	ident, ok := any(&items[len(items)-1]).(Identifier)
	if !ok {
		return nil
	}
	c := EncodeCursor(ident.CursorID())
	return &c
}
