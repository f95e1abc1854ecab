package pagination

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/Ycseeasy/explore-with-me/internal/domain/ids"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	cursorPrefix = "id:"
)

var (
	ErrInvalidCursor = errors.New("invalid cursor")
	ErrInvalidLimit  = errors.New("limit must be between 1 and 100")
)

// Page is a keyset page request over ULID-ordered rows.
type Page struct {
	Limit int
	After string
}

// EncodeCursor encodes the last ULID of a page as base64("id:ULID").
func EncodeCursor(id string) string {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(cursorPrefix + id))
}

// DecodeCursor returns the ULID carried by a cursor.
func DecodeCursor(cursor string) (string, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return "", ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", ErrInvalidCursor
	}
	value := string(decoded)
	if !strings.HasPrefix(value, cursorPrefix) {
		return "", ErrInvalidCursor
	}
	id := strings.ToUpper(strings.TrimPrefix(value, cursorPrefix))
	if err := ids.ValidateULID(id); err != nil {
		return "", ErrInvalidCursor
	}
	return id, nil
}

// ParsePage reads `limit` and `cursor` from a query string.
func ParsePage(values url.Values) (Page, error) {
	page := Page{Limit: DefaultLimit}
	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > MaxLimit {
			return Page{}, ErrInvalidLimit
		}
		page.Limit = limit
	}
	if raw := strings.TrimSpace(values.Get("cursor")); raw != "" {
		after, err := DecodeCursor(raw)
		if err != nil {
			return Page{}, err
		}
		page.After = after
	}
	return page, nil
}
