package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// CompanyCursor encodes a timestamp + ULID for stable company ordering.
type CompanyCursor struct {
	Timestamp time.Time
	ULID      string
}

// EncodeCompanyCursor encodes the cursor as base64(ts_unix_nano:ULID).
func EncodeCompanyCursor(timestamp time.Time, ulid string) string {
	value := fmt.Sprintf("%d:%s", timestamp.UTC().UnixNano(), strings.ToUpper(strings.TrimSpace(ulid)))
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeCompanyCursor decodes base64(ts_unix_nano:ULID) into a CompanyCursor.
func DecodeCompanyCursor(cursor string) (CompanyCursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return CompanyCursor{}, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return CompanyCursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return CompanyCursor{}, ErrInvalidCursor
	}
	unixNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return CompanyCursor{}, ErrInvalidCursor
	}
	if strings.TrimSpace(parts[1]) == "" {
		return CompanyCursor{}, ErrInvalidCursor
	}
	return CompanyCursor{Timestamp: time.Unix(0, unixNano).UTC(), ULID: strings.ToUpper(strings.TrimSpace(parts[1]))}, nil
}

// SnapshotCursor encodes a timestamp + row ID for ratio snapshot history.
// Snapshots carry no ULID, so the serial ID breaks timestamp ties.
type SnapshotCursor struct {
	Timestamp time.Time
	ID        int64
}

// EncodeSnapshotCursor encodes the cursor as base64(ts_unix_nano:id).
func EncodeSnapshotCursor(timestamp time.Time, id int64) string {
	value := fmt.Sprintf("%d:%d", timestamp.UTC().UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeSnapshotCursor decodes base64(ts_unix_nano:id) into a SnapshotCursor.
func DecodeSnapshotCursor(cursor string) (SnapshotCursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return SnapshotCursor{}, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return SnapshotCursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return SnapshotCursor{}, ErrInvalidCursor
	}
	unixNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return SnapshotCursor{}, ErrInvalidCursor
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return SnapshotCursor{}, ErrInvalidCursor
	}
	return SnapshotCursor{Timestamp: time.Unix(0, unixNano).UTC(), ID: id}, nil
}

// NameCursor encodes a company name + ULID for name-ordered listings.
type NameCursor struct {
	Name string
	ULID string
}

// EncodeNameCursor encodes the cursor as base64(ULID:name). The ULID comes
// first because names may contain the separator.
func EncodeNameCursor(name, ulid string) string {
	value := fmt.Sprintf("%s:%s", strings.ToUpper(strings.TrimSpace(ulid)), name)
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeNameCursor decodes base64(ULID:name) into a NameCursor.
func DecodeNameCursor(cursor string) (NameCursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return NameCursor{}, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return NameCursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return NameCursor{}, ErrInvalidCursor
	}
	if len(parts[0]) != 26 {
		return NameCursor{}, ErrInvalidCursor
	}
	return NameCursor{Name: parts[1], ULID: parts[0]}, nil
}
