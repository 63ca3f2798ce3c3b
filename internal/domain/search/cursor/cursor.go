// Package cursor defines the sort keys hits are paginated by and the opaque
// token sequence and join queries resume from.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// tokenVersion is bumped whenever the token layout changes.
const tokenVersion = 2

// ErrInvalid is wrapped by every decoding failure.
var ErrInvalid = errors.New("invalid cursor")

// Key is the (timestamp, tiebreaker) sort key of a hit. Tiebreaker is
// "index:id" and never empty for a real hit, so the zero Key sorts before
// every hit and means "from the start".
type Key struct {
	Timestamp  int64  `msgpack:"t"`
	Tiebreaker string `msgpack:"b"`
}

// IsZero reports whether k is the start position.
func (k Key) IsZero() bool { return k.Tiebreaker == "" }

// Less orders keys by timestamp, then tiebreaker.
func (k Key) Less(o Key) bool {
	if k.Timestamp != o.Timestamp {
		return k.Timestamp < o.Timestamp
	}
	return k.Tiebreaker < o.Tiebreaker
}

// Compare returns -1, 0 or +1.
func (k Key) Compare(o Key) int {
	switch {
	case k.Less(o):
		return -1
	case o.Less(k):
		return 1
	}
	return 0
}

// Values returns the search_after form of k.
func (k Key) Values() []any { return []any{k.Timestamp, k.Tiebreaker} }

func (k Key) String() string { return strconv.FormatInt(k.Timestamp, 10) + "/" + k.Tiebreaker }

// FromValues decodes a [timestamp, tiebreaker] search_after tuple.
func FromValues(values []any) (Key, error) {
	if len(values) != 2 {
		return Key{}, fmt.Errorf("%w: expected [timestamp, tiebreaker], got %d value(s)", ErrInvalid, len(values))
	}
	ts, err := timestamp(values[0])
	if err != nil {
		return Key{}, err
	}
	tb, ok := values[1].(string)
	if !ok || tb == "" {
		return Key{}, fmt.Errorf("%w: tiebreaker must be a non-empty string", ErrInvalid)
	}
	return Key{Timestamp: ts, Tiebreaker: tb}, nil
}

func timestamp(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: timestamp must be an integer, got %v", ErrInvalid, n)
		}
		return int64(n), nil
	case json.Number:
		return timestamp(n.String())
	case string:
		ts, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: timestamp %q is not an integer", ErrInvalid, n)
		}
		return ts, nil
	}
	return 0, fmt.Errorf("%w: timestamp has unsupported type %T", ErrInvalid, v)
}

// Resume is where a sequence or join query continues. Positions may lie
// before hits that were already returned: the next page replays from there
// so partial matches open at the end of a page are found again, and skips
// the matches that end at or before Emitted.
type Resume struct {
	// Positions holds the key of the last hit fed to the matcher per
	// stream, stages first then until. A zero key starts the stream over.
	Positions []Key `msgpack:"k"`
	// Stream and Emitted locate the final hit of the last returned match.
	Stream  int `msgpack:"s"`
	Emitted Key `msgpack:"e"`
}

type token struct {
	Version int `msgpack:"v"`
	Resume
}

// Encode packs r into a URL-safe token.
func Encode(r Resume) (string, error) {
	data, err := msgpack.Marshal(token{Version: tokenVersion, Resume: r})
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode unpacks a token produced by Encode. streams is the number of
// positions the caller expects.
func Decode(s string, streams int) (Resume, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Resume{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	var t token
	if err := msgpack.Unmarshal(data, &t); err != nil {
		return Resume{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if t.Version != tokenVersion {
		return Resume{}, fmt.Errorf("%w: unsupported version %d", ErrInvalid, t.Version)
	}
	if len(t.Positions) != streams {
		return Resume{}, fmt.Errorf("%w: token holds %d position(s), query has %d stage(s)", ErrInvalid, len(t.Positions), streams)
	}
	if t.Stream < 0 || t.Stream >= streams {
		return Resume{}, fmt.Errorf("%w: stream %d out of range", ErrInvalid, t.Stream)
	}
	return t.Resume, nil
}
