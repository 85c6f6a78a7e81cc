package dataobjects

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

var sdb sq.StatementBuilderType

func init() {
	sdb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// ErrNotFound is returned (possibly wrapped) when the requested object does not exist
var ErrNotFound = errors.New("not found")

// IsNotFound returns whether err was caused by a missing object
func IsNotFound(err error) bool {
	return errors.Cause(err) == ErrNotFound
}

// notFound wraps ErrNotFound with the kind and ID of the missing object
func notFound(objtype, id string) error {
	return errors.Wrapf(ErrNotFound, "%s %s", objtype, id)
}

type temporaryError struct {
	err error
}

func (e *temporaryError) Error() string   { return e.err.Error() }
func (e *temporaryError) Temporary() bool { return true }
func (e *temporaryError) Cause() error    { return e.err }
func (e *temporaryError) Unwrap() error   { return e.err }

// MarkTemporary flags err as transient: the same call may succeed if repeated later
func MarkTemporary(err error) error {
	if err == nil {
		return nil
	}
	return &temporaryError{err}
}

// IsTemporary returns whether err, or any error it wraps, is transient
func IsTemporary(err error) bool {
	for err != nil {
		if t, ok := err.(interface{ Temporary() bool }); ok && t.Temporary() {
			return true
		}
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Code.Class() {
			case "08", "40", "53", "55", "57":
				// connection exception, transaction rollback, insufficient resources,
				// lock not available, operator intervention (includes statement timeouts)
				return true
			}
		}
		if err == driver.ErrBadConn {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			c, ok := err.(interface{ Cause() error })
			if !ok {
				return false
			}
			err = c.Cause()
			continue
		}
		err = u.Unwrap()
	}
	return false
}

// wrapDBError prefixes err with the name of the failed operation, keeping its transient classification
func wrapDBError(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsNotFound(err) {
		return errors.Wrap(err, op)
	}
	if IsTemporary(err) {
		return MarkTemporary(errors.Wrap(err, op))
	}
	return errors.Wrap(err, op)
}

// Duration wraps a time.Duration with custom methods for serialization
type Duration time.Duration

var _ msgpack.CustomEncoder = (*Duration)(nil)
var _ msgpack.CustomDecoder = (*Duration)(nil)

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(b []byte) error {
	duration, err := time.ParseDuration(strings.Trim(string(b), "\""))
	*d = Duration(duration)
	return err
}

// EncodeMsgpack implements the msgpack.CustomEncoder interface
func (d Duration) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(int(time.Duration(d).Seconds()))
}

// DecodeMsgpack implements the msgpack.CustomDecoder interface
func (d *Duration) DecodeMsgpack(dec *msgpack.Decoder) error {
	var i int
	err := dec.Decode(&i)
	if err != nil {
		return err
	}
	*d = Duration(time.Duration(i) * time.Second)
	return nil
}

// Scan implements the sql.Scanner interface.
// Postgres intervals are read in their HH:MM:SS output form
func (d *Duration) Scan(value interface{}) error {
	var s string
	switch v := value.(type) {
	case []byte:
		s = string(v)
	case string:
		s = v
	default:
		return errors.New("Scan: Invalid val type for scanning")
	}
	ss := strings.Split(s, ":")
	if len(ss) != 3 {
		return fmt.Errorf("Scan: unexpected interval format %q", s)
	}
	var hour, minute, second int
	fmt.Sscanf(ss[0], "%d", &hour)
	fmt.Sscanf(ss[1], "%d", &minute)
	fmt.Sscanf(ss[2], "%d", &second)
	*d = Duration(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute + time.Duration(second)*time.Second)
	return nil
}

// Value implements the driver.Valuer interface.
func (d Duration) Value() (driver.Value, error) {
	return time.Duration(d).String(), nil
}

// scanJSON decodes a json/jsonb column into v
func scanJSON(value interface{}, v interface{}) error {
	switch b := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(b, v)
	case string:
		return json.Unmarshal([]byte(b), v)
	default:
		return errors.New("Scan: Invalid val type for scanning")
	}
}

// jsonValue encodes v for storage in a jsonb column
func jsonValue(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
