package gateway

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"
)

// client-side state engine for the platform gateway
//
// a shard delivers a stream of typed events. the engine applies each event to
// the in-memory object graph and then re-emits it as a domain notification,
// so application code always observes a cache consistent with the event it is
// handling.

// entity id. transmitted as a decimal string on the wire.
// comparable
type Snowflake int64

func (self Snowflake) IsZero() bool {
	return self == 0
}

func (self Snowflake) String() string {
	return strconv.FormatInt(int64(self), 10)
}

func ParseSnowflake(idStr string) (Snowflake, error) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot parse snowflake %q: %s", idStr, err)
	}
	return Snowflake(id), nil
}

func (self Snowflake) MarshalJSON() ([]byte, error) {
	var buff bytes.Buffer
	buff.WriteByte('"')
	buff.WriteString(self.String())
	buff.WriteByte('"')
	return buff.Bytes(), nil
}

func (self *Snowflake) UnmarshalJSON(src []byte) error {
	if bytes.Equal(src, []byte("null")) {
		*self = 0
		return nil
	}
	s := src
	if 2 <= len(s) && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	id, err := ParseSnowflake(string(s))
	if err != nil {
		return err
	}
	*self = id
	return nil
}

// correlation token included in a chunk request and echoed in its reply pages
func NewNonce() string {
	return ulid.Make().String()
}

// wire timestamps are ISO-8601 with optional fractional seconds
func parseTimestamp(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
