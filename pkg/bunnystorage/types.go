package bunnystorage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultRegion is the public storage endpoint used when Config.Region is blank.
const DefaultRegion = "storage.bunnycdn.com"

// ErrInvalidArgument reports caller input the client refuses before any
// request is sent.
var ErrInvalidArgument = errors.New("bunnystorage: invalid argument")

// Config identifies the storage zone a Client talks to.
type Config struct {
	// AccessKey is the storage zone password sent in the AccessKey header.
	AccessKey string
	// StorageZone is the name of the storage zone.
	StorageZone string
	// Region is the storage endpoint host, e.g. "ny.storage.bunnycdn.com".
	// Defaults to DefaultRegion.
	Region string
}

// BaseURL returns https://{region}/{zone}.
func (c Config) BaseURL() string {
	region := c.Region
	if strings.TrimSpace(region) == "" {
		region = DefaultRegion
	}
	return "https://" + region + "/" + c.StorageZone
}

func (c Config) validate() error {
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("%w: access key is required", ErrInvalidArgument)
	}
	if strings.TrimSpace(c.StorageZone) == "" {
		return fmt.Errorf("%w: storage zone is required", ErrInvalidArgument)
	}
	return nil
}

// File describes an object or directory as reported by a listing. It is a
// snapshot taken when the listing was requested.
type File struct {
	GUID            string    `json:"Guid"`
	StorageZoneName string    `json:"StorageZoneName"`
	Path            string    `json:"Path"`
	ObjectName      string    `json:"ObjectName"`
	Length          int64     `json:"Length"`
	LastChanged     Timestamp `json:"LastChanged"`
	IsDirectory     bool      `json:"IsDirectory"`
	ServerID        int       `json:"ServerId"`
	ArrayNumber     int       `json:"ArrayNumber"`
	UserID          string    `json:"UserId"`
	ContentType     string    `json:"ContentType"`
	DateCreated     Timestamp `json:"DateCreated"`
	LastRead        Timestamp `json:"LastRead"`
	Checksum        string    `json:"Checksum"`
}

// timestampLayout is the zone-less format used by the storage API. Values are
// UTC.
const timestampLayout = "2006-01-02T15:04:05.999"

// Timestamp is a time.Time that understands the storage API's JSON format.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON accepts the API layout, RFC 3339, null and "".
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("bunnystorage: timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{timestampLayout, time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("bunnystorage: unrecognised timestamp %q", raw)
}

// MarshalJSON writes the API layout with millisecond precision; the zero time
// is written as null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000"))
}
