package memzone

import (
	"encoding/json"
	"time"
)

// TimeLayout is the zone-less timestamp format used on the wire.
const TimeLayout = "2006-01-02T15:04:05.000"

// Entry is the listing record of an object or directory.
type Entry struct {
	GUID            string
	StorageZoneName string
	Path            string
	ObjectName      string
	Length          int64
	LastChanged     time.Time
	IsDirectory     bool
	ServerID        int
	ArrayNumber     int
	UserID          string
	ContentType     string
	DateCreated     time.Time
	LastRead        time.Time
	Checksum        string
}

type wireEntry struct {
	Guid            string  `json:"Guid"`
	StorageZoneName string  `json:"StorageZoneName"`
	Path            string  `json:"Path"`
	ObjectName      string  `json:"ObjectName"`
	Length          int64   `json:"Length"`
	LastChanged     *string `json:"LastChanged"`
	IsDirectory     bool    `json:"IsDirectory"`
	ServerId        int     `json:"ServerId"`
	ArrayNumber     int     `json:"ArrayNumber"`
	UserId          string  `json:"UserId"`
	ContentType     string  `json:"ContentType"`
	DateCreated     *string `json:"DateCreated"`
	LastRead        *string `json:"LastRead"`
	Checksum        *string `json:"Checksum"`
}

// MarshalJSON renders the entry with the API's field names and timestamp
// format. Zero timestamps and empty checksums are emitted as null.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		Guid:            e.GUID,
		StorageZoneName: e.StorageZoneName,
		Path:            e.Path,
		ObjectName:      e.ObjectName,
		Length:          e.Length,
		LastChanged:     formatTime(e.LastChanged),
		IsDirectory:     e.IsDirectory,
		ServerId:        e.ServerID,
		ArrayNumber:     e.ArrayNumber,
		UserId:          e.UserID,
		ContentType:     e.ContentType,
		DateCreated:     formatTime(e.DateCreated),
		LastRead:        formatTime(e.LastRead),
		Checksum:        nullable(e.Checksum),
	})
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(TimeLayout)
	return &s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
