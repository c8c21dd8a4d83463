package domain

import "time"

// Progress is the reading position a device reported for one document.
//
// The store treats Percentage and Progress as opaque client data: values
// outside [0,1] are accepted and returned as-is, and Progress is an
// uninterpreted position marker (page number, reader location token).
// The logical key (username, document) lives in the storage layer; a new
// write for the same key fully replaces the previous record.
type Progress struct {
	DeviceID   string
	Device     string
	Percentage float64
	Progress   string
	Timestamp  int64
}

// TimestampTime returns Timestamp as a time.Time.
func (p *Progress) TimestampTime() time.Time {
	return time.UnixMilli(p.Timestamp)
}
