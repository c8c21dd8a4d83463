package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/szaffarano/korrosync/internal/core/domain"
)

// Version is the current on-disk schema version. It is the first byte of
// every stored value; decoding rejects any other version instead of
// guessing at the layout.
const Version byte = 1

// keySeparator terminates the username in a composite progress key.
// Usernames are rejected at the domain boundary if they contain NUL, so
// byte order of encoded keys matches (username, document) tuple order.
const keySeparator byte = 0x00

// EncodeUser serializes a user value.
//
// Layout: [version:1][len:4][username][len:4][password_hash][last_activity:8]
func EncodeUser(u *domain.User) []byte {
	buf := make([]byte, 0, 1+4+len(u.Username)+4+len(u.PasswordHash)+8)
	buf = append(buf, Version)
	buf = appendString(buf, u.Username)
	buf = appendString(buf, u.PasswordHash)
	buf = binary.BigEndian.AppendUint64(buf, uint64(u.LastActivity))
	return buf
}

// EncodeProgress serializes a progress value.
//
// Layout: [version:1][len:4][device_id][len:4][device][percentage:8]
// [len:4][progress][timestamp:8]
func EncodeProgress(p *domain.Progress) []byte {
	buf := make([]byte, 0, 1+4+len(p.DeviceID)+4+len(p.Device)+8+4+len(p.Progress)+8)
	buf = append(buf, Version)
	buf = appendString(buf, p.DeviceID)
	buf = appendString(buf, p.Device)
	buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(p.Percentage))
	buf = appendString(buf, p.Progress)
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Timestamp))
	return buf
}

// UserView is a read-only view over an encoded user record.
//
// The view borrows the underlying buffer; it is only valid while the
// buffer is, which for store reads means inside the originating
// transaction. Call Materialize to obtain an owned value.
type UserView struct {
	username     []byte
	passwordHash []byte
	lastActivity int64
}

// ParseUser validates an encoded user record and returns a view over it.
// Truncated, oversized, or unversioned bytes fail with ErrCorruptRecord.
func ParseUser(data []byte) (UserView, error) {
	r, err := newReader(data)
	if err != nil {
		return UserView{}, err
	}

	var v UserView
	if v.username, err = r.bytes(); err != nil {
		return UserView{}, err
	}
	if v.passwordHash, err = r.bytes(); err != nil {
		return UserView{}, err
	}
	u, err := r.uint64()
	if err != nil {
		return UserView{}, err
	}
	v.lastActivity = int64(u)

	if err := r.done(); err != nil {
		return UserView{}, err
	}
	return v, nil
}

// Username returns the username bytes without copying.
func (v UserView) Username() []byte { return v.username }

// PasswordHash returns the encoded hash bytes without copying.
func (v UserView) PasswordHash() []byte { return v.passwordHash }

// LastActivity returns the last activity timestamp in Unix milliseconds.
func (v UserView) LastActivity() int64 { return v.lastActivity }

// Materialize copies the view into an owned domain value that may outlive
// the transaction the view was read in.
func (v UserView) Materialize() *domain.User {
	return &domain.User{
		Username:     string(v.username),
		PasswordHash: string(v.passwordHash),
		LastActivity: v.lastActivity,
	}
}

// ProgressView is a read-only view over an encoded progress record.
// Same borrowing rules as UserView.
type ProgressView struct {
	deviceID   []byte
	device     []byte
	percentage float64
	progress   []byte
	timestamp  int64
}

// ParseProgress validates an encoded progress record and returns a view.
func ParseProgress(data []byte) (ProgressView, error) {
	r, err := newReader(data)
	if err != nil {
		return ProgressView{}, err
	}

	var v ProgressView
	if v.deviceID, err = r.bytes(); err != nil {
		return ProgressView{}, err
	}
	if v.device, err = r.bytes(); err != nil {
		return ProgressView{}, err
	}
	bits, err := r.uint64()
	if err != nil {
		return ProgressView{}, err
	}
	v.percentage = math.Float64frombits(bits)
	if v.progress, err = r.bytes(); err != nil {
		return ProgressView{}, err
	}
	ts, err := r.uint64()
	if err != nil {
		return ProgressView{}, err
	}
	v.timestamp = int64(ts)

	if err := r.done(); err != nil {
		return ProgressView{}, err
	}
	return v, nil
}

// DeviceID returns the device identifier bytes without copying.
func (v ProgressView) DeviceID() []byte { return v.deviceID }

// Device returns the device label bytes without copying.
func (v ProgressView) Device() []byte { return v.device }

// Percentage returns the completion fraction as stored.
func (v ProgressView) Percentage() float64 { return v.percentage }

// Position returns the opaque position marker bytes without copying.
func (v ProgressView) Position() []byte { return v.progress }

// Timestamp returns the update time in Unix milliseconds.
func (v ProgressView) Timestamp() int64 { return v.timestamp }

// Materialize copies the view into an owned domain value.
func (v ProgressView) Materialize() *domain.Progress {
	return &domain.Progress{
		DeviceID:   string(v.deviceID),
		Device:     string(v.device),
		Percentage: v.percentage,
		Progress:   string(v.progress),
		Timestamp:  v.timestamp,
	}
}

// ProgressKey encodes the composite (username, document) key. The
// encoding is order-preserving: for two pairs (u1,d1) < (u2,d2) under
// tuple order, the encoded keys compare the same way byte-wise.
func ProgressKey(username, document string) []byte {
	key := make([]byte, 0, len(username)+1+len(document))
	key = append(key, username...)
	key = append(key, keySeparator)
	key = append(key, document...)
	return key
}

// ProgressKeyPrefix returns the prefix shared by every progress key
// belonging to username. Scanning this prefix visits exactly that user's
// records.
func ProgressKeyPrefix(username string) []byte {
	prefix := make([]byte, 0, len(username)+1)
	prefix = append(prefix, username...)
	prefix = append(prefix, keySeparator)
	return prefix
}

// SplitProgressKey decodes a composite progress key back into its
// username and document parts.
func SplitProgressKey(key []byte) (username, document string, err error) {
	i := bytes.IndexByte(key, keySeparator)
	if i < 0 {
		return "", "", domain.ErrCorruptRecord.WithDetails("progress key missing separator")
	}
	return string(key[:i]), string(key[i+1:]), nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// reader walks an encoded record, failing closed on any bounds violation.
type reader struct {
	data []byte
	off  int
}

func newReader(data []byte) (*reader, error) {
	if len(data) == 0 {
		return nil, domain.ErrCorruptRecord.WithDetails("empty record")
	}
	if data[0] != Version {
		return nil, domain.ErrCorruptRecord.WithDetails("unknown schema version")
	}
	return &reader{data: data, off: 1}, nil
}

func (r *reader) bytes() ([]byte, error) {
	if r.off+4 > len(r.data) {
		return nil, domain.ErrCorruptRecord.WithDetails("truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(r.data[r.off:]))
	r.off += 4
	if n < 0 || r.off+n > len(r.data) {
		return nil, domain.ErrCorruptRecord.WithDetails("field length exceeds record")
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint64() (uint64, error) {
	if r.off+8 > len(r.data) {
		return 0, domain.ErrCorruptRecord.WithDetails("truncated integer field")
	}
	u := binary.BigEndian.Uint64(r.data[r.off:])
	r.off += 8
	return u, nil
}

func (r *reader) done() error {
	if r.off != len(r.data) {
		return domain.ErrCorruptRecord.WithDetails("trailing bytes after record")
	}
	return nil
}
