// Package event decodes raw queue bodies into login events.
//
// A body must be exactly one flat JSON object. Decode returns either a
// Record or an *InvalidMessage; nothing downstream ever sees a half-parsed
// payload. Arrays, nested values, trailing data and non-string ip,
// device_id or app_version values are rejected here rather than failing
// later inside the loader.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"loginetl/internal/etlerr"
	"loginetl/pkg/records"
)

// Field names of the message body.
const (
	FieldUserID     = "user_id"
	FieldDeviceType = "device_type"
	FieldIP         = "ip"
	FieldDeviceID   = "device_id"
	FieldLocale     = "locale"
	FieldAppVersion = "app_version"
)

// Record is a decoded login event. Optional fields are nil when the key is
// absent or null in the body.
type Record struct {
	UserID     *string
	DeviceType *string
	IP         string
	DeviceID   string
	Locale     *string
	AppVersion string

	// Extra holds scalar keys outside the known set, stringified. They travel
	// with the record but no column binds them.
	Extra map[string]*string
}

// InvalidMessage is the error returned for bodies that are not a single
// flat JSON object with the required fields. It matches
// etlerr.MalformedPayload under errors.Is.
type InvalidMessage struct {
	Reason string
	Cause  error
}

func (m *InvalidMessage) Error() string {
	if m.Cause != nil {
		return fmt.Sprintf("invalid message: %s: %v", m.Reason, m.Cause)
	}
	return "invalid message: " + m.Reason
}

func (m *InvalidMessage) Unwrap() error { return m.Cause }

func (m *InvalidMessage) Is(target error) bool {
	return etlerr.KindOf(target) == etlerr.KindMalformedPayload
}

func invalid(cause error, format string, args ...any) *InvalidMessage {
	return &InvalidMessage{Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// Decode parses body into a Record. Any error is an *InvalidMessage.
func Decode(body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Record{}, invalid(nil, "empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return Record{}, invalid(err, "decode JSON")
	}
	if err := dec.Decode(new(json.RawMessage)); !errors.Is(err, io.EOF) {
		return Record{}, invalid(err, "trailing data after JSON object")
	}

	obj, ok := root.(map[string]any)
	if !ok {
		if _, isArr := root.([]any); isArr {
			return Record{}, invalid(nil, "top-level array; one object per message is supported")
		}
		return Record{}, invalid(nil, "top-level value is %s, want object", jsonKind(root))
	}

	var (
		rec = Record{Extra: map[string]*string{}}
		err error
	)
	for k, v := range obj {
		switch k {
		case FieldIP:
			rec.IP, err = requiredString(k, v)
		case FieldDeviceID:
			rec.DeviceID, err = requiredString(k, v)
		case FieldAppVersion:
			rec.AppVersion, err = requiredString(k, v)
		case FieldUserID:
			rec.UserID, err = optionalScalar(k, v)
		case FieldDeviceType:
			rec.DeviceType, err = optionalScalar(k, v)
		case FieldLocale:
			rec.Locale, err = optionalScalar(k, v)
		default:
			rec.Extra[k], err = optionalScalar(k, v)
		}
		if err != nil {
			return Record{}, err
		}
	}
	for _, k := range []string{FieldIP, FieldDeviceID, FieldAppVersion} {
		if _, ok := obj[k]; !ok {
			return Record{}, invalid(nil, "missing required field %q", k)
		}
	}
	return rec, nil
}

func requiredString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", invalid(nil, "field %q is %s, want string", key, jsonKind(v))
	}
	return s, nil
}

// optionalScalar stringifies JSON scalars; numbers keep their literal text.
func optionalScalar(key string, v any) (*string, error) {
	var s string
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil, invalid(nil, "field %q is %s, want a scalar", key, jsonKind(v))
	}
	return &s, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Fields flattens r into a records.Record keyed by body field name. Absent
// optional fields map to nil.
func (r Record) Fields() records.Record {
	out := make(records.Record, 6+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = deref(v)
	}
	out[FieldUserID] = deref(r.UserID)
	out[FieldDeviceType] = deref(r.DeviceType)
	out[FieldIP] = r.IP
	out[FieldDeviceID] = r.DeviceID
	out[FieldLocale] = deref(r.Locale)
	out[FieldAppVersion] = r.AppVersion
	return out
}

// Notes reports data-quality findings about r: a locale that is not a
// well-formed BCP 47 tag, and string fields that are not in Unicode NFC.
// Values for which skip returns true (null sentinels) are not inspected.
// Notes never change what is stored.
func (r Record) Notes(skip func(any) bool) []string {
	if skip == nil {
		skip = func(any) bool { return false }
	}
	var notes []string

	if r.Locale != nil && !skip(*r.Locale) {
		if _, err := language.Parse(*r.Locale); err != nil {
			notes = append(notes, fmt.Sprintf("locale %q is not a BCP 47 tag", *r.Locale))
		}
	}

	fields := []struct {
		name string
		v    *string
	}{
		{FieldUserID, r.UserID},
		{FieldDeviceType, r.DeviceType},
		{FieldIP, &r.IP},
		{FieldDeviceID, &r.DeviceID},
		{FieldLocale, r.Locale},
		{FieldAppVersion, &r.AppVersion},
	}
	for _, f := range fields {
		if f.v == nil || skip(*f.v) {
			continue
		}
		if !norm.NFC.IsNormalString(*f.v) {
			notes = append(notes, fmt.Sprintf("field %q is not NFC normalized; stored as received", f.name))
		}
	}
	return notes
}

func deref(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

// Fingerprint is the xxh3-64 digest of a raw body in hex. Messages are never
// deleted from the queue, so the same fingerprint showing up in two runs
// marks a redelivery.
func Fingerprint(body []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(body))
}
