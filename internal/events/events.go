// Package events turns raw Splunk result objects into EventRecord
// values, providing the dynamic-field-take primitives the original
// Python check used (take a key out of an open JSON object, fail
// loudly when a required one is missing) and the in-cycle
// deduplication the spec requires.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/long0419/splunk-event-collector/internal/timeutil"
	"github.com/long0419/splunk-event-collector/internal/types"
)

// Raw is one result object as decoded from a Splunk results page: an
// open bag of fields whose shape is not known ahead of time.
type Raw map[string]any

// takeRequired removes key from r and returns its string value,
// failing loudly if the key is absent. This mirrors the original
// check's take_required_field helper.
func takeRequired(r Raw, key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", errors.Errorf("result is missing required field %q", key)
	}
	delete(r, key)
	return toString(v), nil
}

// takeOptional removes key from r and returns a pointer to its string
// value, or nil if the key was absent or empty.
func takeOptional(r Raw, key string) *string {
	v, ok := r[key]
	if !ok {
		return nil
	}
	delete(r, key)
	s := toString(v)
	if s == "" {
		return nil
	}
	return &s
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Parse extracts one EventRecord from a raw Splunk result object. The
// record's _time field is required; _bkt and _cd are consumed when
// present to build the dedup key, falling back to a hash of the
// remaining record salted with ordinal (the result's position within
// its page) when Splunk omits them, so two genuinely distinct events
// that happen to share every remaining field still get distinct keys.
// event_type, msg_title, msg_text and source_type_name are optional
// and become nil when absent, matching the "minimal full payload"
// scenario in the collection spec.
func Parse(raw Raw, instanceTags []string, ordinal int) (types.EventRecord, error) {
	r := make(Raw, len(raw))
	for k, v := range raw {
		r[k] = v
	}

	timeField, err := takeRequired(r, "_time")
	if err != nil {
		return types.EventRecord{}, err
	}
	timestamp, err := parseFloat(timeField)
	if err != nil {
		return types.EventRecord{}, errors.Wrap(err, "parsing _time")
	}

	dedupKey := dedupKeyOf(r, ordinal)

	eventType := takeOptional(r, "event_type")
	msgTitle := takeOptional(r, "msg_title")
	msgText := takeOptional(r, "msg_text")
	sourceTypeName := takeOptional(r, "source_type_name")

	tags := mergeTags(instanceTags, takeTagList(r, "tags"))

	return types.EventRecord{
		Timestamp:      timestamp,
		EventType:      eventType,
		MsgTitle:       msgTitle,
		MsgText:        msgText,
		SourceTypeName: sourceTypeName,
		Tags:           tags,
		DedupKey:       dedupKey,
	}, nil
}

// dedupKeyOf derives the event-identity key used for in-cycle
// deduplication. When both _bkt (bucket id) and _cd (cursor
// descriptor, "component:offset") are present, Splunk guarantees they
// uniquely identify a raw event, so the key is their concatenation.
// Summary-indexed and scripted results often omit both; in that case
// the key falls back to a hash of the remaining fields salted with
// ordinal, so two distinct results that share every remaining field
// (the same timestamp and payload reported twice in one cycle) still
// get distinct keys instead of one silently shadowing the other.
func dedupKeyOf(r Raw, ordinal int) string {
	bkt := takeOptional(r, "_bkt")
	cd := takeOptional(r, "_cd")
	if bkt != nil && cd != nil {
		return *bkt + ":" + *cd
	}
	return hashRecord(r, ordinal)
}

func hashRecord(r Raw, ordinal int) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	fmt.Fprintf(h, "ordinal=%d\x00", ordinal)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v\x00", k, r[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func takeTagList(r Raw, key string) []string {
	v, ok := r[key]
	if !ok {
		return nil
	}
	delete(r, key)
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, toString(e))
		}
		return out
	case string:
		return []string{t}
	default:
		return nil
	}
}

func mergeTags(instanceTags, eventTags []string) []string {
	if len(instanceTags) == 0 {
		return eventTags
	}
	if len(eventTags) == 0 {
		return instanceTags
	}
	out := make([]string, 0, len(instanceTags)+len(eventTags))
	out = append(out, instanceTags...)
	out = append(out, eventTags...)
	return out
}

// parseFloat accepts the epoch-seconds form Splunk normally sends in
// _time, falling back to ISO-8601 for source types that report _time
// as a formatted timestamp instead.
func parseFloat(s string) (float64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, nil
	}
	if seconds, err := timeutil.ParseSeconds(s); err == nil {
		return seconds, nil
	}
	return 0, errors.Errorf("invalid numeric value %q", s)
}

// Deduplicator tracks identity keys seen within a single cycle and
// drops repeats, satisfying the "no event is emitted twice within a
// single cycle" invariant.
type Deduplicator struct {
	seen map[string]struct{}
}

// NewDeduplicator returns an empty Deduplicator, scoped to one cycle.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// Admit reports whether e's dedup key has not been seen yet in this
// cycle, recording it if so.
func (d *Deduplicator) Admit(e types.EventRecord) bool {
	if _, ok := d.seen[e.DedupKey]; ok {
		return false
	}
	d.seen[e.DedupKey] = struct{}{}
	return true
}

// ParseAll parses every raw result, applying in-cycle deduplication,
// and returns the surviving records plus the number dropped.
func ParseAll(raws []Raw, instanceTags []string) (records []types.EventRecord, duplicates int, err error) {
	dedup := NewDeduplicator()
	for i, raw := range raws {
		rec, parseErr := Parse(raw, instanceTags, i)
		if parseErr != nil {
			return nil, 0, errors.Wrapf(parseErr, "result[%d]", i)
		}
		if !dedup.Admit(rec) {
			duplicates++
			continue
		}
		records = append(records, rec)
	}
	return records, duplicates, nil
}
