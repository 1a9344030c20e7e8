package collections

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GroupKind tags the source representation a GroupCollections value was decoded from.
type GroupKind uint8

const (
	// GroupKindEmpty carries no group contributions.
	GroupKindEmpty GroupKind = iota
	// GroupKindEntries carries a list of per-group contributions.
	GroupKindEntries
	// GroupKindNumber carries a bare numeric total.
	GroupKindNumber
	// GroupKindText carries raw text that was not valid JSON.
	GroupKindText
)

// GroupEntry is one sub-group contribution inside a collection.
type GroupEntry struct {
	GroupName     string  `json:"groupName,omitempty"`
	SandwichCount float64 `json:"sandwichCount"`
}

// GroupCollections is the variable-shape group payload of a collection record.
// Every representation converges on Total.
type GroupCollections struct {
	kind    GroupKind
	entries []GroupEntry
	number  float64
	text    string
}

// GroupsFromEntries builds a payload from explicit group entries.
func GroupsFromEntries(entries []GroupEntry) GroupCollections {
	if len(entries) == 0 {
		return GroupCollections{kind: GroupKindEntries, entries: []GroupEntry{}}
	}
	copied := make([]GroupEntry, len(entries))
	copy(copied, entries)
	return GroupCollections{kind: GroupKindEntries, entries: copied}
}

// GroupsFromNumber builds a payload carrying a bare total.
func GroupsFromNumber(value float64) GroupCollections {
	return GroupCollections{kind: GroupKindNumber, number: value}
}

// ParseGroupText decodes the textual representation: a JSON array of entries,
// a JSON scalar, or raw numeric text.
func ParseGroupText(text string) GroupCollections {
	if strings.TrimSpace(text) == "" {
		return GroupCollections{}
	}
	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return GroupCollections{kind: GroupKindText, text: text}
	}
	if list, ok := decoded.([]any); ok {
		return GroupCollections{kind: GroupKindEntries, entries: entriesFromList(list)}
	}
	return GroupsFromNumber(coerceNumber(decoded))
}

// GroupsFromValue decodes an already-structured value, such as the result of
// decoding a JSON document into an interface.
func GroupsFromValue(value any) GroupCollections {
	switch typed := value.(type) {
	case nil:
		return GroupCollections{}
	case GroupCollections:
		return typed
	case string:
		return ParseGroupText(typed)
	case []byte:
		return ParseGroupText(string(typed))
	case []GroupEntry:
		return GroupsFromEntries(typed)
	case []any:
		return GroupCollections{kind: GroupKindEntries, entries: entriesFromList(typed)}
	case []map[string]any:
		list := make([]any, 0, len(typed))
		for _, element := range typed {
			list = append(list, element)
		}
		return GroupCollections{kind: GroupKindEntries, entries: entriesFromList(list)}
	default:
		return GroupsFromNumber(coerceNumber(typed))
	}
}

// ParseGroupCollections returns the normalized non-negative group total of an
// arbitrary raw payload. It never fails; malformed input yields 0.
func ParseGroupCollections(raw any) int {
	return GroupsFromValue(raw).Total()
}

// Kind reports which representation the payload was decoded from.
func (g GroupCollections) Kind() GroupKind {
	return g.kind
}

// Entries returns a copy of the group entries, if any.
func (g GroupCollections) Entries() []GroupEntry {
	if g.kind != GroupKindEntries {
		return nil
	}
	copied := make([]GroupEntry, len(g.entries))
	copy(copied, g.entries)
	return copied
}

// Total is the normalized group sandwich count.
func (g GroupCollections) Total() int {
	switch g.kind {
	case GroupKindEntries:
		sum := 0.0
		for _, entry := range g.entries {
			sum += finiteOrZero(entry.SandwichCount)
		}
		return clampCount(sum)
	case GroupKindNumber:
		return clampCount(g.number)
	case GroupKindText:
		return clampCount(coerceText(g.text))
	default:
		return 0
	}
}

// IsZero reports whether the payload contributes no sandwiches.
func (g GroupCollections) IsZero() bool {
	return g.Total() == 0
}

// MarshalJSON renders entries as an array, numbers as numbers and raw text as a string.
func (g GroupCollections) MarshalJSON() ([]byte, error) {
	switch g.kind {
	case GroupKindEntries:
		return json.Marshal(g.entries)
	case GroupKindNumber:
		return json.Marshal(finiteOrZero(g.number))
	case GroupKindText:
		return json.Marshal(g.text)
	default:
		return []byte("[]"), nil
	}
}

// UnmarshalJSON accepts any of the supported representations.
func (g *GroupCollections) UnmarshalJSON(data []byte) error {
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*g = GroupsFromValue(decoded)
	return nil
}

// GormDataType stores the payload as text.
func (GroupCollections) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (g GroupCollections) Value() (driver.Value, error) {
	switch g.kind {
	case GroupKindEntries:
		encoded, err := json.Marshal(g.entries)
		if err != nil {
			return nil, err
		}
		return string(encoded), nil
	case GroupKindNumber:
		return strconv.FormatFloat(finiteOrZero(g.number), 'f', -1, 64), nil
	case GroupKindText:
		return g.text, nil
	default:
		return "[]", nil
	}
}

// Scan implements sql.Scanner.
func (g *GroupCollections) Scan(src any) error {
	switch typed := src.(type) {
	case nil:
		*g = GroupCollections{}
	case string:
		*g = ParseGroupText(typed)
	case []byte:
		*g = ParseGroupText(string(typed))
	case int64:
		*g = GroupsFromNumber(float64(typed))
	case float64:
		*g = GroupsFromNumber(typed)
	default:
		return fmt.Errorf("collections: cannot scan %T into group collections", src)
	}
	return nil
}

func entriesFromList(list []any) []GroupEntry {
	entries := make([]GroupEntry, 0, len(list))
	for _, element := range list {
		entry := GroupEntry{}
		if object, ok := element.(map[string]any); ok {
			entry.SandwichCount = coerceNumber(object["sandwichCount"])
			if name, ok := object["groupName"].(string); ok {
				entry.GroupName = name
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

func coerceNumber(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return finiteOrZero(typed)
	case float32:
		return finiteOrZero(float64(typed))
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	case int32:
		return float64(typed)
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return 0
		}
		return finiteOrZero(parsed)
	case string:
		return coerceText(typed)
	default:
		return 0
	}
}

func coerceText(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0
	}
	return finiteOrZero(parsed)
}

func finiteOrZero(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

func clampCount(value float64) int {
	value = finiteOrZero(value)
	if value <= 0 {
		return 0
	}
	if value >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(value)
}
