// Package resource defines the inventory model for Sweep.
package resource

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
)

// Region is a provider region code (e.g. "us-east-1").
type Region string

// Marker values for attributes that could not be populated.
const (
	NotAvailable = "N/A"     // optional field absent on the provider object
	Unknown      = "unknown" // enrichment lookup failed
)

// ServiceKind is the closed set of service families Sweep inventories.
type ServiceKind uint8

const (
	Compute ServiceKind = iota + 1
	ObjectStorage
	Function
	Database
	Network
)

var kindNames = map[ServiceKind][2]string{
	Compute:       {"Compute", "EC2"},
	ObjectStorage: {"ObjectStorage", "S3"},
	Function:      {"Function", "Lambda"},
	Database:      {"Database", "RDS"},
	Network:       {"Network", "VPC"},
}

// AllKinds returns every ServiceKind in declaration order.
func AllKinds() []ServiceKind {
	return []ServiceKind{Compute, ObjectStorage, Function, Database, Network}
}

// Valid reports whether k is one of the declared kinds.
func (k ServiceKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// String returns the enum name ("Compute").
func (k ServiceKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n[0]
	}
	return fmt.Sprintf("ServiceKind(%d)", uint8(k))
}

// Label returns the display name used in output documents ("EC2").
func (k ServiceKind) Label() string {
	if n, ok := kindNames[k]; ok {
		return n[1]
	}
	return k.String()
}

// ParseKind accepts either the enum name or the display label, case-insensitively.
func ParseKind(s string) (ServiceKind, error) {
	for _, k := range AllKinds() {
		n := kindNames[k]
		if strings.EqualFold(s, n[0]) || strings.EqualFold(s, n[1]) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown service kind %q", s)
}

// MarshalText encodes the display label so maps keyed by kind read {"EC2": [...]}.
func (k ServiceKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid service kind %d", uint8(k))
	}
	return []byte(k.Label()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ServiceKind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Record is one discovered resource: a primary identifier plus a flat
// attribute map of string, integer, float or boolean values.
type Record struct {
	ID    string
	Attrs map[string]any
}

// NewRecord creates a record with an empty attribute map.
func NewRecord(id string) Record {
	return Record{ID: id, Attrs: make(map[string]any)}
}

// Set stores an attribute. Empty strings are replaced by NotAvailable so
// optional fields are never silently dropped.
func (r Record) Set(key string, value any) Record {
	if s, ok := value.(string); ok && s == "" {
		value = NotAvailable
	}
	r.Attrs[key] = value
	return r
}

// Str returns an attribute formatted as a string, or "" when missing.
func (r Record) Str(key string) string {
	v, ok := r.Attrs[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(v)
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Attrs: maps.Clone(r.Attrs)}
}

// fingerprint is an order-independent, type-tolerant representation used
// for equality across JSON round trips (int64 128 and float64 128 compare equal).
func (r Record) fingerprint() string {
	keys := slices.Sorted(maps.Keys(r.Attrs))
	var b strings.Builder
	b.WriteString(r.ID)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%v", k, r.Attrs[k])
	}
	return b.String()
}

// MarshalJSON flattens the record into {"id": ..., attr: value, ...}.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.flat())
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	id, _ := m["id"].(string)
	delete(m, "id")
	r.ID = id
	r.Attrs = m
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (r Record) MarshalYAML() (any, error) {
	return r.flat(), nil
}

func (r Record) flat() map[string]any {
	m := make(map[string]any, len(r.Attrs)+1)
	maps.Copy(m, r.Attrs)
	m["id"] = r.ID
	return m
}

// Aggregate is the scan output keyed by region, then service kind.
// Only non-empty slots are ever present.
type Aggregate map[Region]map[ServiceKind][]Record

// Add appends records to a slot, creating it on demand. Empty input is a no-op.
func (a Aggregate) Add(region Region, kind ServiceKind, records []Record) {
	if len(records) == 0 {
		return
	}
	services, ok := a[region]
	if !ok {
		services = make(map[ServiceKind][]Record)
		a[region] = services
	}
	services[kind] = append(services[kind], records...)
}

// Get returns the records in a slot, or nil.
func (a Aggregate) Get(region Region, kind ServiceKind) []Record {
	return a[region][kind]
}

// Regions returns the populated regions, sorted.
func (a Aggregate) Regions() []Region {
	regions := make([]Region, 0, len(a))
	for r := range a {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool { return regions[i] < regions[j] })
	return regions
}

// Kinds returns the populated kinds in a region, in declaration order.
func (a Aggregate) Kinds(region Region) []ServiceKind {
	var kinds []ServiceKind
	for _, k := range AllKinds() {
		if _, ok := a[region][k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Count returns the total number of records.
func (a Aggregate) Count() int {
	n := 0
	for _, services := range a {
		for _, records := range services {
			n += len(records)
		}
	}
	return n
}

// Clone returns a deep copy.
func (a Aggregate) Clone() Aggregate {
	out := make(Aggregate, len(a))
	for region, services := range a {
		for kind, records := range services {
			cloned := make([]Record, len(records))
			for i, r := range records {
				cloned[i] = r.Clone()
			}
			out.Add(region, kind, cloned)
		}
	}
	return out
}

// Equal compares two aggregates ignoring record order within a slot.
func (a Aggregate) Equal(b Aggregate) bool {
	if len(a) != len(b) {
		return false
	}
	for region, services := range a {
		other, ok := b[region]
		if !ok || len(other) != len(services) {
			return false
		}
		for kind, records := range services {
			if !sameRecords(records, other[kind]) {
				return false
			}
		}
	}
	return true
}

func sameRecords(x, y []Record) bool {
	if len(x) != len(y) {
		return false
	}
	fx := make([]string, len(x))
	fy := make([]string, len(y))
	for i := range x {
		fx[i] = x[i].fingerprint()
		fy[i] = y[i].fingerprint()
	}
	slices.Sort(fx)
	slices.Sort(fy)
	return slices.Equal(fx, fy)
}
