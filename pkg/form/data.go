package form

import (
	"net/url"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Data is a flat snapshot of field values keyed by input name.
type Data map[string]string

// Clone returns an independent copy.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Equal reports whether both snapshots hold the same pairs.
func (d Data) Equal(other Data) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Names returns the snapshot keys sorted.
func (d Data) Names() []string {
	names := make([]string, 0, len(d))
	for k := range d {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values converts the snapshot into url.Values.
func (d Data) Values() url.Values {
	out := make(url.Values, len(d))
	for k, v := range d {
		out.Set(k, v)
	}
	return out
}

// Encode renders an application/x-www-form-urlencoded body with keys in
// sorted order.
func (d Data) Encode() string {
	return d.Values().Encode()
}

// Diff lists the names whose values differ between d and base, sorted.
func (d Data) Diff(base Data) []string {
	seen := make(map[string]struct{}, len(d)+len(base))
	var changed []string
	for k, v := range d {
		seen[k] = struct{}{}
		if bv, ok := base[k]; !ok || bv != v {
			changed = append(changed, k)
		}
	}
	for k := range base {
		if _, ok := seen[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

type candidate struct {
	value string
	seq   uint64
}

// Snapshot merges the inputs of every container into one Data value. Names
// rendered in several containers resolve to the most recently edited
// non-empty value; ties fall back to the lexically greatest value so the
// result never depends on document order. Values are NFC normalised.
func Snapshot(containers ...*Container) Data {
	picks := make(map[string]candidate)
	present := make(map[string]struct{})
	for _, c := range containers {
		if c == nil {
			continue
		}
		for _, in := range c.inputs {
			if in.Name == "" {
				continue
			}
			present[in.Name] = struct{}{}
			value, seq := in.submitted()
			value = norm.NFC.String(value)
			if value == "" {
				continue
			}
			cur, ok := picks[in.Name]
			if !ok || better(candidate{value: value, seq: seq}, cur) {
				picks[in.Name] = candidate{value: value, seq: seq}
			}
		}
	}

	out := make(Data, len(present))
	for name := range present {
		out[name] = picks[name].value
	}
	return out
}

func better(a, b candidate) bool {
	if a.seq != b.seq {
		return a.seq > b.seq
	}
	return a.value > b.value
}
