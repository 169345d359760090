package component

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"

	"github.com/slinkity/slinkity/state"
)

// Prop is one named value passed into an island.
type Prop struct {
	ID    string
	Name  string
	Value any
	// ClientNeeded marks the prop for the client prop bundle.
	ClientNeeded bool
}

// BundleEntry is the client-side shape of one prop.
type BundleEntry struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

type propSet struct {
	order []string
	byID  map[string]*Prop
	seq   int
}

// PropStore registers and serializes island props, scoped per input path.
type PropStore struct {
	mu    sync.RWMutex
	paths map[string]*propSet
}

// NewPropStore creates an empty prop store.
func NewPropStore() *PropStore {
	return &PropStore{paths: make(map[string]*propSet)}
}

// AddProp registers name=value under inputPath and returns its id.
//
// Equal name+value pairs share one id. Store objects (state.Observable) are
// identified by the store itself, never by the value they currently hold.
// Values that cannot be hashed (functions, channels) always get a fresh id.
// usedOnClient only ever adds the client mark; it never clears it.
func (s *PropStore) AddProp(inputPath, name string, value any, usedOnClient bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.paths[inputPath]
	if !ok {
		set = &propSet{byID: make(map[string]*Prop)}
		s.paths[inputPath] = set
	}

	id, ok := propID(name, value)
	if !ok {
		set.seq++
		id = "p" + hashString(inputPath+"\x00"+name) + "-" + strconv.Itoa(set.seq)
	}

	if existing, found := set.byID[id]; found {
		existing.Value = value
		existing.ClientNeeded = existing.ClientNeeded || usedOnClient
		return id
	}

	set.byID[id] = &Prop{ID: id, Name: name, Value: value, ClientNeeded: usedOnClient}
	set.order = append(set.order, id)
	return id
}

// MarkClient flags ids under inputPath for the client bundle.
func (s *PropStore) MarkClient(inputPath string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		p, err := s.lookup(inputPath, id)
		if err != nil {
			return err
		}
		p.ClientNeeded = true
	}
	return nil
}

// Get returns a copy of the prop registered under id.
func (s *PropStore) Get(inputPath, id string) (Prop, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.lookup(inputPath, id)
	if err != nil {
		return Prop{}, false
	}
	return *p, true
}

// Len returns the number of props registered for inputPath.
func (s *PropStore) Len(inputPath string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if set, ok := s.paths[inputPath]; ok {
		return len(set.order)
	}
	return 0
}

// Resolve maps ids to a name->value object for server rendering. Store
// objects resolve to their current value.
func (s *PropStore) Resolve(inputPath string, ids []string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(ids))
	for _, id := range ids {
		p, err := s.lookup(inputPath, id)
		if err != nil {
			return nil, err
		}
		out[p.Name] = plainValue(p.Value)
	}
	return out, nil
}

// Clear drops every prop registered for inputPath.
func (s *PropStore) Clear(inputPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.paths, inputPath)
}

// Paths returns the input paths that currently hold props, sorted.
func (s *PropStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ClientBundle serializes every client-needed prop of inputPath. Values are
// serialized only here, so server-only props are never encoded.
func (s *PropStore) ClientBundle(inputPath string) ([]string, map[string]BundleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.paths[inputPath]
	if !ok {
		return nil, map[string]BundleEntry{}, nil
	}

	var ids []string
	entries := make(map[string]BundleEntry)
	for _, id := range set.order {
		p := set.byID[id]
		if !p.ClientNeeded {
			continue
		}
		raw, err := json.Marshal(plainValue(p.Value))
		if err != nil {
			return nil, nil, &Error{
				Code:    ErrorCodeSerialization,
				Message: "prop passed to a client-hydrated island is not serializable",
				File:    inputPath,
				Value:   p.Name,
				Wrapped: err,
			}
		}
		ids = append(ids, id)
		entries[id] = BundleEntry{Name: p.Name, Value: raw}
	}
	return ids, entries, nil
}

// SerializeClientBundle returns the props module source for inputPath:
//
//	export default {"<id>":{"name":"count","value":1}};
//
// The output is HTML-escaped so it is safe to inline in a script element.
func (s *PropStore) SerializeClientBundle(inputPath string) (string, error) {
	ids, entries, err := s.ClientBundle(inputPath)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString("export default {")
	for i, id := range ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(id)
		entry, err := json.Marshal(entries[id])
		if err != nil {
			return "", &Error{Code: ErrorCodeSerialization, Message: "cannot encode prop", File: inputPath, Value: entries[id].Name, Wrapped: err}
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(entry)
	}
	buf.WriteString("};\n")
	return buf.String(), nil
}

func (s *PropStore) lookup(inputPath, id string) (*Prop, error) {
	set, ok := s.paths[inputPath]
	if !ok {
		return nil, internalError(inputPath, id, "no props registered for input path")
	}
	p, ok := set.byID[id]
	if !ok {
		return nil, internalError(inputPath, id, "prop id not found")
	}
	return p, nil
}

// propID derives a deterministic id. ok is false when the value has no
// stable encoding.
func propID(name string, value any) (string, bool) {
	if obs, isStore := value.(state.Observable); isStore {
		return "s" + hashString(name+"\x00"+obs.ID()), true
	}

	d := xxhash.New()
	_, _ = d.WriteString(name)
	_, _ = d.Write([]byte{0})
	if err := json.NewEncoder(d).Encode(value); err != nil {
		return "", false
	}
	return "p" + fmt.Sprintf("%016x", d.Sum64()), true
}

func plainValue(v any) any {
	if obs, ok := v.(state.Observable); ok {
		return obs.GetAny()
	}
	return v
}

func hashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}
