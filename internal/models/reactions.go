package models

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

// ParseReactionAction accepts both the imperative and the past-tense spelling
// ("added"/"removed") that the server broadcasts.
func ParseReactionAction(s string) (ReactionAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "added":
		return ReactionAdd, nil
	case "remove", "removed":
		return ReactionRemove, nil
	}
	return "", fmt.Errorf("unknown reaction action %q", s)
}

// ReactionUpdate is a confirmed change to one reactor set.
type ReactionUpdate struct {
	MessageID int64
	Emoji     string
	ReactorID string
	Action    ReactionAction
}

// ReactionCount is the derived size of one emoji's reactor set.
type ReactionCount struct {
	Emoji string `json:"emoji"`
	Count int    `json:"count"`
}

type reactorSet map[string]struct{}

// Reactions maps emoji to the set of reactors. Emoji keep the order in which
// they were first added, which is the order they are displayed in. The zero
// value is empty and ready to use.
type Reactions struct {
	m *orderedmap.OrderedMap[string, reactorSet]
}

func (r *Reactions) init() {
	if r.m == nil {
		r.m = orderedmap.New[string, reactorSet]()
	}
}

// Add records reactor under emoji and reports whether the set changed.
func (r *Reactions) Add(emoji, reactor string) bool {
	r.init()
	set, ok := r.m.Get(emoji)
	if !ok {
		set = make(reactorSet)
		r.m.Set(emoji, set)
	}
	if _, exists := set[reactor]; exists {
		return false
	}
	set[reactor] = struct{}{}
	return true
}

// Remove drops reactor from emoji and reports whether the set changed. An
// emoji whose set becomes empty is removed entirely.
func (r *Reactions) Remove(emoji, reactor string) bool {
	if r.m == nil {
		return false
	}
	set, ok := r.m.Get(emoji)
	if !ok {
		return false
	}
	if _, exists := set[reactor]; !exists {
		return false
	}
	delete(set, reactor)
	if len(set) == 0 {
		r.m.Delete(emoji)
	}
	return true
}

func (r Reactions) Has(emoji, reactor string) bool {
	if r.m == nil {
		return false
	}
	set, ok := r.m.Get(emoji)
	if !ok {
		return false
	}
	_, exists := set[reactor]
	return exists
}

// Len is the number of distinct emoji.
func (r Reactions) Len() int {
	if r.m == nil {
		return 0
	}
	return r.m.Len()
}

// Emojis lists the emoji in display order.
func (r Reactions) Emojis() []string {
	if r.m == nil {
		return nil
	}
	out := make([]string, 0, r.m.Len())
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Reactors returns the reactors for emoji, sorted.
func (r Reactions) Reactors(emoji string) []string {
	if r.m == nil {
		return nil
	}
	set, ok := r.m.Get(emoji)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Counts derives one ReactionCount per emoji, in display order.
func (r Reactions) Counts() []ReactionCount {
	if r.m == nil {
		return []ReactionCount{}
	}
	out := make([]ReactionCount, 0, r.m.Len())
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, ReactionCount{Emoji: pair.Key, Count: len(pair.Value)})
	}
	return out
}

func (r Reactions) Clone() Reactions {
	if r.m == nil {
		return Reactions{}
	}
	c := Reactions{m: orderedmap.New[string, reactorSet](r.m.Len())}
	for pair := r.m.Oldest(); pair != nil; pair = pair.Next() {
		set := make(reactorSet, len(pair.Value))
		for id := range pair.Value {
			set[id] = struct{}{}
		}
		c.m.Set(pair.Key, set)
	}
	return c
}

// MarshalJSON writes {"emoji": ["reactor", ...]} keeping emoji order.
func (r Reactions) MarshalJSON() ([]byte, error) {
	out := orderedmap.New[string, []string](r.Len())
	for _, emoji := range r.Emojis() {
		out.Set(emoji, r.Reactors(emoji))
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the list form used on the wire. Duplicate reactors in a
// list collapse into one entry and empty lists are skipped.
func (r *Reactions) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Reactions{}
		return nil
	}
	raw := orderedmap.New[string, []string]()
	if err := json.Unmarshal(data, raw); err != nil {
		return err
	}
	parsed := Reactions{}
	for pair := raw.Oldest(); pair != nil; pair = pair.Next() {
		for _, reactor := range pair.Value {
			parsed.Add(pair.Key, reactor)
		}
	}
	*r = parsed
	return nil
}
