package protocol

import "maps"

// Tag is the discriminant of an Action. The set of valid tags is declared
// by the application and enforced by Codec.
type Tag string

// Action is a discrete client-originated event.
type Action struct {
	Tag        Tag               `json:"tag"`
	Associated map[string]string `json:"associated"`
}

// NewAction creates an Action with an empty associated payload.
func NewAction(tag Tag) Action {
	return Action{Tag: tag, Associated: map[string]string{}}
}

// With returns a copy of a with name bound to value in the associated payload.
func (a Action) With(name, value string) Action {
	assoc := make(map[string]string, len(a.Associated)+1)
	maps.Copy(assoc, a.Associated)
	assoc[name] = value
	return Action{Tag: a.Tag, Associated: assoc}
}

// Get returns the associated value for name.
func (a Action) Get(name string) (string, bool) {
	v, ok := a.Associated[name]
	return v, ok
}
