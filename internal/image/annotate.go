package image

import (
	"fmt"
	"sort"
	"strings"
)

// Annotation is the metadata recorded at one address.
type Annotation struct {
	Addr    uint64 `json:"addr" yaml:"addr"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// SetName assigns a name to va, replacing any previous one. A function
// starting at va takes the same name.
func (im *Image) SetName(va uint64, name string) error {
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("invalid name %q at %#x", name, va)
	}
	if _, ok := im.section(va); !ok {
		return fmt.Errorf("name %q at %#x: %w", name, va, ErrUnmapped)
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.names[va] = name
	i := sort.Search(len(im.funcs), func(i int) bool { return im.funcs[i].Start >= va })
	if i < len(im.funcs) && im.funcs[i].Start == va {
		im.funcs[i].Name = name
	}
	return nil
}

// SetComment attaches a comment to va, replacing any previous one.
func (im *Image) SetComment(va uint64, comment string) error {
	if _, ok := im.section(va); !ok {
		return fmt.Errorf("comment at %#x: %w", va, ErrUnmapped)
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.comments[va] = comment
	return nil
}

// SetType records a C type for the data at va.
func (im *Image) SetType(va uint64, typ string) error {
	if _, ok := im.section(va); !ok {
		return fmt.Errorf("type at %#x: %w", va, ErrUnmapped)
	}
	im.mu.Lock()
	defer im.mu.Unlock()
	im.types[va] = typ
	return nil
}

// Name returns the name recorded at va.
func (im *Image) Name(va uint64) (string, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	name, ok := im.names[va]
	return name, ok
}

// Comment returns the comment recorded at va.
func (im *Image) Comment(va uint64) (string, bool) {
	im.mu.RLock()
	defer im.mu.RUnlock()
	c, ok := im.comments[va]
	return c, ok
}

// Annotations returns all recorded metadata sorted by address.
func (im *Image) Annotations() []Annotation {
	im.mu.RLock()
	defer im.mu.RUnlock()

	byAddr := make(map[uint64]*Annotation)
	get := func(va uint64) *Annotation {
		a, ok := byAddr[va]
		if !ok {
			a = &Annotation{Addr: va}
			byAddr[va] = a
		}
		return a
	}
	for va, n := range im.names {
		get(va).Name = n
	}
	for va, t := range im.types {
		get(va).Type = t
	}
	for va, c := range im.comments {
		get(va).Comment = c
	}

	out := make([]Annotation, 0, len(byAddr))
	for _, a := range byAddr {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}
