// Package metainfo holds extracted metadata as ordered groups of key/value items.
package metainfo

import (
	"fmt"
	"strconv"
	"time"
)

// Group names shared by the extractors.
const (
	GroupGeneral   = "General"
	GroupTechnical = "Technical"
	GroupComment   = "Comment"
	GroupCamera    = "Camera"
	GroupDocument  = "Document"
	GroupThumbnail = "Thumbnail"
	GroupFile      = "File"
)

// Size is a width by height pair.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Item is one extracted field.
type Item struct {
	Key   string
	Value interface{}
}

// Text renders the value for display.
func (it Item) Text() string {
	return FormatValue(it.Value)
}

// FormatValue renders an item value for display.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "Yes"
		}
		return "No"
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Group is an ordered list of items. Keys may repeat.
type Group struct {
	Name  string
	Items []Item
}

// Append adds an item to the group.
func (g *Group) Append(key string, value interface{}) {
	g.Items = append(g.Items, Item{Key: key, Value: value})
}

// Lookup returns the first value stored under key.
func (g *Group) Lookup(key string) (interface{}, bool) {
	for _, it := range g.Items {
		if it.Key == key {
			return it.Value, true
		}
	}
	return nil, false
}

// Info is the metadata extracted from one file.
type Info struct {
	Format   string
	MimeType string
	Groups   []*Group
}

// New returns an empty Info for a format.
func New(format, mimeType string) *Info {
	return &Info{Format: format, MimeType: mimeType}
}

// Group returns the named group, creating it at the end if needed.
func (i *Info) Group(name string) *Group {
	for _, g := range i.Groups {
		if g.Name == name {
			return g
		}
	}
	g := &Group{Name: name}
	i.Groups = append(i.Groups, g)
	return g
}

// Lookup returns the first value stored under group and key.
func (i *Info) Lookup(group, key string) (interface{}, bool) {
	for _, g := range i.Groups {
		if g.Name == group {
			return g.Lookup(key)
		}
	}
	return nil, false
}

// Len returns the number of items across all groups.
func (i *Info) Len() int {
	n := 0
	for _, g := range i.Groups {
		n += len(g.Items)
	}
	return n
}

// Filter returns a copy holding only the named groups. With no names it returns i.
func (i *Info) Filter(groups ...string) *Info {
	if len(groups) == 0 {
		return i
	}
	out := New(i.Format, i.MimeType)
	for _, g := range i.Groups {
		for _, name := range groups {
			if g.Name == name {
				out.Groups = append(out.Groups, g)
				break
			}
		}
	}
	return out
}

// Prune drops groups that ended up without items.
func (i *Info) Prune() {
	kept := i.Groups[:0]
	for _, g := range i.Groups {
		if len(g.Items) > 0 {
			kept = append(kept, g)
		}
	}
	i.Groups = kept
}

// Clone returns a copy that shares no groups or item slices with i.
func (i *Info) Clone() *Info {
	out := New(i.Format, i.MimeType)
	out.Groups = make([]*Group, len(i.Groups))
	for n, g := range i.Groups {
		out.Groups[n] = &Group{Name: g.Name, Items: append([]Item(nil), g.Items...)}
	}
	return out
}
