package room

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Catalog holds the statically configured rooms in file order.
type Catalog struct {
	rooms []Room
}

// LoadCatalog reads a rooms file ({"rooms": [...]}) in any format viper
// understands, normalizes every room and validates it.
func LoadCatalog(path string, allowedDurations []int) (*Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read rooms file %s: %w", path, err)
	}

	var rooms []Room
	if err := v.UnmarshalKey("rooms", &rooms); err != nil {
		return nil, fmt.Errorf("failed to decode rooms: %w", err)
	}
	return NewCatalog(rooms, allowedDurations)
}

// NewCatalog validates rooms that were built in code.
func NewCatalog(rooms []Room, allowedDurations []int) (*Catalog, error) {
	if len(rooms) == 0 {
		return nil, fmt.Errorf("%w: no rooms configured", ErrInvalidRoom)
	}
	out := make([]Room, len(rooms))
	for i, r := range rooms {
		r.Normalize()
		if err := r.Validate(allowedDurations); err != nil {
			return nil, fmt.Errorf("room %d: %w", i, err)
		}
		out[i] = r
	}
	return &Catalog{rooms: out}, nil
}

// List returns a copy of all rooms.
func (c *Catalog) List() []Room {
	out := make([]Room, len(c.rooms))
	copy(out, c.rooms)
	return out
}

func (c *Catalog) Len() int { return len(c.rooms) }

func (c *Catalog) ByIndex(i int) (Room, error) {
	if i < 0 || i >= len(c.rooms) {
		return Room{}, fmt.Errorf("%w: index %d", ErrRoomNotFound, i)
	}
	return c.rooms[i], nil
}

func (c *Catalog) ByName(name string) (Room, error) {
	for _, r := range c.rooms {
		if strings.EqualFold(r.Name, name) {
			return r, nil
		}
	}
	return Room{}, fmt.Errorf("%w: %q", ErrRoomNotFound, name)
}
