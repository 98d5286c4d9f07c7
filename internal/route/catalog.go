package route

import (
	"fmt"
	"math/rand/v2"
)

// Catalog is a fixed, read-only set of routes. It is safe for concurrent use.
type Catalog struct {
	routes []*Route
	byID   map[string]*Route
}

func NewCatalog(routes ...*Route) (*Catalog, error) {
	c := &Catalog{
		routes: make([]*Route, 0, len(routes)),
		byID:   make(map[string]*Route, len(routes)),
	}
	for _, r := range routes {
		if r == nil {
			continue
		}
		if _, dup := c.byID[r.ID()]; dup {
			return nil, fmt.Errorf("%w: duplicate route id %q", ErrInvalid, r.ID())
		}
		c.byID[r.ID()] = r
		c.routes = append(c.routes, r)
	}
	return c, nil
}

// FindAll returns the routes in catalog order.
func (c *Catalog) FindAll() []*Route {
	out := make([]*Route, len(c.routes))
	copy(out, c.routes)
	return out
}

func (c *Catalog) FindByID(id string) (*Route, error) {
	r, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, nil
}

// Random picks a route uniformly.
func (c *Catalog) Random() (*Route, error) {
	if len(c.routes) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrNotFound)
	}
	return c.routes[rand.IntN(len(c.routes))], nil
}

func (c *Catalog) Count() int { return len(c.routes) }
