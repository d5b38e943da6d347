// Package navigation abstracts the URL/history surface the session layer
// depends on. The core never touches ambient location state; it is handed a
// Navigator capability instead.
package navigation

import "net/url"

// Location is a snapshot of the current address: path plus parsed query and
// fragment parameters. Recovery tickets may arrive in either carrier.
type Location struct {
	Path     string
	Query    url.Values
	Fragment url.Values
}

// Param returns the first non-empty value for name, preferring the query
// string over the fragment when both carry it.
func (l Location) Param(name string) string {
	if v := l.Query.Get(name); v != "" {
		return v
	}
	return l.Fragment.Get(name)
}

// ParseLocation parses a raw URL (absolute or path-relative) into a Location.
// The fragment is parsed as form-encoded parameters; a fragment that is not
// in key=value form yields an empty set.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, err
	}

	frag, err := url.ParseQuery(u.Fragment)
	if err != nil {
		frag = url.Values{}
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	return Location{Path: path, Query: u.Query(), Fragment: frag}, nil
}

// String renders the location back to a relative URL.
func (l Location) String() string {
	u := url.URL{Path: l.Path, RawQuery: l.Query.Encode(), Fragment: l.Fragment.Encode()}
	return u.String()
}

// Navigator is the injected history capability.
//
// Replace rewrites the current location in place without notifying popstate
// handlers; Push appends a new entry. OnPopState registers a handler invoked
// on back/forward traversal and returns a function that unregisters it.
type Navigator interface {
	Current() Location
	Replace(loc Location)
	Push(loc Location)
	OnPopState(handler func(Location)) (unsubscribe func())
}
