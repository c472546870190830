package views

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"store_dashboard/internal/dashboard"
)

var (
	ErrStoreNotFound  = errors.New("store not found")
	ErrAmbiguousStore = errors.New("store name is ambiguous")
)

// StoreSelector picks a store out of a loaded list by id, 1-based position
// or name.
type StoreSelector struct {
	stores []dashboard.Store
}

func NewStoreSelector(stores []dashboard.Store) StoreSelector {
	return StoreSelector{stores: stores}
}

// Resolve tries, in order: exact id, list position, case-insensitive
// name, then a unique case-insensitive name fragment.
func (s StoreSelector) Resolve(token string) (dashboard.Store, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return dashboard.Store{}, ErrStoreNotFound
	}

	for _, store := range s.stores {
		if store.ID == token {
			return store, nil
		}
	}

	if idx, err := strconv.Atoi(token); err == nil {
		if idx >= 1 && idx <= len(s.stores) {
			return s.stores[idx-1], nil
		}
	}

	for _, store := range s.stores {
		if strings.EqualFold(store.Name, token) {
			return store, nil
		}
	}

	needle := strings.ToLower(token)
	var matches []dashboard.Store
	for _, store := range s.stores {
		if strings.Contains(strings.ToLower(store.Name), needle) {
			matches = append(matches, store)
		}
	}
	switch len(matches) {
	case 0:
		return dashboard.Store{}, fmt.Errorf("%w: %q", ErrStoreNotFound, token)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Name)
		}
		return dashboard.Store{}, fmt.Errorf("%w: %q matches %s", ErrAmbiguousStore, token, strings.Join(names, ", "))
	}
}

// Render lists the choices with the selected store marked.
func (s StoreSelector) Render(w io.Writer, selectedID string) error {
	if len(s.stores) == 0 {
		_, err := fmt.Fprintln(w, "No stores available")
		return err
	}
	for i, store := range s.stores {
		mark := " "
		if store.ID == selectedID {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %d) %s (%s)\n", mark, i+1, orDash(store.Name), store.ID); err != nil {
			return err
		}
	}
	return nil
}
