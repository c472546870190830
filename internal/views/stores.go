package views

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"store_dashboard/internal/dashboard"
)

type StoreLister interface {
	GetStores(ctx context.Context) ([]dashboard.Store, error)
}

// StoreList is the table of all stores with the selected one marked.
type StoreList struct {
	*Component[[]dashboard.Store]

	mu         sync.Mutex
	selectedID string
}

func NewStoreList(api StoreLister) *StoreList {
	return &StoreList{
		Component: newComponent("Failed to load stores", api.GetStores),
	}
}

func (l *StoreList) SetSelected(storeID string) {
	l.mu.Lock()
	l.selectedID = storeID
	l.mu.Unlock()
}

func (l *StoreList) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedID
}

func (l *StoreList) Render(w io.Writer) error {
	selected := l.Selected()
	return renderState(w, l.State(), func(w io.Writer, stores []dashboard.Store) error {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "\t#\tName\tPlatform\tStatus\tCity")
		for i, s := range stores {
			mark := ""
			if selected != "" && s.ID == selected {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", mark, i+1, orDash(s.Name), orDash(s.Platform), orDash(s.Status), orDash(s.City()))
		}
		return tw.Flush()
	})
}
