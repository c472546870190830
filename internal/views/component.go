package views

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrSuperseded is returned by Load when a newer Load started before this
// one finished; its result was discarded.
var ErrSuperseded = errors.New("load superseded by a newer one")

// State is what a view renders from: a loading indicator, an error
// message, or the data.
type State[T any] struct {
	Loading bool   `json:"loading"`
	Err     string `json:"error,omitempty"`
	Data    T      `json:"data"`
}

// Component runs one fetch per Load and keeps the resulting state. A fetch
// only writes state if it belongs to the latest Load and its context is
// still alive.
type Component[T any] struct {
	fetch  func(ctx context.Context) (T, error)
	errMsg string

	mu    sync.Mutex
	gen   uint64
	state State[T]
}

func newComponent[T any](errMsg string, fetch func(ctx context.Context) (T, error)) *Component[T] {
	return &Component[T]{
		fetch:  fetch,
		errMsg: errMsg,
		state:  State[T]{Loading: true},
	}
}

func (c *Component[T]) Load(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state.Loading = true
	c.state.Err = ""
	c.mu.Unlock()

	data, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if gen != c.gen {
		return ErrSuperseded
	}

	c.state.Loading = false
	if err != nil {
		c.state.Err = c.errMsg
		return fmt.Errorf("%s: %w", c.errMsg, err)
	}
	c.state.Data = data
	return nil
}

func (c *Component[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func renderState[T any](w io.Writer, st State[T], content func(io.Writer, T) error) error {
	switch {
	case st.Loading:
		_, err := fmt.Fprintln(w, "Loading...")
		return err
	case st.Err != "":
		_, err := fmt.Fprintf(w, "Error: %s\n", st.Err)
		return err
	default:
		return content(w, st.Data)
	}
}
