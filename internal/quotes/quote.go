package quotes

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MsgEmpty is returned when the pool has no quotes.
	MsgEmpty = "Quote file is empty."
	// MsgUnavailable is returned when the pool cannot be read.
	MsgUnavailable = "Could not retrieve a quote."

	DefaultHistory   = 10
	DefaultStatePath = "state.json"
)

var (
	// ErrUnavailable matches every failure to produce a real quote. Next
	// still returns a usable fallback text alongside it.
	ErrUnavailable = errors.New("quotes: unavailable")
	ErrEmpty       = fmt.Errorf("%w: quote file is empty", ErrUnavailable)
)

type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

// String renders the quote as `"text" - author`.
func (q Quote) String() string {
	author := strings.TrimSpace(q.Author)
	if author == "" {
		author = "Unknown"
	}
	return `"` + q.Text + `" - ` + author
}

type Config struct {
	// File is a JSON array of {text, author}. Empty means the built-in list.
	File string
	// StatePath holds recently_shown_indices.
	StatePath string
	// History is how many recent picks are excluded from the next one.
	History int
}
