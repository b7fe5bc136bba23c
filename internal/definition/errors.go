package definition

import (
	"fmt"
	"strings"
)

// ParseError describes one malformed construct in a definition source.
type ParseError struct {
	Line  int
	Block string
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Block != "" {
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Block, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// ParseErrors collects every ParseError of one Parse call. It is returned
// together with the partial Schema built from the well-formed blocks.
type ParseErrors []*ParseError

func (e ParseErrors) Error() string {
	switch len(e) {
	case 0:
		return "no parse errors"
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, pe := range e {
		msgs[i] = pe.Error()
	}
	return fmt.Sprintf("%d parse errors:\n  %s", len(e), strings.Join(msgs, "\n  "))
}
