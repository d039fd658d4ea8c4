package announcers

import (
	"context"
	"errors"
	"fmt"
)

// Fanout dispatches events to all configured announcers.
type Fanout struct {
	announcers []Announcer
}

// NewFanout builds a dispatcher that fans out events across announcers.
func NewFanout(anns []Announcer) *Fanout {
	cp := make([]Announcer, 0, len(anns))
	for _, a := range anns {
		if a == nil {
			continue
		}
		cp = append(cp, a)
	}
	return &Fanout{announcers: cp}
}

// Announce forwards the event to every registered announcer.
// It returns the number of announcers that successfully handled the event.
func (f *Fanout) Announce(ctx context.Context, evt Event) (int, error) {
	if f == nil || len(f.announcers) == 0 {
		return 0, nil
	}

	var errs []error
	successful := 0
	for _, a := range f.announcers {
		if err := a.Announce(ctx, evt); err != nil {
			errs = append(errs, fmt.Errorf("%s announcer[%s]: %w", a.Type(), a.ID(), err))
		} else {
			successful++
		}
	}
	return successful, errors.Join(errs...)
}

// Size returns the number of active announcers.
func (f *Fanout) Size() int {
	if f == nil {
		return 0
	}
	return len(f.announcers)
}
