package notify

import (
	"context"
	"errors"
)

// Fanout delivers every notification to all of its sinks.
type Fanout []Sink

// rank orders permissions from most to least usable.
var rank = map[Permission]int{
	PermissionGranted:     4,
	PermissionDefault:     3,
	PermissionDenied:      2,
	PermissionUnsupported: 1,
	PermissionError:       0,
}

// PermissionState returns the best permission among the sinks.
func (f Fanout) PermissionState() Permission {
	return f.best(Sink.PermissionState)
}

// RequestPermission requests permission from every sink and returns the best result.
func (f Fanout) RequestPermission() Permission {
	return f.best(Sink.RequestPermission)
}

func (f Fanout) best(get func(Sink) Permission) Permission {
	best := PermissionUnsupported
	for _, s := range f {
		if p := get(s); rank[p] > rank[best] {
			best = p
		}
	}
	return best
}

// Show delivers to every granted sink. It reports delivered if any sink
// delivered; errors from individual sinks are joined.
func (f Fanout) Show(ctx context.Context, title, body string, opts Options) (bool, error) {
	delivered := false
	var errs []error
	for _, s := range f {
		if s.PermissionState() != PermissionGranted {
			continue
		}
		ok, err := s.Show(ctx, title, body, opts)
		if err != nil {
			errs = append(errs, err)
		}
		delivered = delivered || ok
	}
	return delivered, errors.Join(errs...)
}
