package transcript

import (
	"context"
	"errors"

	"github.com/xpanvictor/aura/internal/domains/conversation"
)

// Fanout writes to a primary sink and mirrors every call to secondaries under the id
// the primary assigned. Secondary failures are joined into the returned error.
type Fanout struct {
	primary     Sink
	secondaries []Sink
}

func NewFanout(primary Sink, secondaries ...Sink) *Fanout {
	return &Fanout{primary: primary, secondaries: secondaries}
}

func (f *Fanout) CreateSession(ctx context.Context, doc SessionDoc) (string, error) {
	id, err := f.primary.CreateSession(ctx, doc)
	if err != nil {
		return "", err
	}
	doc.ID = id
	var errs []error
	for _, s := range f.secondaries {
		if _, err := s.CreateSession(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return id, errors.Join(errs...)
}

func (f *Fanout) Append(ctx context.Context, id string, entry conversation.LogEntry) error {
	errs := []error{f.primary.Append(ctx, id, entry)}
	for _, s := range f.secondaries {
		errs = append(errs, s.Append(ctx, id, entry))
	}
	return errors.Join(errs...)
}

func (f *Fanout) Finalize(ctx context.Context, id string, sum Summary) error {
	errs := []error{f.primary.Finalize(ctx, id, sum)}
	for _, s := range f.secondaries {
		errs = append(errs, s.Finalize(ctx, id, sum))
	}
	return errors.Join(errs...)
}
