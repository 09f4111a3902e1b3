package observable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/turbot/edgar-log-pipeline/events"
	"github.com/turbot/go-kit/helpers"
)

// Base fans pipeline events out to every registered observer
type Base struct {
	mut       sync.RWMutex
	observers []Observer
}

func (b *Base) AddObserver(o Observer) error {
	if helpers.IsNil(o) {
		return errors.New("observer must not be nil")
	}
	b.mut.Lock()
	b.observers = append(b.observers, o)
	count := len(b.observers)
	b.mut.Unlock()

	slog.Debug("observer added", "observers", count)
	return nil
}

// NotifyObservers delivers the event to all observers, even if some of them fail
func (b *Base) NotifyObservers(ctx context.Context, e events.Event) error {
	b.mut.RLock()
	observers := make([]Observer, len(b.observers))
	copy(observers, b.observers)
	b.mut.RUnlock()

	var errs []error
	for _, o := range observers {
		if err := o.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("notifying %T: %w", e, errors.Join(errs...))
}
