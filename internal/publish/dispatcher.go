package publish

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"contentmachine/internal/logging"
	"contentmachine/internal/metrics"
)

// Record is the outcome of one publication attempt.
type Record struct {
	ID          string    `json:"id"`
	Destination string    `json:"destination"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
	Err         error     `json:"-"`
}

// OK reports whether the attempt succeeded.
func (r Record) OK() bool { return r.Err == nil }

// Dispatcher fans an item out to named publishers.
type Dispatcher struct {
	publishers map[string]Publisher
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
}

// NewDispatcher registers publishers under their names.
func NewDispatcher(logger logrus.FieldLogger, m *metrics.Metrics, publishers ...Publisher) *Dispatcher {
	d := &Dispatcher{publishers: make(map[string]Publisher), metrics: m, logger: logging.OrDiscard(logger)}
	for _, p := range publishers {
		d.Register(p)
	}
	return d
}

// Register adds or replaces a publisher. Nil publishers are ignored.
func (d *Dispatcher) Register(p Publisher) {
	if p == nil {
		return
	}
	d.publishers[p.Name()] = p
}

// Names lists the registered destinations.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.publishers))
	for name := range d.publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Publisher returns the publisher registered under name.
func (d *Dispatcher) Publisher(name string) (Publisher, bool) {
	p, ok := d.publishers[name]
	return p, ok
}

// PublishAll publishes item to every named destination in parallel and returns one
// record per name, in order. A failing destination never affects the others.
func (d *Dispatcher) PublishAll(ctx context.Context, item Item, names ...string) []Record {
	records := make([]Record, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			records[i] = d.publish(ctx, item, name)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// unknownDestination is the metrics label for names no publisher is registered under.
const unknownDestination = "unknown"

// Publish publishes to a single destination.
func (d *Dispatcher) Publish(ctx context.Context, item Item, name string) Record {
	return d.publish(ctx, item, name)
}

func (d *Dispatcher) publish(ctx context.Context, item Item, name string) Record {
	rec := Record{ID: uuid.NewString(), Destination: name, Slug: item.Slug}
	label := name
	p, ok := d.publishers[name]
	if !ok {
		label = unknownDestination
		rec.Err = fmt.Errorf("publish: unknown destination %q", name)
	} else {
		rec.URL, rec.Err = p.Publish(ctx, item)
	}
	rec.At = time.Now().UTC()

	d.metrics.Publication(label, rec.Err)
	entry := d.logger.WithFields(logrus.Fields{"destination": name, "slug": item.Slug, "record": rec.ID})
	if rec.Err != nil {
		rec.Error = rec.Err.Error()
		entry.WithError(rec.Err).Warn("publication failed")
	} else {
		entry.WithField("url", rec.URL).Info("published")
	}
	return rec
}
