package wordstat

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Defaults for batch pacing and the per-run quota guard.
const (
	DefaultPause    = time.Second
	DefaultMaxBatch = 100
)

// Connector ties a Gateway to the region catalog and drives validated,
// paced batch runs. The catalog is fetched once at construction and never
// refreshed for the connector's lifetime.
type Connector struct {
	gw        Gateway
	validator *Validator
	catalog   []Region
	pause     time.Duration
	maxBatch  int
	sleep     func(time.Duration)
	logger    *zap.Logger
}

// ConnectorOption customizes a Connector.
type ConnectorOption func(*Connector)

// WithPause sets the unconditional delay applied after every batch item.
func WithPause(d time.Duration) ConnectorOption {
	return func(c *Connector) { c.pause = d }
}

// WithMaxBatch sets the per-run item cap.
func WithMaxBatch(n int) ConnectorOption {
	return func(c *Connector) { c.maxBatch = n }
}

// WithLogger sets the connector logger.
func WithLogger(logger *zap.Logger) ConnectorOption {
	return func(c *Connector) { c.logger = logger }
}

// NewConnector builds a Connector, fetching and flattening the region
// tree. A catalog fetch failure is fatal: without the valid-region set no
// request can be validated, so construction fails closed.
func NewConnector(ctx context.Context, gw Gateway, opts ...ConnectorOption) (*Connector, error) {
	c := &Connector{
		gw:       gw,
		pause:    DefaultPause,
		maxBatch: DefaultMaxBatch,
		sleep:    time.Sleep,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	forest, err := gw.RegionsTree(ctx)
	if err != nil {
		return nil, err
	}
	c.catalog = FlattenRegions(forest)
	c.validator = NewValidator(c.catalog)
	c.logger.Info("region catalog loaded", zap.Int("regions", len(c.catalog)))
	return c, nil
}

// Regions returns a copy of the flattened region catalog.
func (c *Connector) Regions() []Region {
	return append([]Region(nil), c.catalog...)
}

// Validator exposes the catalog-backed parameter validator.
func (c *Connector) Validator() *Validator {
	return c.validator
}
