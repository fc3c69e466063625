// Package scenario implements the two access patterns compared by the
// benchmark: a REST fan-out that enriches every order item with its own
// catalog call, and a single aggregated GraphQL query.
package scenario

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/metrics"
	"github.com/ethpandaops/gatewaybench/pkg/services"
	"github.com/sirupsen/logrus"
)

// Scenario names.
const (
	NameFanOut     = "rest_fan_out"
	NameAggregated = "graphql_aggregated"
)

// OrdersLimit is the page size used when listing a user's orders.
const OrdersLimit = 100

// ErrScenarioFatal marks a failure that aborted a scenario.
var ErrScenarioFatal = errors.New("scenario aborted")

// FanOutClient is the subset of the services client used by the fan-out
// scenario.
type FanOutClient interface {
	GetUserOrders(ctx context.Context, userID string, limit int) (*services.UserOrders, int64, error)
	GetProduct(ctx context.Context, id string) (*services.Product, int64, error)
}

// AggregatedClient is the subset of the services client used by the
// aggregated scenario.
type AggregatedClient interface {
	QueryUserOrders(ctx context.Context, userID string) ([]services.GraphQLOrder, int64, error)
}

// FanOut lists a user's orders and then fetches the product of every order
// item with a separate call. Product IDs are not deduplicated.
type FanOut struct {
	log    logrus.FieldLogger
	client FanOutClient
	userID string
}

var _ metrics.Plan = (*FanOut)(nil)

// NewFanOut creates the fan-out plan for userID.
func NewFanOut(log logrus.FieldLogger, client FanOutClient, userID string) *FanOut {
	return &FanOut{
		log:    log.WithField("scenario", NameFanOut),
		client: client,
		userID: userID,
	}
}

// Name implements metrics.Plan.
func (f *FanOut) Name() string {
	return NameFanOut
}

// Run implements metrics.Plan. A failed product lookup is skipped: it still
// counts as a request and as a retrieved item, but its bytes are not added.
func (f *FanOut) Run(ctx context.Context, rec *metrics.Recorder) error {
	rec.Request()

	orders, n, err := f.client.GetUserOrders(ctx, f.userID, OrdersLimit)
	if err != nil {
		return fmt.Errorf("%w: listing orders: %w", ErrScenarioFatal, err)
	}

	rec.Received(n)
	rec.Orders(len(orders.Orders))

	for _, order := range orders.Orders {
		for _, item := range order.Items {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %w", ErrScenarioFatal, err)
			}

			rec.Request()
			rec.Items(1)

			_, n, err := f.client.GetProduct(ctx, item.ProductID)
			if err != nil {
				f.log.WithError(err).WithFields(logrus.Fields{
					"order":   order.ID,
					"product": item.ProductID,
				}).Debug("Product lookup failed, skipping")

				continue
			}

			rec.Received(n)
		}
	}

	return nil
}

// Aggregated fetches a user's orders with product details through a single
// GraphQL query.
type Aggregated struct {
	log    logrus.FieldLogger
	client AggregatedClient
	userID string
}

var _ metrics.Plan = (*Aggregated)(nil)

// NewAggregated creates the aggregated plan for userID.
func NewAggregated(log logrus.FieldLogger, client AggregatedClient, userID string) *Aggregated {
	return &Aggregated{
		log:    log.WithField("scenario", NameAggregated),
		client: client,
		userID: userID,
	}
}

// Name implements metrics.Plan.
func (a *Aggregated) Name() string {
	return NameAggregated
}

// Run implements metrics.Plan.
func (a *Aggregated) Run(ctx context.Context, rec *metrics.Recorder) error {
	rec.Request()

	orders, n, err := a.client.QueryUserOrders(ctx, a.userID)
	if err != nil {
		return fmt.Errorf("%w: querying user orders: %w", ErrScenarioFatal, err)
	}

	rec.Received(n)
	rec.Orders(len(orders))

	for _, order := range orders {
		rec.Items(len(order.Items))
	}

	return nil
}
