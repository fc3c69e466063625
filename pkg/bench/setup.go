package bench

import (
	"context"
	"fmt"

	"github.com/ethpandaops/gatewaybench/pkg/services"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// productPageSize is the catalog page size used when looking for existing
// products. The catalog caps it at 100.
const productPageSize = 100

var setupCategories = []string{
	services.CategoryElectronics,
	services.CategoryBooks,
	services.CategoryClothing,
	services.CategoryFood,
	services.CategoryOther,
}

// SetupResult describes the data seeded for the benchmark.
type SetupResult struct {
	UserID     string   `json:"user_id"`
	Registered bool     `json:"registered"`
	ProductIDs []string `json:"product_ids"`
	OrderIDs   []string `json:"order_ids"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Degraded reports whether any setup step failed.
func (s *SetupResult) Degraded() bool {
	return len(s.Warnings) > 0
}

func (s *SetupResult) warn(log logrus.FieldLogger, err error, msg string) {
	log.WithError(err).Warn(msg)

	s.Warnings = append(s.Warnings, fmt.Sprintf("%s: %v", msg, err))
}

// Setup registers a benchmark user and seeds products and orders. Every
// step that fails is recorded as a warning and the benchmark continues with
// whatever data exists.
func (h *Harness) Setup(ctx context.Context) *SetupResult {
	cfg := h.cfg.Benchmark.Setup
	result := &SetupResult{}
	log := h.log.WithField("step", "setup")

	username := "bench_" + uuid.NewString()[:8]

	reg, err := h.client.RegisterUser(ctx, services.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: cfg.Password,
		FullName: "Benchmark User",
	})

	switch {
	case err == nil:
		result.Registered = true
		result.UserID = reg.Username

		if result.UserID == "" {
			result.UserID = username
		}
	case cfg.FallbackUserID != "":
		result.warn(log, err, "registering user, using fallback user "+cfg.FallbackUserID)
		result.UserID = cfg.FallbackUserID
	default:
		result.warn(log, err, "registering user")
		result.UserID = username
	}

	log = log.WithField("user_id", result.UserID)

	products := h.ensureProducts(ctx, log, cfg.Products, result)
	for _, p := range products {
		result.ProductIDs = append(result.ProductIDs, p.ID)
	}

	h.createOrders(ctx, log, products, result)

	log.WithFields(logrus.Fields{
		"products": len(result.ProductIDs),
		"orders":   len(result.OrderIDs),
		"warnings": len(result.Warnings),
	}).Info("Benchmark data ready")

	return result
}

// ensureProducts returns up to want products, creating any that are
// missing from the catalog.
func (h *Harness) ensureProducts(
	ctx context.Context,
	log logrus.FieldLogger,
	want int,
	result *SetupResult,
) []services.Product {
	products := make([]services.Product, 0, want)

	page, err := h.client.ListProducts(ctx, 1, productPageSize)
	if err != nil {
		result.warn(log, err, "listing products")
	} else {
		for _, p := range page.Items {
			if len(products) >= want {
				break
			}

			products = append(products, p)
		}
	}

	for i := len(products); i < want; i++ {
		p, err := h.client.CreateProduct(ctx, services.CreateProductRequest{
			Name:        fmt.Sprintf("Benchmark Product %d", i+1),
			Description: "Seeded by gatewaybench",
			Price:       float64(10 + 5*i),
			Category:    setupCategories[i%len(setupCategories)],
			Stock:       1000,
		})
		if err != nil {
			result.warn(log, err, fmt.Sprintf("creating product %d", i+1))

			continue
		}

		products = append(products, *p)
	}

	return products
}

// createOrders places the configured number of orders, cycling through
// products for their items.
func (h *Harness) createOrders(
	ctx context.Context,
	log logrus.FieldLogger,
	products []services.Product,
	result *SetupResult,
) {
	cfg := h.cfg.Benchmark.Setup

	if cfg.Orders == 0 || cfg.ItemsPerOrder == 0 {
		return
	}

	if len(products) == 0 {
		result.Warnings = append(result.Warnings, "no products available, skipping order creation")
		log.Warn("No products available, skipping order creation")

		return
	}

	next := 0

	for o := 0; o < cfg.Orders; o++ {
		items := make([]services.OrderItem, 0, cfg.ItemsPerOrder)

		for i := 0; i < cfg.ItemsPerOrder; i++ {
			p := products[next%len(products)]
			next++

			items = append(items, services.OrderItem{
				ProductID: p.ID,
				Quantity:  1 + i,
				Price:     p.Price,
				Name:      p.Name,
			})
		}

		order, err := h.client.CreateOrder(ctx, services.CreateOrderRequest{
			UserID: result.UserID,
			Items:  items,
			ShippingAddress: services.ShippingAddress{
				Street:  "1 Benchmark Way",
				City:    "Testville",
				Country: "Benchland",
				Zip:     "00000",
			},
			PaymentMethod: "card",
		})
		if err != nil {
			result.warn(log, err, fmt.Sprintf("creating order %d", o+1))

			continue
		}

		result.OrderIDs = append(result.OrderIDs, order.ID)
	}
}
