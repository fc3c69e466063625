package bench

import (
	"context"
	"fmt"

	"github.com/avast/retry-go"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// CheckHealth checks every required service, retrying each one. All
// failures are collected before returning ErrServiceUnavailable.
func (h *Harness) CheckHealth(ctx context.Context) error {
	var result *multierror.Error

	for _, name := range h.cfg.Benchmark.RequiredServices {
		log := h.log.WithField("service", name)

		err := retry.Do(
			func() error {
				_, err := h.client.Health(ctx, name)

				return err
			},
			retry.Context(ctx),
			retry.Attempts(h.cfg.Benchmark.Health.Attempts),
			retry.Delay(h.cfg.Benchmark.Health.Delay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				log.WithError(err).WithField("attempt", n+1).Debug("Health check failed, retrying")
			}),
		)
		if err != nil {
			log.WithError(err).Error("Service unhealthy")

			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))

			continue
		}

		log.Debug("Service healthy")
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	}

	h.log.WithFields(logrus.Fields{
		"services": len(h.cfg.Benchmark.RequiredServices),
	}).Info("All required services healthy")

	return nil
}
