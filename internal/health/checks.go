package health

import (
	"context"
	"fmt"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/hellofresh/health-go/v5/checks/postgres"
	healthRedis "github.com/hellofresh/health-go/v5/checks/redis"

	"github.com/urbankart/storefront/internal/config"
	"github.com/urbankart/storefront/pkg/razorpay"
)

func NewHealthHandler(cfg *config.Config, gateway razorpay.Client) (*health.Health, error) {

	h, err := health.New(
		health.WithComponent(health.Component{

			Name:    "storefront",
			Version: "1.0.0",
		}),
		health.WithSystemInfo(),
		health.WithChecks(
			health.Config{
				Name:      "database",
				Timeout:   3 * time.Second,
				SkipOnErr: false,
				Check: postgres.New(postgres.Config{
					DSN: cfg.Database.GetDSN(),
				}),
			},
			health.Config{
				Name:      "redis",
				Timeout:   2 * time.Second,
				SkipOnErr: false,
				Check: healthRedis.New(
					healthRedis.Config{
						DSN: cfg.RedisConnect.GetDSN(),
					},
				),
			},
			health.Config{
				Name:    "razorpay",
				Timeout: 5 * time.Second,
				// The gateway being down should not fail the whole probe;
				// COD checkout keeps working without it.
				SkipOnErr: true,
				Check: func(ctx context.Context) error {
					if gateway == nil {
						return fmt.Errorf("razorpay client is not initialized")
					}
					return nil
				},
			},
		),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}
