package database

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"beacon/internal/common/config"
	apperrors "beacon/internal/common/errors"
)

// ElasticsearchClient holds the search cluster connection used by the
// opportunity index.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

// retryBackoff doubles from 100ms and caps at two seconds.
func retryBackoff(attempt int) time.Duration {
	d := 100 * time.Millisecond << (attempt - 1)
	if attempt < 1 || d <= 0 || d > 2*time.Second {
		return 2 * time.Second
	}
	return d
}

// NewElasticsearch builds a client that retries throttled and gateway
// responses. It does not contact the cluster.
func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	if len(cfg.Addresses) == 0 {
		return nil, apperrors.NewConfigInvalidError("database.elasticsearch.addresses is empty")
	}

	esCfg := elasticsearch.Config{
		Addresses:     cfg.Addresses,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  retryBackoff,
		RetryOnStatus: []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout},
	}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(fmt.Sprintf("elasticsearch: %v", err))
	}
	return &ElasticsearchClient{Client: es}, nil
}

// Ping checks the cluster answers within five seconds.
func (c *ElasticsearchClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return apperrors.NewExternalServiceError("elasticsearch", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewExternalServiceError("elasticsearch", fmt.Errorf("ping: %s", res.Status()))
	}
	return nil
}
