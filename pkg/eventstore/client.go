// Package eventstore persists job, step and usage events in weekly
// Elasticsearch indices and serves the queries the reporter needs.
package eventstore

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"
)

// ClientConfig configures the Elasticsearch connection.
type ClientConfig struct {
	URL                string
	Username           string
	Password           string
	InsecureSkipVerify bool
	MaxRetries         int
}

// NewClient creates an Elasticsearch client. Connectivity is not checked.
func NewClient(cfg ClientConfig) (*es.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("elasticsearch url is required")
	}

	address := cfg.URL
	if !strings.HasPrefix(address, "http://") && !strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}

	clientConfig := es.Config{
		Addresses:  []string{address},
		MaxRetries: cfg.MaxRetries,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // self-signed CI clusters
			},
		},
	}
	if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return client, nil
}
