// Package catalog resolves catalog items from a remote catalog service.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ddjsphere/craftsmen-marketplace/internal/domain"
	apperrors "github.com/ddjsphere/craftsmen-marketplace/pkg/errors"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httpclient"
)

const serviceName = "catalog"

type itemResponse struct {
	Item *domain.CatalogItem `json:"item"`
}

// Client implements repository.CatalogRepository over HTTP. Requests go
// through d, normally a circuit breaker wrapping a retrying client.
type Client struct {
	baseURL string
	doer    httpclient.Doer
}

// NewClient creates a catalog client for baseURL, e.g. "http://catalog:8080".
func NewClient(baseURL string, d httpclient.Doer) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), doer: d}
}

// GetItem fetches GET {baseURL}/items/{itemID}.
func (c *Client) GetItem(ctx context.Context, itemID string) (*domain.CatalogItem, error) {
	endpoint := c.baseURL + "/items/" + url.PathEscape(itemID)

	var resp itemResponse
	if err := httpclient.GetJSON(ctx, c.doer, endpoint, serviceName, &resp); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("item", itemID)
		}
		return nil, apperrors.AsUpstream(err)
	}
	if resp.Item == nil || resp.Item.ID == "" {
		return nil, apperrors.Upstream(fmt.Errorf("catalog returned no item for %s", itemID))
	}
	return resp.Item, nil
}
