package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/hamropasal/storefront/internal/logging"
	"github.com/hamropasal/storefront/internal/models"
)

// Indexer mirrors catalog mutations into the search index. Indexing is
// best-effort: failures are logged, the catalog write stands. A nil
// Indexer or nil client is a no-op.
type Indexer struct {
	Client *elasticsearch.Client
	Index  string
}

type productDoc struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	MinPrice    float64 `json:"min_price"`
	Active      bool    `json:"active"`
}

func (ix *Indexer) IndexProduct(ctx context.Context, p *models.Product) {
	if ix == nil || ix.Client == nil {
		return
	}

	doc := productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Active:      p.Active,
	}
	for i, v := range p.Variants {
		if i == 0 || v.Price < doc.MinPrice {
			doc.MinPrice = v.Price
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		logging.FromContext(ctx).Warn("es_index_failed", "product_id", p.ID, "error", err)
		return
	}

	res, err := ix.Client.Index(
		ix.Index,
		&buf,
		ix.Client.Index.WithContext(ctx),
		ix.Client.Index.WithDocumentID(strconv.FormatUint(uint64(p.ID), 10)),
	)
	if err != nil {
		logging.FromContext(ctx).Warn("es_index_failed", "product_id", p.ID, "error", err)
		return
	}
	defer res.Body.Close()
	if res.IsError() {
		logging.FromContext(ctx).Warn("es_index_failed", "product_id", p.ID, "error", fmt.Errorf("status %s", res.Status()))
	}
}

func (ix *Indexer) DeleteProduct(ctx context.Context, productID uint) {
	if ix == nil || ix.Client == nil {
		return
	}

	res, err := ix.Client.Delete(
		ix.Index,
		strconv.FormatUint(uint64(productID), 10),
		ix.Client.Delete.WithContext(ctx),
	)
	if err != nil {
		logging.FromContext(ctx).Warn("es_delete_failed", "product_id", productID, "error", err)
		return
	}
	res.Body.Close()
}
