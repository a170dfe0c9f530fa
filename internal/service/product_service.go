package service

import (
	"context"
	"fmt"

	"storefront/internal/model"
	"storefront/internal/transform"

	"github.com/rs/zerolog"
)

// productService implements ProductService.
type productService struct {
	catalog     Catalog
	transformer *transform.Transformer
	logger      zerolog.Logger
}

// NewProductService creates a new product service.
func NewProductService(catalog Catalog, transformer *transform.Transformer, logger zerolog.Logger) ProductService {
	return &productService{
		catalog:     catalog,
		transformer: transformer,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// GetAll retrieves products with pagination.
func (s *productService) GetAll(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	raw, err := s.catalog.GetProducts(ctx, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("failed to get products")
		return nil, fmt.Errorf("failed to get products: %w", err)
	}

	products := make([]model.Product, 0, len(raw))
	for _, p := range raw {
		products = append(products, s.transformer.Product(p))
	}

	s.logger.Debug().
		Int("count", len(products)).
		Int("limit", limit).
		Int("offset", offset).
		Msg("retrieved products")

	return products, nil
}

// GetByID retrieves a single product by ID.
func (s *productService) GetByID(ctx context.Context, id string) (*model.Product, error) {
	if id == "" {
		s.logger.Warn().Msg("product ID is empty")
		return nil, model.ErrProductNotFound
	}

	raw, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product by ID")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if raw == nil {
		s.logger.Debug().Str("product_id", id).Msg("product not found")
		return nil, model.ErrProductNotFound
	}

	product := s.transformer.Product(*raw)
	return &product, nil
}
