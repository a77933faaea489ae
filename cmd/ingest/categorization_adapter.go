package main

import (
	"context"

	"github.com/FACorreiaa/statement-ingest/internal/domain/categorization"
	importservice "github.com/FACorreiaa/statement-ingest/internal/domain/import/service"
)

// categorizationAdapter adapts categorization.Service to import's CategorizationService interface
type categorizationAdapter struct {
	svc *categorization.Service
}

func newCategorizationAdapter(svc *categorization.Service) importservice.CategorizationService {
	return &categorizationAdapter{svc: svc}
}

// CategorizeBatch implements importservice.CategorizationService
func (a *categorizationAdapter) CategorizeBatch(ctx context.Context, descriptions []string) ([]importservice.CategorizationResult, error) {
	results, err := a.svc.CategorizeBatch(ctx, descriptions)
	if err != nil {
		return nil, err
	}

	out := make([]importservice.CategorizationResult, len(descriptions))
	for i, r := range results {
		out[i] = importservice.CategorizationResult{
			CategoryID: r.CategoryID,
			SupplierID: r.SupplierID,
		}
	}
	return out, nil
}
