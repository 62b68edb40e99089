package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/vtu-gateway/internal/billpay"
	"github.com/nimasrn/vtu-gateway/internal/model"
	xhttp "github.com/nimasrn/vtu-gateway/pkg/http"
)

type CatalogService interface {
	Networks(ctx context.Context) ([]billpay.Network, error)
	CableProviders(ctx context.Context) ([]billpay.Biller, error)
	ElectricityProviders(ctx context.Context) ([]billpay.Biller, error)
	ExamProviders(ctx context.Context) ([]billpay.Biller, error)
	CablePlans(ctx context.Context, cableProvider string) ([]billpay.CablePlan, error)
	Plans(ctx context.Context, svc model.ServiceType) ([]*model.Plan, error)
}

type CatalogHandler struct {
	svc CatalogService
}

func NewCatalogHandler(catalogService CatalogService) *CatalogHandler {
	return &CatalogHandler{
		svc: catalogService,
	}
}

func RegisterCatalogRoutes(e *router.Group, h *CatalogHandler) {
	e.GET("/catalog/networks", h.Networks)
	e.GET("/catalog/cable/providers", h.CableProviders)
	e.GET("/catalog/cable/plans", h.CablePlans)
	e.GET("/catalog/electricity/providers", h.ElectricityProviders)
	e.GET("/catalog/exampin/providers", h.ExamProviders)
	e.GET("/catalog/plans", h.Plans)
}

func (h *CatalogHandler) Networks(ctx *xhttp.RequestCtx) {
	items, err := h.svc.Networks(ctx)
	if err != nil {
		writeCatalogError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *CatalogHandler) CableProviders(ctx *xhttp.RequestCtx) {
	items, err := h.svc.CableProviders(ctx)
	if err != nil {
		writeCatalogError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *CatalogHandler) CablePlans(ctx *xhttp.RequestCtx) {
	cableProvider := query(ctx, "cable_provider")
	if cableProvider == "" {
		writeError(ctx, 400, "cable_provider is required")
		return
	}
	items, err := h.svc.CablePlans(ctx, cableProvider)
	if err != nil {
		writeCatalogError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *CatalogHandler) ElectricityProviders(ctx *xhttp.RequestCtx) {
	items, err := h.svc.ElectricityProviders(ctx)
	if err != nil {
		writeCatalogError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *CatalogHandler) ExamProviders(ctx *xhttp.RequestCtx) {
	items, err := h.svc.ExamProviders(ctx)
	if err != nil {
		writeCatalogError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func (h *CatalogHandler) Plans(ctx *xhttp.RequestCtx) {
	svc := model.ServiceType(query(ctx, "service"))
	if !svc.Valid() {
		writeError(ctx, 400, "unknown service")
		return
	}
	items, err := h.svc.Plans(ctx, svc)
	if err != nil {
		writeCatalogError(ctx, err)
		return
	}
	writeJSON(ctx, 200, items)
}

func writeCatalogError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case err == billpay.ErrNoProvider:
		writeError(ctx, 503, err.Error())
	default:
		writeError(ctx, 502, "inventory lookup failed")
	}
}
