package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/vtu-gateway/internal/model"
	"github.com/nimasrn/vtu-gateway/internal/services"
	xhttp "github.com/nimasrn/vtu-gateway/pkg/http"
)

type AccountService interface {
	GetWallet(ctx context.Context, userID int64) (*model.Wallet, error)
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
}

type ProviderDirectory interface {
	Providers() []*model.Provider
}

type AccountHandler struct {
	svc       AccountService
	providers ProviderDirectory
}

func NewAccountHandler(accountService AccountService, providers ProviderDirectory) *AccountHandler {
	return &AccountHandler{
		svc:       accountService,
		providers: providers,
	}
}

func RegisterAccountRoutes(e *router.Group, h *AccountHandler) {
	e.GET("/wallet", h.GetWallet)
	e.GET("/transactions", h.ListTransactions)
	e.GET("/providers", h.ListProviders)
}

type listTransactionsResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

func (h *AccountHandler) GetWallet(ctx *xhttp.RequestCtx) {
	userID, err := queryInt64(ctx, "user_id")
	if err != nil || userID == 0 {
		writeError(ctx, 400, "user_id is required")
		return
	}
	wallet, err := h.svc.GetWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrWalletNotFound) {
			writeError(ctx, 404, err.Error())
			return
		}
		writeError(ctx, 500, "internal error")
		return
	}
	writeJSON(ctx, 200, wallet)
}

func (h *AccountHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	var f model.TransactionFilter

	if v := query(ctx, "user_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "service"); v != "" {
		svc := model.ServiceType(v)
		if !svc.Valid() {
			writeError(ctx, 400, "unknown service")
			return
		}
		f.Service = &svc
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.TransactionStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "reference"); v != "" {
		f.Reference = &v
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.ListTransactions(ctx, f)
	if err != nil {
		writeError(ctx, 500, "internal error")
		return
	}
	writeJSON(ctx, 200, listTransactionsResponse{Items: items, Total: total})
}

func (h *AccountHandler) ListProviders(ctx *xhttp.RequestCtx) {
	writeJSON(ctx, 200, h.providers.Providers())
}
