package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1/blockindex")

	r.Get("/transactions/:hash/height", h.GetTransactionHeight)
	r.Post("/transactions/heights/batch", h.GetTransactionHeightBatch)
	r.Get("/accounts/:account/heights", h.GetAccountHeights)
	r.Get("/accounts/:account/heights/:height/transactions", h.GetAccountTransactions)
	r.Get("/accounts/:account/heights/:height/assets/:asset/transactions", h.GetAccountAssetTransactions)
	r.Get("/blocks", h.GetBlocks)
	r.Get("/current-block", h.GetCurrentBlock)
	return nil
}
