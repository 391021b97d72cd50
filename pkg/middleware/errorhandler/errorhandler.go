package errorhandler

import (
	"github.com/gaze-network/ledger-indexer/pkg/errorhandler"
	"github.com/gofiber/fiber/v2"
)

// New setup error handler middleware, so errors are rendered before the request logger sees the response.
func New() fiber.Handler {
	handle := errorhandler.NewHTTPErrorHandler()
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return handle(ctx, err)
	}
}
