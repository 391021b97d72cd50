package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/ledger-indexer/common/errs"
	"github.com/gaze-network/ledger-indexer/pkg/logger"
	"github.com/gaze-network/ledger-indexer/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
)

// kindStatus maps error kinds that are safe to expose to their HTTP status.
var kindStatus = []struct {
	kind   errs.ErrorKind
	status int
}{
	{errs.NotFound, http.StatusNotFound},
	{errs.Unhandled, http.StatusNotImplemented},
	{errs.InvalidArgument, http.StatusBadRequest},
	{errs.Timeout, http.StatusGatewayTimeout},
}

func NewHTTPErrorHandler() func(ctx *fiber.Ctx, err error) error {
	return func(ctx *fiber.Ctx, err error) error {
		if e := new(errs.PublicError); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(http.StatusBadRequest).JSON(map[string]any{
				"error": e.Message(),
			}))
		}
		if e := new(fiber.Error); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(e.Code).JSON(map[string]any{
				"error": e.Error(),
			}))
		}
		for _, ks := range kindStatus {
			if errors.Is(err, ks.kind) {
				return errors.WithStack(ctx.Status(ks.status).JSON(map[string]any{
					"error": ks.kind.Error(),
				}))
			}
		}

		logger.ErrorContext(ctx.UserContext(), "Something went wrong, unhandled api error",
			slogx.String("event", "api_unhandled_error"),
			slogx.Error(err),
		)

		return errors.WithStack(ctx.Status(http.StatusInternalServerError).JSON(map[string]any{
			"error": "Internal Server Error",
		}))
	}
}
