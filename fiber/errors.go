package fiber

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/slinkity/slinkity/component"
)

// ErrorHandlerConfig holds error handler configuration.
type ErrorHandlerConfig struct {
	// DevMode renders the error overlay instead of a bare status page.
	DevMode bool
	Logger  *slog.Logger
	// OnError is called for every handled error.
	OnError func(c *fiber.Ctx, err error)
}

// ErrorHandler creates a Fiber error handler. Island errors
// (*component.Error) keep their code, file and value in both the JSON and
// the HTML response.
func ErrorHandler(config ErrorHandlerConfig) fiber.ErrorHandler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		if status >= fiber.StatusInternalServerError {
			config.Logger.Error("request failed", "path", c.Path(), "error", err)
		}
		if config.OnError != nil {
			config.OnError(c, err)
		}

		if strings.HasPrefix(c.Get(fiber.HeaderAccept), fiber.MIMEApplicationJSON) {
			body := fiber.Map{"message": err.Error()}
			var ce *component.Error
			if errors.As(err, &ce) {
				body["code"] = ce.Code
				body["file"] = ce.File
				body["value"] = ce.Value
			}
			return c.Status(status).JSON(body)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		if !config.DevMode {
			return c.Status(status).SendString(utils.StatusMessage(status))
		}
		return c.Status(status).SendString(RenderOverlay(err, c.Method(), c.OriginalURL()))
	}
}

// StatusFor maps err to an HTTP status. Island configuration mistakes are
// client errors of the page author, everything else is a server error.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ce *component.Error
	if errors.As(err, &ce) && ce.Code == component.ErrorCodeConfig {
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}
