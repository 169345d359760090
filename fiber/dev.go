// Package fiber serves what islands need from the development server: the
// virtual props module, the loader scripts, live reload and metrics.
package fiber

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slinkity/slinkity/component"
	"github.com/slinkity/slinkity/embed"
	"github.com/slinkity/slinkity/hydrate"
)

// MetricsPath serves Prometheus metrics.
const MetricsPath = "/metrics"

// DevOptions configures Mount.
type DevOptions struct {
	Props *component.PropStore
	// Hub enables the live reload socket.
	Hub *ReloadHub
	// Gatherer enables MetricsPath.
	Gatherer prometheus.Gatherer
	// RequestLog logs every request.
	RequestLog bool
	Logger     *slog.Logger
}

// Mount registers the slinkity development routes on app.
func Mount(app *fiber.App, opts DevOptions) {
	if opts.RequestLog {
		app.Use(logger.New())
	}

	assets := compress.New()
	app.Get(hydrate.DevPropsPath, assets, PropsHandler(opts.Props))
	app.Get(embed.BasePath+":name", assets, LoaderHandler())

	if opts.Hub != nil {
		app.Get(ReloadPath, opts.Hub.Handler())
	}
	if opts.Gatherer != nil {
		app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
}

// PropsHandler serves the props module of the page named by the
// inputPath query parameter. The module is generated on every request so
// it always reflects the last compile.
func PropsHandler(props *component.PropStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		inputPath := c.Query("inputPath")
		if inputPath == "" {
			return fiber.NewError(fiber.StatusBadRequest, "missing inputPath query parameter")
		}
		code, err := props.SerializeClientBundle(inputPath)
		if err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "text/javascript; charset=utf-8")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		return c.SendString(code)
	}
}

// LoaderHandler serves the embedded loader scripts.
func LoaderHandler() fiber.Handler {
	etag := `"` + embed.Hash() + `"`
	return func(c *fiber.Ctx) error {
		src, err := embed.Loader(c.Params("name"))
		if err != nil {
			return fiber.ErrNotFound
		}
		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			return c.SendStatus(fiber.StatusNotModified)
		}
		c.Set(fiber.HeaderContentType, "text/javascript; charset=utf-8")
		c.Set(fiber.HeaderETag, etag)
		return c.Send(src)
	}
}
