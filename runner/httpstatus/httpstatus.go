// Package httpstatus is an optional, off-by-default HTTP surface exposing a
// runner.Runner's latest Snapshot as JSON, using a fiber/v3 server. It never
// starts unless the embedding program calls Serve; it implements none of
// the UserInterface contract and adds no feature beyond observability.
package httpstatus

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"

	"github.com/procbt/engine/runner"
)

// App builds a fiber.App exposing r's current Snapshot on GET /status and a
// liveness probe on the default healthcheck endpoint.
func App(r *runner.Runner) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/status", func(c fiber.Ctx) error {
		return c.JSON(r.Snapshot())
	})

	app.Get("/breakpoints", func(c fiber.Ctx) error {
		return c.JSON(r.GetBreakpoints())
	})

	return app
}

// Serve starts App(r) listening on port. Blocks until the server stops or
// errors; callers typically run it in its own goroutine.
func Serve(r *runner.Runner, port int) error {
	return App(r).Listen(":" + strconv.Itoa(port))
}
