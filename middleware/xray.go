package middleware

import (
	"context"
	"log"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gofiber/fiber/v2"
)

const (
	xrayCtxKey = "xray-ctx"
	xraySegKey = "xray-seg"
)

// XRayMiddleware wraps Fiber requests with an AWS X-Ray segment named name
func XRayMiddleware(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip tracing for health checks to reduce noise
		if c.Path() == "/health" {
			return c.Next()
		}

		ctx, seg := xray.BeginSegment(context.Background(), name)
		defer seg.Close(nil)

		req := seg.GetHTTP().GetRequest()
		req.Method = c.Method()
		req.URL = c.OriginalURL()
		req.ClientIP = c.IP()
		req.UserAgent = c.Get(fiber.HeaderUserAgent)

		seg.AddAnnotation("route", c.Path())
		seg.AddAnnotation("method", c.Method())

		// Store X-Ray context in Fiber locals for downstream use
		c.Locals(xrayCtxKey, ctx)
		c.Locals(xraySegKey, seg)

		err := c.Next()

		seg.GetHTTP().GetResponse().Status = c.Response().StatusCode()
		if err != nil {
			log.Printf("Request error: %v", err)
			seg.AddError(err)
			seg.GetHTTP().GetResponse().Status = fiber.StatusInternalServerError
		}

		return err
	}
}

// GetXRayContext retrieves X-Ray context from Fiber locals
func GetXRayContext(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(xrayCtxKey).(context.Context); ok {
		return ctx
	}
	return c.UserContext()
}
