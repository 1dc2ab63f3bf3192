package api

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/insightdelivered/statement-extractor/internal/admission"
	"github.com/insightdelivered/statement-extractor/internal/logging"
)

const (
	msgBlacklisted = "Access denied. IP is blacklisted."
	msgViolation   = "Access denied due to rate limit violations."
	msgRateLimited = "Rate limit exceeded. Please try again later."
	msgInternal    = "Internal server error"
)

// forwardingHeaders are logged when present; clients should not normally
// send them to this service directly.
var forwardingHeaders = []string{
	fiber.HeaderXForwardedFor,
	"X-Real-IP",
	fiber.HeaderXForwardedProto,
}

// requestLogger attaches a request-scoped logger to the user context and
// logs one line per request once the chain has run.
//
// Log fields:
//   - method, path, status
//   - duration_ms: request processing time in milliseconds
//   - request_id, ip: carried by the scoped logger
func (s *Server) requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	id, _ := c.Locals(requestid.ConfigDefault.ContextKey).(string)
	logger := s.logger.With("request_id", id, "ip", c.IP())
	c.SetUserContext(logging.NewContext(c.UserContext(), logger))

	for _, h := range forwardingHeaders {
		if v := c.Get(h); v != "" {
			logger.Warn("suspicious header detected", "header", h, "value", v)
		}
	}

	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	logger.Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
		"user_agent", c.Get(fiber.HeaderUserAgent),
	)
	return err
}

// securityHeaders adds security headers to all responses.
func securityHeaders(c *fiber.Ctx) error {
	setSecurityHeaders(c)
	return c.Next()
}

func setSecurityHeaders(c *fiber.Ctx) {
	// Prevent MIME type sniffing
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	// Prevent clickjacking
	c.Set(fiber.HeaderXFrameOptions, "DENY")
	c.Set(fiber.HeaderXXSSProtection, "1; mode=block")
	c.Set(fiber.HeaderStrictTransportSecurity, "max-age=31536000; includeSubDomains; preload")
	c.Set(fiber.HeaderContentSecurityPolicy, "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'; connect-src 'self';")
	c.Set(fiber.HeaderReferrerPolicy, "strict-origin-when-cross-origin")
	c.Set(fiber.HeaderPermissionsPolicy, "geolocation=(), microphone=(), camera=()")
	// Responses carry statement data and must not be cached
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate, max-age=0")
	c.Set(fiber.HeaderPragma, "no-cache")
	c.Set(fiber.HeaderExpires, "0")
}

// admit gates the route behind ctrl. Store failures reject the request.
func (s *Server) admit(ctrl *admission.Controller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ctrl == nil {
			return c.Next()
		}
		logger := logging.FromContext(c.UserContext())

		// Stores keep the key beyond the request, so detach it from fasthttp's buffer.
		client := utils.CopyString(c.IP())
		out, err := ctrl.Admit(c.UserContext(), client, s.now())
		if err != nil {
			logger.Error("admission check failed", "policy", ctrl.Policy().Name, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: msgInternal})
		}

		switch out.Decision {
		case admission.Denied:
			msg := msgBlacklisted
			if out.NewlyBlacklisted {
				msg = msgViolation
			}
			logger.Warn("request denied", "policy", ctrl.Policy().Name, "newly_blacklisted", out.NewlyBlacklisted)
			return c.Status(fiber.StatusForbidden).JSON(errorResponse{Error: msg})
		case admission.Throttle:
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(out.RetryAfter.Seconds()))))
			logger.Warn("request throttled", "policy", ctrl.Policy().Name, "count", out.Count)
			return c.Status(fiber.StatusTooManyRequests).JSON(errorResponse{Error: msgRateLimited})
		}
		return c.Next()
	}
}
