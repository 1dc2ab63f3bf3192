// Package api exposes statement extraction over HTTP using fiber.
package api

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/insightdelivered/statement-extractor/internal/admission"
	"github.com/insightdelivered/statement-extractor/internal/extractor"
	"github.com/insightdelivered/statement-extractor/internal/logging"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/validator"
)

// multipartOverhead is the slack added to the upload limit for the body
// limit, so that a slightly oversized file reaches the handler and gets a
// precise rejection.
const multipartOverhead = 1 << 20

// Document is an opened statement the engine can read and the handler
// must close.
type Document interface {
	parser.Document
	Close() error
}

// Opener opens the persisted upload at path.
type Opener func(path string) (Document, error)

func openPDF(path string) (Document, error) {
	doc, err := extractor.Open(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Options configures a Server. Zero values select the defaults.
type Options struct {
	Version string
	TempDir string

	Validator *validator.Validator
	Engine    *parser.Engine
	Open      Opener

	// ParseAdmission gates statement parsing; APIAdmission gates the other
	// routes. A nil controller admits everything.
	ParseAdmission *admission.Controller
	APIAdmission   *admission.Controller

	Origins        []string
	ProxyHeader    string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration

	HealthChecks []HealthCheck
	Logger       *slog.Logger
	Now          func() time.Time
}

// Server is the HTTP front of the extraction service.
type Server struct {
	app       *fiber.App
	version   string
	tempDir   string
	validator *validator.Validator
	engine    *parser.Engine
	open      Opener
	checks    []HealthCheck
	logger    *slog.Logger
	now       func() time.Time
}

// New builds the fiber app and registers routes.
func New(opts Options) *Server {
	s := &Server{
		version:   opts.Version,
		tempDir:   opts.TempDir,
		validator: opts.Validator,
		engine:    opts.Engine,
		open:      opts.Open,
		checks:    opts.HealthChecks,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if s.version == "" {
		s.version = "1.0.0"
	}
	if s.tempDir == "" {
		s.tempDir = os.TempDir()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.validator == nil {
		s.validator = validator.New(validator.Limits{})
	}
	if s.engine == nil {
		s.engine = parser.New(s.logger)
	}
	if s.open == nil {
		s.open = openPDF
	}
	if s.checks == nil {
		s.checks = []HealthCheck{TempDirCheck(s.tempDir), MemoryCheck()}
	}
	if s.now == nil {
		s.now = time.Now
	}

	s.app = fiber.New(fiber.Config{
		AppName:                 "statement-extractor",
		BodyLimit:               int(s.validator.Limits().MaxBytes) + multipartOverhead,
		ReadTimeout:             opts.ReadTimeout,
		WriteTimeout:            opts.WriteTimeout,
		IdleTimeout:             opts.IdleTimeout,
		ProxyHeader:             opts.ProxyHeader,
		EnableTrustedProxyCheck: len(opts.TrustedProxies) > 0,
		TrustedProxies:          opts.TrustedProxies,
		DisableStartupMessage:   true,
		ErrorHandler:            s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	s.app.Use(s.requestLogger)
	s.app.Use(securityHeaders)
	if len(opts.Origins) > 0 {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: strings.Join(opts.Origins, ","),
			AllowMethods: "GET,POST,OPTIONS",
			AllowHeaders: "Origin, Content-Type, Accept",
		}))
	}

	api := s.app.Group("/api")
	api.Get("/health", s.admit(opts.APIAdmission), s.handleHealth)
	api.Post("/parse-pdf", s.admit(opts.ParseAdmission), s.handleParse)

	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("starting server", "addr", addr, "version", s.version)
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits up to timeout for
// in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

type errorResponse struct {
	Error string `json:"error"`
}

// errorHandler renders every error that escapes a handler, including the
// framework's own 404, 405 and body limit errors, as JSON.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := msgInternal

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		switch code {
		case fiber.StatusNotFound:
			msg = "Endpoint not found"
		case fiber.StatusMethodNotAllowed:
			msg = "Method not allowed"
		case fiber.StatusRequestEntityTooLarge:
			msg = tooLargeMessage(s.validator)
		default:
			if code < fiber.StatusInternalServerError {
				msg = fe.Message
			}
		}
	}

	logger := logging.FromContext(c.UserContext())
	if code >= fiber.StatusInternalServerError {
		logger.Error("unhandled error", "path", c.Path(), "error", err)
	} else {
		logger.Warn("request error", "path", c.Path(), "status", code, "error", err)
	}

	setSecurityHeaders(c)
	return c.Status(code).JSON(errorResponse{Error: msg})
}
