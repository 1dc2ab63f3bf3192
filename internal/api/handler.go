package api

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/statement-extractor/internal/logging"
	"github.com/insightdelivered/statement-extractor/internal/models"
	"github.com/insightdelivered/statement-extractor/internal/parser"
	"github.com/insightdelivered/statement-extractor/internal/upload"
	"github.com/insightdelivered/statement-extractor/internal/validator"
	"github.com/insightdelivered/statement-extractor/internal/writer"
)

const msgParseFailed = "Error parsing PDF. Please try again."

// ParseResponse is the JSON response from /api/parse-pdf.
type ParseResponse struct {
	Entries     []models.Entry          `json:"entries"`
	Count       int                     `json:"count"`
	Diagnostics []models.PageDiagnostic `json:"diagnostics,omitempty"`
}

// handleParse accepts a multipart upload in field "file", validates it,
// and returns the extracted entries. The upload lives on disk only for
// the duration of the request.
func (s *Server) handleParse(c *fiber.Ctx) error {
	logger := logging.FromContext(c.UserContext())

	fh, err := c.FormFile("file")
	if err != nil {
		return s.fail(c, validator.ErrNoFile)
	}
	name := declaredName(fh)

	if err := s.validator.CheckName(name); err != nil {
		return s.fail(c, err)
	}
	if err := s.validator.CheckSize(fh.Size); err != nil {
		return s.fail(c, err)
	}

	src, err := fh.Open()
	if err != nil {
		return s.fail(c, fmt.Errorf("open upload: %w", err))
	}
	defer src.Close()

	logger.Info("processing PDF file", "file", name, "size", fh.Size)

	var result *models.Result
	err = upload.WithTempFile(s.tempDir, "statement-*.pdf", src, func(path string) error {
		if err := s.validator.CheckArtifact(path); err != nil {
			return err
		}

		doc, err := s.open(path)
		if err != nil {
			return fmt.Errorf("open document: %w", err)
		}
		defer doc.Close()

		logger.Info("document opened", "pages", doc.NumPages())
		if err := s.validator.CheckPages(doc.NumPages()); err != nil {
			return err
		}

		result, err = s.engine.Extract(c.UserContext(), doc)
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}

	logger.Info("successfully extracted entries", "count", result.Count())
	return s.succeed(c, result)
}

// declaredName returns the client's filename as sent. The multipart
// reader reduces it to its base name, which would hide path traversal.
func declaredName(fh *multipart.FileHeader) string {
	if _, params, err := mime.ParseMediaType(fh.Header.Get(fiber.HeaderContentDisposition)); err == nil {
		if name, ok := params["filename"]; ok {
			return name
		}
	}
	return fh.Filename
}

func (s *Server) succeed(c *fiber.Ctx, result *models.Result) error {
	if c.Query("format") == "csv" {
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="entries.csv"`)
		w := &writer.CSVWriter{IncludeSummary: c.QueryBool("summary")}
		return w.Write(c, result)
	}

	resp := ParseResponse{Entries: result.Entries, Count: result.Count()}
	if c.QueryBool("debug") {
		resp.Diagnostics = result.Diagnostics
	}
	return c.JSON(resp)
}

// fail maps an error onto its user-facing status and message. Only
// rejections and empty results are described to the client; anything
// else is logged and reported generically.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	logger := logging.FromContext(c.UserContext())
	status, msg := classify(err)

	switch {
	case status >= fiber.StatusInternalServerError:
		logger.Error("PDF parsing error", "error", err)
	default:
		logger.Warn("request rejected", "status", status, "error", msg)
	}
	return c.Status(status).JSON(errorResponse{Error: msg})
}

func classify(err error) (int, string) {
	if rej, ok := validator.IsRejection(err); ok {
		if rej.Reason == validator.ReasonSize {
			return fiber.StatusRequestEntityTooLarge, rej.Message
		}
		return fiber.StatusBadRequest, rej.Message
	}
	var empty *parser.EmptyResultError
	if errors.As(err, &empty) {
		return fiber.StatusBadRequest, empty.Error()
	}
	return fiber.StatusInternalServerError, msgParseFailed
}

func tooLargeMessage(v *validator.Validator) string {
	if rej, ok := validator.IsRejection(v.CheckSize(v.Limits().MaxBytes + 1)); ok {
		return rej.Message
	}
	return "File too large"
}
