// Package validator screens uploaded statement artifacts before any page is
// opened: filename safety, extension, size, magic bytes and page count.
package validator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Defaults for the statement upload endpoint.
const (
	DefaultMaxBytes  = 16 << 20
	DefaultMaxPages  = 50
	DefaultExtension = ".pdf"
	maxNameLength    = 255
)

// DefaultMagic is the signature every PDF starts with.
var DefaultMagic = []byte("%PDF")

// Reason classifies a rejection.
type Reason string

const (
	ReasonMissing   Reason = "missing"
	ReasonFilename  Reason = "filename"
	ReasonExtension Reason = "extension"
	ReasonSize      Reason = "size"
	ReasonContent   Reason = "content"
	ReasonPages     Reason = "pages"
)

// RejectionError is returned for every artifact the validator refuses.
// Message is safe to show to the client.
type RejectionError struct {
	Reason  Reason
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

func reject(reason Reason, format string, args ...any) error {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// ErrNoFile is returned when the request carries no file part.
var ErrNoFile = &RejectionError{Reason: ReasonMissing, Message: "No file uploaded"}

// IsRejection reports whether err is a validation rejection and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

var dangerousExtensions = []string{
	".exe", ".bat", ".cmd", ".com", ".pif", ".scr",
	".vbs", ".js", ".php", ".asp", ".aspx", ".jsp",
}

var injectionPattern = regexp.MustCompile(`(?i)<script|javascript:|vbscript:|onload=|onerror=`)

// Limits configures a Validator. Zero fields fall back to the defaults.
type Limits struct {
	MaxBytes  int64
	MaxPages  int
	Extension string
	Magic     []byte
}

// Validator applies Limits to uploaded artifacts.
type Validator struct {
	limits Limits
}

// New returns a Validator with zero limits replaced by defaults.
func New(limits Limits) *Validator {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxBytes
	}
	if limits.MaxPages <= 0 {
		limits.MaxPages = DefaultMaxPages
	}
	if limits.Extension == "" {
		limits.Extension = DefaultExtension
	}
	if len(limits.Magic) == 0 {
		limits.Magic = DefaultMagic
	}
	return &Validator{limits: limits}
}

// Limits returns the effective limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// CheckName validates the declared filename: it must be safe and carry the
// expected document extension.
func (v *Validator) CheckName(name string) error {
	if name == "" {
		return reject(ReasonMissing, "No file selected")
	}
	if !safeFilename(name) {
		return reject(ReasonFilename, "Invalid filename")
	}
	if !strings.HasSuffix(strings.ToLower(name), strings.ToLower(v.limits.Extension)) {
		return reject(ReasonExtension, "Only %s files are supported", strings.ToUpper(strings.TrimPrefix(v.limits.Extension, ".")))
	}
	return nil
}

func safeFilename(name string) bool {
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	lower := strings.ToLower(name)
	for _, ext := range dangerousExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return false
	}
	return !injectionPattern.MatchString(name)
}

// CheckSize rejects artifacts larger than MaxBytes.
func (v *Validator) CheckSize(size int64) error {
	if size > v.limits.MaxBytes {
		return reject(ReasonSize, "File too large. Maximum size is %dMB.", v.limits.MaxBytes>>20)
	}
	return nil
}

// CheckHeader verifies that data starts with the expected magic signature.
func (v *Validator) CheckHeader(data []byte) error {
	if !bytes.HasPrefix(data, v.limits.Magic) {
		return reject(ReasonContent, "Invalid %s file", strings.ToUpper(strings.TrimPrefix(v.limits.Extension, ".")))
	}
	return nil
}

// CheckArtifact re-validates the persisted artifact at path: its size on
// disk and its leading bytes.
func (v *Validator) CheckArtifact(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if err := v.CheckSize(info.Size()); err != nil {
		return err
	}

	header := make([]byte, len(v.limits.Magic))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read artifact header: %w", err)
	}
	return v.CheckHeader(header[:n])
}

// CheckPages rejects documents with more than MaxPages pages.
func (v *Validator) CheckPages(pages int) error {
	if pages > v.limits.MaxPages {
		return reject(ReasonPages, "%s too large. Maximum %d pages allowed.", strings.ToUpper(strings.TrimPrefix(v.limits.Extension, ".")), v.limits.MaxPages)
	}
	return nil
}

// Validate runs the name, size and header checks over an in-memory artifact.
func (v *Validator) Validate(data []byte, name string) error {
	if err := v.CheckName(name); err != nil {
		return err
	}
	if err := v.CheckSize(int64(len(data))); err != nil {
		return err
	}
	return v.CheckHeader(data)
}
