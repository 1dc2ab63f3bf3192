package api

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/insightdelivered/statement-extractor/internal/logging"
)

// maxHeapShare is the share of the runtime memory limit the heap may use
// before the service reports itself degraded.
const maxHeapShare = 0.9

// HealthCheck is one named probe. A false result degrades the service; an
// error makes it unhealthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) (bool, error)
}

// HealthResponse is the JSON response from /api/health.
type HealthResponse struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp,omitempty"`
	Version   string          `json:"version,omitempty"`
	Checks    map[string]bool `json:"checks,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// TempDirCheck reports whether a file can be created and removed in dir.
func TempDirCheck(dir string) HealthCheck {
	return HealthCheck{
		Name: "temp_directory",
		Check: func(context.Context) (bool, error) {
			f, err := os.CreateTemp(dir, ".health-*")
			if err != nil {
				return false, nil
			}
			name := f.Name()
			closeErr := f.Close()
			if err := os.Remove(name); err != nil {
				return false, err
			}
			return closeErr == nil, nil
		},
	}
}

// MemoryCheck reports whether heap in use is below the runtime memory
// limit's safety margin. Without a limit it always passes.
func MemoryCheck() HealthCheck {
	return HealthCheck{
		Name: "memory_available",
		Check: func(context.Context) (bool, error) {
			limit := debug.SetMemoryLimit(-1)
			if limit == math.MaxInt64 {
				return true, nil
			}
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return float64(ms.HeapInuse) < maxHeapShare*float64(limit), nil
		},
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Version:   s.version,
		Checks:    make(map[string]bool, len(s.checks)),
	}

	for _, hc := range s.checks {
		ok, err := hc.Check(c.UserContext())
		if err != nil {
			logging.FromContext(c.UserContext()).Error("health check failed", "check", hc.Name, "error", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
				Status: "unhealthy",
				Error:  fmt.Sprintf("%s: %v", hc.Name, err),
			})
		}
		resp.Checks[hc.Name] = ok
		if !ok {
			resp.Status = "degraded"
		}
	}

	if resp.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}
