package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// ProfileCounter is the part of the profile store the health check reads.
type ProfileCounter interface {
	Len() int
}

type HealthController struct {
	profiles ProfileCounter
	books    BookLister
	version  string
}

func NewHealthController(profiles ProfileCounter, books BookLister, version string) *HealthController {
	return &HealthController{
		profiles: profiles,
		books:    books,
		version:  version,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	if h.profiles != nil {
		checks["profiles"] = strconv.Itoa(h.profiles.Len()) + " loaded"
	} else {
		checks["profiles"] = "not configured"
		status = "unhealthy"
	}

	if h.books != nil {
		checks["registry"] = strconv.Itoa(h.books.Len()) + " books"
	} else {
		checks["registry"] = "not configured"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
