package http

import (
	"io"

	"github.com/gin-gonic/gin"
)

const eventBuffer = 64

// EventsController streams registry events as server-sent events.
type EventsController struct {
	source EventSource
}

func NewEventsController(source EventSource) *EventsController {
	return &EventsController{source: source}
}

// Stream handles GET /api/events
// Each event is sent with the event kind as its name. The stream ends when the
// client disconnects.
func (ec *EventsController) Stream(c *gin.Context) {
	events, cancel := ec.source.Subscribe(eventBuffer)
	defer cancel()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(e.Kind.String(), e)
			return true
		}
	})
}
