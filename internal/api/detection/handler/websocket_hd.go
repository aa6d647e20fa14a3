package detectionHandler

import (
	contextPkg "DetectionGateway/pkg/context"
	"DetectionGateway/pkg/log"
	"context"
	"github.com/gofiber/websocket/v2"
	"time"
)

const (
	wsRequestIDKey  = "ws_request_id"
	wsContextKey    = "ws_context"
	wsReadTimeout   = 60 * time.Second
	wsWriteTimeout  = 10 * time.Second
	wsPongTimeout   = 5 * time.Second
	wsDetectionPath = "/api/ai/detect/ws"
)

// handleDetectWebSocket runs every binary frame through the same pipeline as
// POST /detect and answers with the same envelopes.
func (h *DetectionHandler) handleDetectWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(wsRequestIDKey).(string)
	if requestID == "" {
		requestID = "unknown"
	}

	h.log.WithField("request_id", requestID).Info("Detection WebSocket client connected")
	defer h.log.WithField("request_id", requestID).Info("Detection WebSocket client disconnected")

	base, ok := c.Locals(wsContextKey).(context.Context)
	if !ok || base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(contextPkg.WithRequestID(base, requestID))
	defer cancel()

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsPongTimeout)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Detection WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		start := time.Now()
		var reply interface{}

		result, err := h.detectionService.DetectImage(ctx, message)
		if err != nil {
			_, env := h.errHandler.Envelope(requestID, err, wsDetectionPath, "detect_frame")
			reply = env
		} else {
			reply = detectedResponse(result, start)
			h.log.WithFields(log.Fields{
				"request_id":     requestID,
				"trash_detected": result.TrashDetected,
			}).Debug("Frame detection successful")
		}

		if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}
