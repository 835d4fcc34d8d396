package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"lpr-service/internal/domain/anpr"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientAction is an inbound websocket command. Outcomes are not
// acknowledged on the socket directly; clients observe the resulting
// state and confirmation events like every other subscriber.
type clientAction struct {
	Action   string `json:"action"`
	CameraID string `json:"camera_id,omitempty"`
	Plate    string `json:"plate_number,omitempty"`
}

func (h *Handler) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := h.hub.Subscribe()
	log := h.log.With().Str("subscriber_id", sub.ID()).Logger()

	// Writer drains the subscriber queue until the hub closes it.
	// Closing the connection afterwards ends the read loop too.
	go func() {
		for msg := range sub.C() {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				break
			}
		}
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("websocket read failed")
			}
			break
		}

		var action clientAction
		if err := json.Unmarshal(msg, &action); err != nil {
			log.Warn().Err(err).Msg("undecodable websocket action")
			continue
		}
		h.dispatchAction(log, action)
	}

	h.hub.Unsubscribe(sub)
	conn.Close()
}

func (h *Handler) dispatchAction(log zerolog.Logger, action clientAction) {
	switch action.Action {
	case "start_camera":
		if err := h.registry.Start(action.CameraID); err != nil {
			log.Warn().Err(err).Str("camera_id", action.CameraID).Msg("start_camera failed")
		}
	case "stop_camera":
		if err := h.registry.Stop(action.CameraID); err != nil {
			log.Warn().Err(err).Str("camera_id", action.CameraID).Msg("stop_camera failed")
		}
	case "start_all":
		h.registry.StartAll()
	case "stop_all":
		h.registry.StopAll()
	case "confirm_entry":
		h.confirmAsync(action.Plate, anpr.ActionEntry)
	case "confirm_exit":
		h.confirmAsync(action.Plate, anpr.ActionExit)
	default:
		log.Warn().Str("action", action.Action).Msg("unknown websocket action")
	}
}

// confirmAsync runs a confirmation off the read loop; the result reaches
// all subscribers through the broadcast hub.
func (h *Handler) confirmAsync(plate string, action anpr.ConfirmAction) {
	go h.workflow.Confirm(context.Background(), plate, action)
}
