package http

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"lpr-service/internal/broadcast"
	"lpr-service/internal/confirm"
	"lpr-service/internal/domain/anpr"
	"lpr-service/internal/parking"
	"lpr-service/internal/service"
	"lpr-service/internal/stream"
)

type Handler struct {
	registry      *stream.Registry
	detectService *service.DetectService
	workflow      *confirm.Workflow
	parking       *parking.Client
	hub           *broadcast.Hub
	log           zerolog.Logger
}

func NewHandler(
	registry *stream.Registry,
	detectService *service.DetectService,
	workflow *confirm.Workflow,
	parkingClient *parking.Client,
	hub *broadcast.Hub,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		registry:      registry,
		detectService: detectService,
		workflow:      workflow,
		parking:       parkingClient,
		hub:           hub,
		log:           log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/cameras", h.listCameras)
		api.GET("/cameras/:id", h.getCamera)
		api.POST("/cameras/:id/start", h.startCamera)
		api.POST("/cameras/:id/stop", h.stopCamera)
		api.POST("/cameras/start-all", h.startAll)
		api.POST("/cameras/stop-all", h.stopAll)
		api.POST("/detect", h.detect)
		api.POST("/confirm/entry", h.confirmEntry)
		api.POST("/confirm/exit", h.confirmExit)
	}
	r.GET("/health", h.health)
	r.GET("/ws", h.handleWebSocket)
}

func (h *Handler) listCameras(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.registry.Snapshot()))
}

func (h *Handler) getCamera(c *gin.Context) {
	info, err := h.registry.Info(c.Param("id"))
	if err != nil {
		h.handleCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(info))
}

func (h *Handler) startCamera(c *gin.Context) {
	if err := h.registry.Start(c.Param("id")); err != nil {
		h.handleCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"camera_id": c.Param("id"), "status": "starting"}))
}

func (h *Handler) stopCamera(c *gin.Context) {
	if err := h.registry.Stop(c.Param("id")); err != nil {
		h.handleCameraError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(gin.H{"camera_id": c.Param("id"), "status": "stopped"}))
}

func (h *Handler) startAll(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.registry.StartAll()))
}

func (h *Handler) stopAll(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.registry.StopAll()))
}

// detect accepts either a multipart upload (field "image") or a JSON
// body with a base64-encoded "image" field.
func (h *Handler) detect(c *gin.Context) {
	img, err := h.readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	event, err := h.detectService.Detect(c.Request.Context(), img)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(event))
}

func (h *Handler) readImage(c *gin.Context) ([]byte, error) {
	if file, err := c.FormFile("image"); err == nil {
		f, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	var body struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		return nil, errors.New("image is required (multipart file or base64 json field)")
	}
	img, err := base64.StdEncoding.DecodeString(body.Image)
	if err != nil {
		return nil, errors.New("image is not valid base64")
	}
	return img, nil
}

func (h *Handler) confirmEntry(c *gin.Context) {
	h.confirmVehicle(c, anpr.ActionEntry)
}

func (h *Handler) confirmExit(c *gin.Context) {
	h.confirmVehicle(c, anpr.ActionExit)
}

func (h *Handler) confirmVehicle(c *gin.Context, action anpr.ConfirmAction) {
	var req anpr.ConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	result := h.workflow.Confirm(c.Request.Context(), req.Plate, action)
	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) health(c *gin.Context) {
	backend := "down"
	if h.parking.Health(c.Request.Context()) {
		backend = "up"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_cameras":  h.registry.ActiveCount(),
		"subscribers":     h.hub.SubscriberCount(),
		"parking_backend": backend,
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func (h *Handler) handleCameraError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stream.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
