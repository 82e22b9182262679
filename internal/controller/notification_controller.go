package controller

import (
	"errors"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ai-bookingchat-be/internal/pkg/logger"
	"ai-bookingchat-be/internal/pkg/serverutils"
	"ai-bookingchat-be/internal/service"
	internalWS "ai-bookingchat-be/internal/websocket"
	"ai-bookingchat-be/pkg/engine/escalation"
)

type INotificationController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Resolve(ctx *fiber.Ctx) error
	Attend(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type notificationController struct {
	notificationService service.INotificationService
	hub                 *internalWS.Hub
	logger              logger.ILogger
}

func NewNotificationController(notificationService service.INotificationService, hub *internalWS.Hub, log logger.ILogger) INotificationController {
	return &notificationController{
		notificationService: notificationService,
		hub:                 hub,
		logger:              log,
	}
}

func (c *notificationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/notification/v1")
	h.Get("ws", c.ServeWs)
	h.Use(serverutils.JwtMiddleware)
	h.Get("", c.List)
	h.Put(":id/attend", c.Attend)
	h.Put(":id/resolve", c.Resolve)
}

func (c *notificationController) List(ctx *fiber.Ctx) error {
	businessID, err := businessIDFromLocals(ctx)
	if err != nil {
		return err
	}

	status := ctx.Query("status")
	limit := ctx.QueryInt("limit", 20)
	offset := ctx.QueryInt("offset", 0)

	res, err := c.notificationService.List(ctx.Context(), businessID, status, limit, offset)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list notifications", res))
}

func (c *notificationController) Attend(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewErrorResponse(fiber.StatusBadRequest, "Invalid notification id")
	}

	res, err := c.notificationService.Attend(ctx.Context(), id)
	if err != nil {
		return mapEscalationError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Notification attending", res))
}

func (c *notificationController) Resolve(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return serverutils.NewErrorResponse(fiber.StatusBadRequest, "Invalid notification id")
	}

	var req struct {
		Status string `json:"status" validate:"required"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewErrorResponse(fiber.StatusBadRequest, "Unreadable payload")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.notificationService.Resolve(ctx.Context(), id, req.Status)
	if err != nil {
		return mapEscalationError(err)
	}

	return ctx.JSON(serverutils.SuccessResponse("Notification resolved", res))
}

// ServeWs upgrades an operator dashboard connection. Browsers cannot set
// headers on websocket handshakes, so the token also rides a query param.
func (c *notificationController) ServeWs(ctx *fiber.Ctx) error {
	tokenStr := ctx.Query("token")
	if tokenStr == "" {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token (Query 'token' or Header 'Authorization')"})
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(os.Getenv("JWT_SECRET")), nil
	})
	if err != nil || !token.Valid {
		c.logger.Warn("NotificationController", "Invalid token in WS handshake", map[string]interface{}{"error": err})
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token claims"})
	}
	businessIDStr, ok := claims["business_id"].(string)
	if !ok {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Token missing business_id"})
	}
	businessID, err := uuid.Parse(businessIDStr)
	if err != nil {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid business ID format in token"})
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("NotificationController", "Starting WebSocket session", map[string]interface{}{"business_id": businessID})
			internalWS.ServeWs(c.hub, conn, businessID)
			c.logger.Info("NotificationController", "WebSocket session ended", map[string]interface{}{"business_id": businessID})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}

func businessIDFromLocals(ctx *fiber.Ctx) (uuid.UUID, error) {
	businessIDStr, ok := ctx.Locals("business_id").(string)
	if !ok {
		return uuid.Nil, serverutils.NewErrorResponse(fiber.StatusUnauthorized, "Unauthorized")
	}
	businessID, err := uuid.Parse(businessIDStr)
	if err != nil {
		return uuid.Nil, serverutils.NewErrorResponse(fiber.StatusUnauthorized, "Invalid business ID")
	}
	return businessID, nil
}

func mapEscalationError(err error) error {
	switch {
	case errors.Is(err, escalation.ErrNotificationMissing):
		return serverutils.NewErrorResponse(fiber.StatusNotFound, err.Error())
	case errors.Is(err, escalation.ErrInvalidStatus), errors.Is(err, escalation.ErrAlreadyResolved), errors.Is(err, escalation.ErrMalformedCommand):
		return serverutils.NewErrorResponse(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
