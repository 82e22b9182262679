package controller

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ai-bookingchat-be/internal/dto"
	"ai-bookingchat-be/internal/pkg/serverutils"
	"ai-bookingchat-be/internal/service"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Inbound(ctx *fiber.Ctx) error
}

type webhookController struct {
	conversationService service.IConversationService
}

func NewWebhookController(conversationService service.IConversationService) IWebhookController {
	return &webhookController{
		conversationService: conversationService,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhook/v1")
	// Channel providers authenticate with signatures, not JWTs; this
	// surface stays open and validation happens on the payload.
	h.Post("inbound", c.Inbound)
}

func (c *webhookController) Inbound(ctx *fiber.Ctx) error {
	var req dto.InboundMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewErrorResponse(fiber.StatusBadRequest, "Unreadable payload")
	}

	res, err := c.conversationService.HandleInbound(ctx.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrBusinessNotFound) {
			return serverutils.NewErrorResponse(fiber.StatusUnprocessableEntity, err.Error())
		}
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Message handled", res))
}
