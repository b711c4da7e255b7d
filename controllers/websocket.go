package controllers

import (
	"academy_go/middleware"
	"academy_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type WebSocketController struct {
	hub *websocket.Hub
}

func NewWebSocketController(hub *websocket.Hub) *WebSocketController {
	return &WebSocketController{hub: hub}
}

// Upgrade authenticates the board before the protocol switch. Browsers cannot set
// headers on websocket requests, so the JWT comes in the token query parameter.
func (wsc *WebSocketController) Upgrade(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	claims, err := middleware.ParseToken(c.Query("token"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	classID := c.QueryInt("class_id", 0)
	if classID < 0 {
		return badRequest(c, "Invalid class ID")
	}
	c.Locals("auth_id", claims.Subject)
	c.Locals("class_id", uint(classID))
	return c.Next()
}

// Board serves an upgraded attendance board connection.
func (wsc *WebSocketController) Board() fiber.Handler {
	return fiberws.New(func(c *fiberws.Conn) {
		defer func() {
			if r := recover(); r != nil {
				logrus.WithField("panic", r).Error("WebSocket handler panic")
			}
		}()

		classID, _ := c.Locals("class_id").(uint)
		logrus.WithFields(logrus.Fields{
			"auth_id":  c.Locals("auth_id"),
			"class_id": classID,
		}).Info("Attendance board connected")

		wsc.hub.ServeFiberWS(c, classID)
	})
}

// GetWebSocketStats returns the number of connected boards.
func (wsc *WebSocketController) GetWebSocketStats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"connected_clients": wsc.hub.GetClientCount(),
		"status":            "active",
	})
}
