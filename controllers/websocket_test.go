package controllers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"academy_go/config"
	"academy_go/controllers"
	"academy_go/middleware"
	"academy_go/models"
	"academy_go/services/attendance"
	"academy_go/services/websocket"

	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBoardServer(t *testing.T) (*websocket.Hub, string) {
	t.Helper()
	config.AppConfig = &config.Config{JWTSecret: "controller-test-secret"}

	hub := websocket.NewHub()
	go hub.Run()
	wsc := controllers.NewWebSocketController(hub)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/attendance", wsc.Upgrade, wsc.Board())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go app.Listener(ln)
	t.Cleanup(func() { app.Shutdown() })

	return hub, "ws://" + ln.Addr().String() + "/ws/attendance"
}

func TestBoardReceivesClassUpdatesOverFiber(t *testing.T) {
	hub, base := startBoardServer(t)

	token, err := middleware.GenerateToken("auth-teacher", "teacher", time.Hour)
	require.NoError(t, err)

	c, _, err := gorilla.DefaultDialer.Dial(fmt.Sprintf("%s?class_id=3&token=%s", base, token), nil)
	require.NoError(t, err)
	defer c.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.AttendanceChanged(context.Background(), attendance.Event{
		Type:     attendance.EventCheckedOut,
		Previous: models.StatusPresent,
		Record:   models.Attendance{BaseModel: models.BaseModel{ID: 21}, ClassID: 3, Status: models.StatusEarlyLeave},
	})

	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type string                     `json:"type"`
		Data websocket.AttendanceUpdate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "attendance.updated", msg.Type)
	assert.Equal(t, uint(21), msg.Data.Record.ID)
	assert.Equal(t, models.StatusEarlyLeave, msg.Data.Record.Status)
}

func TestBoardRejectsMissingToken(t *testing.T) {
	hub, base := startBoardServer(t)

	_, resp, err := gorilla.DefaultDialer.Dial(base+"?class_id=3", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.GetClientCount())
}
