package providers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/orchestra-mcp/relay/src/auth"
	"github.com/orchestra-mcp/relay/src/service"
	"github.com/orchestra-mcp/relay/src/types"
)

const localUser = "user"

// envelope is the response shape of every REST endpoint.
type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(c fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(envelope{Code: status, Message: message, Data: data})
}

func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/ws/info", s.handleInfo)

	api := app.Group("/api")
	api.Post("/auth/register", s.handleRegister)
	api.Post("/auth/login", s.handleLogin)
	api.Get("/auth/me", s.requireUser, s.handleMe)
	api.Post("/auth/logout", s.requireUser, s.handleLogout)

	api.Get("/messages", s.requireUser, s.handleListMessages)
	api.Post("/messages", s.requireUser, s.handleSaveMessage)
	api.Delete("/messages", s.requireUser, s.handleClearMessages)

	s.registerAdminRoutes(api)
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	h := s.svc.Hub()
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  pathWS,
		"sse":       pathSSE,
		"clients":   h.ClientCount(),
		"users":     h.UserCount(),
		"rooms":     len(h.Rooms()),
	})
}

// requireUser resolves the bearer token and stores the user in locals.
func (s *Server) requireUser(c fiber.Ctx) error {
	token := auth.BearerToken(c.Get("Authorization"))
	if token == "" {
		return respond(c, fiber.StatusUnauthorized, "Unauthorized", nil)
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	user, err := s.svc.UserFromToken(ctx, token)
	if err != nil {
		return respond(c, fiber.StatusUnauthorized, "Unauthorized", nil)
	}
	c.Locals(localUser, user)
	return c.Next()
}

func currentUser(c fiber.Ctx) types.User {
	user, _ := c.Locals(localUser).(types.User)
	return user
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleRegister(c fiber.Ctx) error {
	var req registerRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	sess, err := s.svc.Register(ctx, req.Email, req.Password, req.FullName)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		return respond(c, fiber.StatusConflict, "Email already registered", nil)
	case errors.Is(err, service.ErrInvalidInput):
		return respond(c, fiber.StatusBadRequest, err.Error(), nil)
	case err != nil:
		s.logger.Error().Err(err).Msg("register failed")
		return respond(c, fiber.StatusInternalServerError, "Registration failed", nil)
	}
	return respond(c, fiber.StatusCreated, "Registered", sess)
}

func (s *Server) handleLogin(c fiber.Ctx) error {
	var req loginRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	sess, err := s.svc.Login(ctx, req.Email, req.Password)
	if errors.Is(err, auth.ErrBadCredentials) {
		return respond(c, fiber.StatusUnauthorized, "Invalid email or password", nil)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("login failed")
		return respond(c, fiber.StatusInternalServerError, "Login failed", nil)
	}
	return respond(c, fiber.StatusOK, "Logged in", sess)
}

func (s *Server) handleMe(c fiber.Ctx) error {
	return respond(c, fiber.StatusOK, "OK", currentUser(c))
}

func (s *Server) handleLogout(c fiber.Ctx) error {
	if err := s.svc.Logout(auth.BearerToken(c.Get("Authorization"))); err != nil {
		return respond(c, fiber.StatusUnauthorized, "Unauthorized", nil)
	}
	return respond(c, fiber.StatusOK, "Logged out", nil)
}

func (s *Server) handleListMessages(c fiber.Ctx) error {
	ctx, cancel := s.requestContext()
	defer cancel()

	list, err := s.svc.Messages(ctx, currentUser(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("list messages failed")
		return respond(c, fiber.StatusInternalServerError, "Failed to load messages", nil)
	}
	return respond(c, fiber.StatusOK, "OK", list)
}

func (s *Server) handleSaveMessage(c fiber.Ctx) error {
	var req messageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respond(c, fiber.StatusBadRequest, "Invalid request body", nil)
	}
	ctx, cancel := s.requestContext()
	defer cancel()

	msg, err := s.svc.SaveMessage(ctx, currentUser(c), req.Content)
	if errors.Is(err, service.ErrContentRequired) {
		return respond(c, fiber.StatusBadRequest, "Content is required", nil)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("save message failed")
		return respond(c, fiber.StatusInternalServerError, "Failed to save message", nil)
	}
	return respond(c, fiber.StatusCreated, "Message saved", msg)
}

func (s *Server) handleClearMessages(c fiber.Ctx) error {
	ctx, cancel := s.requestContext()
	defer cancel()

	if err := s.svc.ClearMessages(ctx, currentUser(c)); err != nil {
		s.logger.Error().Err(err).Msg("clear messages failed")
		return respond(c, fiber.StatusInternalServerError, "Failed to clear messages", nil)
	}
	return respond(c, fiber.StatusOK, "History cleared", nil)
}
