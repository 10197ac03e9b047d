package providers

import (
	"crypto/subtle"
	"sort"

	"github.com/gofiber/fiber/v3"

	"github.com/orchestra-mcp/relay/src/types"
)

const headerAdminKey = "X-Admin-Key"

// registerAdminRoutes exposes read-only views of the connection registry.
// They are only mounted when an admin key is configured.
func (s *Server) registerAdminRoutes(api fiber.Router) {
	if s.cfg.AdminKey == "" {
		return
	}
	api.Get("/admin/clients", s.requireAdmin, s.handleListClients)
	api.Get("/admin/rooms", s.requireAdmin, s.handleListRooms)
}

func (s *Server) requireAdmin(c fiber.Ctx) error {
	key := c.Get(headerAdminKey)
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AdminKey)) != 1 {
		return respond(c, fiber.StatusForbidden, "Forbidden", nil)
	}
	return c.Next()
}

func (s *Server) handleListClients(c fiber.Ctx) error {
	h := s.svc.Hub()
	ids := h.ConnectedClients()
	infos := make([]*types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		if info := h.ClientInfo(id); info != nil {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ConnectedAt.Before(infos[j].ConnectedAt)
	})
	return respond(c, fiber.StatusOK, "OK", fiber.Map{
		"clients": infos,
		"count":   len(infos),
	})
}

func (s *Server) handleListRooms(c fiber.Ctx) error {
	rooms := s.svc.Hub().Rooms()
	result := make([]fiber.Map, 0, len(rooms))
	for name, count := range rooms {
		result = append(result, fiber.Map{
			"room":    name,
			"members": count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["room"].(string) < result[j]["room"].(string)
	})
	return respond(c, fiber.StatusOK, "OK", fiber.Map{"rooms": result, "count": len(result)})
}
