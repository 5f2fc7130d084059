package server

import (
	"kinship/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type friendRequestBody struct {
	ReceiverID uuid.UUID `json:"receiver_id"`
}

type friendshipStatusBody struct {
	Status models.FriendshipStatus `json:"status"`
}

// GetFriendships handles GET /api/friendships
// @Summary List the caller's friendships
// @Tags friendships
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, accepted or rejected"
// @Success 200 {array} models.Friendship
// @Failure 400 {object} models.ErrorResponse
// @Router /friendships [get]
func (s *Server) GetFriendships(c *fiber.Ctx) error {
	status := models.FriendshipStatus(c.Query("status"))
	friendships, err := s.friendService.ListFriendships(c.UserContext(), requester(c), status)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(friendships)
}

// SendFriendRequest handles POST /api/friendships
// @Summary Send a friend request
// @Tags friendships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{receiver_id=string} true "Receiver"
// @Success 201 {object} models.Friendship
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /friendships [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	var req friendRequestBody
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}
	if req.ReceiverID == uuid.Nil {
		return models.RespondWithAppError(c, models.NewValidationError("receiver_id is required"))
	}

	friendship, err := s.friendService.SendFriendRequest(c.UserContext(), requester(c), req.ReceiverID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(friendship)
}

// UpdateFriendship handles PATCH /api/friendships/:id
// @Summary Accept or reject a friendship
// @Description Only the status can change. Only the receiver may accept.
// @Tags friendships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Friendship ID"
// @Param request body object{status=string} true "accepted or rejected"
// @Success 200 {object} models.Friendship
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /friendships/{id} [patch]
func (s *Server) UpdateFriendship(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	var req friendshipStatusBody
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	friendship, err := s.friendService.UpdateStatus(c.UserContext(), requester(c), id, req.Status)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(friendship)
}

// RemoveFriendship handles DELETE /api/friendships/:id
// @Summary Remove a friendship or withdraw a request
// @Tags friendships
// @Security BearerAuth
// @Param id path string true "Friendship ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Router /friendships/{id} [delete]
func (s *Server) RemoveFriendship(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	if err := s.friendService.RemoveFriendship(c.UserContext(), requester(c), id); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFriends handles GET /api/friends
// @Summary List accepted friends
// @Tags friendships
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Profile
// @Router /friends [get]
func (s *Server) GetFriends(c *fiber.Ctx) error {
	friends, err := s.friendService.GetFriends(c.UserContext(), requester(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(friends)
}
