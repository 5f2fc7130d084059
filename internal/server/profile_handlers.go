package server

import (
	"kinship/internal/models"
	"kinship/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profiles/me
// @Summary Get the signed-in profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} models.ErrorResponse
// @Router /profiles/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	me := requester(c)
	profile, err := s.profileService.GetProfile(c.UserContext(), me, me)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/profiles/me
// @Summary Update the signed-in profile
// @Description Only supplied fields change. Every field is validated before anything is stored.
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /profiles/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := bind(c, &req); err != nil {
		return models.RespondWithAppError(c, err)
	}

	me := requester(c)
	profile, err := s.profileService.UpdateProfile(c.UserContext(), me, me, req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:id
// @Summary Get a profile
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	profile, err := s.profileService.GetProfile(c.UserContext(), requester(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(profile)
}

// GetProfilePosts handles GET /api/profiles/:id/posts
// @Summary List a profile's posts visible to the caller
// @Tags profiles
// @Produce json
// @Param id path string true "Profile ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id}/posts [get]
func (s *Server) GetProfilePosts(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	page := parsePagination(c, defaultPageLimit)

	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Requester: requester(c),
		Owner:     id,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetFriendshipWith handles GET /api/profiles/:id/friendship
// @Summary Friendship between the caller and a profile
// @Description Returns {"friendship": null} when the two are not connected.
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param id path string true "Profile ID"
// @Success 200 {object} object{friendship=models.Friendship}
// @Router /profiles/{id}/friendship [get]
func (s *Server) GetFriendshipWith(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	friendship, err := s.friendService.FriendshipWith(c.UserContext(), requester(c), id)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"friendship": friendship})
}
