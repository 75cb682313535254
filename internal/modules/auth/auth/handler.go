package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/medvault/portal/internal/middleware"
	"github.com/medvault/portal/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")

	a.POST("/login", h.login)
	a.POST("/register", h.register)
	a.GET("/me", authMW, h.me)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, expires, err := h.svc.Login(c.Request.Context(), dto.Username, dto.Password, c.ClientIP())
	if err != nil {
		if errors.Is(err, errAuthUserNotFound) || errors.Is(err, errAuthWrongPassword) {
			response.ForbiddenMsg(c, "invalid username or password")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, loginResponse{Token: token, ExpiresAt: expires})
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Register(c.Request.Context(), &dto)
	if err != nil {
		if errors.Is(err, errAlreadyRegistered) {
			response.Conflict(c, err.Error())
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, u)
}

func (h *Handler) me(c *gin.Context) {
	u, err := h.svc.Me(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.Unauthorized(c)
		return
	}
	response.OK(c, u)
}
