// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"nutriauth/internal/delivery/http/middleware"
	"nutriauth/internal/delivery/http/router/handler"
	"nutriauth/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler     *handler.AuthHandler
	SecurityHandler *handler.SecurityHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler     *handler.AuthHandler
	securityHandler *handler.SecurityHandler
	authMiddleware  *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:     params.AuthHandler,
		securityHandler: params.SecurityHandler,
		authMiddleware:  params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	// Auth routes
	authGroup := e.Group("/auth")
	{
		authGroup.POST("/register", r.authHandler.Register)
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.POST("/login/mfa", r.authHandler.VerifyMfa)
		authGroup.POST("/refresh", r.authHandler.Refresh)
		authGroup.POST("/logout", r.authHandler.Logout)
	}

	// Auth routes that require a valid access token
	sessionGroup := e.Group("/auth")
	sessionGroup.Use(r.authMiddleware.Authenticate)
	{
		sessionGroup.GET("/profile", r.authHandler.Profile)
		sessionGroup.POST("/logout-all", r.authHandler.LogoutAll)
	}

	// Security event export, admins only
	securityGroup := e.Group("/security")
	securityGroup.Use(r.authMiddleware.Authenticate)
	securityGroup.Use(r.authMiddleware.RequireRoles(entity.RoleAdmin))
	{
		securityGroup.GET("/events/export", r.securityHandler.ExportEvents)
	}
}
