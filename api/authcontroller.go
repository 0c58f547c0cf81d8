package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthbrief/auth"
)

// AuthController issues reviewer tokens for the configured admin account.
type AuthController struct {
	tokens       *auth.Service
	username     string
	passwordHash string
}

// NewAuthController wires the token service to the admin credentials from
// the environment.
func NewAuthController(tokens *auth.Service, username, passwordHash string) *AuthController {
	return &AuthController{tokens: tokens, username: username, passwordHash: passwordHash}
}

// RegisterAuthRoutes registers login on the public group and token
// introspection on the protected group.
func RegisterAuthRoutes(public, protected *gin.RouterGroup, ctrl *AuthController) {
	public.POST("/auth/login", ctrl.handleLogin)
	protected.GET("/auth/me", ctrl.handleMe)
}

// LoginRequest is the reviewer login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the signed reviewer token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (ctrl *AuthController) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := auth.VerifyCredentials(req.Username, req.Password, ctrl.username, ctrl.passwordHash); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect username or password"})
		return
	}

	token, err := ctrl.tokens.GenerateToken(req.Username, "admin")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{AccessToken: token, TokenType: "bearer"})
}

func (ctrl *AuthController) handleMe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"username": c.GetString("username"),
		"role":     c.GetString("role"),
	})
}
