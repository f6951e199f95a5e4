package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userID"
	ctxEmail  = "email"
	ctxClaims = "claims"
)

type HTTPUserInfo struct {
	UserID string
	Email  string
}

// ExtractUserInfo reads the identity set by AuthMiddleware, answering 401 when absent.
func ExtractUserInfo(c *gin.Context) (HTTPUserInfo, bool) {
	userID := c.GetString(ctxUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
		return HTTPUserInfo{}, false
	}
	return HTTPUserInfo{UserID: userID, Email: c.GetString(ctxEmail)}, true
}
