package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/roomi-app/roomi-backend/internal/auth"
)

// Me reports who the caller is authenticated as.
func (h *Handler) Me(c *gin.Context) {
	uid := auth.UserFirebaseUID(c)
	c.JSON(http.StatusOK, MeResponse{
		OK:       true,
		SignedIn: uid != "",
		UserID:   uid,
		UserName: auth.UserName(c),
		Email:    auth.UserEmail(c),
	})
}
