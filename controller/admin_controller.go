package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cryptocagua/model"
	"cryptocagua/usecase"
)

type AdminController struct {
	admin     *usecase.AdminUsecase
	publicURL string
}

func NewAdminController(admin *usecase.AdminUsecase, publicURL string) *AdminController {
	return &AdminController{admin: admin, publicURL: publicURL}
}

type loginInput struct {
	PIN string `json:"pin" binding:"required"`
}

func (h *AdminController) Login(c *gin.Context) {
	var in loginInput
	if !bindJSON(c, &in) {
		return
	}
	token, ok, err := h.admin.Login(c.Request.Context(), in.PIN)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect PIN"})
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, token, int(usecase.AdminSessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"admin": true, "token": token})
}

func (h *AdminController) Logout(c *gin.Context) {
	if err := h.admin.Logout(c.Request.Context()); err != nil {
		_ = c.Error(err)
		return
	}
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"admin": false})
}

func (h *AdminController) Session(c *gin.Context) {
	ok, err := h.admin.IsAdmin(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": ok})
}

func (h *AdminController) GetSettings(c *gin.Context) {
	s, err := h.admin.Settings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s})
}

func (h *AdminController) UpdateSettings(c *gin.Context) {
	var in model.Settings
	if !bindJSON(c, &in) {
		return
	}
	if err := h.admin.UpdateSettings(c.Request.Context(), in); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "settings saved"})
}

func (h *AdminController) TestConnection(c *gin.Context) {
	d, err := h.admin.TestConnection(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": d.OK(), "kind": d.Kind, "message": d.Message})
}

func (h *AdminController) MagicLink(c *gin.Context) {
	link, err := h.admin.BuildMagicLink(c.Request.Context(), h.publicURL)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"link": link})
}

type magicLinkInput struct {
	Code string `json:"code" binding:"required"`
}

func (h *AdminController) ApplyMagicLink(c *gin.Context) {
	var in magicLinkInput
	if !bindJSON(c, &in) {
		return
	}
	ok, err := h.admin.ApplyMagicLink(c.Request.Context(), in.Code)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "setup code does not contain an endpoint URL"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"configured": true})
}
