package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"cryptocagua/model"
	"cryptocagua/pkg/sheets"
	"cryptocagua/usecase"
)

const (
	maxBodyBytes = 1 << 20
	// sessionCookie carries the admin token issued by /api/admin/login.
	sessionCookie = "cryptocagua_admin"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(offers *OfferController, admin *AdminController) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(cors())
	router.Use(clientSession())

	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	})

	// Last error recorded by a handler becomes the JSON response.
	router.Use(func(c *gin.Context) {
		c.Next()
		err := c.Errors.Last()
		if err == nil || c.Writer.Written() {
			return
		}
		code := statusFor(err.Err)
		c.JSON(code, gin.H{"error": err.Error()})
	})

	api := router.Group("/api")

	o := api.Group("/offers")
	o.GET("", offers.List)
	o.POST("", offers.Create)
	o.GET("/:id", offers.Get)
	o.DELETE("/:id", offers.Delete)
	o.GET("/:id/contact", offers.Contact)
	o.POST("/:id/approve", offers.Approve)
	o.POST("/:id/withdraw", offers.Withdraw)
	o.POST("/:id/rating", offers.Rating)
	o.POST("/:id/analyze", offers.Analyze)

	api.POST("/ai/description", offers.Describe)
	api.GET("/profile", offers.Profile)

	a := api.Group("/admin")
	a.POST("/login", admin.Login)
	a.POST("/logout", admin.Logout)
	a.GET("/session", admin.Session)
	a.GET("/settings", admin.GetSettings)
	a.PUT("/settings", admin.UpdateSettings)
	a.POST("/test-connection", admin.TestConnection)
	a.GET("/magic-link", admin.MagicLink)
	a.POST("/magic-link", admin.ApplyMagicLink)

	return router
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// clientSession scopes admin checks to the token the caller presents, as a
// bearer header or the session cookie. Requests without one are anonymous.
func clientSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(sessionCookie)
		if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
		c.Request = c.Request.WithContext(usecase.WithSession(c.Request.Context(), token))
		c.Next()
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

func statusFor(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, usecase.ErrMissingInput),
		errors.Is(err, sheets.ErrInvalidURL),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrAdminRequired),
		errors.Is(err, usecase.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, usecase.ErrOfferNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrAINotConfigured),
		errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("invalid request body")

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(errors.Join(errBadRequest, err))
		return false
	}
	return true
}

// receiptBody is the JSON form of a lifecycle write result.
func receiptBody(r usecase.Receipt) gin.H {
	body := gin.H{
		"offer":      r.Offer,
		"synced":     r.Synced(),
		"local_only": r.LocalOnly(),
	}
	if r.Ack != nil {
		body["confirmed"] = r.Ack.Confirmed
	}
	if r.RemoteErr != nil && !r.LocalOnly() {
		body["remote_error"] = r.RemoteErr.Error()
		body["remote_diagnosis"] = sheets.Diagnose(r.RemoteErr).Kind
	}
	return body
}
