package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cryptocagua/dao"
	"cryptocagua/model"
	"cryptocagua/usecase"
)

type OfferController struct {
	offers   *usecase.OfferUsecase
	advisor  *usecase.AdvisorUsecase
	settings *dao.SettingsRepository
}

func NewOfferController(offers *usecase.OfferUsecase, advisor *usecase.AdvisorUsecase, settings *dao.SettingsRepository) *OfferController {
	return &OfferController{offers: offers, advisor: advisor, settings: settings}
}

// List refreshes from the sheet unless refresh=false, then filters for the
// viewer. view=pending only has an effect for admins.
func (h *OfferController) List(c *gin.Context) {
	ctx := c.Request.Context()
	stale := false
	if c.DefaultQuery("refresh", "true") != "false" {
		res, err := h.offers.Refresh(ctx)
		if err != nil {
			_ = c.Error(err)
			return
		}
		stale = !res.Fresh
	}

	view := usecase.ViewPublic
	if c.Query("view") == "pending" {
		view = usecase.ViewPending
	}
	offers, err := h.offers.List(ctx, usecase.Query{View: view, Search: c.Query("q")})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": offers, "stale": stale})
}

func (h *OfferController) Get(c *gin.Context) {
	offer, err := h.offers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": offer})
}

func (h *OfferController) Create(c *gin.Context) {
	var draft model.Draft
	if !bindJSON(c, &draft) {
		return
	}
	ctx := c.Request.Context()
	r, err := h.offers.Create(ctx, draft)
	if err != nil {
		_ = c.Error(err)
		return
	}
	body := receiptBody(r)
	if link, err := h.offers.ReviewRequest(ctx, r.Offer.Title); err == nil && link != "" {
		body["admin_link"] = link
	}
	if mail, err := h.offers.ReviewMail(ctx, *r.Offer); err == nil && mail != "" {
		body["admin_mail"] = mail
	}
	c.JSON(http.StatusCreated, body)
}

func (h *OfferController) Approve(c *gin.Context) {
	r, err := h.offers.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, receiptBody(r))
}

func (h *OfferController) Delete(c *gin.Context) {
	r, err := h.offers.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, receiptBody(r))
}

type withdrawInput struct {
	Contact string `json:"contact" binding:"required"`
}

func (h *OfferController) Withdraw(c *gin.Context) {
	var in withdrawInput
	if !bindJSON(c, &in) {
		return
	}
	r, err := h.offers.Withdraw(c.Request.Context(), c.Param("id"), in.Contact)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, receiptBody(r))
}

func (h *OfferController) Contact(c *gin.Context) {
	link, err := h.offers.ContactLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if link == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "offer has no usable phone number"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"whatsapp": link})
}

type ratingInput struct {
	Stars int `json:"stars" binding:"required,min=1,max=5"`
}

func (h *OfferController) Rating(c *gin.Context) {
	var in ratingInput
	if !bindJSON(c, &in) {
		return
	}
	link, err := h.offers.RatingSuggestion(c.Request.Context(), c.Param("id"), in.Stars)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if link == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "admin phone is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"whatsapp": link, "stars": strconv.Itoa(in.Stars)})
}

func (h *OfferController) Analyze(c *gin.Context) {
	text, err := h.advisor.AnalyzeOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": text})
}

type describeInput struct {
	Title    string `json:"title"`
	Category string `json:"category"`
}

func (h *OfferController) Describe(c *gin.Context) {
	var in describeInput
	if !bindJSON(c, &in) {
		return
	}
	text, err := h.advisor.GenerateDescription(c.Request.Context(), in.Title, in.Category)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"description": text})
}

func (h *OfferController) Profile(c *gin.Context) {
	p, err := h.settings.Profile(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": p})
}
