package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptocagua/model"
)

const advisorTimeout = 30 * time.Second

type offerFinder interface {
	Get(ctx context.Context, id string) (*model.Offer, error)
}

// AdvisorUsecase wraps the LLM: description drafts and risk notes. A nil
// Advisor means no API key was configured.
type AdvisorUsecase struct {
	advisor Advisor
	offers  offerFinder
}

func NewAdvisorUsecase(advisor Advisor, offers offerFinder) *AdvisorUsecase {
	return &AdvisorUsecase{advisor: advisor, offers: offers}
}

func (u *AdvisorUsecase) Configured() bool { return u.advisor != nil }

// GenerateDescription accepts the category as a code or a display label.
func (u *AdvisorUsecase) GenerateDescription(ctx context.Context, title, category string) (string, error) {
	if !u.Configured() {
		return "", ErrAINotConfigured
	}
	title = strings.TrimSpace(title)
	if title == "" || strings.TrimSpace(category) == "" {
		return "", ErrMissingInput
	}
	label := strings.TrimSpace(category)
	if c, ok := model.ParseAssetCategory(category); ok {
		label = c.Label()
	}

	ctx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()
	return u.advisor.GenerateDescription(ctx, title, label)
}

func (u *AdvisorUsecase) AnalyzeOffer(ctx context.Context, id string) (string, error) {
	if !u.Configured() {
		return "", ErrAINotConfigured
	}
	offer, err := u.offers.Get(ctx, id)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()
	return u.advisor.AnalyzeOffer(ctx, Summary(*offer))
}

// Summary is the one-line description of an offer sent for analysis.
func Summary(o model.Offer) string {
	return fmt.Sprintf("Offer: %s. Seller: @%s. Price: %s", o.Title, o.Nickname, o.Price)
}
