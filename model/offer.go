package model

import (
	"strings"
	"time"
)

// OfferType is the side of the trade the poster takes.
type OfferType string

const (
	OfferTypeBuy      OfferType = "BUY"
	OfferTypeSell     OfferType = "SELL"
	OfferTypeExchange OfferType = "EXCHANGE"
)

var offerTypeLabels = map[OfferType]string{
	OfferTypeBuy:      "COMPRA",
	OfferTypeSell:     "VENTA",
	OfferTypeExchange: "INTERCAMBIO",
}

func (t OfferType) Valid() bool {
	_, ok := offerTypeLabels[t]
	return ok
}

// Label returns the display label used by the marketplace front-end.
func (t OfferType) Label() string { return offerTypeLabels[t] }

// ParseOfferType accepts the canonical code or the display label.
func ParseOfferType(s string) (OfferType, bool) {
	s = strings.TrimSpace(s)
	for code, label := range offerTypeLabels {
		if strings.EqualFold(s, string(code)) || strings.EqualFold(s, label) {
			return code, true
		}
	}
	return "", false
}

// AssetCategory groups offers by what is traded.
type AssetCategory string

const (
	CategoryCrypto   AssetCategory = "CRYPTO"
	CategoryFiat     AssetCategory = "FIAT"
	CategoryGoods    AssetCategory = "GOODS"
	CategoryServices AssetCategory = "SERVICES"
	CategoryDigital  AssetCategory = "DIGITAL"
)

var categoryLabels = map[AssetCategory]string{
	CategoryCrypto:   "Criptomonedas",
	CategoryFiat:     "Moneda Fiat",
	CategoryGoods:    "Bienes Físicos",
	CategoryServices: "Servicios",
	CategoryDigital:  "Activos Digitales",
}

func (c AssetCategory) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c AssetCategory) Label() string { return categoryLabels[c] }

func ParseAssetCategory(s string) (AssetCategory, bool) {
	s = strings.TrimSpace(s)
	for code, label := range categoryLabels {
		if strings.EqualFold(s, string(code)) || strings.EqualFold(s, label) {
			return code, true
		}
	}
	return "", false
}

// OfferStatus is the moderation state of an offer.
type OfferStatus string

const (
	// StatusPending is set on creation and hidden from the public listing.
	StatusPending OfferStatus = "PENDING"
	// StatusApproved is set by the admin only.
	StatusApproved OfferStatus = "APPROVED"
)

func (s OfferStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved
}

// TimeLayout is the ISO-8601 form stored in createdAt.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

type Offer struct {
	ID          string        `json:"id"`
	Type        OfferType     `json:"type"`
	Category    AssetCategory `json:"category"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Asset       string        `json:"asset"`
	Price       string        `json:"price"`
	Location    string        `json:"location"`
	Nickname    string        `json:"nickname"`
	ContactInfo string        `json:"contactInfo"`
	CreatedAt   string        `json:"createdAt"`
	Status      OfferStatus   `json:"status"`
	Reputation  int           `json:"reputation"`
	Verified    bool          `json:"verified"`
}

// Visible reports whether a viewer may see the offer. Non-admins only see
// approved offers.
func (o Offer) Visible(isAdmin bool) bool {
	return isAdmin || o.Status == StatusApproved
}

// Draft is what a poster submits; the lifecycle manager fills in the rest.
type Draft struct {
	Type        OfferType     `json:"type"`
	Category    AssetCategory `json:"category"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Asset       string        `json:"asset"`
	Price       string        `json:"price"`
	Location    string        `json:"location"`
	Nickname    string        `json:"nickname"`
	ContactInfo string        `json:"contactInfo"`
}

// Validate returns a ValidationError listing every missing or invalid field.
// Description, asset and location are optional; an empty category is valid
// because Normalize defaults it to CRYPTO.
func (d Draft) Validate() error {
	var fields []string
	if !d.Type.Valid() {
		fields = append(fields, "type")
	}
	if d.Category != "" && !d.Category.Valid() {
		fields = append(fields, "category")
	}
	required := []struct {
		name  string
		value string
	}{
		{"title", d.Title},
		{"price", d.Price},
		{"nickname", d.Nickname},
		{"contactInfo", d.ContactInfo},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			fields = append(fields, f.name)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Normalize trims surrounding whitespace from every text field and fills in
// the CRYPTO category when none was chosen.
func (d Draft) Normalize() Draft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Asset = strings.TrimSpace(d.Asset)
	d.Price = strings.TrimSpace(d.Price)
	d.Location = strings.TrimSpace(d.Location)
	d.Nickname = strings.TrimSpace(d.Nickname)
	d.ContactInfo = strings.TrimSpace(d.ContactInfo)
	if strings.TrimSpace(string(d.Category)) == "" {
		d.Category = CategoryCrypto
	}
	return d
}

// NewOffer builds a PENDING offer from a draft.
func NewOffer(id string, d Draft, now time.Time) Offer {
	return Offer{
		ID:          id,
		Type:        d.Type,
		Category:    d.Category,
		Title:       d.Title,
		Description: d.Description,
		Asset:       d.Asset,
		Price:       d.Price,
		Location:    d.Location,
		Nickname:    d.Nickname,
		ContactInfo: d.ContactInfo,
		CreatedAt:   now.UTC().Format(TimeLayout),
		Status:      StatusPending,
		Reputation:  0,
		Verified:    false,
	}
}

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid offer: missing or invalid " + strings.Join(e.Fields, ", ")
}
