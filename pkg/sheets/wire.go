package sheets

import (
	"bytes"
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"cryptocagua/model"
)

// Actions understood by the sheet script.
const (
	ActionRead         = "read"
	ActionSave         = "save"
	ActionUpdateStatus = "updateStatus"
	ActionDelete       = "delete"
)

// EncodeOffer renders every field as a string, the only type the sheet
// stores.
func EncodeOffer(action string, o model.Offer) url.Values {
	v := url.Values{}
	v.Set("action", action)
	v.Set("id", o.ID)
	v.Set("type", string(o.Type))
	v.Set("category", string(o.Category))
	v.Set("title", o.Title)
	v.Set("description", o.Description)
	v.Set("asset", o.Asset)
	v.Set("price", o.Price)
	v.Set("location", o.Location)
	v.Set("nickname", o.Nickname)
	v.Set("contactInfo", o.ContactInfo)
	v.Set("createdAt", o.CreatedAt)
	v.Set("status", string(o.Status))
	v.Set("reputation", strconv.Itoa(o.Reputation))
	v.Set("verified", strconv.FormatBool(o.Verified))
	return v
}

// flexString accepts a JSON string, number, bool or null.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

// wireOffer mirrors one sheet row as returned by the read action.
type wireOffer struct {
	ID          flexString `json:"id"`
	Type        flexString `json:"type"`
	Category    flexString `json:"category"`
	Title       flexString `json:"title"`
	Description flexString `json:"description"`
	Asset       flexString `json:"asset"`
	Price       flexString `json:"price"`
	Location    flexString `json:"location"`
	Nickname    flexString `json:"nickname"`
	ContactInfo flexString `json:"contactInfo"`
	CreatedAt   flexString `json:"createdAt"`
	Status      flexString `json:"status"`
	Reputation  flexString `json:"reputation"`
	Verified    flexString `json:"verified"`
}

func (w wireOffer) toModel() model.Offer {
	o := model.Offer{
		ID:          strings.TrimSpace(string(w.ID)),
		Title:       string(w.Title),
		Description: string(w.Description),
		Asset:       string(w.Asset),
		Price:       string(w.Price),
		Location:    string(w.Location),
		Nickname:    string(w.Nickname),
		ContactInfo: string(w.ContactInfo),
		CreatedAt:   normalizeTime(string(w.CreatedAt)),
		Status:      parseStatus(string(w.Status)),
		Reputation:  parseReputation(string(w.Reputation)),
		Verified:    parseBool(string(w.Verified)),
	}
	if t, ok := model.ParseOfferType(string(w.Type)); ok {
		o.Type = t
	} else {
		o.Type = model.OfferType(strings.TrimSpace(string(w.Type)))
	}
	if c, ok := model.ParseAssetCategory(string(w.Category)); ok {
		o.Category = c
	} else {
		o.Category = model.AssetCategory(strings.TrimSpace(string(w.Category)))
	}
	return o
}

// DecodeOffers converts the data array of a read response. Rows without an
// id are skipped and only the first row of a duplicated id is kept.
func DecodeOffers(data json.RawMessage) ([]model.Offer, error) {
	var rows []wireOffer
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rows))
	offers := make([]model.Offer, 0, len(rows))
	for _, row := range rows {
		o := row.toModel()
		if o.ID == "" || seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		offers = append(offers, o)
	}
	return offers, nil
}

// An empty status is treated as pending so unknown rows stay hidden.
func parseStatus(s string) model.OfferStatus {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return model.StatusPending
	}
	return model.OfferStatus(s)
}

func parseReputation(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange), math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "si", "sí":
		return true
	}
	return false
}

// normalizeTime rewrites parseable timestamps into model.TimeLayout and
// leaves anything else untouched.
func normalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC().Format(model.TimeLayout)
	}
	return s
}
