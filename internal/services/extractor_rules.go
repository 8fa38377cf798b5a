package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

// rulesExtractor classifies and extracts with regexes only. It is the
// default extractor and the fallback when no AI credentials are set.
type rulesExtractor struct {
	log *logger.Logger
}

func NewRulesExtractor(log *logger.Logger) Extractor {
	return &rulesExtractor{log: log.With("extractor", "rules")}
}

func (e *rulesExtractor) Name() string { return "rules" }

var (
	priceRE    = regexp.MustCompile(`\$\s*(\d[\d,]*(?:\.\d{1,2})?)`)
	bedroomRE  = regexp.MustCompile(`(?i)(\d+)\s*(?:bed(?:room)?s?\b|br\b|bhk\b)`)
	bathroomRE = regexp.MustCompile(`(?i)(\d+(?:\.\d)?)\s*(?:bath(?:room)?s?\b|ba\b)`)
	emailRE    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	contactRE  = regexp.MustCompile(`\+?\d[\d\s\-().]{8,}\d`)

	apartmentKeywords = []string{
		"apartment", "apt", "sublet", "sublease", "roommate", "lease",
		"bedroom", "studio", "housing", "rent", "utilities",
	}
	itemKeywords = []string{
		"selling", "for sale", "sale", "sell", "buy", "price", "pickup",
		"brand new", "barely used", "obo",
	}
)

func (e *rulesExtractor) Extract(_ context.Context, msg *types.RawMessage) (*Extraction, error) {
	text := msg.Content
	lower := strings.ToLower(text)

	out := &Extraction{
		Category: categorize(lower),
		Entities: map[string]any{},
	}

	price := extractPrice(text)
	if price != nil {
		out.Entities["price"] = *price
	}
	contact := extractContact(text)
	if len(contact) > 0 {
		out.Entities["contact_info"] = contact
	}

	switch out.Category {
	case CategoryApartment:
		out.Apartment = e.buildApartment(msg, text, lower, price, contact)
		out.Entities["listing_type"] = out.Apartment.ListingType
		if out.Apartment.Bedrooms != nil {
			out.Entities["bedrooms"] = *out.Apartment.Bedrooms
		}
	case CategoryItemForSale:
		out.Item = e.buildItem(msg, text, lower, price, contact)
		out.Entities["condition"] = out.Item.Condition
		out.Entities["title"] = out.Item.Title
	}

	return out, nil
}

func categorize(lower string) string {
	apartmentScore := keywordScore(lower, apartmentKeywords)
	itemScore := keywordScore(lower, itemKeywords)
	if strings.Contains(lower, "$") {
		itemScore++
	}

	// Housing posts mention prices too, so the apartment signal wins ties.
	switch {
	case apartmentScore > 0 && apartmentScore >= itemScore:
		return CategoryApartment
	case itemScore >= 2:
		return CategoryItemForSale
	default:
		return CategoryOther
	}
}

func keywordScore(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

func (e *rulesExtractor) buildItem(msg *types.RawMessage, text, lower string, price *float64, contact map[string]string) *types.ItemForSale {
	return &types.ItemForSale{
		ItemKey:      "item::" + msg.ID.String(),
		RawMessageID: msg.ID,
		SenderID:     msg.SenderID,
		Title:        firstLine(text, 80),
		Description:  text,
		Price:        price,
		Category:     itemCategory(lower),
		Condition:    itemCondition(lower),
		ContactInfo:  marshalContact(contact),
		PostedAt:     msg.Timestamp,
	}
}

func (e *rulesExtractor) buildApartment(msg *types.RawMessage, text, lower string, price *float64, contact map[string]string) *types.Apartment {
	apt := &types.Apartment{
		ListingKey:   "apt::" + msg.ID.String(),
		RawMessageID: msg.ID,
		SenderID:     msg.SenderID,
		ListingType:  listingType(lower),
		Address:      "",
		ContactInfo:  marshalContact(contact),
		Amenities:    datatypes.JSON([]byte("[]")),
		KeyFeatures:  datatypes.JSON([]byte("[]")),
		PostedAt:     msg.Timestamp,
	}
	apt.PricePerMonth = price
	if m := bedroomRE.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			apt.Bedrooms = &n
		}
	}
	if m := bathroomRE.FindStringSubmatch(text); m != nil {
		if f, err := strconv.ParseFloat(m[1], 64); err == nil {
			apt.Bathrooms = &f
		}
	}
	apt.Furnished = boolSignal(lower, "unfurnished", "furnished")
	apt.PetFriendly = boolSignal(lower, "no pets", "pet friendly", "pets ok", "pets allowed")
	if strings.Contains(lower, "utilities included") {
		v := true
		apt.UtilitiesIncluded = &v
	}
	return apt
}

// boolSignal checks the negative phrase before the positives so "no pets"
// does not read as pet friendly.
func boolSignal(lower, negative string, positives ...string) *bool {
	if strings.Contains(lower, negative) {
		v := false
		return &v
	}
	for _, p := range positives {
		if strings.Contains(lower, p) {
			v := true
			return &v
		}
	}
	return nil
}

func listingType(lower string) string {
	switch {
	case strings.Contains(lower, "roommate"):
		return "roommate"
	case strings.Contains(lower, "sublet") || strings.Contains(lower, "sublease"):
		return "sublet"
	default:
		return "rental"
	}
}

func itemCategory(lower string) string {
	switch {
	case containsAny(lower, "desk", "chair", "table", "couch", "sofa", "mattress", "bed frame", "lamp", "shelf", "dresser"):
		return "furniture"
	case containsAny(lower, "laptop", "monitor", "phone", "tv", "keyboard", "headphone", "speaker", "charger", "ipad"):
		return "electronics"
	case containsAny(lower, "textbook", "book"):
		return "books"
	case containsAny(lower, "bike", "bicycle", "scooter", "car"):
		return "vehicles"
	case containsAny(lower, "microwave", "fridge", "kettle", "blender", "vacuum", "air fryer"):
		return "appliances"
	default:
		return "other"
	}
}

func itemCondition(lower string) string {
	switch {
	case strings.Contains(lower, "brand new") || strings.Contains(lower, "never used") || strings.Contains(lower, "unopened"):
		return "new"
	case strings.Contains(lower, "like new") || strings.Contains(lower, "barely used"):
		return "like_new"
	case strings.Contains(lower, "good condition") || strings.Contains(lower, "great condition"):
		return "good"
	case strings.Contains(lower, "fair condition") || strings.Contains(lower, "some wear"):
		return "fair"
	case strings.Contains(lower, "used"):
		return "good"
	default:
		return ""
	}
}

func containsAny(lower string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func extractPrice(text string) *float64 {
	m := priceRE.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return nil
	}
	return &f
}

func extractContact(text string) map[string]string {
	out := map[string]string{}
	if m := emailRE.FindString(text); m != "" {
		out["email"] = m
	}
	if m := contactRE.FindString(text); m != "" {
		var b strings.Builder
		for _, r := range m {
			if r == '+' || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if b.Len() >= 10 {
			out["phone"] = b.String()
		}
	}
	return out
}

func marshalContact(contact map[string]string) datatypes.JSON {
	if len(contact) == 0 {
		return datatypes.JSON([]byte("{}"))
	}
	raw, err := json.Marshal(contact)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

func firstLine(text string, max int) string {
	line := strings.TrimSpace(text)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if len(line) > max {
		line = strings.TrimSpace(line[:max])
	}
	if line == "" {
		line = "untitled"
	}
	return line
}
