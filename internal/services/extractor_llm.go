package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/datatypes"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
	"github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/platform/logger"
)

const extractionSystemPrompt = `You classify WhatsApp group messages from university communities and extract structured listing data.
Respond with a single JSON object:
{
  "category": "item_for_sale" | "apartment" | "other",
  "title": string,
  "price": number | null,
  "condition": "new" | "like_new" | "good" | "fair" | "poor" | "",
  "item_category": string,
  "listing_type": "roommate" | "sublet" | "rental" | "",
  "bedrooms": number | null,
  "bathrooms": number | null,
  "address": string,
  "furnished": boolean | null,
  "pet_friendly": boolean | null,
  "utilities_included": boolean | null,
  "contact_phone": string,
  "contact_email": string
}
Use null for anything the message does not state.`

// llmExtractor asks the model first and falls back to the rules extractor
// on any failure, so extraction never blocks on the AI endpoint.
type llmExtractor struct {
	ai       AIClient
	fallback Extractor
	log      *logger.Logger
}

func NewLLMExtractor(ai AIClient, fallback Extractor, log *logger.Logger) Extractor {
	return &llmExtractor{ai: ai, fallback: fallback, log: log.With("extractor", "llm")}
}

func (e *llmExtractor) Name() string { return "llm" }

func (e *llmExtractor) Extract(ctx context.Context, msg *types.RawMessage) (*Extraction, error) {
	fields, err := e.ai.GenerateJSON(ctx, extractionSystemPrompt, msg.Content)
	if err != nil {
		e.log.Warn("llm extraction failed, using rules", "raw_message_id", msg.ID, "error", err)
		return e.fallback.Extract(ctx, msg)
	}

	category := asString(fields["category"])
	out := &Extraction{Category: CategoryOther, Entities: fields}

	contact := map[string]string{}
	if v := asString(fields["contact_phone"]); v != "" {
		contact["phone"] = v
	}
	if v := asString(fields["contact_email"]); v != "" {
		contact["email"] = v
	}

	switch category {
	case CategoryItemForSale:
		out.Category = CategoryItemForSale
		item := &types.ItemForSale{
			ItemKey:      "item::" + msg.ID.String(),
			RawMessageID: msg.ID,
			SenderID:     msg.SenderID,
			Title:        orDefault(asString(fields["title"]), firstLine(msg.Content, 80)),
			Description:  msg.Content,
			Price:        asFloatPtr(fields["price"]),
			Category:     orDefault(asString(fields["item_category"]), "other"),
			Condition:    asString(fields["condition"]),
			ContactInfo:  marshalContact(contact),
			PostedAt:     msg.Timestamp,
		}
		out.Item = item
	case CategoryApartment:
		out.Category = CategoryApartment
		apt := &types.Apartment{
			ListingKey:        "apt::" + msg.ID.String(),
			RawMessageID:      msg.ID,
			SenderID:          msg.SenderID,
			ListingType:       orDefault(asString(fields["listing_type"]), "rental"),
			Address:           asString(fields["address"]),
			PricePerMonth:     asFloatPtr(fields["price"]),
			Bedrooms:          asIntPtr(fields["bedrooms"]),
			Bathrooms:         asFloatPtr(fields["bathrooms"]),
			Furnished:         asBoolPtr(fields["furnished"]),
			PetFriendly:       asBoolPtr(fields["pet_friendly"]),
			UtilitiesIncluded: asBoolPtr(fields["utilities_included"]),
			ContactInfo:       marshalContact(contact),
			Amenities:         marshalStringList(fields["amenities"]),
			KeyFeatures:       marshalStringList(fields["key_features"]),
			PostedAt:          msg.Timestamp,
		}
		out.Apartment = apt
	}

	return out, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func asFloatPtr(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return &f
		}
	}
	return nil
}

func asIntPtr(v any) *int {
	if f := asFloatPtr(v); f != nil {
		n := int(*f)
		return &n
	}
	return nil
}

func asBoolPtr(v any) *bool {
	if b, ok := v.(bool); ok {
		return &b
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func marshalStringList(v any) datatypes.JSON {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if s := asString(item); s != "" {
			parts = append(parts, strconv.Quote(s))
		}
	}
	return datatypes.JSON([]byte(fmt.Sprintf("[%s]", strings.Join(parts, ","))))
}
