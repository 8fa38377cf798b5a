package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	types "github.com/prashanthjaganathan/whatsapp-chat-intelligence/internal/domain"
)

func newTestMessage(content string) *types.RawMessage {
	return &types.RawMessage{
		ID:        uuid.New(),
		GroupID:   uuid.New(),
		SenderID:  uuid.New(),
		Content:   content,
		Timestamp: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRulesExtractorItem(t *testing.T) {
	e := NewRulesExtractor(testLogger(t))
	msg := newTestMessage("Selling a barely used desk lamp $15 obo\npickup near campus, text 412-555-0182")

	out, err := e.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Category != CategoryItemForSale {
		t.Fatalf("category = %q", out.Category)
	}
	item := out.Item
	if item == nil {
		t.Fatal("expected item")
	}
	if item.Price == nil || *item.Price != 15 {
		t.Errorf("price = %v", item.Price)
	}
	if item.Condition != "like_new" {
		t.Errorf("condition = %q", item.Condition)
	}
	if item.Category != "furniture" {
		t.Errorf("item category = %q", item.Category)
	}
	if item.Title != "Selling a barely used desk lamp $15 obo" {
		t.Errorf("title = %q", item.Title)
	}
	if item.ItemKey != "item::"+msg.ID.String() {
		t.Errorf("item key = %q", item.ItemKey)
	}
}

func TestRulesExtractorApartment(t *testing.T) {
	e := NewRulesExtractor(testLogger(t))
	msg := newTestMessage("Summer sublet: 2 bedroom 1 bath apartment, $1200/month utilities included, furnished, no pets. Email me at sam@example.edu")

	out, err := e.Extract(context.Background(), msg)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Category != CategoryApartment {
		t.Fatalf("category = %q", out.Category)
	}
	apt := out.Apartment
	if apt == nil {
		t.Fatal("expected apartment")
	}
	if apt.ListingType != "sublet" {
		t.Errorf("listing type = %q", apt.ListingType)
	}
	if apt.Bedrooms == nil || *apt.Bedrooms != 2 {
		t.Errorf("bedrooms = %v", apt.Bedrooms)
	}
	if apt.PricePerMonth == nil || *apt.PricePerMonth != 1200 {
		t.Errorf("price = %v", apt.PricePerMonth)
	}
	if apt.Furnished == nil || !*apt.Furnished {
		t.Errorf("furnished = %v", apt.Furnished)
	}
	if apt.PetFriendly == nil || *apt.PetFriendly {
		t.Errorf("no pets should read as not pet friendly, got %v", apt.PetFriendly)
	}
	if apt.UtilitiesIncluded == nil || !*apt.UtilitiesIncluded {
		t.Errorf("utilities = %v", apt.UtilitiesIncluded)
	}
	if _, ok := out.Entities["contact_info"]; !ok {
		t.Error("expected contact info entity")
	}
}

func TestRulesExtractorOther(t *testing.T) {
	e := NewRulesExtractor(testLogger(t))
	out, err := e.Extract(context.Background(), newTestMessage("anyone up for dinner tonight?"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if out.Category != CategoryOther {
		t.Fatalf("category = %q", out.Category)
	}
	if out.Item != nil || out.Apartment != nil {
		t.Fatal("no listing rows expected")
	}
}

func TestExtractPriceCommas(t *testing.T) {
	p := extractPrice("asking $1,250.50 for the semester")
	if p == nil || *p != 1250.50 {
		t.Fatalf("price = %v", p)
	}
	if extractPrice("no numbers here") != nil {
		t.Fatal("expected nil price")
	}
}
