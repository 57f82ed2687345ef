package service

import (
	"fmt"
	"strings"

	"shipment-consolidator/internal/models"
)

// Marketplace keys
const (
	MarketplaceRakuten  = "rakuten"
	MarketplaceAmazon   = "amazon"
	MarketplaceYahoo    = "yahoo"
	MarketplaceMakeshop = "makeshop"
)

// DefaultMarketplaces returns the strategy table for every supported marketplace
func DefaultMarketplaces() map[string]Marketplace {
	return map[string]Marketplace{
		MarketplaceRakuten:  {Decode: decodeRakuten, Transform: transformRakuten},
		MarketplaceAmazon:   {Decode: decodeAmazon, Transform: transformAmazon},
		MarketplaceYahoo:    {Decode: decodeYahoo, Transform: transformYahoo},
		MarketplaceMakeshop: {Decode: decodeMakeshop, Transform: transformMakeshop},
	}
}

// Rakuten: one item per order record, linked by item management number.

func decodeRakuten(rec models.Record) []models.Order {
	return []models.Order{{
		ManagementKey: rec.String("manage_number"),
		Quantity:      rec.Int("units"),
		OrderDate:     rec.String("order_datetime"),
		Fields:        rec,
	}}
}

func transformRakuten(tc *TransformContext, order models.Order, listing *models.Listing) *models.ShipmentInstruction {
	lines := buildLines(tc, order, listing)
	if len(lines) == 0 {
		return nil
	}
	f := order.Fields
	instr := baseInstruction(tc, order, listing, lines)
	instr.OrderNumber = f.String("order_number")
	instr.OrderDate = formatOrderDate(order.OrderDate)
	instr.TimeWindow = timeWindowCode(f.String("delivery_time"))
	instr.Recipient = models.Party{
		Name:       joinNonEmpty(" ", f.String("ship_family_name"), f.String("ship_first_name")),
		PostalCode: joinNonEmpty("-", f.String("ship_zip1"), f.String("ship_zip2")),
		Address:    joinNonEmpty("", f.String("ship_prefecture"), f.String("ship_city"), f.String("ship_sub_address")),
		Phone:      joinNonEmpty("-", f.String("ship_phone1"), f.String("ship_phone2"), f.String("ship_phone3")),
	}
	if coupon := f.String("coupon_name"); coupon != "" {
		instr.Notes = append(instr.Notes, fmt.Sprintf("coupon: %s (%d yen)", coupon, f.Int("coupon_total_price")))
	}
	if f.String("gift_check") == "1" {
		instr.Notes = append(instr.Notes, "gift")
	}
	return instr
}

// Amazon: one item per order record, linked by seller SKU.

func decodeAmazon(rec models.Record) []models.Order {
	return []models.Order{{
		ManagementKey: rec.String("sku"),
		Quantity:      rec.Int("quantity_purchased"),
		OrderDate:     rec.String("purchase_date"),
		Fields:        rec,
	}}
}

func transformAmazon(tc *TransformContext, order models.Order, listing *models.Listing) *models.ShipmentInstruction {
	lines := buildLines(tc, order, listing)
	if len(lines) == 0 {
		return nil
	}
	f := order.Fields
	instr := baseInstruction(tc, order, listing, lines)
	instr.OrderNumber = f.String("amazon_order_id")
	instr.OrderDate = formatOrderDate(order.OrderDate)
	if instr.ProductName == "" {
		instr.ProductName = f.String("product_name")
	}
	instr.Recipient = models.Party{
		Name:       f.First("recipient_name", "buyer_name"),
		PostalCode: f.String("ship_postal_code"),
		Address: joinNonEmpty("", f.String("ship_state"), f.String("ship_city"),
			f.String("ship_address_1"), f.String("ship_address_2"), f.String("ship_address_3")),
		Phone: f.First("ship_phone_number", "buyer_phone_number"),
	}
	if strings.EqualFold(f.String("is_prime"), "true") {
		instr.Notes = append(instr.Notes, "prime")
	}
	if promo := f.String("promotion_ids"); promo != "" {
		instr.Notes = append(instr.Notes, "promotion: "+promo)
	}
	return instr
}

// Yahoo: an order record carries an item subtable; each item becomes its own
// order linked to the listing catalog by item group id.

func decodeYahoo(rec models.Record) []models.Order {
	items := rec.Table("items")
	orders := make([]models.Order, 0, len(items))
	for _, item := range items {
		fields := make(models.Record, len(rec)+len(item))
		for k, v := range rec {
			fields[k] = v
		}
		for k, v := range item {
			fields["item_"+k] = v
		}
		orders = append(orders, models.Order{
			ManagementKey: item.String("group_id"),
			Quantity:      item.Int("quantity"),
			OrderDate:     rec.String("order_time"),
			Fields:        fields,
		})
	}
	return orders
}

func transformYahoo(tc *TransformContext, order models.Order, listing *models.Listing) *models.ShipmentInstruction {
	lines := buildLines(tc, order, listing)
	if len(lines) == 0 {
		return nil
	}
	f := order.Fields
	instr := baseInstruction(tc, order, listing, lines)
	instr.OrderNumber = f.String("order_id")
	instr.OrderDate = formatOrderDate(order.OrderDate)
	instr.TimeWindow = timeWindowCode(f.String("ship_request_time"))
	if instr.ProductName == "" {
		instr.ProductName = f.String("item_title")
	}
	instr.Recipient = models.Party{
		Name:       joinNonEmpty(" ", f.String("ship_last_name"), f.String("ship_first_name")),
		PostalCode: f.String("ship_zip_code"),
		Address: joinNonEmpty("", f.String("ship_prefecture"), f.String("ship_city"),
			f.String("ship_address1"), f.String("ship_address2")),
		Phone: f.String("ship_phone_number"),
	}
	if discount := f.Int("use_coupon_discount"); discount > 0 {
		instr.Notes = append(instr.Notes, fmt.Sprintf("coupon discount: %d yen", discount))
	}
	return instr
}

// Makeshop: one item per order record, linked by product code.

func decodeMakeshop(rec models.Record) []models.Order {
	return []models.Order{{
		ManagementKey: rec.String("product_code"),
		Quantity:      rec.Int("amount"),
		OrderDate:     rec.String("order_date"),
		Fields:        rec,
	}}
}

func transformMakeshop(tc *TransformContext, order models.Order, listing *models.Listing) *models.ShipmentInstruction {
	lines := buildLines(tc, order, listing)
	if len(lines) == 0 {
		return nil
	}
	f := order.Fields
	instr := baseInstruction(tc, order, listing, lines)
	instr.OrderNumber = f.String("order_no")
	instr.OrderDate = formatOrderDate(order.OrderDate)
	instr.TimeWindow = timeWindowCode(f.String("delivery_time"))
	instr.Recipient = models.Party{
		Name:       f.String("receiver_name"),
		PostalCode: f.String("receiver_zip"),
		Address:    f.String("receiver_addr"),
		Phone:      f.String("receiver_tel"),
	}
	if f.String("gift_wrap") == "1" {
		instr.Notes = append(instr.Notes, "gift wrapping")
	}
	if memo := f.String("memo"); memo != "" {
		instr.Notes = append(instr.Notes, "memo: "+memo)
	}
	return instr
}
