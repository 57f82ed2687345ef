package models

import "strings"

// ToRecord renders the instruction in the shipment instruction store schema
func (s ShipmentInstruction) ToRecord() Record {
	lines := make([]Record, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, Record{
			LineFieldCode:        l.Code,
			LineFieldUnitsPerSet: l.UnitsPerSet,
			LineFieldExpiry:      l.Expiry,
			LineFieldLocation:    l.Location,
			LineFieldNote:        l.Note,
			LineFieldShortage:    l.Shortage,
		})
	}

	return Record{
		InstrFieldSourceApp:        s.SourceApp,
		InstrFieldSourceRecordID:   s.SourceRecordID,
		InstrFieldSource:           s.Source,
		InstrFieldListingGroupID:   s.ListingGroupID,
		InstrFieldListingRecordID:  s.ListingRecordID,
		InstrFieldManagementNumber: s.ManagementNumber,
		InstrFieldFetchDate:        s.FetchDate,
		InstrFieldLines:            lines,
		InstrFieldMarketplaceName:  s.MarketplaceName,
		InstrFieldOrderNumber:      s.OrderNumber,
		InstrFieldOrderDate:        s.OrderDate,
		InstrFieldQuantity:         s.Quantity,
		InstrFieldProductName:      s.ProductName,
		InstrFieldSizeCode:         s.SizeCode,
		InstrFieldTimeWindow:       s.TimeWindow,
		InstrFieldSenderName:       s.Sender.Name,
		InstrFieldSenderPostal:     s.Sender.PostalCode,
		InstrFieldSenderAddress:    s.Sender.Address,
		InstrFieldSenderPhone:      s.Sender.Phone,
		InstrFieldRecipientName:    s.Recipient.Name,
		InstrFieldRecipientPostal:  s.Recipient.PostalCode,
		InstrFieldRecipientAddress: s.Recipient.Address,
		InstrFieldRecipientPhone:   s.Recipient.Phone,
		InstrFieldCarrier:          s.Carrier,
		InstrFieldNotes:            strings.Join(s.Notes, "\n"),
		InstrFieldHasDefect:        s.HasDefect,
		InstrFieldDefectText:       s.DefectText,
		InstrFieldHasShortage:      s.HasShortage,
	}
}
