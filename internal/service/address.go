package service

import (
	"fmt"
	"strings"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/normalize"
	"shipment-consolidator/internal/util"
)

// Defect field labels used in metrics
const (
	defectFieldPostal  = "postal_code"
	defectFieldName    = "name"
	defectFieldAddress = "address"
	defectFieldPhone   = "phone"
)

var separatorStripper = strings.NewReplacer(
	"-", "", "‐", "", "‑", "", "‒", "", "–", "", "—", "", "―", "", "−", "",
	"ｰ", "", "ー", "", "〒", "", " ", "", "　", "", "(", "", ")", "",
)

var municipalitySuffixes = []string{"市", "区", "町", "村", "郡"}

const kanjiNumerals = "一二三四五六七八九十〇百千"

// AddressValidator normalizes recipient postal codes and phone numbers and flags
// address defects. It never rejects an instruction.
type AddressValidator struct{}

// NewAddressValidator creates a new address validator
func NewAddressValidator() *AddressValidator {
	return &AddressValidator{}
}

// Validate returns a copy of instr with the recipient's postal code and phone in
// canonical form and every defect found recorded on it.
func (v *AddressValidator) Validate(instr models.ShipmentInstruction) models.ShipmentInstruction {
	out := instr
	out.Defects = append([]string(nil), instr.Defects...)

	postal, defect := normalizePostalCode(instr.Recipient.PostalCode)
	out.Recipient.PostalCode = postal
	addDefect(&out, defectFieldPostal, defect)

	if strings.TrimSpace(instr.Recipient.Name) == "" {
		addDefect(&out, defectFieldName, "recipient name is empty")
	}

	for _, d := range addressDefects(instr.Recipient.Address) {
		addDefect(&out, defectFieldAddress, d)
	}

	phone, defect := normalizePhone(instr.Recipient.Phone)
	out.Recipient.Phone = phone
	addDefect(&out, defectFieldPhone, defect)

	out.HasDefect = len(out.Defects) > 0
	out.DefectText = strings.Join(out.Defects, " / ")
	return out
}

// normalizePostalCode strips separators, folds full-width digits and left-pads to
// seven digits. The defect is empty when the result is a valid postal code.
func normalizePostalCode(raw string) (string, string) {
	code := separatorStripper.Replace(normalize.Narrow(strings.TrimSpace(raw)))
	if code == "" {
		return "", "postal code is empty"
	}
	if len(code) < 7 {
		code = strings.Repeat("0", 7-len(code)) + code
	}
	if len(code) != 7 || !allDigits(code) {
		return code, fmt.Sprintf("postal code %q is not 7 digits", code)
	}
	return code, ""
}

// normalizePhone strips separators, folds full-width digits and rewrites a +81
// country prefix to a leading 0
func normalizePhone(raw string) (string, string) {
	phone := separatorStripper.Replace(normalize.Narrow(strings.TrimSpace(raw)))
	switch {
	case strings.HasPrefix(phone, "+81"):
		phone = "0" + phone[3:]
	case strings.HasPrefix(phone, "81"):
		phone = "0" + phone[2:]
	}
	if phone == "" {
		return "", "phone number is empty"
	}
	if (len(phone) != 10 && len(phone) != 11) || !allDigits(phone) {
		return phone, fmt.Sprintf("phone number %q is not 10 or 11 digits", phone)
	}
	return phone, ""
}

func addressDefects(address string) []string {
	address = strings.TrimSpace(address)
	if address == "" {
		return []string{"address is empty"}
	}
	var defects []string
	hasMunicipality := false
	for _, s := range municipalitySuffixes {
		if strings.Contains(address, s) {
			hasMunicipality = true
			break
		}
	}
	if !hasMunicipality {
		defects = append(defects, "address has no city, ward, town or village")
	}
	if !strings.ContainsAny(address, "0123456789０１２３４５６７８９"+kanjiNumerals) {
		defects = append(defects, "address has no house number")
	}
	return defects
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func addDefect(instr *models.ShipmentInstruction, field, defect string) {
	if defect == "" {
		return
	}
	util.AddressDefectsTotal.WithLabelValues(field).Inc()
	instr.Defects = append(instr.Defects, defect)
}
