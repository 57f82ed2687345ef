package service

import (
	"testing"

	"shipment-consolidator/internal/models"

	"github.com/stretchr/testify/assert"
)

func validInstruction() models.ShipmentInstruction {
	return models.ShipmentInstruction{
		Recipient: models.Party{
			Name:       "山田 太郎",
			PostalCode: "100-0001",
			Address:    "東京都千代田区千代田1-1",
			Phone:      "03-1234-5678",
		},
	}
}

func TestNormalizePostalCode(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		want       string
		wantDefect bool
	}{
		{"zero padded", "123-456", "0123456", false},
		{"hyphenated", "100-0001", "1000001", false},
		{"full width", "１００－０００１", "1000001", false},
		{"postal mark", "〒530-0001", "5300001", false},
		{"empty", "  ", "", true},
		{"too long", "1234-5678", "12345678", true},
		{"letters", "ABC-DEFG", "ABCDEFG", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defect := normalizePostalCode(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantDefect, defect != "")
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		want       string
		wantDefect bool
	}{
		{"international mobile", "+819012345678", "09012345678", false},
		{"international without plus", "81-6-1234-5678", "0612345678", false},
		{"landline", "03-1234-5678", "0312345678", false},
		{"full width", "０９０（１２３４）５６７８", "09012345678", false},
		{"empty", "", "", true},
		{"too short", "123-456", "123456", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, defect := normalizePhone(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantDefect, defect != "")
		})
	}
}

func TestValidatePadsShortPostalCode(t *testing.T) {
	v := NewAddressValidator()
	instr := validInstruction()
	instr.Recipient.PostalCode = "123-456"

	out := v.Validate(instr)

	assert.Equal(t, "0123456", out.Recipient.PostalCode)
	assert.False(t, out.HasDefect)
	assert.Empty(t, out.DefectText)
}

func TestValidateRewritesCountryCode(t *testing.T) {
	v := NewAddressValidator()
	instr := validInstruction()
	instr.Recipient.Phone = "+819012345678"

	out := v.Validate(instr)

	assert.Equal(t, "09012345678", out.Recipient.Phone)
	assert.False(t, out.HasDefect)
}

func TestValidateFlagsWithoutBlocking(t *testing.T) {
	v := NewAddressValidator()
	instr := validInstruction()
	instr.Recipient.Name = ""
	instr.Recipient.Address = "東京都"
	instr.Recipient.Phone = "12"

	out := v.Validate(instr)

	assert.True(t, out.HasDefect)
	assert.Len(t, out.Defects, 4)
	assert.Contains(t, out.DefectText, "recipient name is empty")
	assert.Contains(t, out.DefectText, " / ")
	assert.Equal(t, "1000001", out.Recipient.PostalCode)
	// input untouched
	assert.Empty(t, instr.Defects)
	assert.Equal(t, "100-0001", instr.Recipient.PostalCode)
}

func TestAddressDefects(t *testing.T) {
	assert.Equal(t, []string{"address is empty"}, addressDefects(" "))
	assert.Empty(t, addressDefects("大阪府大阪市北区梅田2-2"))
	assert.Empty(t, addressDefects("京都府京都市左京区一乗寺"))
	assert.Len(t, addressDefects("北海道"), 2)
	assert.Equal(t, []string{"address has no house number"}, addressDefects("長野県北佐久郡軽井沢町"))
}
