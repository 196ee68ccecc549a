package agreement

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseProperty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Property
	}{
		{"empty", ``, Property{}},
		{"empty object", `{}`, Property{}},
		{"malformed", `{"building_name":`, Property{}},
		{"full", `{"building_name": " ホームマート奈良 ", "room_no": "301", "expected_price": 35800000}`,
			Property{BuildingName: "ホームマート奈良", RoomNo: "301", ExpectedPrice: 35800000}},
		{"numeric room and price text", `{"room_no": 1203, "expected_price": "12,800,000"}`,
			Property{RoomNo: "1203", ExpectedPrice: 12800000}},
		{"undecided price", `{"expected_price": "要相談"}`, Property{}},
		{"negative price", `{"expected_price": -5}`, Property{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseProperty([]byte(tt.raw)))
		})
	}
}
