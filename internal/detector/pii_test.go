package detector

import (
	"testing"

	"github.com/vorn/vorn/internal/models"
)

func TestPIIDetector_Analyse(t *testing.T) {
	d := NewPIIDetector()
	tests := []struct {
		name string
		row  models.RowInput
		want PIIAnalysis
	}{
		{
			name: "full name",
			row:  models.RowInput{"cardholder_name": "John Doe"},
			want: PIIAnalysis{HasPII: true, HasFullName: true},
		},
		{
			name: "single name",
			row:  models.RowInput{"cardholder_name": "Jane"},
			want: PIIAnalysis{},
		},
		{
			name: "email in any field",
			row:  models.RowInput{"notes": "contact jane@example.com"},
			want: PIIAnalysis{HasPII: true, HasEmail: true},
		},
		{
			name: "phone",
			row:  models.RowInput{"notes": "+1 (555) 123-4567"},
			want: PIIAnalysis{HasPII: true, HasPhone: true},
		},
		{
			name: "pan reads as phone",
			row:  models.RowInput{"pan": "4111111111111111"},
			want: PIIAnalysis{HasPII: true, HasPhone: true},
		},
		{
			name: "nil values ignored",
			row:  models.RowInput{"cardholder_name": nil, "notes": nil},
			want: PIIAnalysis{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Analyse(tt.row); got != tt.want {
				t.Errorf("Analyse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPIIDetector_Pseudonymize(t *testing.T) {
	d := NewPIIDetector()
	tests := []struct {
		in   string
		want *string
	}{
		{"John Doe", models.StringPtr("J. Doe")},
		{"  John  Quincy   Adams ", models.StringPtr("J. Adams")},
		{"Jane", models.StringPtr("J***")},
		{"Al", models.StringPtr("Al")},
		{"Émile", models.StringPtr("É****")},
		{"", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := d.Pseudonymize(tt.in)
			if (got == nil) != (tt.want == nil) || models.Deref(got) != models.Deref(tt.want) {
				t.Errorf("Pseudonymize(%q) = %v, want %v", tt.in, models.Deref(got), models.Deref(tt.want))
			}
		})
	}
}
