package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/label-audit/internal/model"
)

func TestScore_AllRequiredPresent(t *testing.T) {
	t.Parallel()

	fs := model.FieldSetFromStrings(map[model.Field]string{
		model.FieldMRP:          "₹150.00",
		model.FieldQuantity:     "250 g",
		model.FieldManufacturer: "ACME LTD",
		model.FieldOrigin:       "India",
	})

	v := Score(fs, model.DefaultSchema())
	assert.Equal(t, "4/4", v.Score)
	assert.Empty(t, v.MissingRequired)
	assert.Equal(t, 4, v.RequiredPresent)
	assert.Equal(t, 4, v.FieldsFound)
	assert.Equal(t, []string{
		"Optional: Consumer Care Contact",
		"Optional: Manufacturing/Expiry Date",
		"Optional: Batch/Lot Number",
		"Optional: FSSAI License Number",
		"Optional: Product Barcode",
	}, v.Warnings)
}

func TestScore_MissingInSchemaOrder(t *testing.T) {
	t.Parallel()

	fs := model.FieldSetFromStrings(map[model.Field]string{model.FieldQuantity: "1 kg"})
	v := Score(fs, model.DefaultSchema())

	assert.Equal(t, "1/4", v.Score)
	assert.Equal(t, []string{
		"Maximum Retail Price (₹)",
		"Manufacturer/Packer Name",
		"Country of Origin",
	}, v.MissingRequired)
	assert.True(t, v.Compliance[model.FieldQuantity])
	assert.False(t, v.Compliance[model.FieldMRP])
}

func TestScore_DenominatorFixed(t *testing.T) {
	t.Parallel()

	sets := []model.FieldSet{
		{},
		model.FieldSetFromStrings(map[model.Field]string{model.FieldBarcode: "890"}),
		model.FieldSetFromStrings(map[model.Field]string{
			model.FieldMRP: "10", model.FieldQuantity: "1 l", model.FieldManufacturer: "X",
			model.FieldOrigin: "India", model.FieldSupport: "s", "colour": "red",
		}),
	}
	for _, fs := range sets {
		v := Score(fs, model.DefaultSchema())
		assert.Equal(t, 4, v.RequiredTotal)
		assert.LessOrEqual(t, v.RequiredPresent, 4)
	}
}

func TestScore_ZeroMRPStillPresent(t *testing.T) {
	t.Parallel()

	fs := model.FieldSetFromStrings(map[model.Field]string{model.FieldMRP: "₹0"})
	v := Score(fs, model.DefaultSchema())

	assert.Contains(t, v.Warnings, WarnMRPNegative)
	assert.True(t, v.Compliance[model.FieldMRP])
	assert.Equal(t, "1/4", v.Score)
}

func TestScore_QuantityWithoutUnit(t *testing.T) {
	t.Parallel()

	fs := model.FieldSetFromStrings(map[model.Field]string{model.FieldQuantity: "250"})
	v := Score(fs, model.DefaultSchema())
	assert.Contains(t, v.Warnings, WarnQuantityUnit)
}

func TestScore_Pure(t *testing.T) {
	t.Parallel()

	fs := model.FieldSetFromStrings(map[model.Field]string{model.FieldMRP: "abc"})
	a := Score(fs, model.DefaultSchema())
	b := Score(fs, model.DefaultSchema())
	assert.Equal(t, a, b)
	assert.Equal(t, 1, fs.Len())
}

func TestCheckMRP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"₹150.00", ""},
		{"Rs. 1,299", ""},
		{"₹ 40", ""},
		{"₹0", WarnMRPNegative},
		{"-5", WarnMRPNegative},
		{"forty", WarnMRPInvalid},
		{"NaN", WarnMRPInvalid},
		{"", WarnMRPInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckMRP(tt.in))
		})
	}
}

func TestParseMRP(t *testing.T) {
	t.Parallel()

	f, err := ParseMRP("₹1,250.50")
	require.NoError(t, err)
	assert.InDelta(t, 1250.5, f, 0.0001)
}

func TestCheckQuantity(t *testing.T) {
	t.Parallel()

	assert.Empty(t, CheckQuantity("500 ML"))
	assert.Empty(t, CheckQuantity("2 pcs"))
	assert.Equal(t, WarnQuantityUnit, CheckQuantity("12"))
}
