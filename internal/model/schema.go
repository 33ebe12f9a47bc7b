package model

// SchemaField pairs a field with its human-readable label.
type SchemaField struct {
	Field Field  `json:"field"`
	Label string `json:"label"`
}

// Schema lists required and optional label declarations in report order.
type Schema struct {
	Required []SchemaField `json:"required"`
	Optional []SchemaField `json:"optional"`
}

// DefaultSchema returns the Legal Metrology declaration schema.
func DefaultSchema() Schema {
	return Schema{
		Required: []SchemaField{
			{Field: FieldMRP, Label: "Maximum Retail Price (₹)"},
			{Field: FieldQuantity, Label: "Net Quantity/Weight"},
			{Field: FieldManufacturer, Label: "Manufacturer/Packer Name"},
			{Field: FieldOrigin, Label: "Country of Origin"},
		},
		Optional: []SchemaField{
			{Field: FieldSupport, Label: "Consumer Care Contact"},
			{Field: FieldDates, Label: "Manufacturing/Expiry Date"},
			{Field: FieldBatch, Label: "Batch/Lot Number"},
			{Field: FieldLicense, Label: "FSSAI License Number"},
			{Field: FieldBarcode, Label: "Product Barcode"},
		},
	}
}

// Fields returns every schema field, required first.
func (s Schema) Fields() []Field {
	out := make([]Field, 0, len(s.Required)+len(s.Optional))
	for _, f := range s.Required {
		out = append(out, f.Field)
	}
	for _, f := range s.Optional {
		out = append(out, f.Field)
	}
	return out
}

// Label returns the label for f, or the field name when f is not in the schema.
func (s Schema) Label(f Field) string {
	for _, sf := range s.Required {
		if sf.Field == f {
			return sf.Label
		}
	}
	for _, sf := range s.Optional {
		if sf.Field == f {
			return sf.Label
		}
	}
	return string(f)
}

// ComplianceVerdict is the outcome of scoring a FieldSet against a Schema.
type ComplianceVerdict struct {
	Compliance      map[Field]bool `json:"compliance"`
	MissingRequired []string       `json:"missing_fields"`
	Warnings        []string       `json:"warnings"`
	Score           string         `json:"compliance_score"`
	RequiredPresent int            `json:"required_present"`
	RequiredTotal   int            `json:"required_total"`
	FieldsFound     int            `json:"total_fields_found"`
}
