package kinds

import "github.com/JonMunkholm/ledgerimport/internal/core"

func init() {
	registerProducts()
}

func registerProducts() {
	core.Register(core.KindDefinition{
		Kind:     core.KindProducts,
		Label:    "Products",
		Endpoint: "products/import",
		Fields: []core.TargetField{
			{Field: "name", Label: "Product Name", Required: true, Type: core.FieldText},
			{Field: "sku", Label: "SKU", Type: core.FieldText},
			{Field: "description", Label: "Description", Type: core.FieldText},
			{Field: "price", Label: "Price", Required: true, Type: core.FieldNumeric},
			{Field: "cost", Label: "Cost", Type: core.FieldNumeric},
			{Field: "quantity", Label: "Quantity", Type: core.FieldNumeric},
			{Field: "unit", Label: "Unit", Type: core.FieldText},
			{Field: "category", Label: "Category", Type: core.FieldText},
			{Field: "taxable", Label: "Taxable", Type: core.FieldBool},
		},
	})
}
