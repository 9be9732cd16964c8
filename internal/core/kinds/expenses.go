package kinds

import "github.com/JonMunkholm/ledgerimport/internal/core"

func init() {
	registerExpenses()
}

func registerExpenses() {
	core.Register(core.KindDefinition{
		Kind:     core.KindExpenses,
		Label:    "Expenses",
		Endpoint: "expenses/import",
		Fields: []core.TargetField{
			{Field: "date", Label: "Date", Required: true, Type: core.FieldDate},
			{Field: "description", Label: "Description", Required: true, Type: core.FieldText},
			{Field: "amount", Label: "Amount", Required: true, Type: core.FieldNumeric},
			{Field: "category", Label: "Category", Type: core.FieldText},
			{Field: "vendor", Label: "Vendor", Type: core.FieldText},
			{Field: "payment_method", Label: "Payment Method", Type: core.FieldText},
			{Field: "reference", Label: "Reference", Type: core.FieldText},
			{Field: "reimbursable", Label: "Reimbursable", Type: core.FieldBool},
		},
	})
}
