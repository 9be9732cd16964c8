package kinds

import "github.com/JonMunkholm/ledgerimport/internal/core"

func init() {
	registerInvoices()
}

// Historical invoices are imported as already issued documents.
func registerInvoices() {
	core.Register(core.KindDefinition{
		Kind:     core.KindInvoices,
		Label:    "Invoices",
		Endpoint: "invoices/import",
		Fields: []core.TargetField{
			{Field: "invoice_number", Label: "Invoice Number", Required: true, Type: core.FieldText},
			{Field: "customer_name", Label: "Customer Name", Required: true, Type: core.FieldText},
			{Field: "issue_date", Label: "Issue Date", Required: true, Type: core.FieldDate},
			{Field: "due_date", Label: "Due Date", Type: core.FieldDate},
			{Field: "amount", Label: "Amount", Required: true, Type: core.FieldNumeric},
			{Field: "tax_amount", Label: "Tax Amount", Type: core.FieldNumeric},
			{Field: "currency", Label: "Currency", Type: core.FieldText},
			{Field: "status", Label: "Status", Type: core.FieldEnum, EnumValues: []string{"draft", "sent", "paid", "overdue", "void"}},
			{Field: "description", Label: "Description", Type: core.FieldText},
		},
	})
}
