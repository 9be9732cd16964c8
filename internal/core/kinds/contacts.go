package kinds

import "github.com/JonMunkholm/ledgerimport/internal/core"

func init() {
	registerContacts()
}

func registerContacts() {
	core.Register(core.KindDefinition{
		Kind:     core.KindContacts,
		Label:    "Contacts",
		Endpoint: "contacts/import",
		Fields: []core.TargetField{
			{Field: "name", Label: "Contact Name", Required: true, Type: core.FieldText},
			{Field: "email", Label: "Email", Type: core.FieldText},
			{Field: "phone", Label: "Phone", Type: core.FieldText},
			{Field: "company", Label: "Company", Type: core.FieldText},
			{Field: "contact_type", Label: "Contact Type", Type: core.FieldEnum, EnumValues: []string{"customer", "vendor", "both"}},
			{Field: "tax_id", Label: "Tax ID", Type: core.FieldText},
			{Field: "address", Label: "Address", Type: core.FieldText},
			{Field: "city", Label: "City", Type: core.FieldText},
			{Field: "country", Label: "Country", Type: core.FieldText},
			{Field: "notes", Label: "Notes", Type: core.FieldText},
		},
	})
}
