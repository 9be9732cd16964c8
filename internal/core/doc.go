// Package core provides the business logic for mapped file imports.
//
// This package holds all domain logic independent of any UI or transport
// layer. It can be used by web handlers, CLI tools, or tests without
// modification.
//
// # Architecture
//
//   - Kind Registry: each [ImportKind] registers an ordered list of
//     [TargetField] values at init time via [Register].
//   - Parser: [DecodeFile] turns delimited text or an xlsx workbook into a
//     [ParsedTable] of positional (header, value) rows.
//   - Auto-Mapper: [AutoMap] proposes a [ColumnMapping] per header using the
//     pure [MatchField] rule; [Suggest] ranks manual override candidates.
//   - Validator: [ValidateMapping] blocks imports missing a required field.
//   - Importer: [Importer.Run] submits projected records in sequential
//     batches and folds each outcome into an [ImportResult].
//   - Session: [Session] walks upload, mapping, preview, importing and
//     complete; [Service] owns sessions and starts runs.
//
// # Kind Registry
//
//	core.Register(core.KindDefinition{
//	    Kind:  "contacts",
//	    Label: "Contacts",
//	    Fields: []core.TargetField{
//	        {Field: "name", Label: "Contact Name", Required: true},
//	        {Field: "email", Label: "Email"},
//	    },
//	})
//
// # Import Flow
//
//  1. Client calls [Service.CreateSession] with the uploaded file
//  2. The session starts in mapping with auto-mapped columns
//  3. [Service.UpdateMappings] applies overrides, [Service.Confirm] validates
//  4. [Service.StartImport] runs batches in the background
//  5. Progress is broadcast to subscribers via [Service.Subscribe]
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE006: File errors (size, encoding, format)
//   - MAP001-MAP004: Mapping errors (missing fields, unknown targets)
//   - IMP001-IMP009: Import, session and preset errors
//   - DB001-DB003: Database errors
//   - RATE001: Rate limit exceeded
package core
