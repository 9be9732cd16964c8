package core

// ProjectRows builds one record per row from the non-skip mappings.
// Mappings are aligned with the row cells by position; when two columns
// target the same field the later column wins.
func ProjectRows(table *ParsedTable, mappings []ColumnMapping) []Record {
	records := make([]Record, len(table.Rows))
	for i, row := range table.Rows {
		records[i] = projectRow(row, mappings)
	}
	return records
}

func projectRow(row Row, mappings []ColumnMapping) Record {
	rec := make(Record, len(mappings))
	for i, m := range mappings {
		if m.Skipped() || i >= len(row) {
			continue
		}
		rec[m.TargetField] = row[i].Value
	}
	return rec
}

// ActiveMappings returns only the mappings that feed a target field.
func ActiveMappings(mappings []ColumnMapping) []ColumnMapping {
	active := make([]ColumnMapping, 0, len(mappings))
	for _, m := range mappings {
		if !m.Skipped() {
			active = append(active, m)
		}
	}
	return active
}

// Partition splits records into consecutive batches of at most size.
// Concatenating the batches yields records unchanged.
func Partition(records []Record, size int) [][]Record {
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
