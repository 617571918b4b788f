package dataset

import (
	"fmt"
	"strings"
)

// SchemaError means the file's header row is unusable for every record,
// unlike a cell-level problem which fails only its record.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// Validate checks the header row against RequiredColumns.
func (d *Dataset) Validate() error {
	var missing []string
	for _, required := range RequiredColumns {
		if !d.HasColumn(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}
