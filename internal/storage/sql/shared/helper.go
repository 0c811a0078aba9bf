package shared

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mp-manager/mp-manager/internal/abstractions"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdentifier rejects names that would need quoting, the statements
// are built with fmt.Sprintf.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

func ValidateTable(spec abstractions.TableSpec) error {
	if err := ValidateIdentifier(spec.Name); err != nil {
		return err
	}
	if len(spec.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", spec.Name)
	}
	for _, column := range spec.Columns {
		if err := ValidateIdentifier(column.Name); err != nil {
			return err
		}
		switch column.Type {
		case abstractions.ColumnText, abstractions.ColumnInteger, abstractions.ColumnReal:
		default:
			return fmt.Errorf("column %s.%s has unsupported type %q", spec.Name, column.Name, column.Type)
		}
	}
	return nil
}

// QuoteIdentifier double quotes an identifier, valid for SQLite and PostgreSQL.
func QuoteIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, `"`, `""`)
	return fmt.Sprintf(`"%s"`, escaped)
}

func QuoteIdentifiers(identifiers []string) string {
	quoted := make([]string, 0, len(identifiers))
	for _, identifier := range identifiers {
		quoted = append(quoted, QuoteIdentifier(identifier))
	}
	return strings.Join(quoted, ", ")
}
