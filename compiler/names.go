package compiler

import (
	"fmt"

	"github.com/thiremani/nitro/types"
)

// C keywords cannot name an exported symbol.
var cKeywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true, "sizeof": true,
	"static": true, "struct": true, "switch": true, "typedef": true, "union": true,
	"unsigned": true, "void": true, "volatile": true, "while": true,
}

// ValidateSymbolName checks a function or declared type name.
// Rules:
//   - ASCII letters, digits and underscore only
//   - Must start with a letter
//   - No double underscores (__), which separate generated names
//   - No trailing underscore
//   - Not a C keyword
//   - Not a built-in type name
func ValidateSymbolName(name string) error {
	if name == "" {
		return fmt.Errorf("symbol name cannot be empty")
	}

	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			// valid
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("symbol %q starts with a digit", name)
			}
		case r == '_':
			if i == 0 {
				return fmt.Errorf("symbol %q starts with underscore", name)
			}
			if name[i-1] == '_' {
				return fmt.Errorf("double underscore at position %d in %q", i, name)
			}
		default:
			return fmt.Errorf("invalid character %q at position %d in symbol %q", r, i, name)
		}
	}

	if name[len(name)-1] == '_' {
		return fmt.Errorf("symbol %q ends with underscore", name)
	}
	if cKeywords[name] {
		return fmt.Errorf("symbol %q is a C keyword", name)
	}
	if types.IsReservedTypeName(name) {
		return fmt.Errorf("symbol %q is a reserved type name", name)
	}
	return nil
}
