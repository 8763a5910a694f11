package compiler

import "strings"

const (
	SEP = "_" // between a type name, its operation and a field
)

// Accessor operations.
const (
	GET   = "get"
	SET   = "set"
	RAVEL = "ravel"
	DIM   = "dim"
	DOT   = "dot"
	FMA   = "fma"
)

// accessorName builds <type>_<op>[_<field>].
func accessorName(typeName, op string, field ...string) string {
	parts := append([]string{typeName, op}, field...)
	return strings.Join(parts, SEP)
}
