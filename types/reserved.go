package types

var reservedTypeNames = []string{
	"Double",
	"Float",
	"Long",
	"Int",
	"Bool",
	"Byte",
	"Char",
	"I1",
	"Index",
	"Pointer",
	"Array",
	"Slice",
	"Struct",
	"Reference",
	"Vector",
}

var reservedTypeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(reservedTypeNames))
	for _, t := range reservedTypeNames {
		m[t] = struct{}{}
	}
	return m
}()

// ReservedTypeNames returns a copy of the built-in type names.
func ReservedTypeNames() []string {
	return append([]string(nil), reservedTypeNames...)
}

// IsReservedTypeName reports whether name is taken by a built-in type and so
// cannot name a declared structure.
func IsReservedTypeName(name string) bool {
	_, ok := reservedTypeSet[name]
	return ok
}
