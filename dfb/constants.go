package dfb

// Magic is the 4-byte DFB file signature, "\x00dfb".
var Magic = [4]byte{0x00, 'd', 'f', 'b'}

// FormatVersion is the only format version this decoder accepts.
const FormatVersion uint32 = 1

// Section ids, in required file order.
const (
	sectionStrings   byte = 1
	sectionTypes     byte = 2
	sectionKernels   byte = 3
	sectionFunctions byte = 4
	sectionExpects   byte = 5
)

// Attribute payload tags.
const (
	attrTagI1 byte = iota
	attrTagI32
	attrTagI64
	attrTagF32
	attrTagF64
	attrTagStr
)

// Well-known primitive type names. Any other type name is legal; the
// driver just prints such results generically.
const (
	TypeI1  TypeName = "i1"
	TypeI32 TypeName = "i32"
	TypeI64 TypeName = "i64"
	TypeF32 TypeName = "f32"
	TypeF64 TypeName = "f64"
	// TypeChain orders side effects without carrying data.
	TypeChain TypeName = "ch"
)
