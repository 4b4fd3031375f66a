package docsift

// Reserved filter keys. They carry ordering/pagination and never denote
// schema fields.
const (
	KeySortBy    = "sortby"
	KeySortOrder = "sortorder"
	KeyLimit     = "limit"
	KeyOffset    = "offset"
)

const (
	DefaultLimit  = 100
	DefaultOffset = 0
)

const (
	docColumn = "object"
	idColumn  = "doc_id"
)
