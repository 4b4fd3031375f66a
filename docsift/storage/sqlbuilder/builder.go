package sqlbuilder

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota
	PlaceholderDollar
)

// Builder allocates bind placeholders and accumulates their values. The
// first allocated placeholder is numbered start, letting fragment text slot
// in after a caller's fixed parameter positions.
type Builder struct {
	style PlaceholderStyle
	start int
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return NewAt(style, 1)
}

func NewAt(style PlaceholderStyle, start int) *Builder {
	if start < 1 {
		start = 1
	}
	return &Builder{style: style, start: start}
}

func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	switch b.style {
	case PlaceholderDollar:
		return "$" + itoa(b.start + len(b.args) - 1)
	default:
		return "?"
	}
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }

// Fork returns an empty builder with the same style and starting index, for
// fragment generation whose output may be discarded.
func (b *Builder) Fork() *Builder {
	return NewAt(b.style, b.start)
}

// itoa converts int to string without fmt overhead
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [32]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + (n % 10))
		n /= 10
	}
	return string(buf[i:])
}
