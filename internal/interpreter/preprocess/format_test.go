package preprocess

import (
	"testing"

	"github.com/thsfranca/liszp/internal/interpreter/value"
)

func TestFormatNames(t *testing.T) {
	tests := []struct {
		name string
		in   value.Value
		want string
	}{
		{"plain name", value.Name("foo"), "&foo"},
		{"already formatted", value.Name("&foo"), "&foo"},
		{"non-name untouched", value.NewInt(3), "3"},
		{"string untouched", value.String("\"foo\""), "\"foo\""},
		{
			"names inside lists",
			value.List(value.Name("+"), value.Name("x"), value.NewInt(1)),
			"(&+ &x 1)",
		},
		{
			"nested lists",
			value.List(value.Name("quote"), value.List(value.Name("a"), value.Name("b"))),
			"(&quote (&a &b))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatNames(tt.in).String(); got != tt.want {
				t.Errorf("FormatNames() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFormatNames_Idempotent(t *testing.T) {
	expr := value.List(value.Name("def"), value.Name("x"), value.NewInt(7))

	once := FormatNames(expr)
	twice := FormatNames(once)

	if !once.Equal(twice) {
		t.Errorf("formatting twice changed the tree: %s vs %s", once, twice)
	}
}
