package layout

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CategoryTableVersion identifies the class ordering below. Bump it together with
// any change to categoryNames; the order is positionally tied to the trained
// network's class indices.
const CategoryTableVersion = 1

// Category is a layout region class. Values are the network's class indices.
type Category int

const (
	Title Category = iota
	PlainText
	Abandon
	Figure
	FigureCaption
	Table
	TableCaption
	TableFootnote
	IsolateFormula
	FormulaCaption

	// Unknown is reported for any class index outside the table.
	Unknown Category = 255
)

// categoryNames is the DocStructBench class table in network output order.
var categoryNames = [...]string{
	"title",
	"plain text",
	"abandon",
	"figure",
	"figure_caption",
	"table",
	"table_caption",
	"table_footnote",
	"isolate_formula",
	"formula_caption",
}

// NumCategories is the number of known classes.
const NumCategories = len(categoryNames)

// ErrCategoryMismatch is returned when a model declares a class count that does
// not match the category table.
var ErrCategoryMismatch = errors.New("category table does not match model class count")

// CategoryFromIndex resolves a class index, returning Unknown when out of range.
func CategoryFromIndex(idx int) Category {
	if idx < 0 || idx >= NumCategories {
		return Unknown
	}
	return Category(idx)
}

// Valid reports whether c is one of the known classes.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < NumCategories
}

// String returns the class name from the table, or "unknown".
func (c Category) String() string {
	if !c.Valid() {
		return "unknown"
	}
	return categoryNames[c]
}

// MarshalJSON encodes the category by name.
func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts either a class name or a numeric index.
func (c *Category) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*c = CategoryFromName(name)
		return nil
	}
	var idx int
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("category must be a name or index: %w", err)
	}
	*c = CategoryFromIndex(idx)
	return nil
}

// CategoryFromName looks a class up by its table name. Underscores and spaces
// are interchangeable so "plain_text" resolves to PlainText.
func CategoryFromName(name string) Category {
	for i, n := range categoryNames {
		if n == name || normalizeName(n) == normalizeName(name) {
			return Category(i)
		}
	}
	return Unknown
}

func normalizeName(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == ' ' {
			b[i] = '_'
		}
	}
	return string(b)
}

// CategoryNames returns a copy of the class table in index order.
func CategoryNames() []string {
	out := make([]string, NumCategories)
	copy(out, categoryNames[:])
	return out
}

// ValidateClassCount checks a model's declared class count against the table.
// It is called once at startup when a backend is attached.
func ValidateClassCount(n int) error {
	if n != NumCategories {
		return fmt.Errorf("%w: table v%d has %d classes, model declares %d",
			ErrCategoryMismatch, CategoryTableVersion, NumCategories, n)
	}
	return nil
}
