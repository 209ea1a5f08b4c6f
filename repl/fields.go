package repl

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field is a decoded column keyed by its camelCase name
type Field struct {
	Name  string
	Value any
}

// Fields is the ordered, decoded column set of one change message
type Fields []Field

// Get returns the value of the named field. A present field may still hold nil.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// ToFields decodes the columns of a message and re-keys them to camelCase.
// Deletes carry no new row image, so their identity columns are used instead.
func ToFields(msg Message) Fields {
	cols := msg.Columns
	if msg.Action == Delete {
		cols = msg.Identity
	}

	fields := make(Fields, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, Field{
			Name:  CamelCase(c.Name),
			Value: DecodeValue(c.Value, c.Type),
		})
	}
	return fields
}

// CamelCase converts a snake_case column name, e.g. road_whole_address -> roadWholeAddress
func CamelCase(name string) string {
	if !strings.Contains(name, "_") {
		return name
	}

	var b strings.Builder
	b.Grow(len(name))
	for i, word := range strings.Split(name, "_") {
		if i == 0 || word == "" {
			b.WriteString(word)
			continue
		}
		r, size := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(word[size:])
	}
	return b.String()
}
