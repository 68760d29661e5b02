package typing

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// FallbackName replaces blank display names.
const FallbackName = "Someone"

// Catalog keys for the summary templates.
const (
	KeyOne  = "typing.one"
	KeyTwo  = "typing.two"
	KeyMany = "typing.many"
)

var englishTemplates = map[string]string{
	KeyOne:  "%s is typing…",
	KeyTwo:  "%s and %s are typing…",
	KeyMany: "%s and %s are typing…",
}

// NewCatalog returns a catalog holding the English templates, with English
// as the fallback. Callers add other locales with SetString.
func NewCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, msg := range englishTemplates {
		if err := b.SetString(language.English, key, msg); err != nil {
			panic(err)
		}
	}
	return b
}

// Formatter renders an ordered list of display names as a summary line.
// It picks the template shape by count; the wording comes from the catalog.
type Formatter struct {
	printer *message.Printer
}

// NewFormatter returns a Formatter for the closest language to lang that
// cat supports.
func NewFormatter(lang language.Tag, cat catalog.Catalog) *Formatter {
	tag, _, _ := cat.Matcher().Match(lang)
	return &Formatter{printer: message.NewPrinter(tag, message.Catalog(cat))}
}

// DefaultFormatter returns an English Formatter.
func DefaultFormatter() *Formatter {
	return NewFormatter(language.English, NewCatalog())
}

// Format returns "" for no names, otherwise "A is typing…",
// "A and B are typing…" or "A, B and C are typing…".
func (f *Formatter) Format(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return f.printer.Sprintf(KeyOne, nameOrFallback(names[0]))
	case 2:
		return f.printer.Sprintf(KeyTwo, nameOrFallback(names[0]), nameOrFallback(names[1]))
	}

	head := make([]string, len(names)-1)
	for i, n := range names[:len(names)-1] {
		head[i] = nameOrFallback(n)
	}
	last := nameOrFallback(names[len(names)-1])
	return f.printer.Sprintf(KeyMany, strings.Join(head, ", "), last)
}

func nameOrFallback(name string) string {
	if strings.TrimSpace(name) == "" {
		return FallbackName
	}
	return name
}
