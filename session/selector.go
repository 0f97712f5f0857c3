package session

import (
	"strings"

	"github.com/pkg/errors"
)

// By is an element location strategy
type By string

// Supported element location strategies
const (
	ByID              By = "id"
	ByName            By = "name"
	ByXPath           By = "xpath"
	ByTagName         By = "tagname"
	ByLinkText        By = "linktext"
	ByPartialLinkText By = "partiallinktext"
	ByClassName       By = "classname"
	ByCSS             By = "css"
)

// Selector locates an element on a page
type Selector struct {
	By    By
	Value string
}

func (s Selector) String() string {
	return string(s.By) + "=" + s.Value
}

// ID selects by element id
func ID(id string) Selector { return Selector{By: ByID, Value: id} }

// Name selects by the name attribute
func Name(name string) Selector { return Selector{By: ByName, Value: name} }

// XPath selects with an XPath expression
func XPath(expr string) Selector { return Selector{By: ByXPath, Value: expr} }

// TagName selects by element tag
func TagName(tag string) Selector { return Selector{By: ByTagName, Value: tag} }

// LinkText selects links whose whole text is 'text'
func LinkText(text string) Selector { return Selector{By: ByLinkText, Value: text} }

// PartialLinkText selects links containing 'text'
func PartialLinkText(text string) Selector { return Selector{By: ByPartialLinkText, Value: text} }

// ClassName selects by a single class name
func ClassName(class string) Selector { return Selector{By: ByClassName, Value: class} }

// CSS selects with a CSS selector
func CSS(selector string) Selector { return Selector{By: ByCSS, Value: selector} }

// Query converts the selector into either a CSS selector or an XPath expression, whichever is native to the strategy
func (s Selector) Query() (query string, isXPath bool, err error) {
	if strings.TrimSpace(s.Value) == "" {
		return "", false, errors.Errorf("Empty selector value for %q", s.By)
	}
	switch s.By {
	case ByID:
		return attributeSelector("id", s.Value), false, nil
	case ByName:
		return attributeSelector("name", s.Value), false, nil
	case ByClassName:
		return `[class~=` + cssString(s.Value) + `]`, false, nil
	case ByTagName, ByCSS:
		return s.Value, false, nil
	case ByXPath:
		return s.Value, true, nil
	case ByLinkText:
		return `//a[normalize-space(.)=` + xpathLiteral(s.Value) + `]`, true, nil
	case ByPartialLinkText:
		return `//a[contains(., ` + xpathLiteral(s.Value) + `)]`, true, nil
	default:
		return "", false, errors.Errorf("Unsupported selector type: %q", s.By)
	}
}

func attributeSelector(attribute, value string) string {
	return "[" + attribute + "=" + cssString(value) + "]"
}

func cssString(s string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}

func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, part := range parts {
		parts[i] = "'" + part + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}
