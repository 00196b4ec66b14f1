package report

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the template does not open with a `---` line.
	ErrMissingFrontMatter = errors.New("template: missing front matter")
	// ErrMalformedFrontMatter indicates the front matter is unterminated or not a YAML mapping.
	ErrMalformedFrontMatter = errors.New("template: malformed front matter")
)

const (
	paramsKey = "params"
	dateKey   = "date"
	valueKey  = "value"
)

// TemplateError reports a template that cannot receive parameters.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	if e.Name == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// Template is a report template split into parsed front matter and a body
// kept byte-for-byte.
type Template struct {
	name    string
	front   *yaml.Node // mapping node
	body    []byte
	newline string
}

// ParseTemplate splits data into YAML front matter and body. The front matter
// must start on the first line with `---` and end at the next `---` or `...`
// line. A leading UTF-8 byte order mark is dropped. name is used in error
// messages only.
func ParseTemplate(name string, data []byte) (*Template, error) {
	fail := func(err error) (*Template, error) {
		return nil, &TemplateError{Name: name, Err: err}
	}

	data = bytes.TrimPrefix(data, UTF8BOM)
	first, rest, _ := cutLine(data)
	if string(trimCR(first)) != "---" {
		return fail(ErrMissingFrontMatter)
	}
	newline := "\n"
	if bytes.HasSuffix(first, []byte("\r")) {
		newline = "\r\n"
	}

	var front []byte
	offset := 0
	closed := false
	for {
		line, remaining, more := cutLine(rest[offset:])
		if t := string(trimCR(line)); t == "---" || t == "..." {
			front = rest[:offset]
			rest = remaining
			closed = true
			break
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	if !closed {
		return fail(fmt.Errorf("%w: no closing --- line", ErrMalformedFrontMatter))
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(front, &doc); err != nil {
		return fail(fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err))
	}
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		mapping = doc.Content[0]
	}
	if mapping.Kind != yaml.MappingNode {
		return fail(fmt.Errorf("%w: front matter is not a mapping", ErrMalformedFrontMatter))
	}
	if n := lookup(mapping, paramsKey); n != nil && n.Kind != yaml.MappingNode && !isNull(n) {
		return fail(fmt.Errorf("%w: %s is not a mapping", ErrMalformedFrontMatter, paramsKey))
	}

	return &Template{name: name, front: mapping, body: rest, newline: newline}, nil
}

// Name returns the name the template was parsed with.
func (t *Template) Name() string {
	return t.name
}

// Body returns the template text after the front matter.
func (t *Template) Body() []byte {
	return t.body
}

// Field returns a top-level scalar front matter value.
func (t *Template) Field(key string) (string, bool) {
	n := lookup(t.front, key)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// Param returns the current value of a declared parameter, accepting both the
// plain form and the `{value: ...}` form.
func (t *Template) Param(key string) (string, bool) {
	params := lookup(t.front, paramsKey)
	if params == nil || params.Kind != yaml.MappingNode {
		return "", false
	}
	n := lookup(params, key)
	if n != nil && n.Kind == yaml.MappingNode {
		n = lookup(n, valueKey)
	}
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// Merge returns the template with params written under `params` and date
// written to `date`. Other front matter keys keep their values and order, and
// the body is copied verbatim. The Template itself is not modified.
func (t *Template) Merge(params Parameters, date string) ([]byte, error) {
	front := cloneNode(t.front)

	paramsNode := lookup(front, paramsKey)
	if paramsNode == nil || isNull(paramsNode) {
		fresh := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		setValue(front, paramsKey, fresh)
		paramsNode = fresh
	}
	for _, key := range ParameterKeys {
		value, ok := params[key]
		if !ok {
			continue
		}
		if existing := lookup(paramsNode, key); existing != nil && existing.Kind == yaml.MappingNode {
			setValue(existing, valueKey, stringNode(value))
			continue
		}
		setValue(paramsNode, key, stringNode(value))
	}
	setValue(front, dateKey, stringNode(date))

	var encoded bytes.Buffer
	enc := yaml.NewEncoder(&encoded)
	enc.SetIndent(2)
	if err := enc.Encode(front); err != nil {
		return nil, &TemplateError{Name: t.name, Err: fmt.Errorf("encode front matter: %w", err)}
	}
	if err := enc.Close(); err != nil {
		return nil, &TemplateError{Name: t.name, Err: fmt.Errorf("encode front matter: %w", err)}
	}

	header := encoded.Bytes()
	if t.newline != "\n" {
		header = bytes.ReplaceAll(header, []byte("\n"), []byte(t.newline))
	}

	var out bytes.Buffer
	out.WriteString("---" + t.newline)
	out.Write(header)
	out.WriteString("---" + t.newline)
	out.Write(t.body)
	return out.Bytes(), nil
}

// cutLine splits data after the first '\n'. The returned line excludes the
// newline; more is false when data held no newline.
func cutLine(data []byte) (line, rest []byte, more bool) {
	i := bytes.IndexByte(data, '\n')
	if i < 0 {
		return data, nil, false
	}
	return data[:i], data[i+1:], true
}

func trimCR(line []byte) []byte {
	return bytes.TrimSuffix(line, []byte("\r"))
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// setValue replaces the value under key, appending the pair when key is absent.
func setValue(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			value.LineComment = mapping.Content[i+1].LineComment
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content, stringNode(key), value)
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	dup := *n
	if len(n.Content) > 0 {
		dup.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			dup.Content[i] = cloneNode(child)
		}
	}
	return &dup
}
