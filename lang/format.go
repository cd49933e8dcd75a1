package lang

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
)

// Format selects the encoding of token and tree dumps.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat returns the dump format named s, defaulting to YAML.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(FormatJSON)) {
		return FormatJSON
	}

	return FormatYAML
}

func marshal(v any, f Format) ([]byte, error) {
	if f == FormatJSON {
		return yaml.MarshalWithOptions(v, yaml.JSON())
	}

	return yaml.MarshalWithOptions(v, yaml.IndentSequence(true))
}

// tokenDoc is the dump form of a token.
type tokenDoc struct {
	Kind  string `yaml:"kind"  json:"kind"`
	Value string `yaml:"value" json:"value"`
	Line  int    `yaml:"line"  json:"line"`
	Start int    `yaml:"start" json:"start"`
	End   int    `yaml:"end"   json:"end"`
}

// WriteTokens encodes tokens to w.
func WriteTokens(w io.Writer, tokens []Token, f Format) error {
	docs := make([]tokenDoc, len(tokens))
	for i, t := range tokens {
		docs[i] = tokenDoc{
			Kind: t.Kind.String(), Value: t.Value,
			Line: t.Line, Start: t.Start, End: t.End,
		}
	}

	data, err := marshal(docs, f)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

// nodeDoc is the serialized form of a node, used by tree dumps and
// compiled artifacts.
type nodeDoc struct {
	Type     string         `yaml:"type"               json:"type"`
	Line     int            `yaml:"line,omitempty"     json:"line,omitempty"`
	Attrs    map[string]any `yaml:"attrs,omitempty"    json:"attrs,omitempty"`
	Children []*nodeDoc     `yaml:"children,omitempty" json:"children,omitempty"`
}

// WriteTree encodes the tree rooted at n to w.
func WriteTree(w io.Writer, n Node, f Format) error {
	doc, err := encodeNode(n)
	if err != nil {
		return err
	}

	data, err := marshal(doc, f)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

func encodeNode(n Node) (*nodeDoc, error) {
	doc := &nodeDoc{Type: TypeName(n), Line: n.Line()}

	switch x := n.(type) {
	case *Text:
		doc.Attrs = map[string]any{"value": x.Value}
	case *Const:
		if x.kind != KindNone {
			doc.Attrs = map[string]any{"value": x.Value}
		}
	case *Query:
		doc.Attrs = map[string]any{
			"name": x.Name,
			"type": x.Type.String(),
		}

		if x.Head {
			doc.Attrs["head"] = true
		}

		if x.ForceCache {
			doc.Attrs["force"] = true
		}

		if x.Slice {
			doc.Attrs["slice"] = true
		}

		if x.Index1 != nil {
			doc.Attrs["index1"] = *x.Index1
		}

		if x.Index2 != nil {
			doc.Attrs["index2"] = *x.Index2
		}

		if x.Tail != nil {
			doc.Attrs["tail"] = true
		}
	case *Filter:
		doc.Attrs = map[string]any{"name": x.Name}
	case *Binary:
		if x.Negate {
			doc.Attrs = map[string]any{"negate": true}
		}
	case *Preload:
		doc.Attrs = map[string]any{"name": x.Name}
	case Statement:
		doc.Attrs = x.Attrs()
	}

	for _, c := range n.Children() {
		if c == nil {
			continue
		}

		cd, err := encodeNode(c)
		if err != nil {
			return nil, err
		}

		doc.Children = append(doc.Children, cd)
	}

	return doc, nil
}

func (e *Engine) decodeNode(doc *nodeDoc) (Node, error) {
	if doc == nil {
		return nil, ErrArtifact.Wrap(fmt.Errorf("missing node"))
	}

	children := make([]Node, len(doc.Children))

	for i, cd := range doc.Children {
		c, err := e.decodeNode(cd)
		if err != nil {
			return nil, err
		}

		children[i] = c
	}

	bad := func(format string, args ...any) (Node, error) {
		return nil, ErrArtifact.Wrap(fmt.Errorf("%s: "+format,
			append([]any{doc.Type}, args...)...))
	}

	want := func(n int) bool { return len(children) == n }

	line := doc.Line

	switch doc.Type {
	case "template":
		r := &Root{}
		r.children, r.line = children, line

		return r, nil

	case "wrapper":
		return &Wrapper{children: children, line: line}, nil

	case "stb":
		b := &StatementBody{}
		b.children, b.line = children, line

		return b, nil

	case "text":
		return &Text{Value: attrString(doc.Attrs, "value"), line: line}, nil

	case "exprw":
		expr, ok := only[*Expression](children)
		if !ok {
			return bad("want one expression")
		}

		return &Output{Expr: expr, line: line}, nil

	case "expr":
		if !want(1) {
			return bad("want one child")
		}

		return &Expression{Child: children[0], line: line}, nil

	case "query":
		return decodeQuery(doc, children)

	case "filter":
		if len(children) == 0 {
			return bad("missing value")
		}

		return &Filter{
			Name:  attrString(doc.Attrs, "name"),
			Value: children[0],
			Args:  children[1:],
			line:  line,
		}, nil

	case "string":
		return NewConst(KindString, attrString(doc.Attrs, "value"), line), nil

	case "int":
		i, ok := attrInt(doc.Attrs, "value")
		if !ok {
			return bad("bad value")
		}

		return NewConst(KindInt, int64(i), line), nil

	case "float":
		f, ok := attrFloat(doc.Attrs, "value")
		if !ok {
			return bad("bad value")
		}

		return NewConst(KindFloat, f, line), nil

	case "bool":
		b, _ := doc.Attrs["value"].(bool)

		return NewConst(KindBool, b, line), nil

	case "none":
		return NewConst(KindNone, nil, line), nil

	case "list":
		return &List{Items: children, line: line}, nil

	case "not":
		if !want(1) {
			return bad("want one child")
		}

		return &Not{Child: children[0], line: line}, nil

	case "stw":
		stmt, ok := only[Statement](children)
		if !ok {
			return bad("want one statement")
		}

		return &StatementWrapper{Stmt: stmt, line: line}, nil

	case "preload":
		return &Preload{Name: attrString(doc.Attrs, "name"), line: line}, nil
	}

	if op, ok := LookupOperator(doc.Type); ok && op.Binary {
		if !want(2) {
			return bad("want two children")
		}

		negate, _ := doc.Attrs["negate"].(bool)

		return &Binary{
			Op: op, Left: children[0], Right: children[1],
			Negate: negate, line: line,
		}, nil
	}

	if tag, ok := strings.CutPrefix(doc.Type, "st"); ok {
		stmt, ok := e.NewStatement(tag)
		if !ok {
			return bad("unknown statement")
		}

		if sb, ok := stmt.(interface{ SetLine(int) }); ok {
			sb.SetLine(line)
		}

		if err := stmt.Restore(doc.Attrs, children); err != nil {
			return nil, ErrArtifact.Wrap(err)
		}

		return stmt, nil
	}

	return bad("unknown node type")
}

func decodeQuery(doc *nodeDoc, children []Node) (Node, error) {
	q := &Query{
		Name:       attrString(doc.Attrs, "name"),
		line:       doc.Line,
		Head:       attrBool(doc.Attrs, "head"),
		ForceCache: attrBool(doc.Attrs, "force"),
		Slice:      attrBool(doc.Attrs, "slice"),
	}

	switch attrString(doc.Attrs, "type") {
	case QueryArrayItem.String():
		q.Type = QueryArrayItem
	case QueryMapItem.String():
		q.Type = QueryMapItem
	case QueryCall.String():
		q.Type = QueryCall
	}

	if i, ok := attrInt(doc.Attrs, "index1"); ok {
		q.Index1 = &i
	}

	if i, ok := attrInt(doc.Attrs, "index2"); ok {
		q.Index2 = &i
	}

	if attrBool(doc.Attrs, "tail") {
		if len(children) == 0 {
			return nil, ErrArtifact.Wrap(fmt.Errorf("query: missing tail"))
		}

		tail, ok := children[len(children)-1].(*Query)
		if !ok {
			return nil, ErrArtifact.Wrap(fmt.Errorf("query: bad tail"))
		}

		q.Tail, children = tail, children[:len(children)-1]
	}

	q.Args = children

	return q, nil
}

func only[T any](nodes []Node) (T, bool) {
	var zero T
	if len(nodes) != 1 {
		return zero, false
	}

	v, ok := nodes[0].(T)

	return v, ok
}

func attrString(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)

	return s
}

func attrBool(attrs map[string]any, key string) bool {
	b, _ := attrs[key].(bool)

	return b
}

// AttrInt reads an integer attribute decoded from YAML.
func AttrInt(attrs map[string]any, key string) (int, bool) {
	return attrInt(attrs, key)
}

func attrInt(attrs map[string]any, key string) (int, bool) {
	v, ok := attrs[key]
	if !ok {
		return 0, false
	}

	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case uint64:
		return int(x), true
	case float64:
		return int(x), true
	case string:
		i, err := strconv.Atoi(x)

		return i, err == nil
	}

	if n, ok := toNumber(v); ok && !n.isFloat {
		return int(n.i), true
	}

	return 0, false
}

func attrFloat(attrs map[string]any, key string) (float64, bool) {
	n, ok := toNumber(attrs[key])
	if !ok {
		return 0, false
	}

	return n.float(), true
}

// Describe formats an expression tree compactly, with every operator
// parenthesized: "(add 1 (mult 2 3))".
func Describe(n Node) string {
	var sb strings.Builder

	describe(&sb, n)

	return sb.String()
}

func describe(sb *strings.Builder, n Node) {
	switch x := n.(type) {
	case *Expression:
		if inner, ok := x.Child.(*Expression); ok {
			sb.WriteString("(")
			describe(sb, inner)
			sb.WriteString(")")

			return
		}

		describe(sb, x.Child)
	case *Const:
		sb.WriteString(repr(x.Value))
	case *Query:
		sb.WriteString(x.Path())
	case *Binary:
		sb.WriteString("(" + x.Op.Name)

		if x.Negate {
			sb.WriteString(" not")
		}

		for _, c := range x.Children() {
			sb.WriteString(" ")
			describe(sb, c)
		}

		sb.WriteString(")")
	case *Not:
		sb.WriteString("(not ")
		describe(sb, x.Child)
		sb.WriteString(")")
	case *Filter:
		sb.WriteString("(|" + x.Name)

		for _, c := range x.Children() {
			sb.WriteString(" ")
			describe(sb, c)
		}

		sb.WriteString(")")
	case *List:
		sb.WriteString("[")

		for i, c := range x.Items {
			if i > 0 {
				sb.WriteString(", ")
			}

			describe(sb, c)
		}

		sb.WriteString("]")
	default:
		sb.WriteString(TypeName(n))
	}
}
