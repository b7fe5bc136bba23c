package definition

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tordrt/schemadrift/internal/typemap"
)

// Option configures Parse.
type Option func(*parser)

// WithNaming sets the naming strategy used for declarations without @map.
func WithNaming(n Naming) Option {
	return func(p *parser) {
		p.naming = n
	}
}

// ParseFile reads and parses a definition file.
func ParseFile(path string, opts ...Option) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition file: %w", err)
	}
	return Parse(string(data), opts...)
}

// Parse parses definition source text.
//
// The returned Schema is never nil. When some blocks or lines are malformed
// the error is a ParseErrors value and the Schema holds everything that could
// be parsed; callers decide whether a partial result is acceptable.
func Parse(src string, opts ...Option) (*Schema, error) {
	p := &parser{
		toks: lex(src),
		schema: &Schema{
			models: make(map[string]*ModelDefinition),
			enums:  make(map[string]*EnumDefinition),
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.parseFile()
	p.resolve()

	if len(p.errs) > 0 {
		return p.schema, p.errs
	}
	return p.schema, nil
}

type parser struct {
	toks   []token
	pos    int
	naming Naming
	schema *Schema
	errs   ParseErrors
}

func (p *parser) peek(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.peek(0)
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(line int, block, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{Line: line, Block: block, Msg: fmt.Sprintf(format, args...)})
}

// atBlockHeader reports whether the next tokens read `<keyword> <Name> {`.
func (p *parser) atBlockHeader() bool {
	return p.peek(0).is(tokIdent) && p.peek(1).is(tokIdent) && p.peek(2).is(tokLBrace)
}

// atDeclarationHeader is atBlockHeader restricted to model and enum blocks.
func (p *parser) atDeclarationHeader() bool {
	t := p.peek(0)
	return (t.isIdent("model") || t.isIdent("enum")) && p.atBlockHeader()
}

func (p *parser) parseFile() {
	for {
		t := p.peek(0)
		switch {
		case t.is(tokEOF):
			return
		case t.is(tokNewline):
			p.next()
		case p.atBlockHeader():
			kw, name := p.next(), p.next()
			p.next()
			p.parseBlock(kw, name)
		default:
			p.errorf(t.line, "", "unexpected %q outside of a block", t.text)
			p.skipLine()
		}
	}
}

func (p *parser) skipLine() {
	for !p.peek(0).is(tokNewline) && !p.peek(0).is(tokEOF) {
		p.next()
	}
}

func (p *parser) parseBlock(kw, name token) {
	label := kw.text + " " + name.text
	lines, closed := p.blockLines()
	if !closed {
		p.errorf(kw.line, label, "block is never closed")
		return
	}

	switch kw.text {
	case "model":
		p.buildModel(label, name, lines)
	case "enum":
		p.buildEnum(label, name, lines)
	}
}

// blockLines collects the body of the block whose opening brace was just
// consumed, one token slice per non-empty line. Brace depth is counted
// relative to this block only. A model or enum header found at the block's
// own depth means the closing brace is missing: the block is reported as
// unclosed and parsing resumes at that header.
func (p *parser) blockLines() ([][]token, bool) {
	var (
		lines [][]token
		cur   []token
		depth = 1
	)
	for {
		t := p.peek(0)
		switch t.kind {
		case tokEOF:
			return lines, false
		case tokNewline:
			p.next()
			if len(cur) > 0 {
				lines = append(lines, cur)
				cur = nil
			}
			if depth == 1 && p.atDeclarationHeader() {
				return lines, false
			}
			continue
		case tokLBrace:
			depth++
		case tokRBrace:
			depth--
			if depth == 0 {
				p.next()
				if len(cur) > 0 {
					lines = append(lines, cur)
				}
				return lines, true
			}
		}
		cur = append(cur, t)
		p.next()
	}
}

func (p *parser) buildModel(label string, name token, lines [][]token) {
	m := &ModelDefinition{Name: name.text, Line: name.line}

	for _, line := range lines {
		if line[0].is(tokAtAt) {
			p.modelDirective(label, m, line)
			continue
		}
		for _, part := range splitTopLevel(line) {
			f, err := parseField(part)
			if err != "" {
				p.errorf(part[0].line, label, "%s", err)
				continue
			}
			if !f.ColumnMapped {
				f.ColumnName = p.naming.ColumnName(f.Name)
			}
			m.addField(f)
		}
	}

	if !m.TableMapped {
		m.TableName = p.naming.TableName(m.Name)
	}

	if _, dup := p.schema.models[m.Name]; dup {
		p.errorf(name.line, label, "duplicate model declaration")
		return
	}
	p.schema.models[m.Name] = m
	p.schema.Models = append(p.schema.Models, m)
}

func (p *parser) modelDirective(label string, m *ModelDefinition, line []token) {
	if len(line) < 2 || !line[1].is(tokIdent) {
		p.errorf(line[0].line, label, "malformed block directive")
		return
	}
	var args []token
	if len(line) > 2 && line[2].is(tokLParen) {
		args, _ = group(line, 2)
	}

	switch line[1].text {
	case "map":
		if s, ok := firstString(args); ok {
			m.TableName = s
			m.TableMapped = true
		}
	case "index":
		if fields := fieldList(args); len(fields) > 0 {
			m.Indexes = append(m.Indexes, fields)
		}
	case "id":
		m.PrimaryKey = fieldList(args)
	case "unique":
		if fields := fieldList(args); len(fields) > 0 {
			m.Uniques = append(m.Uniques, fields)
		}
	}
}

// parseField parses `<name> <type>[[]][?] <annotations>`. A non-empty string
// return describes why the line is not a field.
func parseField(line []token) (*FieldDefinition, string) {
	if len(line) < 2 || !line[0].is(tokIdent) || !line[1].is(tokIdent) {
		return nil, fmt.Sprintf("unparsable field line starting with %q", line[0].text)
	}
	f := &FieldDefinition{
		Name:         line[0].text,
		DeclaredType: line[1].text,
		Line:         line[0].line,
	}

	i := 2
	if i < len(line) && line[i].is(tokLParen) {
		_, i = group(line, i)
	}
	for i < len(line) {
		if line[i].is(tokQuestion) {
			f.IsOptional = true
			i++
			continue
		}
		if line[i].is(tokLBracket) && i+1 < len(line) && line[i+1].is(tokRBracket) {
			f.IsArray = true
			i += 2
			continue
		}
		break
	}

	for i < len(line) {
		if !line[i].is(tokAt) || i+1 >= len(line) || !line[i+1].is(tokIdent) {
			i++
			continue
		}
		name := line[i+1].text
		i += 2
		var args []token
		if i < len(line) && line[i].is(tokLParen) {
			args, i = group(line, i)
		}
		applyAnnotation(f, name, args)
	}
	return f, ""
}

func applyAnnotation(f *FieldDefinition, name string, args []token) {
	switch {
	case name == "id":
		f.IsPrimaryKey = true
	case name == "unique":
		f.IsUnique = true
	case name == "default":
		f.HasDefault = true
		if r := renderArgs(args); r != "" {
			f.Default = r[1 : len(r)-1]
		}
	case name == "map":
		if s, ok := firstString(args); ok {
			f.ColumnName = s
			f.ColumnMapped = true
		}
	case strings.HasPrefix(name, "db."):
		f.DBTypeHint = name[len("db."):] + renderArgs(args)
	}
}

func (p *parser) buildEnum(label string, name token, lines [][]token) {
	e := &EnumDefinition{Name: name.text, Line: name.line}
	mapped := false

	for _, line := range lines {
		if line[0].is(tokAtAt) {
			if len(line) > 2 && line[1].isIdent("map") && line[2].is(tokLParen) {
				args, _ := group(line, 2)
				if s, ok := firstString(args); ok {
					e.DBName = s
					mapped = true
				}
			}
			continue
		}
		if !line[0].is(tokIdent) {
			p.errorf(line[0].line, label, "unparsable enum value %q", line[0].text)
			continue
		}
		for i := 0; i < len(line); {
			t := line[i]
			switch {
			case t.is(tokIdent):
				e.Values = append(e.Values, t.text)
				i++
			case t.is(tokAt) && i+1 < len(line) && line[i+1].is(tokIdent):
				annotation := line[i+1].text
				i += 2
				var args []token
				if i < len(line) && line[i].is(tokLParen) {
					args, i = group(line, i)
				}
				if s, ok := firstString(args); ok && annotation == "map" && len(e.Values) > 0 {
					e.Values[len(e.Values)-1] = s
				}
			default:
				i++
			}
		}
	}

	if !mapped {
		e.DBName = p.naming.EnumName(e.Name)
	}

	if _, dup := p.schema.enums[e.Name]; dup {
		p.errorf(name.line, label, "duplicate enum declaration")
		return
	}
	p.schema.enums[e.Name] = e
	p.schema.Enums = append(p.schema.Enums, e)
}

// resolve runs once every block is known: relation classification uses the
// complete model registry, so forward references resolve correctly.
func (p *parser) resolve() {
	for _, m := range p.schema.Models {
		label := "model " + m.Name
		for _, f := range m.Fields {
			f.IsRelation = p.schema.isRelationType(f.DeclaredType)
		}
		for _, name := range m.PrimaryKey {
			f, ok := m.Field(name)
			if !ok {
				p.errorf(m.Line, label, "@@id references unknown field %q", name)
				continue
			}
			f.IsPrimaryKey = true
		}
		for _, idx := range m.Indexes {
			for _, name := range idx {
				if _, ok := m.Field(name); !ok {
					p.errorf(m.Line, label, "@@index references unknown field %q", name)
				}
			}
		}
	}
}

// isRelationType classifies a declared type token. Parsed models are
// relations; primitives and parsed enums are not. Any other token is treated
// as a relation only when it starts with an upper-case letter, which covers
// models declared outside this source.
func (s *Schema) isRelationType(typ string) bool {
	if typemap.IsPrimitive(typ) {
		return false
	}
	if _, ok := s.enums[typ]; ok {
		return false
	}
	if _, ok := s.models[typ]; ok {
		return true
	}
	r, _ := utf8.DecodeRuneInString(typ)
	return unicode.IsUpper(r)
}

// group returns the tokens between the parenthesis at line[open] and its
// match, and the index just past the match. An unbalanced group runs to the
// end of the line.
func group(line []token, open int) ([]token, int) {
	depth := 0
	for i := open; i < len(line); i++ {
		switch line[i].kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
			if depth == 0 {
				return line[open+1 : i], i + 1
			}
		}
	}
	return line[open+1:], len(line)
}

// splitTopLevel splits a line at commas outside any brackets, so several
// fields written on one line are parsed separately.
func splitTopLevel(line []token) [][]token {
	var (
		parts [][]token
		start int
		depth int
	)
	for i, t := range line {
		switch t.kind {
		case tokLParen, tokLBracket, tokLBrace:
			depth++
		case tokRParen, tokRBracket, tokRBrace:
			depth--
		case tokComma:
			if depth == 0 {
				if i > start {
					parts = append(parts, line[start:i])
				}
				start = i + 1
			}
		}
	}
	if start < len(line) {
		parts = append(parts, line[start:])
	}
	return parts
}

func firstString(args []token) (string, bool) {
	for _, t := range args {
		if t.is(tokString) {
			return t.text, true
		}
	}
	return "", false
}

// fieldList returns the identifiers of the first bracketed list in args,
// ignoring per-field arguments such as `createdAt(sort: Desc)`.
func fieldList(args []token) []string {
	var fields []string
	inList := false
	parens := 0
	for _, t := range args {
		switch {
		case !inList:
			inList = t.is(tokLBracket)
		case t.is(tokLParen):
			parens++
		case t.is(tokRParen):
			parens--
		case t.is(tokRBracket) && parens == 0:
			return fields
		case t.is(tokIdent) && parens == 0:
			fields = append(fields, t.text)
		}
	}
	return fields
}

func renderArgs(args []token) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('(')
	for _, t := range args {
		if t.is(tokString) {
			b.WriteString(`"` + t.text + `"`)
			continue
		}
		b.WriteString(t.text)
	}
	b.WriteByte(')')
	return b.String()
}
