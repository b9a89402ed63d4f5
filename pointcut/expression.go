/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pointcut

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rulego/weave/api/types"
	"github.com/rulego/weave/utils/str"
)

// ellipsis is the segment marker for `..`, it matches zero or more segments.
const ellipsis = ".."

// ExpressionPointcut matches operations with a structural expression.
// ExpressionPointcut 使用结构化表达式匹配操作。
//
// Grammar:
//
//	expr        := orExpr
//	orExpr      := andExpr { ("||" | "or") andExpr }
//	andExpr     := unary { ("&&" | "and") unary }
//	unary       := ("!" | "not") unary | "(" expr ")" | designator
//	designator  := "execution(" retPattern " " declAndName "(" params "))"
//	             | "within(" typePattern ")"
//
// Type patterns are dotted names, `*` globs inside a segment and `..` matches any
// number of segments, e.g. `app..*`, `*..OrderService`. In execution designators the
// last segment is the method name: `* app.order.*.save*(..)`. Parameter patterns are
// `..` for any list, empty for none, or a comma separated list of type globs which may
// end with `..`.
//
// Negation binds tighter than `&&`, which binds tighter than `||`.
type ExpressionPointcut struct {
	expression string
	root       exprNode
}

var _ types.MethodMatcher = (*ExpressionPointcut)(nil)

// NewExpressionPointcut parses the expression. Malformed expressions return an error
// wrapping types.ErrInvalidExpression.
func NewExpressionPointcut(expression string) (*ExpressionPointcut, error) {
	root, err := parseExpression(expression)
	if err != nil {
		return nil, err
	}
	return &ExpressionPointcut{expression: expression, root: root}, nil
}

// MustExpressionPointcut is like NewExpressionPointcut but panics on a malformed expression.
func MustExpressionPointcut(expression string) *ExpressionPointcut {
	pc, err := NewExpressionPointcut(expression)
	if err != nil {
		panic(err)
	}
	return pc
}

// Expression returns the source expression.
func (p *ExpressionPointcut) Expression() string {
	return p.expression
}

func (p *ExpressionPointcut) String() string {
	return p.root.String()
}

// TypeFilter rejects types no operation of which could match.
func (p *ExpressionPointcut) TypeFilter() types.TypeFilter {
	return types.TypeFilterFunc(p.root.couldMatchType)
}

func (p *ExpressionPointcut) MethodMatcher() types.MethodMatcher {
	return p
}

func (p *ExpressionPointcut) Matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return p.root.matches(t, m)
}

func (p *ExpressionPointcut) IsRuntime() bool {
	return false
}

func (p *ExpressionPointcut) MatchesArgs(t types.TypeDescriptor, m types.MethodDescriptor, args []any) bool {
	return p.root.matches(t, m)
}

type exprNode interface {
	matches(t types.TypeDescriptor, m types.MethodDescriptor) bool
	// couldMatchType is conservative: false only when no method of t can match.
	couldMatchType(t types.TypeDescriptor) bool
	String() string
}

type orNode struct {
	left, right exprNode
}

func (n *orNode) matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return n.left.matches(t, m) || n.right.matches(t, m)
}

func (n *orNode) couldMatchType(t types.TypeDescriptor) bool {
	return n.left.couldMatchType(t) || n.right.couldMatchType(t)
}

func (n *orNode) String() string {
	return "(" + n.left.String() + " || " + n.right.String() + ")"
}

type andNode struct {
	left, right exprNode
}

func (n *andNode) matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return n.left.matches(t, m) && n.right.matches(t, m)
}

func (n *andNode) couldMatchType(t types.TypeDescriptor) bool {
	return n.left.couldMatchType(t) && n.right.couldMatchType(t)
}

func (n *andNode) String() string {
	return "(" + n.left.String() + " && " + n.right.String() + ")"
}

type notNode struct {
	operand exprNode
}

func (n *notNode) matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return !n.operand.matches(t, m)
}

func (n *notNode) couldMatchType(t types.TypeDescriptor) bool {
	return true
}

func (n *notNode) String() string {
	return "!" + n.operand.String()
}

type withinNode struct {
	source string
	typ    []string
}

func (n *withinNode) matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	return n.couldMatchType(t)
}

func (n *withinNode) couldMatchType(t types.TypeDescriptor) bool {
	return matchSegments(n.typ, typeSegments(t))
}

func (n *withinNode) String() string {
	return "within(" + n.source + ")"
}

type executionNode struct {
	source string
	ret    string
	// decl is nil when the pattern only names a method, e.g. `* save(..)`
	decl   []string
	name   string
	params []string
}

func (n *executionNode) matches(t types.TypeDescriptor, m types.MethodDescriptor) bool {
	if !n.couldMatchType(t) {
		return false
	}
	if !str.SimpleMatch(n.name, m.Name) {
		return false
	}
	returns := m.Returns
	if returns == "" {
		returns = types.Void
	}
	if !str.SimpleMatch(n.ret, returns) {
		return false
	}
	return matchSegments(n.params, m.Params)
}

func (n *executionNode) couldMatchType(t types.TypeDescriptor) bool {
	if n.decl == nil {
		return true
	}
	return matchSegments(n.decl, typeSegments(t))
}

func (n *executionNode) String() string {
	return "execution(" + n.source + ")"
}

func typeSegments(t types.TypeDescriptor) []string {
	return strings.Split(t.QualifiedName(), ".")
}

// matchSegments matches glob segments against values, the ellipsis marker absorbs
// zero or more values.
func matchSegments(patterns, values []string) bool {
	if len(patterns) == 0 {
		return len(values) == 0
	}
	if patterns[0] == ellipsis {
		for i := 0; i <= len(values); i++ {
			if matchSegments(patterns[1:], values[i:]) {
				return true
			}
		}
		return false
	}
	if len(values) == 0 {
		return false
	}
	return str.SimpleMatch(patterns[0], values[0]) && matchSegments(patterns[1:], values[1:])
}

func parseExpression(expression string) (exprNode, error) {
	tokens, err := tokenize(expression)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty expression", types.ErrInvalidExpression)
	}
	p := &parser{expression: expression, tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return node, nil
}

type tokenKind int

const (
	tokenOr tokenKind = iota
	tokenAnd
	tokenNot
	tokenLParen
	tokenRParen
	tokenExecution
	tokenWithin
)

type token struct {
	kind tokenKind
	text string
	// body is the text between the designator parentheses
	body string
	pos  int
}

func tokenize(s string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(s[i:], "||"):
			tokens = append(tokens, token{kind: tokenOr, text: "||", pos: i})
			i += 2
		case strings.HasPrefix(s[i:], "&&"):
			tokens = append(tokens, token{kind: tokenAnd, text: "&&", pos: i})
			i += 2
		case c == '!':
			tokens = append(tokens, token{kind: tokenNot, text: "!", pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		case isIdentChar(rune(c)):
			start := i
			for i < len(s) && isIdentChar(rune(s[i])) {
				i++
			}
			word := s[start:i]
			switch word {
			case "and":
				tokens = append(tokens, token{kind: tokenAnd, text: word, pos: start})
			case "or":
				tokens = append(tokens, token{kind: tokenOr, text: word, pos: start})
			case "not":
				tokens = append(tokens, token{kind: tokenNot, text: word, pos: start})
			case "execution", "within":
				for i < len(s) && s[i] == ' ' {
					i++
				}
				if i >= len(s) || s[i] != '(' {
					return nil, fmt.Errorf("%w: expected '(' after %s at %d", types.ErrInvalidExpression, word, i)
				}
				end, err := closingParen(s, i)
				if err != nil {
					return nil, err
				}
				kind := tokenExecution
				if word == "within" {
					kind = tokenWithin
				}
				tokens = append(tokens, token{kind: kind, text: word, body: strings.TrimSpace(s[i+1 : end]), pos: start})
				i = end + 1
			default:
				return nil, fmt.Errorf("%w: unknown designator %q at %d", types.ErrInvalidExpression, word, start)
			}
		default:
			return nil, fmt.Errorf("%w: unexpected character %q at %d", types.ErrInvalidExpression, c, i)
		}
	}
	return tokens, nil
}

func closingParen(s string, open int) (int, error) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: unbalanced parentheses at %d", types.ErrInvalidExpression, open)
}

func isIdentChar(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isPatternChar(r rune) bool {
	return isIdentChar(r) || r == '*' || r == '[' || r == ']'
}

type parser struct {
	expression string
	tokens     []token
	pos        int
}

func (p *parser) done() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", types.ErrInvalidExpression, fmt.Sprintf(format, args...), p.expression)
}

func (p *parser) parseOr() (exprNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == tokenOr {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &orNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (exprNode, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for !p.done() && p.peek().kind == tokenAnd {
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &andNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (exprNode, error) {
	if p.done() {
		return nil, p.errorf("unexpected end of expression")
	}
	tok := p.peek()
	p.pos++
	switch tok.kind {
	case tokenNot:
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	case tokenLParen:
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.done() || p.peek().kind != tokenRParen {
			return nil, p.errorf("missing ')'")
		}
		p.pos++
		return node, nil
	case tokenExecution:
		return parseExecution(tok.body)
	case tokenWithin:
		typ, err := parseTypePattern(tok.body)
		if err != nil {
			return nil, err
		}
		if len(typ) == 0 {
			return nil, fmt.Errorf("%w: within requires a type pattern", types.ErrInvalidExpression)
		}
		return &withinNode{source: tok.body, typ: typ}, nil
	default:
		return nil, p.errorf("unexpected %q at %d", tok.text, tok.pos)
	}
}

// parseExecution parses `ret declAndName(params)`.
func parseExecution(body string) (exprNode, error) {
	open := strings.IndexByte(body, '(')
	if open < 0 || !strings.HasSuffix(body, ")") {
		return nil, fmt.Errorf("%w: execution(%s) requires a parameter list", types.ErrInvalidExpression, body)
	}
	params, err := parseParams(body[open+1 : len(body)-1])
	if err != nil {
		return nil, err
	}
	head := strings.Fields(body[:open])
	if len(head) != 2 {
		return nil, fmt.Errorf("%w: execution(%s) requires a return type and a method pattern", types.ErrInvalidExpression, body)
	}
	ret := head[0]
	if !validParamGlob(ret) {
		return nil, fmt.Errorf("%w: invalid return type pattern %q", types.ErrInvalidExpression, ret)
	}
	declAndName := head[1]
	lastDot := strings.LastIndexByte(declAndName, '.')
	name := declAndName[lastDot+1:]
	if name == "" || !validGlob(name) {
		return nil, fmt.Errorf("%w: invalid method pattern %q", types.ErrInvalidExpression, declAndName)
	}
	node := &executionNode{source: body, ret: ret, name: name, params: params}
	if lastDot > 0 {
		decl := declAndName[:lastDot]
		// `app..save`: the separating dot belongs to the ellipsis
		if declAndName[lastDot-1] == '.' {
			decl = declAndName[:lastDot+1]
		}
		if node.decl, err = parseTypePattern(decl); err != nil {
			return nil, err
		}
	} else if lastDot == 0 {
		return nil, fmt.Errorf("%w: invalid method pattern %q", types.ErrInvalidExpression, declAndName)
	}
	return node, nil
}

// parseTypePattern splits a dotted type pattern into glob segments and ellipsis markers.
func parseTypePattern(pattern string) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	var segments []string
	for _, part := range strings.Split(pattern, ".") {
		if part == "" {
			if len(segments) == 0 || segments[len(segments)-1] != ellipsis {
				segments = append(segments, ellipsis)
			}
			continue
		}
		if !validGlob(part) {
			return nil, fmt.Errorf("%w: invalid type pattern %q", types.ErrInvalidExpression, pattern)
		}
		segments = append(segments, part)
	}
	return segments, nil
}

func parseParams(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	params := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == ellipsis {
			params = append(params, ellipsis)
			continue
		}
		if strings.HasPrefix(part, "...") {
			part = part[3:]
		}
		if !validParamGlob(part) {
			return nil, fmt.Errorf("%w: invalid parameter pattern %q", types.ErrInvalidExpression, s)
		}
		params = append(params, part)
	}
	return params, nil
}

func validGlob(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isPatternChar(r) {
			return false
		}
	}
	return true
}

// validParamGlob accepts Go type names such as map[string]any, *order.Order or []byte.
func validParamGlob(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isPatternChar(r) && r != '.' {
			return false
		}
	}
	return true
}
