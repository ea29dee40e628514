package cfgtree

import (
	"fmt"
	"os"
)

// Parser builds a Tree from the token stream.
type Parser struct {
	lexer *Lexer
}

// NewParser creates a Parser over the given configuration text.
func NewParser(input string) *Parser {
	return &Parser{lexer: NewLexer(input)}
}

// Parse consumes the whole input and returns the configuration tree.
func (p *Parser) Parse() (*Tree, error) {
	nodes, err := p.parseEntries(TokenEOF)
	if err != nil {
		return nil, err
	}
	return &Tree{Children: nodes}, nil
}

// parseEntries reads entries until the given closing token. Each entry
// is "name value" or "name { ... }"; a trailing semicolon after a
// value is tolerated.
func (p *Parser) parseEntries(until TokenType) ([]*Node, error) {
	var nodes []*Node
	for {
		tok := p.lexer.Next()
		switch tok.Type {
		case until:
			return nodes, nil
		case TokenEOF:
			return nil, fmt.Errorf("line %d:%d: unexpected end of input, missing '}'", tok.Line, tok.Column)
		case TokenRBrace:
			return nil, fmt.Errorf("line %d:%d: unexpected '}'", tok.Line, tok.Column)
		case TokenSemicolon:
			continue
		case TokenError:
			return nil, fmt.Errorf("line %d:%d: %s", tok.Line, tok.Column, tok.Value)
		case TokenWord, TokenString:
			node, err := p.parseEntry(tok)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, node)
		default:
			return nil, fmt.Errorf("line %d:%d: unexpected %s", tok.Line, tok.Column, tok)
		}
	}
}

func (p *Parser) parseEntry(name Token) (*Node, error) {
	node := &Node{Name: name.Value, Line: name.Line, Column: name.Column}

	tok := p.lexer.Next()
	switch tok.Type {
	case TokenLBrace:
		children, err := p.parseEntries(TokenRBrace)
		if err != nil {
			return nil, err
		}
		node.Block = true
		node.Children = children
		return node, nil
	case TokenWord, TokenString:
		node.Value = tok.Value
		if p.lexer.Peek().Type == TokenSemicolon {
			p.lexer.Next()
		}
		return node, nil
	case TokenError:
		return nil, fmt.Errorf("line %d:%d: %s", tok.Line, tok.Column, tok.Value)
	default:
		return nil, fmt.Errorf("line %d:%d: expected value or '{' after %q, got %s",
			tok.Line, tok.Column, name.Value, tok)
	}
}

// Parse parses configuration text into a Tree.
func Parse(input string) (*Tree, error) {
	return NewParser(input).Parse()
}

// ParseFile reads and parses the configuration file at path.
func ParseFile(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	tree, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tree, nil
}
