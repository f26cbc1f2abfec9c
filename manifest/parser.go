package manifest

import (
	"github.com/synnergy-network/corevm/pkg/utils"
)

// Parser is a recursive-descent parser over the manifest token stream
// (spec §6). It enforces a fixed argument-nesting depth
// (maxDepth, MANIFEST_SBOR_MAX_DEPTH - 4 = 20 per spec's manifest
// configuration) so a pathological nested Array/Map/Enum literal
// cannot blow the Go call stack before the kernel's own limits would
// ever see the transaction.
type Parser struct {
	lexer   *Lexer
	cur     Token
	maxDepth int
	m       Manifest
}

// enumDiscriminatorAliases resolves the name form of Enum<"Name">(...)
// to its u8 discriminator, grounded on the Option-style and
// AccessRule-kind enumerations already used elsewhere in this tree
// (spec §3 SUPPLEMENTED FEATURES, "Manifest enum-discriminator alias
// table").
var enumDiscriminatorAliases = map[string]byte{
	"None":      0,
	"Some":      1,
	"AllowAll":  0,
	"DenyAll":   1,
	"Protected": 2,
}

func NewParser(src string, maxDepth int) (*Parser, error) {
	p := &Parser{lexer: NewLexer(src), maxDepth: maxDepth, m: Manifest{
		BucketNames:             make(map[string]int),
		ProofNames:              make(map[string]int),
		AddressReservationNames: make(map[string]int),
		NamedAddressNames:       make(map[string]int),
	}}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) next() error {
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	if p.cur.Kind != kind {
		return Token{}, utils.SystemUpstream("ParserError", positioned(p.cur.Line, p.cur.Column,
			"expected "+kind.String()+", found "+p.cur.Kind.String()+" "+p.cur.Text))
	}
	tok := p.cur
	if err := p.next(); err != nil {
		return Token{}, err
	}
	return tok, nil
}

// Parse consumes the whole token stream and returns the resulting
// instruction list plus name tables.
func (p *Parser) Parse() (Manifest, error) {
	for p.cur.Kind != TokenEOF {
		inst, err := p.parseInstruction()
		if err != nil {
			return Manifest{}, err
		}
		p.m.Instructions = append(p.m.Instructions, inst)
	}
	return p.m, nil
}

func (p *Parser) parseInstruction() (Instruction, error) {
	name, err := p.expect(TokenIdent)
	if err != nil {
		return Instruction{}, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return Instruction{}, err
	}
	var args []Arg
	for p.cur.Kind != TokenRParen {
		arg, err := p.parseArg(0)
		if err != nil {
			return Instruction{}, err
		}
		args = append(args, arg)
		if p.cur.Kind == TokenComma {
			if err := p.next(); err != nil {
				return Instruction{}, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return Instruction{}, err
	}
	if _, err := p.expect(TokenSemicolon); err != nil {
		return Instruction{}, err
	}
	return Instruction{Name: name.Text, Args: args, Line: name.Line, Column: name.Column}, nil
}

func (p *Parser) parseArg(depth int) (Arg, error) {
	if depth > p.maxDepth {
		return Arg{}, utils.SystemUpstream("ParserError", positioned(p.cur.Line, p.cur.Column,
			"manifest value nesting exceeds the maximum depth"))
	}
	tok := p.cur
	switch tok.Kind {
	case TokenNumber:
		if err := p.next(); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgNumber, Text: tok.Text, Line: tok.Line, Column: tok.Column}, nil
	case TokenDecimal:
		if err := p.next(); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgDecimal, Text: tok.Text, Line: tok.Line, Column: tok.Column}, nil
	case TokenString:
		if err := p.next(); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgString, Text: tok.Text, Line: tok.Line, Column: tok.Column}, nil
	case TokenBool:
		if err := p.next(); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgBool, Text: tok.Text, Line: tok.Line, Column: tok.Column}, nil
	case TokenIdent:
		return p.parseIdentArg(tok, depth)
	default:
		return Arg{}, utils.SystemUpstream("ParserError", positioned(tok.Line, tok.Column,
			"unexpected token in argument position: "+tok.Kind.String()))
	}
}

// parseIdentArg handles the function-call-shaped literals of the
// manifest grammar: Address("..."), Bucket("name"), Proof("name"),
// Array(...), Map(...), Enum<discriminator>(...), Decimal("..."),
// NonFungibleLocalId("..."), Blob("..."), Expression("..."),
// AddressReservation("name"), NamedAddress("name").
func (p *Parser) parseIdentArg(tok Token, depth int) (Arg, error) {
	ident := tok.Text
	if err := p.next(); err != nil {
		return Arg{}, err
	}
	if ident == "Enum" {
		return p.parseEnumArg(tok, depth)
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return Arg{}, err
	}

	switch ident {
	case "Address":
		s, err := p.expect(TokenString)
		if err != nil {
			return Arg{}, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgAddress, Text: s.Text, Line: tok.Line, Column: tok.Column}, nil

	case "Bucket", "Proof", "AddressReservation", "NamedAddress":
		s, err := p.expect(TokenString)
		if err != nil {
			return Arg{}, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return Arg{}, err
		}
		var kind ArgKind
		var table map[string]int
		switch ident {
		case "Bucket":
			kind, table = ArgBucketRef, p.m.BucketNames
		case "Proof":
			kind, table = ArgProofRef, p.m.ProofNames
		case "AddressReservation":
			kind, table = ArgAddressReservationRef, p.m.AddressReservationNames
		case "NamedAddress":
			kind, table = ArgNamedAddressRef, p.m.NamedAddressNames
		}
		idx, exists := table[s.Text]
		if !exists {
			idx = len(table)
			table[s.Text] = idx
		}
		return Arg{Kind: kind, Text: s.Text, Index: idx, Line: tok.Line, Column: tok.Column}, nil

	case "Decimal", "NonFungibleLocalId", "Blob", "Expression":
		s, err := p.expect(TokenString)
		if err != nil {
			return Arg{}, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return Arg{}, err
		}
		var kind ArgKind
		switch ident {
		case "Decimal":
			kind = ArgDecimal
		case "NonFungibleLocalId":
			kind = ArgNonFungibleLocalID
		case "Blob":
			kind = ArgBlob
		case "Expression":
			kind = ArgExpression
		}
		return Arg{Kind: kind, Text: s.Text, Line: tok.Line, Column: tok.Column}, nil

	case "Array":
		var children []Arg
		for p.cur.Kind != TokenRParen {
			child, err := p.parseArg(depth + 1)
			if err != nil {
				return Arg{}, err
			}
			children = append(children, child)
			if p.cur.Kind == TokenComma {
				if err := p.next(); err != nil {
					return Arg{}, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgArray, Children: children, Line: tok.Line, Column: tok.Column}, nil

	case "Map":
		var children []Arg
		for p.cur.Kind != TokenRParen {
			key, err := p.parseArg(depth + 1)
			if err != nil {
				return Arg{}, err
			}
			if _, err := p.expect(TokenComma); err != nil {
				return Arg{}, err
			}
			val, err := p.parseArg(depth + 1)
			if err != nil {
				return Arg{}, err
			}
			children = append(children, key, val)
			if p.cur.Kind == TokenComma {
				if err := p.next(); err != nil {
					return Arg{}, err
				}
				continue
			}
			break
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return Arg{}, err
		}
		return Arg{Kind: ArgMap, Children: children, Line: tok.Line, Column: tok.Column}, nil

	default:
		return Arg{}, utils.SystemUpstream("ParserError", positioned(tok.Line, tok.Column,
			"unknown manifest value constructor: "+ident))
	}
}

// parseEnumArg handles Enum<discriminator>(field, ...), where the
// discriminator is either a raw u8 (Enum<0>(...)) or a name resolved
// through enumDiscriminatorAliases (Enum<"Some">(...)).
func (p *Parser) parseEnumArg(tok Token, depth int) (Arg, error) {
	if _, err := p.expect(TokenLAngle); err != nil {
		return Arg{}, err
	}
	var variant byte
	switch p.cur.Kind {
	case TokenNumber:
		n := p.cur
		if err := p.next(); err != nil {
			return Arg{}, err
		}
		variant = byte(parseSmallUint(n.Text))
	case TokenString:
		name := p.cur
		if err := p.next(); err != nil {
			return Arg{}, err
		}
		d, ok := enumDiscriminatorAliases[name.Text]
		if !ok {
			return Arg{}, utils.SystemUpstream("ParserError", positioned(name.Line, name.Column,
				"unknown enum discriminator alias: "+name.Text))
		}
		variant = d
	default:
		return Arg{}, utils.SystemUpstream("ParserError", positioned(p.cur.Line, p.cur.Column,
			"expected a numeric or string enum discriminator"))
	}
	if _, err := p.expect(TokenRAngle); err != nil {
		return Arg{}, err
	}
	if _, err := p.expect(TokenLParen); err != nil {
		return Arg{}, err
	}
	var fields []Arg
	for p.cur.Kind != TokenRParen {
		field, err := p.parseArg(depth + 1)
		if err != nil {
			return Arg{}, err
		}
		fields = append(fields, field)
		if p.cur.Kind == TokenComma {
			if err := p.next(); err != nil {
				return Arg{}, err
			}
			continue
		}
		break
	}
	if _, err := p.expect(TokenRParen); err != nil {
		return Arg{}, err
	}
	return Arg{Kind: ArgEnum, Variant: variant, Children: fields, Line: tok.Line, Column: tok.Column}, nil
}

func parseSmallUint(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}
