package ir

import (
	"fmt"
	"strconv"
	"strings"
)

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opNames))
	for op, name := range opNames {
		m[name] = Opcode(op)
	}
	return m
}()

var typeByName = map[string]Type{
	"int": TypeInt, "float": TypeFloat, "double": TypeDouble,
	"bool": TypeBool, "string": TypeString, "none": TypeNone,
}

// ParseText reads a program in the same textual form Program.String emits:
// one instruction per line, `res = op a, b` for instructions with a result,
// `op a, b` otherwise. `#` starts a comment.
func ParseText(src string) (*Program, error) {
	p := NewProgram()
	for lineNo, line := range strings.Split(src, "\n") {
		if idx := commentIndex(line); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		inst, err := parseLine(p, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		p.Append(inst)
	}
	return p, nil
}

func parseLine(p *Program, line string) (*Instruction, error) {
	inst := &Instruction{}

	if lhs, rhs, found := cutAssign(line); found {
		res, err := parseOperand(p, strings.TrimSpace(lhs))
		if err != nil {
			return nil, err
		}
		inst.Res = res
		line = strings.TrimSpace(rhs)
	}

	mnemonic, rest := line, ""
	if idx := strings.IndexByte(line, ' '); idx >= 0 {
		mnemonic, rest = line[:idx], strings.TrimSpace(line[idx+1:])
	}
	op, ok := opcodeByName[mnemonic]
	if !ok {
		return nil, fmt.Errorf("unknown opcode '%s'", mnemonic)
	}
	inst.Op = op

	operands, err := splitOperands(rest)
	if err != nil {
		return nil, err
	}
	if len(operands) > 2 {
		return nil, fmt.Errorf("too many operands for '%s'", mnemonic)
	}
	if len(operands) >= 1 {
		if inst.Ar1, err = parseOperand(p, operands[0]); err != nil {
			return nil, err
		}
	}
	if len(operands) == 2 {
		if inst.Ar2, err = parseOperand(p, operands[1]); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

func parseOperand(p *Program, tok string) (Value, error) {
	switch {
	case tok == "true":
		return NewBool(true), nil
	case tok == "false":
		return NewBool(false), nil
	case strings.HasPrefix(tok, `"`):
		lit, typ, ok := strings.Cut(tok, `":`)
		if ok {
			if typ != "string" {
				return nil, fmt.Errorf("bad string operand '%s'", tok)
			}
			lit += `"`
		}
		return NewString(lit), nil
	}

	if id, ok := labelID(tok); ok {
		p.ReserveLabel(id)
		return &Label{ID: id}, nil
	}

	name, typeName, found := cutLastColon(tok)
	if !found {
		if !isIdent(tok) {
			return nil, fmt.Errorf("bad operand '%s'", tok)
		}
		return NewFuncRef(tok), nil
	}
	typ, ok := typeByName[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown type '%s' in operand '%s'", typeName, tok)
	}

	if strings.HasPrefix(name, "%") {
		id, err := strconv.Atoi(name[1:])
		if err != nil {
			return nil, fmt.Errorf("bad temporary '%s'", tok)
		}
		return NewTemp(id, typ), nil
	}

	switch typ {
	case TypeInt:
		if v, err := strconv.ParseInt(name, 10, 64); err == nil {
			return NewInt(v), nil
		}
	case TypeFloat, TypeDouble:
		if v, err := strconv.ParseFloat(name, 64); err == nil {
			return &Constant{Type: typ, Float: v}, nil
		}
	case TypeBool:
		switch name {
		case "true":
			return NewBool(true), nil
		case "false":
			return NewBool(false), nil
		}
		if v, err := strconv.ParseInt(name, 10, 64); err == nil {
			return &Constant{Type: TypeBool, Int: v}, nil
		}
	}
	if !isIdent(name) {
		return nil, fmt.Errorf("bad operand '%s'", tok)
	}
	return NewVar(name, typ), nil
}

// cutAssign splits `res = rest` at the first top-level `=`, ignoring any
// inside a string literal.
func cutAssign(line string) (lhs, rhs string, found bool) {
	inStr := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"':
			inStr = !inStr
		case !inStr && line[i] == '=':
			return line[:i], line[i+1:], true
		}
	}
	return "", "", false
}

func splitOperands(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var out []string
	start, inStr := 0, false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inStr = !inStr
		case !inStr && s[i] == ',':
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if inStr {
		return nil, fmt.Errorf("unterminated string literal")
	}
	out = append(out, strings.TrimSpace(s[start:]))
	for _, tok := range out {
		if tok == "" {
			return nil, fmt.Errorf("empty operand")
		}
	}
	return out, nil
}

// cutLastColon splits an operand at its last colon, `name:type`.
func cutLastColon(tok string) (name, typeName string, found bool) {
	idx := strings.LastIndexByte(tok, ':')
	if idx < 0 {
		return tok, "", false
	}
	return tok[:idx], tok[idx+1:], true
}

func labelID(tok string) (int, bool) {
	if len(tok) < 2 || tok[0] != 'L' {
		return 0, false
	}
	id, err := strconv.Atoi(tok[1:])
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func commentIndex(line string) int {
	inStr := false
	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '"':
			inStr = !inStr
		case !inStr && line[i] == '#':
			return i
		}
	}
	return -1
}
