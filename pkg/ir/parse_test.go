package ir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRoundTrip(t *testing.T) {
	src := `x:int = copy 5:int
%0:int = add x:int, 1:int
y:int = copy %0:int
s:string = copy "hello world":string
f:double = copy 2.5:double
b:bool = copy true
label L0
%1:bool = lt y:int, 10:int
if_false %1:bool, L1
goto L0
label L1
param y:int
call print
ret_void
func_begin f
%2:int = cast f:double
ret %2:int
func_end f
nop
`
	p, err := ParseText(src)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(src, p.String()); diff != "" {
		t.Errorf("round trip mismatch (-in +out):\n%s", diff)
	}
}

func TestParseComments(t *testing.T) {
	p, err := ParseText("# header\nx:int = copy 5:int # trailing\n\n")
	if err != nil {
		t.Fatal(err)
	}
	if p.Head == nil || p.Head.Next != nil {
		t.Fatalf("want exactly one instruction, got:\n%s", p)
	}
	if p.Head.Op != OpCopy {
		t.Errorf("opcode = %s, want copy", p.Head.Op)
	}
}

func TestParseStringWithComma(t *testing.T) {
	p, err := ParseText(`s:string = copy "a, b # c":string` + "\n")
	if err != nil {
		t.Fatal(err)
	}
	c, ok := p.Head.Ar1.(*Constant)
	if !ok || c.Str != `"a, b # c"` {
		t.Errorf("parsed literal = %v, want delimiters kept", p.Head.Ar1)
	}
}

func TestParseTypedBool(t *testing.T) {
	p, err := ParseText("a:bool = copy true:bool\nb:bool = copy false:bool\n")
	if err != nil {
		t.Fatal(err)
	}
	c, ok := p.Head.Ar1.(*Constant)
	if !ok || c.Type != TypeBool || c.Int != 1 {
		t.Errorf("true:bool parsed as %v, want the constant true", p.Head.Ar1)
	}
	c, ok = p.Head.Next.Ar1.(*Constant)
	if !ok || c.Type != TypeBool || c.Int != 0 {
		t.Errorf("false:bool parsed as %v, want the constant false", p.Head.Next.Ar1)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown opcode", "frob x:int\n"},
		{"unknown type", "x:int = copy 5:short\n"},
		{"too many operands", "x:int = add 1:int, 2:int, 3:int\n"},
		{"unterminated string", `s:string = copy "oops` + "\n"},
		{"bad temporary", "%a:int = copy 5:int\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseText(tt.src); err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}

func TestLabelCounterSkipsParsedLabels(t *testing.T) {
	p, err := ParseText("label L0\nlabel L7\n")
	if err != nil {
		t.Fatal(err)
	}
	if l := p.NewLabel(); l.ID != 8 {
		t.Errorf("next label = L%d, want L8", l.ID)
	}
	if l := p.NewLabel(); l.ID != 9 {
		t.Errorf("labels not monotonic, got L%d", l.ID)
	}
}
