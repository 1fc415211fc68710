package metadata

import (
	"strconv"
	"strings"
)

// OpCode is an instruction opcode. Only the opcodes analyzers distinguish
// have their own value; everything else decodes to OpOther.
type OpCode uint8

const (
	OpNop OpCode = iota
	OpCall
	OpCallvirt
	OpNewobj
	OpLdftn
	OpLdvirtftn
	OpJmp
	OpCalli
	OpLdtoken
	OpLdstr
	OpLdnull
	OpLdcI4
	OpLdarg
	OpLdloc
	OpStloc
	OpLdfld
	OpStfld
	OpLdsfld
	OpStsfld
	OpBr
	OpBrtrue
	OpBrfalse
	OpPop
	OpThrow
	OpRet
	OpOther
)

var opNames = [...]string{
	OpNop:       "nop",
	OpCall:      "call",
	OpCallvirt:  "callvirt",
	OpNewobj:    "newobj",
	OpLdftn:     "ldftn",
	OpLdvirtftn: "ldvirtftn",
	OpJmp:       "jmp",
	OpCalli:     "calli",
	OpLdtoken:   "ldtoken",
	OpLdstr:     "ldstr",
	OpLdnull:    "ldnull",
	OpLdcI4:     "ldc.i4",
	OpLdarg:     "ldarg",
	OpLdloc:     "ldloc",
	OpStloc:     "stloc",
	OpLdfld:     "ldfld",
	OpStfld:     "stfld",
	OpLdsfld:    "ldsfld",
	OpStsfld:    "stsfld",
	OpBr:        "br",
	OpBrtrue:    "brtrue",
	OpBrfalse:   "brfalse",
	OpPop:       "pop",
	OpThrow:     "throw",
	OpRet:       "ret",
	OpOther:     "other",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op(" + strconv.Itoa(int(op)) + ")"
}

// ParseOpCode maps a mnemonic to an opcode. Short and suffixed forms
// ("ldarg.0", "br.s") map to their base opcode; unknown mnemonics map to
// OpOther.
func ParseOpCode(s string) OpCode {
	s = strings.ToLower(s)
	for i, n := range opNames {
		if n == s {
			return OpCode(i)
		}
	}
	switch {
	case strings.HasPrefix(s, "ldc.i4"):
		return OpLdcI4
	case strings.HasPrefix(s, "ldarg"):
		return OpLdarg
	case strings.HasPrefix(s, "ldloc"):
		return OpLdloc
	case strings.HasPrefix(s, "stloc"):
		return OpStloc
	case s == "br.s":
		return OpBr
	case s == "brtrue.s":
		return OpBrtrue
	case s == "brfalse.s":
		return OpBrfalse
	}
	return OpOther
}

// TakesMethod reports whether the opcode's operand may be a method
// reference or call-site signature.
func (op OpCode) TakesMethod() bool {
	switch op {
	case OpCall, OpCallvirt, OpNewobj, OpLdftn, OpLdvirtftn, OpJmp, OpCalli, OpLdtoken:
		return true
	}
	return false
}

// Operand is the operand of an instruction: *MethodRef, *TypeRef,
// *CallSite, StringOperand or IntOperand.
type Operand interface {
	isOperand()
}

// CallSite is the standalone signature operand of an indirect call.
type CallSite struct {
	Sig Sig
}

func (*CallSite) isOperand() {}

// StringOperand is a literal string operand.
type StringOperand string

func (StringOperand) isOperand() {}

// IntOperand is a literal integer operand.
type IntOperand int64

func (IntOperand) isOperand() {}

// Instruction is one entry of a method body.
type Instruction struct {
	Offset  int
	OpCode  OpCode
	Operand Operand
}

// Body is the instruction stream of a method.
type Body struct {
	Instructions []Instruction
}
