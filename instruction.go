package kaiku

import "fmt"

// MaxIns is the maximum number of buffer operands an instruction can take.
const MaxIns = 5

// Aux carries the discrete sub-parameters of an instruction, decoded into an
// explicit struct instead of a packed byte. Which fields are meaningful, and
// their ranges, is documented per opcode in OpcodeTypes. Value holds literal
// constants (const, dc offset, slew rate, sample id, trigger division...).
type Aux struct {
	A     int     `yaml:"a,omitempty"`
	B     int     `yaml:"b,omitempty"`
	C     int     `yaml:"c,omitempty"`
	Value float32 `yaml:"value,omitempty"`
}

// Instruction is one VM operation: an opcode, up to MaxIns input buffer
// operands, one output buffer, a state id and the decoded aux parameters.
// Unused operand slots hold BufferUnused. Instructions are immutable once
// constructed and owned by their Program.
type Instruction struct {
	Op      Op
	Out     uint16
	In      [MaxIns]uint16
	StateID uint32
	Aux     Aux
}

func noIns() [MaxIns]uint16 {
	return [MaxIns]uint16{BufferUnused, BufferUnused, BufferUnused, BufferUnused, BufferUnused}
}

func makeInstr(op Op, out int, label string, ins ...int) Instruction {
	i := Instruction{Op: op, Out: uint16(out), In: noIns(), StateID: Hash(label)}
	if label == "" {
		i.StateID = 0
	}
	for n, in := range ins {
		i.In[n] = uint16(in)
	}
	return i
}

// Nullary builds an instruction with no buffer operands.
func Nullary(op Op, out int, label string) Instruction {
	return makeInstr(op, out, label)
}

// Unary builds an instruction with one buffer operand.
func Unary(op Op, out, in0 int, label string) Instruction {
	return makeInstr(op, out, label, in0)
}

// Binary builds an instruction with two buffer operands.
func Binary(op Op, out, in0, in1 int, label string) Instruction {
	return makeInstr(op, out, label, in0, in1)
}

// Ternary builds an instruction with three buffer operands.
func Ternary(op Op, out, in0, in1, in2 int, label string) Instruction {
	return makeInstr(op, out, label, in0, in1, in2)
}

// Quaternary builds an instruction with four buffer operands.
func Quaternary(op Op, out, in0, in1, in2, in3 int, label string) Instruction {
	return makeInstr(op, out, label, in0, in1, in2, in3)
}

// Quinary builds an instruction with five buffer operands.
func Quinary(op Op, out, in0, in1, in2, in3, in4 int, label string) Instruction {
	return makeInstr(op, out, label, in0, in1, in2, in3, in4)
}

// ConstInstr fills a buffer with a literal value every block.
func ConstInstr(out int, value float32) Instruction {
	i := makeInstr(Const, out, "")
	i.Aux.Value = value
	return i
}

// ParamInstr reads the named host parameter into a buffer. The parameter name
// hash doubles as the instruction's state id.
func ParamInstr(out int, name string) Instruction {
	i := makeInstr(Param, out, "")
	i.StateID = Hash(name)
	return i
}

// OutputInstr accumulates a buffer into both stereo output channels.
func OutputInstr(in0 int) Instruction {
	i := makeInstr(Output, 0, "", in0)
	i.Out = BufferUnused
	return i
}

// NumIns returns how many operand slots are actually in use.
func (i *Instruction) NumIns() int {
	n := 0
	for _, in := range i.In {
		if in == BufferUnused {
			break
		}
		n++
	}
	return n
}

// Validate checks a single instruction against the opcode catalog. The same
// checks run for a whole program in Program.Validate.
func (i *Instruction) Validate() error {
	t, ok := OpcodeTypes[i.Op]
	if !ok {
		return fmt.Errorf("unknown opcode %d", i.Op)
	}
	if !t.NoOut {
		if i.Out >= MaxBuffers {
			return fmt.Errorf("%s: output buffer %d out of range", t.Name, i.Out)
		}
		if i.Out == BufferZero {
			return fmt.Errorf("%s: cannot write to the reserved zero buffer", t.Name)
		}
	}
	n := i.NumIns()
	if n < t.NumIns || n > t.NumIns+t.OptIns {
		return fmt.Errorf("%s: takes %d-%d operands, got %d", t.Name, t.NumIns, t.NumIns+t.OptIns, n)
	}
	for k := 0; k < n; k++ {
		if i.In[k] >= MaxBuffers {
			return fmt.Errorf("%s: input buffer %d out of range", t.Name, i.In[k])
		}
	}
	if err := checkAux("a", i.Aux.A, t.A); err != nil {
		return fmt.Errorf("%s: %v", t.Name, err)
	}
	if err := checkAux("b", i.Aux.B, t.B); err != nil {
		return fmt.Errorf("%s: %v", t.Name, err)
	}
	if err := checkAux("c", i.Aux.C, t.C); err != nil {
		return fmt.Errorf("%s: %v", t.Name, err)
	}
	return nil
}

func checkAux(field string, v int, r AuxRange) error {
	if r.Max < r.Min {
		if v != 0 {
			return fmt.Errorf("aux field %s not used by this opcode", field)
		}
		return nil
	}
	if v < r.Min || v > r.Max {
		return fmt.Errorf("aux field %s = %d outside range %d..%d", field, v, r.Min, r.Max)
	}
	return nil
}
