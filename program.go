package kaiku

import "fmt"

// Program is an ordered list of instructions plus the tempo it was written
// for. The VM executes the whole list once per block, in order; a buffer
// write is visible to every later instruction within the same block.
type Program struct {
	BPM          float32
	Instructions []Instruction
}

// Validate checks the whole program so that configuration errors surface at
// load time instead of corrupting the block path.
func (p *Program) Validate() error {
	if len(p.Instructions) > MaxProgram {
		return fmt.Errorf("program has %d instructions, max is %d", len(p.Instructions), MaxProgram)
	}
	if p.BPM < 0 {
		return fmt.Errorf("bpm %v is negative", p.BPM)
	}
	for n, instr := range p.Instructions {
		if err := instr.Validate(); err != nil {
			return fmt.Errorf("instruction %d: %v", n, err)
		}
	}
	return nil
}

// Copy returns a deep copy; Instruction is a value type so copying the slice
// suffices.
func (p *Program) Copy() Program {
	instructions := make([]Instruction, len(p.Instructions))
	copy(instructions, p.Instructions)
	return Program{BPM: p.BPM, Instructions: instructions}
}

// programYAML and instrYAML are the YAML wire form of a program. Operands are
// a variable-length flow list; the state id is given as a human label that is
// hashed at parse time, or as a raw stateid for programs that only exist in
// serialized form.
type (
	programYAML struct {
		BPM          float32     `yaml:"bpm,omitempty"`
		Instructions []instrYAML `yaml:"instructions"`
	}

	instrYAML struct {
		Op      string `yaml:"op"`
		Out     *int   `yaml:"out,omitempty"`
		In      []int  `yaml:"in,flow,omitempty"`
		State   string `yaml:"state,omitempty"`
		StateID uint32 `yaml:"stateid,omitempty"`
		Aux     Aux    `yaml:"aux,omitempty"`
	}
)

// UnmarshalYAML parses the YAML program form.
func (p *Program) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw programYAML
	if err := unmarshal(&raw); err != nil {
		return err
	}
	p.BPM = raw.BPM
	p.Instructions = p.Instructions[:0]
	for n, ri := range raw.Instructions {
		op, ok := OpByName(ri.Op)
		if !ok {
			return fmt.Errorf("instruction %d: unknown opcode %q", n, ri.Op)
		}
		if len(ri.In) > MaxIns {
			return fmt.Errorf("instruction %d: %q has %d operands, max is %d", n, ri.Op, len(ri.In), MaxIns)
		}
		instr := Instruction{Op: op, In: noIns(), Aux: ri.Aux}
		for k, in := range ri.In {
			if in < 0 || in >= MaxBuffers {
				return fmt.Errorf("instruction %d: %q input buffer %d out of range", n, ri.Op, in)
			}
			instr.In[k] = uint16(in)
		}
		switch {
		case ri.Out != nil:
			if *ri.Out < 0 || *ri.Out >= MaxBuffers {
				return fmt.Errorf("instruction %d: %q output buffer %d out of range", n, ri.Op, *ri.Out)
			}
			instr.Out = uint16(*ri.Out)
		case OpcodeTypes[op].NoOut:
			instr.Out = BufferUnused
		}
		switch {
		case ri.State != "":
			instr.StateID = Hash(ri.State)
		default:
			instr.StateID = ri.StateID
		}
		p.Instructions = append(p.Instructions, instr)
	}
	return nil
}

// MarshalYAML emits the YAML program form. State labels are not recoverable
// from hashes, so state ids round-trip as raw numbers.
func (p Program) MarshalYAML() (interface{}, error) {
	raw := programYAML{BPM: p.BPM}
	for _, instr := range p.Instructions {
		t, ok := OpcodeTypes[instr.Op]
		if !ok {
			return nil, fmt.Errorf("unknown opcode %d", instr.Op)
		}
		ri := instrYAML{Op: t.Name, StateID: instr.StateID, Aux: instr.Aux}
		if !t.NoOut {
			out := int(instr.Out)
			ri.Out = &out
		}
		for k := 0; k < instr.NumIns(); k++ {
			ri.In = append(ri.In, int(instr.In[k]))
		}
		raw.Instructions = append(raw.Instructions, ri)
	}
	return raw, nil
}
