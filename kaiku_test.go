package kaiku_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsariola/kaiku"
)

func TestHashKnownValues(t *testing.T) {
	// FNV-1a 32-bit reference vectors
	assert.Equal(t, uint32(2166136261), kaiku.Hash(""))
	assert.Equal(t, uint32(0xe40c292c), kaiku.Hash("a"))
	assert.Equal(t, uint32(0xbf9cf968), kaiku.Hash("foobar"))
}

func TestOpByNameRoundTrip(t *testing.T) {
	for op, typ := range kaiku.OpcodeTypes {
		found, ok := kaiku.OpByName(typ.Name)
		require.True(t, ok, "name %q not found", typ.Name)
		assert.Equal(t, op, found, "name %q maps to the wrong opcode", typ.Name)
	}
	_, ok := kaiku.OpByName("no_such_opcode")
	assert.False(t, ok)
}

func TestBuildersFillUnusedSlots(t *testing.T) {
	i := kaiku.Binary(kaiku.Add, 2, 0, 1, "")
	assert.Equal(t, 2, i.NumIns())
	for n := 2; n < kaiku.MaxIns; n++ {
		assert.Equal(t, uint16(kaiku.BufferUnused), i.In[n])
	}
	assert.Equal(t, uint32(0), i.StateID)

	o := kaiku.Unary(kaiku.OscSaw, 1, 0, "lead")
	assert.Equal(t, kaiku.Hash("lead"), o.StateID)
}

func TestValidateRejectsBadInstructions(t *testing.T) {
	for _, tt := range []struct {
		name  string
		instr kaiku.Instruction
	}{
		{"unknown opcode", kaiku.Unary(kaiku.Op(250), 1, 0, "")},
		{"write to zero buffer", kaiku.Binary(kaiku.Add, kaiku.BufferZero, 0, 1, "")},
		{"too few operands", kaiku.Nullary(kaiku.OscSin, 1, "x")},
		{"too many operands", kaiku.Ternary(kaiku.Copy, 1, 0, 1, 2, "")},
		{"aux out of range", func() kaiku.Instruction {
			i := kaiku.Unary(kaiku.LFO, 1, 0, "x")
			i.Aux.A = 7
			return i
		}()},
		{"aux set on opcode that has none", func() kaiku.Instruction {
			i := kaiku.Binary(kaiku.Add, 1, 0, 2, "")
			i.Aux.B = 3
			return i
		}()},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.instr.Validate())
		})
	}
}

func TestValidateAcceptsCatalogExamples(t *testing.T) {
	adsr := kaiku.Quinary(kaiku.EnvADSR, 1, 0, 2, 3, 4, 5, "env")
	require.NoError(t, adsr.Validate())

	euclid := kaiku.Nullary(kaiku.Euclid, 1, "beat")
	euclid.Aux.A, euclid.Aux.B, euclid.Aux.C = 3, 8, 2
	require.NoError(t, euclid.Validate())

	// osc optional operands: freq only, freq+phase, freq+phase+trigger
	require.NoError(t, unwrap(kaiku.Unary(kaiku.OscSaw, 1, 0, "a")))
	require.NoError(t, unwrap(kaiku.Binary(kaiku.OscSaw, 1, 0, 2, "b")))
	require.NoError(t, unwrap(kaiku.Ternary(kaiku.OscSaw, 1, 0, 2, 3, "c")))
}

func unwrap(i kaiku.Instruction) error {
	return i.Validate()
}

func TestProgramValidate(t *testing.T) {
	good := kaiku.Program{BPM: 120, Instructions: []kaiku.Instruction{
		kaiku.ConstInstr(1, 440),
		kaiku.Unary(kaiku.OscSin, 2, 1, "voice"),
		kaiku.OutputInstr(2),
	}}
	require.NoError(t, good.Validate())

	bad := good.Copy()
	bad.Instructions[1].Out = kaiku.BufferZero
	assert.Error(t, bad.Validate())

	negBPM := good.Copy()
	negBPM.BPM = -1
	assert.Error(t, negBPM.Validate())
}

func TestProgramCopyIsIndependent(t *testing.T) {
	p := kaiku.Program{Instructions: []kaiku.Instruction{kaiku.ConstInstr(1, 1)}}
	c := p.Copy()
	c.Instructions[0].Aux.Value = 2
	assert.Equal(t, float32(1), p.Instructions[0].Aux.Value)
}
