// Package kaiku defines the domain types of a block-based audio DSP virtual
// machine: instructions, programs, the opcode catalog and sample data. The
// actual interpreter lives in the vm package; this package has no dependencies
// on it, so hosts can construct and validate programs without pulling in the
// DSP code.
package kaiku

// Block processing constants, shared by hosts and the engine. Hosts must pad
// partial final blocks with silence and truncate the output accordingly.
const (
	BlockSize         = 128
	MaxBuffers        = 256
	MaxProgram        = 4096
	DefaultSampleRate = 48000
	DefaultBPM        = 120
)

const (
	// BufferUnused marks an unused operand slot in an Instruction.
	BufferUnused = 0xFFFF

	// BufferZero is reserved: it always reads all zeros and is the default
	// for optional operands. Programs may not write to it.
	BufferZero = 255
)

// Hash is the 32-bit FNV-1a hash used for state ids and parameter names.
// State ids are hashes of human-readable labels so that state survives
// program edits that do not rename the labelled instruction.
func Hash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}

// Op identifies an opcode. The numeric grouping leaves room in each family.
type Op uint8

const (
	Nop   Op = 0
	Const Op = 1
	Copy  Op = 2

	Add Op = 10
	Sub Op = 11
	Mul Op = 12
	Div Op = 13
	Pow Op = 14
	Neg Op = 15

	OscSin    Op = 20
	OscTri    Op = 21
	OscSaw    Op = 22
	OscSqr    Op = 23
	OscRamp   Op = 24
	OscPhasor Op = 25
	OscSawPWM Op = 26
	OscSqrPWM Op = 27

	FilterSVFLP     Op = 33
	FilterSVFHP     Op = 34
	FilterSVFBP     Op = 35
	FilterMoog      Op = 36
	FilterDiode     Op = 37
	FilterSallenKey Op = 38
	FilterFormant   Op = 39

	Abs   Op = 40
	Sqrt  Op = 41
	Log   Op = 42
	Exp   Op = 43
	Min   Op = 44
	Max   Op = 45
	Clamp Op = 46
	Wrap  Op = 47
	Floor Op = 48
	Ceil  Op = 49

	Output Op = 50
	Noise  Op = 51
	MToF   Op = 52
	DC     Op = 53
	Slew   Op = 54
	SAH    Op = 55
	Param  Op = 56

	EnvADSR     Op = 60
	EnvAR       Op = 61
	EnvFollower Op = 62

	Delay     Op = 70
	DelaySync Op = 71
	Comb      Op = 72
	Flanger   Op = 73
	Chorus    Op = 74
	Phaser    Op = 75

	ReverbFreeverb Op = 80
	ReverbDattorro Op = 81
	ReverbFDN      Op = 82

	DistTanh  Op = 85
	DistSoft  Op = 86
	DistFold  Op = 87
	DistCrush Op = 88

	ClockOp   Op = 90
	LFO       Op = 91
	Euclid    Op = 93
	TriggerOp Op = 94

	SamplePlay Op = 100
	SampleLoop Op = 101

	MathSin   Op = 110
	MathCos   Op = 111
	MathTan   Op = 112
	MathAsin  Op = 113
	MathAcos  Op = 114
	MathAtan  Op = 115
	MathAtan2 Op = 116
	MathSinh  Op = 117
	MathCosh  Op = 118
	MathTanh  Op = 119

	Select Op = 120
	CmpGt  Op = 121
	CmpLt  Op = 122
	CmpGte Op = 123
	CmpLte Op = 124
	CmpEq  Op = 125
	CmpNeq Op = 126
	And    Op = 127
	Or     Op = 128
	Not    Op = 129

	OscSin2x         Op = 140
	OscSin4x         Op = 141
	OscSaw2x         Op = 142
	OscSaw4x         Op = 143
	OscSqr2x         Op = 144
	OscSqr4x         Op = 145
	OscTri2x         Op = 146
	OscTri4x         Op = 147
	OscSawPWM4x      Op = 148
	OscSqrPWM4x      Op = 149
	OscSqrMinblep    Op = 150
	OscSqrPWMMinblep Op = 151
)

// AuxRange documents the legal range of one Aux field for an opcode;
// Max < Min means the field is unused.
type AuxRange struct {
	Min, Max int
}

var auxUnused = AuxRange{0, -1}

// OpcodeType documents one opcode: its YAML/display name, operand arity and
// which Aux fields it consumes. NumIns is the number of required operands;
// OptIns trailing operands may be omitted and default to BufferZero.
// Stateful opcodes require a state id (zero is allowed but shares state
// between all instructions using zero).
type OpcodeType struct {
	Name     string
	NumIns   int
	OptIns   int
	Stateful bool
	NoOut    bool // opcode writes no buffer (output accumulates to stereo outs)
	A, B, C  AuxRange
	HasValue bool
}

// OpcodeTypes is the full opcode catalog, keyed by Op. Missing entries are
// invalid opcodes. The YAML program form uses the Name field.
var OpcodeTypes = map[Op]OpcodeType{
	Nop:   {Name: "nop", NoOut: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Const: {Name: "const", HasValue: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Copy:  {Name: "copy", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},

	Add: {Name: "add", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Sub: {Name: "sub", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Mul: {Name: "mul", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Div: {Name: "div", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Pow: {Name: "pow", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Neg: {Name: "neg", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},

	OscSin:    {Name: "osc_sin", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscTri:    {Name: "osc_tri", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSaw:    {Name: "osc_saw", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqr:    {Name: "osc_sqr", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscRamp:   {Name: "osc_ramp", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscPhasor: {Name: "osc_phasor", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSawPWM: {Name: "osc_saw_pwm", NumIns: 2, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqrPWM: {Name: "osc_sqr_pwm", NumIns: 2, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},

	OscSin2x:         {Name: "osc_sin_2x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSin4x:         {Name: "osc_sin_4x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSaw2x:         {Name: "osc_saw_2x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSaw4x:         {Name: "osc_saw_4x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqr2x:         {Name: "osc_sqr_2x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqr4x:         {Name: "osc_sqr_4x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscTri2x:         {Name: "osc_tri_2x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscTri4x:         {Name: "osc_tri_4x", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSawPWM4x:      {Name: "osc_saw_pwm_4x", NumIns: 2, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqrPWM4x:      {Name: "osc_sqr_pwm_4x", NumIns: 2, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqrMinblep:    {Name: "osc_sqr_minblep", NumIns: 1, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	OscSqrPWMMinblep: {Name: "osc_sqr_pwm_minblep", NumIns: 2, OptIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},

	FilterSVFLP:     {Name: "filter_svf_lp", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	FilterSVFHP:     {Name: "filter_svf_hp", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	FilterSVFBP:     {Name: "filter_svf_bp", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	FilterMoog:      {Name: "filter_moog", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	FilterDiode:     {Name: "filter_diode", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	FilterSallenKey: {Name: "filter_sallenkey", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	FilterFormant:   {Name: "filter_formant", NumIns: 2, Stateful: true, A: AuxRange{0, NumVowels - 1}, B: AuxRange{0, NumVowels - 1}, C: auxUnused},

	Abs:   {Name: "abs", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	Sqrt:  {Name: "sqrt", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	Log:   {Name: "log", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	Exp:   {Name: "exp", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	Min:   {Name: "min", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Max:   {Name: "max", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Clamp: {Name: "clamp", NumIns: 3, A: auxUnused, B: auxUnused, C: auxUnused},
	Wrap:  {Name: "wrap", NumIns: 3, A: auxUnused, B: auxUnused, C: auxUnused},
	Floor: {Name: "floor", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	Ceil:  {Name: "ceil", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},

	MathSin:   {Name: "sin", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathCos:   {Name: "cos", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathTan:   {Name: "tan", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathAsin:  {Name: "asin", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathAcos:  {Name: "acos", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathAtan:  {Name: "atan", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathAtan2: {Name: "atan2", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	MathSinh:  {Name: "sinh", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathCosh:  {Name: "cosh", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	MathTanh:  {Name: "tanh", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},

	Select: {Name: "select", NumIns: 3, A: auxUnused, B: auxUnused, C: auxUnused},
	CmpGt:  {Name: "gt", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	CmpLt:  {Name: "lt", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	CmpGte: {Name: "gte", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	CmpLte: {Name: "lte", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	CmpEq:  {Name: "eq", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	CmpNeq: {Name: "neq", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	And:    {Name: "and", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Or:     {Name: "or", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	Not:    {Name: "not", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},

	Output: {Name: "output", NumIns: 1, NoOut: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Noise:  {Name: "noise", Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	MToF:   {Name: "mtof", NumIns: 1, A: auxUnused, B: auxUnused, C: auxUnused},
	DC:     {Name: "dc", NumIns: 1, HasValue: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Slew:   {Name: "slew", NumIns: 1, Stateful: true, HasValue: true, A: auxUnused, B: auxUnused, C: auxUnused},
	SAH:    {Name: "sah", NumIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Param:  {Name: "param", Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},

	Compressor: {Name: "compressor", NumIns: 3, Stateful: true, A: AuxRange{0, 15}, B: AuxRange{0, 15}, C: auxUnused},
	Limiter:    {Name: "limiter", NumIns: 1, Stateful: true, HasValue: true, A: AuxRange{0, 15}, B: auxUnused, C: auxUnused},
	Gate:       {Name: "gate", NumIns: 3, Stateful: true, A: AuxRange{0, 15}, B: AuxRange{0, 15}, C: auxUnused},

	EnvADSR:     {Name: "adsr", NumIns: 5, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	EnvAR:       {Name: "ar", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	EnvFollower: {Name: "follower", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},

	Delay:     {Name: "delay", NumIns: 3, OptIns: 1, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	DelaySync: {Name: "delay_sync", NumIns: 3, OptIns: 1, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Comb:      {Name: "comb", NumIns: 4, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Flanger:   {Name: "flanger", NumIns: 4, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Chorus:    {Name: "chorus", NumIns: 4, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	Phaser:    {Name: "phaser", NumIns: 4, Stateful: true, A: AuxRange{2, 12}, B: auxUnused, C: auxUnused},

	ReverbFreeverb: {Name: "reverb_freeverb", NumIns: 4, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	ReverbDattorro: {Name: "reverb_dattorro", NumIns: 4, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	ReverbFDN:      {Name: "reverb_fdn", NumIns: 4, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},

	DistTanh:  {Name: "dist_tanh", NumIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	DistSoft:  {Name: "dist_soft", NumIns: 2, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},
	DistFold:  {Name: "dist_fold", NumIns: 2, A: auxUnused, B: auxUnused, C: auxUnused},
	DistCrush: {Name: "dist_crush", NumIns: 3, Stateful: true, A: auxUnused, B: auxUnused, C: auxUnused},

	ClockOp:   {Name: "clock", A: AuxRange{0, 2}, B: auxUnused, C: auxUnused},
	LFO:       {Name: "lfo", NumIns: 1, OptIns: 1, Stateful: true, A: AuxRange{0, 6}, B: auxUnused, C: auxUnused},
	Euclid:    {Name: "euclid", Stateful: true, A: AuxRange{0, 64}, B: AuxRange{1, 64}, C: AuxRange{0, 63}},
	TriggerOp: {Name: "trigger", Stateful: true, HasValue: true, A: auxUnused, B: auxUnused, C: auxUnused},

	SamplePlay: {Name: "sample_play", NumIns: 2, Stateful: true, HasValue: true, A: auxUnused, B: auxUnused, C: auxUnused},
	SampleLoop: {Name: "sample_loop", NumIns: 2, Stateful: true, HasValue: true, A: auxUnused, B: auxUnused, C: auxUnused},
}

const (
	Compressor Op = 65
	Limiter    Op = 66
	Gate       Op = 67
)

// LFO shapes for the lfo opcode's Aux.A field.
const (
	LFOSine = iota
	LFOTriangle
	LFOSaw
	LFORamp
	LFOSquare
	LFOPWM
	LFOSampleHold
)

// Clock modes for the clock opcode's Aux.A field.
const (
	ClockBeat = iota
	ClockBar
	ClockCycle
)

// Vowel presets for the formant filter's Aux.A/Aux.B fields.
const (
	VowelA = iota
	VowelE
	VowelI
	VowelO
	VowelU
	NumVowels
)

// opByName is the reverse of OpcodeTypes' Name field, built once.
var opByName = func() map[string]Op {
	m := make(map[string]Op, len(OpcodeTypes))
	for op, t := range OpcodeTypes {
		m[t.Name] = op
	}
	return m
}()

// OpByName returns the opcode for a catalog name, e.g. "osc_saw".
func OpByName(name string) (Op, bool) {
	op, ok := opByName[name]
	return op, ok
}
