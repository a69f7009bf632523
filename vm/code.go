package vm

import "sort"

// LineEntry maps the first bytecode offset of a run of instructions to the
// source line they came from.
type LineEntry struct {
	PC   int
	Line int
}

// Code is an immutable compiled unit: bytecode, its constant pool and the
// argument metadata the call protocol binds against.
type Code struct {
	Bytecode  []byte
	Constants []Value

	// ArgSyms are the required parameters, in order.
	ArgSyms []Value
	// OptSyms are the optional parameters; OptDefs holds the constant index
	// of each one's default value.
	OptSyms []Value
	OptDefs []uint16
	// HasRest is set when the function collects surplus arguments into
	// RestSym. Functions declared without a parameter list collect
	// everything into "arg".
	HasRest bool
	RestSym Value

	Lines []LineEntry
	File  Value // source name, a string
	Name  string
}

func releaseCode(c *Code) {
	*c = Code{}
}

// LineAt returns the source line of the instruction containing pc.
func (c *Code) LineAt(pc int) int {
	if len(c.Lines) == 0 {
		return 0
	}
	i := sort.Search(len(c.Lines), func(i int) bool { return c.Lines[i].PC > pc })
	if i == 0 {
		return c.Lines[0].Line
	}
	return c.Lines[i-1].Line
}

// NumArgs reports the number of required and optional parameters.
func (c *Code) NumArgs() (required, optional int) {
	return len(c.ArgSyms), len(c.OptSyms)
}
