package core

// Static computational-cost model for admitted bytecode. Costs are summed
// per function at admission time; the runtime charges the same figure up
// front when the function is invoked. Operators without a table entry are
// free and uncounted.

type compUnitCost struct {
	base    uint64
	memory  uint64
	compute uint64
}

func (c compUnitCost) total() uint64 {
	return c.base + c.memory + c.compute
}

var compUnitTable = map[string]compUnitCost{
	// Control flow.
	"block":  {base: 2},
	"loop":   {base: 3},
	"br":     {base: 2},
	"br_if":  {base: 3, compute: 1},
	"end":    {base: 1},
	"return": {base: 2},

	// Memory access.
	"i32.load8_u": {base: 2, memory: 3},
	"i32.load":    {base: 2, memory: 3},
	"i32.store":   {base: 2, memory: 3},

	// Locals.
	"local.get": {base: 1},
	"local.set": {base: 1},
	"local.tee": {base: 1, compute: 1},

	// Arithmetic.
	"i32.add":   {base: 1, compute: 1},
	"i32.sub":   {base: 1, compute: 1},
	"i32.mul":   {base: 1, compute: 2},
	"i32.div_u": {base: 1, compute: 3},

	// Bitwise.
	"i32.and":   {base: 1, compute: 1},
	"i32.or":    {base: 1, compute: 1},
	"i32.xor":   {base: 1, compute: 1},
	"i32.shl":   {base: 1, compute: 2},
	"i32.shr_u": {base: 1, compute: 2},
	"i64.shr_u": {base: 1, compute: 2},

	// Comparisons.
	"i32.eqz":  {base: 1, compute: 1},
	"i32.eq":   {base: 1, compute: 1},
	"i32.ne":   {base: 1, compute: 1},
	"i32.lt_u": {base: 1, compute: 1},
	"i32.gt_u": {base: 1, compute: 1},
	"i32.le_u": {base: 1, compute: 1},
	"i32.ge_u": {base: 1, compute: 1},

	// Conversions.
	"i32.wrap_i64":     {base: 1, compute: 1},
	"i64.extend_i32_u": {base: 1, compute: 1},

	// Constants.
	"i32.const": {base: 1},
	"i64.const": {base: 1},
}

// calculateComputationalCosts returns the counted instruction total and
// the summed cost of a function body.
func calculateComputationalCosts(ops []wasmOp) (uint32, uint64) {
	var instrCount uint32
	var totalCost uint64
	for _, op := range ops {
		if cost, ok := compUnitTable[op.name]; ok {
			instrCount++
			totalCost += cost.total()
		}
	}
	return instrCount, totalCost
}
