package core

// Bytecode admission. A module is only eligible for execution when every
// import comes from the host ABI whitelist, every function stays under the
// static instruction and computational-unit caps, and every loop passes
// the termination heuristic.

import "fmt"

// Host ABI functions a contract may import, all under the "env" module.
var allowedImports = map[string]struct{}{
	"h_define_state":                       {},
	"h_get_state":                          {},
	"h_change_state":                       {},
	"h_commit_state":                       {},
	"h_initialize_data_account":            {},
	"h_initialize_independent_data_account": {},
	"h_update_data_account":                {},
	"h_commit_account_data":                {},
	"h_commit_all":                         {},
	"h_gen_id":                             {},
}

const hostImportModule = "env"

// Default per-function admission caps.
const (
	DefaultCompUnitLimitPerFunc = 2400
	DefaultInstrLimitPerFunc    = 1800

	defaultMaxLoopIterations = 1000
	defaultMaxLoopDepth      = 5
)

// DisallowedImportError names the offending import.
type DisallowedImportError struct {
	Module string
	Name   string
}

func (e *DisallowedImportError) Error() string {
	return fmt.Sprintf("disallowed import: %s::%s", e.Module, e.Name)
}

func (e *DisallowedImportError) Unwrap() error { return ErrDisallowedImport }

// AnalyzedFunction is one entry of the admission result: imports first,
// then module-local functions with their static costs.
type AnalyzedFunction struct {
	Name      string
	Import    bool
	InstrUnit uint32
	CompUnits uint64
}

type Analyzer struct {
	compUnitLimitPerFunc uint64
	instrLimitPerFunc    uint32
	maxLoopIterations    uint32
	maxLoopDepth         uint32
}

// NewAnalyzer builds an analyzer with the given per-function caps.
func NewAnalyzer(compUnitLimitPerFunc uint64, instrLimitPerFunc uint32) *Analyzer {
	return &Analyzer{
		compUnitLimitPerFunc: compUnitLimitPerFunc,
		instrLimitPerFunc:    instrLimitPerFunc,
		maxLoopIterations:    defaultMaxLoopIterations,
		maxLoopDepth:         defaultMaxLoopDepth,
	}
}

// Analyze admits or rejects a module and returns its function table.
func (a *Analyzer) Analyze(bytecode []byte) ([]AnalyzedFunction, error) {
	mod, err := scanModule(bytecode)
	if err != nil {
		return nil, err
	}

	for _, imp := range mod.imports {
		if imp.kind != externalKindFunc {
			continue
		}
		if imp.module != hostImportModule {
			return nil, &DisallowedImportError{Module: imp.module, Name: imp.name}
		}
		if _, ok := allowedImports[imp.name]; !ok {
			return nil, &DisallowedImportError{Module: imp.module, Name: imp.name}
		}
	}

	functions := make([]AnalyzedFunction, 0, len(mod.imports)+len(mod.codes))
	for _, imp := range mod.imports {
		if imp.kind == externalKindFunc {
			functions = append(functions, AnalyzedFunction{Name: imp.name, Import: true})
		}
	}

	// Exported names, keyed by position in the module-local index space.
	importedFuncs := mod.numImportedFuncs()
	exportNames := make(map[int]string)
	for _, exp := range mod.exports {
		if exp.kind == externalKindFunc && int(exp.index) >= importedFuncs {
			exportNames[int(exp.index)-importedFuncs] = exp.name
		}
	}

	la := newLoopAnalyzer(a.maxLoopIterations, a.maxLoopDepth)
	for i, ops := range mod.codes {
		if err := la.analyze(ops); err != nil {
			return nil, err
		}

		instrCount, compUnits := calculateComputationalCosts(ops)
		if instrCount > a.instrLimitPerFunc {
			return nil, fmt.Errorf("%w: %d", ErrExceededInstructionLimit, a.instrLimitPerFunc)
		}
		if compUnits > a.compUnitLimitPerFunc {
			return nil, fmt.Errorf("%w: %d", ErrExceededCompUnitLimit, a.compUnitLimitPerFunc)
		}

		name, ok := exportNames[i]
		if !ok {
			name = fmt.Sprintf("func%d", i)
		}
		functions = append(functions, AnalyzedFunction{
			Name:      name,
			InstrUnit: instrCount,
			CompUnits: compUnits,
		})
	}
	return functions, nil
}
