package core

import (
	"errors"
	"testing"
)

// Test modules are assembled by hand; sections stay under 128 bytes so
// every LEB128 length fits in one byte.

func section(id byte, payload ...byte) []byte {
	out := []byte{id, byte(len(payload))}
	return append(out, payload...)
}

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

// module with one exported function "run" whose body is the given
// instruction stream (locals declared separately).
func moduleWithBody(locals []byte, body []byte) []byte {
	mod := wasmHeader()
	// type 0: () -> ()
	mod = append(mod, section(sectionType, 0x01, 0x60, 0x00, 0x00)...)
	// one function of type 0
	mod = append(mod, section(sectionFunction, 0x01, 0x00)...)
	// export "run" -> func 0
	mod = append(mod, section(sectionExport, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x00)...)
	// code: one body
	codeBody := append(append([]byte(nil), locals...), body...)
	entry := append([]byte{byte(len(codeBody))}, codeBody...)
	mod = append(mod, section(sectionCode, append([]byte{0x01}, entry...)...)...)
	return mod
}

func moduleWithImport(importModule, importName string) []byte {
	mod := wasmHeader()
	// type 0: () -> ()
	mod = append(mod, section(sectionType, 0x01, 0x60, 0x00, 0x00)...)
	imp := []byte{0x01, byte(len(importModule))}
	imp = append(imp, importModule...)
	imp = append(imp, byte(len(importName)))
	imp = append(imp, importName...)
	imp = append(imp, 0x00, 0x00) // func import of type 0
	mod = append(mod, section(sectionImport, imp...)...)
	return mod
}

func TestAnalyzerAcceptsSimpleModule(t *testing.T) {
	// i32.const 42; drop; end
	mod := moduleWithBody([]byte{0x00}, []byte{0x41, 0x2a, 0x1a, 0x0b})

	functions, err := NewAnalyzer(DefaultCompUnitLimitPerFunc, DefaultInstrLimitPerFunc).Analyze(mod)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(functions) != 1 || functions[0].Name != "run" || functions[0].Import {
		t.Fatalf("function table %+v", functions)
	}
	// i32.const(1) + end(1); drop carries no table cost.
	if functions[0].CompUnits != 2 || functions[0].InstrUnit != 2 {
		t.Fatalf("costs=%d/%d want 2/2", functions[0].InstrUnit, functions[0].CompUnits)
	}
}

func TestAnalyzerRejectsBadMagic(t *testing.T) {
	if _, err := NewAnalyzer(100, 100).Analyze([]byte{1, 2, 3, 4}); !errors.Is(err, ErrParser) {
		t.Fatalf("err=%v want ErrParser", err)
	}
}

func TestAnalyzerImportWhitelist(t *testing.T) {
	// Wrong module name.
	mod := moduleWithImport("foo", "h_gen_id")
	_, err := NewAnalyzer(100, 100).Analyze(mod)
	if !errors.Is(err, ErrDisallowedImport) {
		t.Fatalf("err=%v want ErrDisallowedImport", err)
	}
	var die *DisallowedImportError
	if !errors.As(err, &die) || die.Module != "foo" || die.Name != "h_gen_id" {
		t.Fatalf("error detail %v", err)
	}

	// Right module, unknown name.
	mod = moduleWithImport("env", "h_rm_rf")
	if _, err := NewAnalyzer(100, 100).Analyze(mod); !errors.Is(err, ErrDisallowedImport) {
		t.Fatalf("err=%v want ErrDisallowedImport", err)
	}

	// Whitelisted.
	mod = moduleWithImport("env", "h_gen_id")
	functions, err := NewAnalyzer(100, 100).Analyze(mod)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(functions) != 1 || !functions[0].Import || functions[0].Name != "h_gen_id" {
		t.Fatalf("function table %+v", functions)
	}
}

// TestAnalyzerRejectsBreaklessLoop: a loop with neither a call nor a
// branch cannot be shown to terminate.
func TestAnalyzerRejectsBreaklessLoop(t *testing.T) {
	// loop; end; end
	mod := moduleWithBody([]byte{0x00}, []byte{0x03, 0x40, 0x0b, 0x0b})
	if _, err := NewAnalyzer(1000, 1000).Analyze(mod); !errors.Is(err, ErrNoBreakCondition) {
		t.Fatalf("err=%v want ErrNoBreakCondition", err)
	}
}

// TestAnalyzerAcceptsCountingLoop: the loop branches on a local it also
// modifies, the classic counting shape.
func TestAnalyzerAcceptsCountingLoop(t *testing.T) {
	body := []byte{
		0x03, 0x40, // loop
		0x20, 0x00, // local.get 0
		0x41, 0x01, // i32.const 1
		0x6a,       // i32.add
		0x21, 0x00, // local.set 0
		0x20, 0x00, // local.get 0
		0x41, 0x0a, // i32.const 10
		0x48,       // i32.lt_s
		0x0d, 0x00, // br_if 0
		0x0b, // end (loop)
		0x0b, // end (body)
	}
	locals := []byte{0x01, 0x01, 0x7f} // one i32 local
	mod := moduleWithBody(locals, body)
	if _, err := NewAnalyzer(1000, 1000).Analyze(mod); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}

// TestAnalyzerAcceptsLoopWithCall: a call inside the loop is assumed
// possibly terminating.
func TestAnalyzerAcceptsLoopWithCall(t *testing.T) {
	body := []byte{
		0x03, 0x40, // loop
		0x10, 0x00, // call 0
		0x0b, // end (loop)
		0x0b, // end (body)
	}
	mod := moduleWithBody([]byte{0x00}, body)
	if _, err := NewAnalyzer(1000, 1000).Analyze(mod); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}

func TestAnalyzerLoopDepthCap(t *testing.T) {
	body := []byte{
		0x03, 0x40, 0x03, 0x40, 0x03, 0x40, // three nested loops
		0x0b, 0x0b, 0x0b,
		0x0b, // end (body)
	}
	mod := moduleWithBody([]byte{0x00}, body)
	a := NewAnalyzer(1000, 1000)
	a.maxLoopDepth = 2
	if _, err := a.Analyze(mod); !errors.Is(err, ErrExceededLoopDepth) {
		t.Fatalf("err=%v want ErrExceededLoopDepth", err)
	}
}

func TestAnalyzerInstructionCap(t *testing.T) {
	mod := moduleWithBody([]byte{0x00}, []byte{0x41, 0x2a, 0x1a, 0x0b})
	if _, err := NewAnalyzer(1000, 1).Analyze(mod); !errors.Is(err, ErrExceededInstructionLimit) {
		t.Fatalf("err=%v want ErrExceededInstructionLimit", err)
	}
}

func TestAnalyzerCompUnitCap(t *testing.T) {
	mod := moduleWithBody([]byte{0x00}, []byte{0x41, 0x2a, 0x1a, 0x0b})
	if _, err := NewAnalyzer(1, 1000).Analyze(mod); !errors.Is(err, ErrExceededCompUnitLimit) {
		t.Fatalf("err=%v want ErrExceededCompUnitLimit", err)
	}
}

func TestComputationalCostTable(t *testing.T) {
	ops := []wasmOp{
		{name: "block"},     // 2
		{name: "i32.const"}, // 1
		{name: "i32.const"}, // 1
		{name: "i32.add"},   // 2
		{name: "end"},       // 1
	}
	instrCount, cost := calculateComputationalCosts(ops)
	if instrCount != 5 || cost != 7 {
		t.Fatalf("count=%d cost=%d want 5/7", instrCount, cost)
	}
}
