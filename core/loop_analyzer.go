package core

// Loop-termination heuristic over a function's operator stream.
//
// A loop potentially terminates when it contains a call (assumed possibly
// terminating) or when it branches on a condition whose locals the loop
// body also modifies. Loops with neither are rejected outright; depth and
// static instruction counts are capped as well.

import "fmt"

type loopInfo struct {
	instructionCount uint32
	hasBreak         bool
	hasCall          bool
	modifiedLocals   map[uint32]struct{}
	conditionLocals  map[uint32]struct{}
}

type loopAnalyzer struct {
	maxIterations uint32
	maxLoopDepth  uint32

	loopStack []*loopInfo
}

func newLoopAnalyzer(maxIterations, maxLoopDepth uint32) *loopAnalyzer {
	return &loopAnalyzer{
		maxIterations: maxIterations,
		maxLoopDepth:  maxLoopDepth,
	}
}

func (a *loopAnalyzer) terminates(info *loopInfo) bool {
	if info.hasCall {
		return true
	}
	if !info.hasBreak {
		return false
	}
	for local := range info.modifiedLocals {
		if _, ok := info.conditionLocals[local]; ok {
			return true
		}
	}
	return false
}

func isComparisonOp(name string) bool {
	switch name {
	case "i32.eq", "i32.ne", "i32.lt_s", "i32.gt_s", "i32.le_s", "i32.ge_s":
		return true
	}
	return false
}

func (a *loopAnalyzer) analyze(ops []wasmOp) error {
	var depth uint32
	pendingConditionLocals := map[uint32]struct{}{}

	for _, op := range ops {
		switch op.name {
		case "loop":
			depth++
			if depth > a.maxLoopDepth {
				return fmt.Errorf("%w: %d", ErrExceededLoopDepth, a.maxLoopDepth)
			}
			a.loopStack = append(a.loopStack, &loopInfo{
				modifiedLocals:  map[uint32]struct{}{},
				conditionLocals: map[uint32]struct{}{},
			})

		case "end":
			if n := len(a.loopStack); n > 0 {
				info := a.loopStack[n-1]
				a.loopStack = a.loopStack[:n-1]

				for local := range pendingConditionLocals {
					info.conditionLocals[local] = struct{}{}
				}
				clear(pendingConditionLocals)

				if !a.terminates(info) {
					return ErrNoBreakCondition
				}
			}
			if depth > 0 {
				depth--
			}

		case "br", "br_if":
			if info := a.top(); info != nil {
				info.hasBreak = true
			}

		case "call":
			if info := a.top(); info != nil {
				info.hasCall = true
			}

		case "local.get":
			pendingConditionLocals[op.localIndex] = struct{}{}
			if info := a.top(); info != nil {
				info.conditionLocals[op.localIndex] = struct{}{}
			}

		case "local.set", "local.tee":
			if info := a.top(); info != nil {
				info.modifiedLocals[op.localIndex] = struct{}{}
			}

		default:
			// Comparison operators drain the locals seen since the last
			// comparison into the enclosing loop's condition set.
			if isComparisonOp(op.name) {
				if info := a.top(); info != nil {
					for local := range pendingConditionLocals {
						info.conditionLocals[local] = struct{}{}
					}
					clear(pendingConditionLocals)
				}
			}
		}

		if info := a.top(); info != nil {
			info.instructionCount++
			if info.instructionCount > a.maxIterations {
				return fmt.Errorf("%w: %d", ErrExceededLoopIterations, a.maxIterations)
			}
		}
	}
	return nil
}

func (a *loopAnalyzer) top() *loopInfo {
	if len(a.loopStack) == 0 {
		return nil
	}
	return a.loopStack[len(a.loopStack)-1]
}
