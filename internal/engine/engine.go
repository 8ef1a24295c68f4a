// Package engine implements the driver: it owns every other component's
// registry, wires the expression evaluator / condition engine /
// control-flow walker together (breaking the Go import cycle between them
// via the interface seams those packages define), runs one- or two-pass
// analysis over a file set, and applies the OOM guard and per-function
// bail-out.
package engine

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"smatchgo/internal/ast"
	"smatchgo/internal/cond"
	"smatchgo/internal/diag"
	"smatchgo/internal/eval"
	"smatchgo/internal/facts"
	"smatchgo/internal/hooks"
	"smatchgo/internal/merge"
	"smatchgo/internal/modtrack"
	"smatchgo/internal/profile"
	"smatchgo/internal/state"
	"smatchgo/internal/sval"
	"smatchgo/internal/symbol"
	"smatchgo/internal/walk"
)

// DefaultOOMKB is the default memory budget (800000 KB, roughly 800MB
// resident) before the driver stops analyzing further functions.
const DefaultOOMKB = 800000

// Config collects the CLI-level driver options.
type Config struct {
	Project  string // --project: "", "kernel", or "wine"
	Info     bool   // --info: emit Info-severity diagnostics
	Spammy   bool   // --spammy: let checkers register their noisier hooks
	NoDB     bool   // --no-db: analyze every function in isolation
	DBPath   string // path for the fact database; ":memory:" when empty and NoDB is false
	OOMKB    int    // --oom-kb: override DefaultOOMKB; 0 means use the default
	TwoPass  bool   // --two-pass: run the whole file set twice
}

// Checker is one reference (or third-party) checker's registration
// function, called once per Engine with every registry wired and ready.
type Checker struct {
	Name string
	Init func(e *Engine)
}

// Engine is the driver: the process-wide bundle of every registry plus
// the wired Evaluator/Cond/Walker triple. Everything here is
// single-threaded, so no synchronization is needed.
type Engine struct {
	Hooks   *hooks.Registry
	Merge   *merge.Registry
	Mod     *modtrack.Registry
	Facts   *facts.DB
	Profile profile.Profile
	Diag    *diag.Reporter
	Log     *logrus.Logger

	Eval *eval.Evaluator
	Cond *cond.Engine
	Walk *walk.Walker

	// Info and Spammy mirror the --info/--spammy flags; checker
	// registration consults Spammy to decide whether the noisier checkers
	// get installed at all.
	Info   bool
	Spammy bool

	oomKB      int
	oomTripped bool // this pass hit the budget; reset per pass
	oomEver    bool // any pass hit the budget; never reset

	// Per-function walk bookkeeping, reset as each function begins. curFn
	// is the function the walker is currently inside; inlineDepth is
	// nonzero while an inline callee's body is being walked in place, so
	// the driver's own return/fact collection doesn't mistake the inline
	// body's returns for the enclosing function's.
	curFn       *ast.FunctionDef
	curFile     string
	bail        bool
	inlineDepth int
	returnRLs   []sval.RangeList
	callCount   int

	// defs indexes the current translation unit's function definitions by
	// name, for resolving inline calls.
	defs map[string]*ast.FunctionDef
}

// CallerInfoPayload is dispatched once per stored caller_info fact while
// the driver derives a function's initial stree;
// checker hooks may replace Tree to inject their own seed states.
type CallerInfoPayload struct {
	Tree *state.Stree
	Fn   *ast.FunctionDef
	Fact facts.CallerInfoFact
}

// New constructs an Engine from cfg, opening the fact database unless
// NoDB is set, and wiring every analysis component together.
func New(cfg Config) (*Engine, error) {
	pf, err := profile.Parse(cfg.Project)
	if err != nil {
		return nil, err
	}

	var db *facts.DB
	if !cfg.NoDB {
		path := cfg.DBPath
		if path == "" {
			path = ":memory:"
		}
		db, err = facts.Open(path)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	hooksReg := hooks.NewRegistry()
	mergeReg := merge.NewRegistry()
	modReg := modtrack.NewRegistry()

	// The engine's own value-range tracking (state.OwnerExtra) needs a merge
	// policy too, or a variable with different ranges on either side of a
	// branch collapses to the generic &merged sentinel instead of the union
	// of both ranges.
	mergeReg.RegisterMergeFunc(state.OwnerExtra, func(a, b state.State) state.State {
		ar, aok := a.(eval.RLState)
		br, bok := b.(eval.RLState)
		if aok && bok {
			return eval.RLState{RL: sval.Union(ar.RL, br.RL)}
		}
		return merge.Merged
	})
	mergeReg.RegisterUnmatchedState(state.OwnerExtra, func(sm *state.SM) (state.State, bool) {
		return sm.Cur, true
	})

	// Operational logging is a separate channel from checker diagnostics:
	// silent by default, pass/DB/OOM events at --info, per-checker
	// registration detail at --spammy.
	log := logrus.New()
	log.SetOutput(os.Stderr)
	switch {
	case cfg.Spammy:
		log.SetLevel(logrus.DebugLevel)
	case cfg.Info:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.ErrorLevel)
	}

	ev := eval.New(hooksReg, modReg, mergeReg)
	if db != nil {
		ev.Facts = db
	}
	condEngine := cond.New(ev, hooksReg)
	ev.Cond = condEngine
	walker := walk.New(ev, hooksReg, mergeReg)
	ev.Walker = walker

	oomKB := cfg.OOMKB
	if oomKB <= 0 {
		oomKB = DefaultOOMKB
	}

	e := &Engine{
		Hooks:   hooksReg,
		Merge:   mergeReg,
		Mod:     modReg,
		Facts:   db,
		Profile: pf,
		Diag:    diag.NewReporter(cfg.Info),
		Info:    cfg.Info,
		Spammy:  cfg.Spammy,
		Log:     log,
		Eval:    ev,
		Cond:    condEngine,
		Walk:    walker,
		oomKB:   oomKB,
		defs:    make(map[string]*ast.FunctionDef),
	}
	walker.Bail = func() bool { return e.bail }
	ev.Inline = e.inlineCall
	e.registerDriverHooks()
	return e, nil
}

// BailOnRestOfFunction asks the walker to skip the remainder of the
// current function body; return states collected before the bail still
// reach the summary database. The flag clears itself when the next
// function's walk begins.
func (e *Engine) BailOnRestOfFunction() { e.bail = true }

// registerDriverHooks installs the driver's own bookkeeping hooks ahead
// of any checker's (dispatch is in registration order, so the cursor below
// is always current by the time a checker hook runs).
func (e *Engine) registerDriverHooks() {
	e.Hooks.Register(hooks.FuncDef, func(payload any) {
		pld := payload.(walk.FuncDefPayload)
		e.curFn = pld.Fn
		e.curFile = pld.Fn.NodePos().File
		e.returnRLs = nil
		e.bail = false
	})
	e.Hooks.Register(hooks.InlineFnStart, func(any) { e.inlineDepth++ })
	e.Hooks.Register(hooks.InlineFnEnd, func(any) { e.inlineDepth-- })

	// Each return site's literal value range becomes one RETURN_VALUE
	// row, flushed at END_FUNC.
	e.Hooks.Register(hooks.Return, func(payload any) {
		if e.inlineDepth > 0 {
			return
		}
		pld := payload.(walk.ReturnPayload)
		e.returnRLs = append(e.returnRLs, pld.RL)
	})
	e.Hooks.Register(hooks.EndFunc, func(any) {
		if e.Facts == nil || e.curFn == nil {
			return
		}
		for i, rl := range e.returnRLs {
			err := e.Facts.InsertReturnState(e.curFile, e.curFn.Name, e.curFn.Static, facts.ReturnStateFact{
				ReturnID:     i,
				ReturnRanges: rl.String(),
				Type:         facts.ReturnValue,
				Param:        -1,
				Key:          "$",
			})
			if err != nil {
				e.Log.WithError(err).Warn("flushing return states")
			}
		}
	})

	// Determinable argument values at each named call become caller_info
	// rows for the callee's next-pass initial stree.
	e.Hooks.Register(hooks.FunctionCall, func(payload any) {
		if e.Facts == nil || e.inlineDepth > 0 {
			return
		}
		pld := payload.(*eval.FunctionCallPayload)
		if pld.Name == "" {
			return
		}
		e.callCount++
		for i, rl := range pld.ArgRLs {
			if rl.IsEmpty() || rl.IsWhole() {
				continue
			}
			err := e.Facts.InsertCallerInfo(e.curFile, pld.Name, false, facts.CallerInfoFact{
				CallID: e.callCount,
				Type:   facts.ParamSet,
				Param:  i,
				Key:    "$",
				Value:  rl.String(),
			})
			if err != nil {
				e.Log.WithError(err).Warn("flushing caller info")
			}
		}
	})

	// Assigning a function to a struct member records a function_ptr
	// binding, so later calls through that member resolve.
	e.Hooks.Register(hooks.Assignment, func(payload any) {
		if e.Facts == nil {
			return
		}
		pld := payload.(*eval.AssignmentPayload)
		fnName, ok := assignedFunctionName(pld.Expr.RHS)
		if !ok {
			return
		}
		path, ok := eval.MemberPath(pld.Expr.LHS)
		if !ok {
			return
		}
		if err := e.Facts.InsertFunctionPtr(path, fnName); err != nil {
			e.Log.WithError(err).Warn("recording function pointer")
		}
	})
}

func assignedFunctionName(rhs ast.Expr) (string, bool) {
	if addr, ok := rhs.(*ast.AddrExpr); ok {
		rhs = addr.X
	}
	id, ok := rhs.(*ast.Ident)
	if !ok || id.Sym == nil || id.Sym.Kind != symbol.KindFunction {
		return "", false
	}
	return id.Name, true
}

// inlineCall walks an inline-marked callee defined in the current
// translation unit in place at the call site, seeding its parameters from
// the evaluated argument ranges.
func (e *Engine) inlineCall(tree *state.Stree, call *ast.CallExpr, name string, argRLs []sval.RangeList) (sval.RangeList, *state.Stree, bool) {
	def, ok := e.defs[name]
	if !ok || !def.Inline || def.Body == nil {
		return sval.RangeList{}, nil, false
	}
	seeded := tree
	for i, p := range def.Params {
		if i >= len(argRLs) {
			break
		}
		seeded = seeded.Set(state.Key{Owner: state.OwnerExtra, Name: p.Name, Sym: p.Sym}, eval.RLState{RL: argRLs[i]})
	}
	rl, out := e.Walk.WalkInline(def, seeded)
	return rl, out, true
}

// initialTree derives a function's starting stree from the caller_info
// facts recorded for it: ParamSet value facts union
// across call sites into a seeded range per parameter, and every fact is
// also offered to checker-registered caller-info hooks by type tag.
func (e *Engine) initialTree(fn *ast.FunctionDef) *state.Stree {
	tree := state.New()
	if e.Facts == nil {
		return tree
	}
	seeded := make(map[int]sval.RangeList)
	err := e.Facts.SelectCallerInfo(e.fileOf(fn), fn.Name, fn.Static, func(f facts.CallerInfoFact) {
		if f.Type == facts.ParamSet && f.Key == "$" && f.Param >= 0 && f.Param < len(fn.Params) {
			rl, perr := sval.ParseRL(fn.Params[f.Param].Type, f.Value)
			if perr == nil {
				if prev, ok := seeded[f.Param]; ok {
					rl = sval.Union(prev, rl)
				}
				seeded[f.Param] = rl
			}
		}
		pld := &CallerInfoPayload{Tree: tree, Fn: fn, Fact: f}
		e.Hooks.DispatchCallerInfo(string(f.Type), pld)
		tree = pld.Tree
	})
	if err != nil {
		e.Log.WithError(err).Warn("reading caller info")
	}
	for idx, rl := range seeded {
		p := fn.Params[idx]
		tree = tree.Set(state.Key{Owner: state.OwnerExtra, Name: p.Name, Sym: p.Sym}, eval.RLState{RL: rl})
	}
	return tree
}

func (e *Engine) fileOf(fn *ast.FunctionDef) string { return fn.NodePos().File }

// Close releases the fact database, if one was opened.
func (e *Engine) Close() error {
	if e.Facts == nil {
		return nil
	}
	return e.Facts.Close()
}

// RegisterCheckers runs every checker's Init against e, in order;
// registration order is the dispatch order for hooks sharing an event.
func (e *Engine) RegisterCheckers(checkers ...Checker) {
	for _, c := range checkers {
		e.Log.WithField("checker", c.Name).Debug("registering checker")
		c.Init(e)
	}
}

// memKB reports the process's current resident memory in KB, read from
// /proc/self/status's VmRSS line; on platforms without /proc (or if the
// read fails) it falls back to runtime.MemStats' Sys figure, which is
// coarser but keeps the guard functional everywhere. VmRSS rather than
// VmSize: the Go runtime reserves virtual address space far beyond what
// it touches, so virtual size would trip the budget on a freshly started
// process.
func (e *Engine) memKB() int {
	if data, err := os.ReadFile("/proc/self/status"); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if !strings.HasPrefix(line, "VmRSS:") {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				if kb, err := strconv.Atoi(fields[1]); err == nil {
					return kb
				}
			}
		}
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return int(m.Sys / 1024)
}

// oomExceeded reports whether the process has crossed the configured OOM
// threshold. Once tripped, the driver stops analyzing further functions
// for the remainder of the pass rather than risking an OS-level kill
// mid-function; the first trip also emits the run's single out-of-memory
// diagnostic.
func (e *Engine) oomExceeded() bool {
	if e.oomTripped {
		return true
	}
	if e.memKB() > e.oomKB {
		e.oomTripped = true
		if !e.oomEver {
			e.Diag.Emit(diag.Diagnostic{
				ReturnIndex: -1,
				Severity:    diag.Error,
				Message:     fmt.Sprintf("out of memory: %d kb limit exceeded", e.oomKB),
			})
		}
		e.oomEver = true
		e.Log.WithField("oom_kb", e.oomKB).Info("memory threshold exceeded, bailing on remaining functions")
		return true
	}
	return false
}

// OOMTripped reports whether any pass of this run hit the memory budget.
// Unlike the per-pass bail flag, it is never reset, so the CLI can turn it
// into a non-zero exit code after Run returns.
func (e *Engine) OOMTripped() bool { return e.oomEver }

// FunctionResult is one analyzed function's outcome: every reachable
// return point's final stree, keyed to the function it came from.
type FunctionResult struct {
	Fn      *ast.FunctionDef
	Returns []*state.Stree
}

// AnalyzeFile walks every function defined in tu in source order, firing
// BASE for each global first and stopping early if the OOM
// guard trips. Results already computed before the bail-out are
// still returned. An engine-invariant violation surfacing as a panic
// during a walk is fatal: it prints `internal bug:` with context and
// aborts the process.
func (e *Engine) AnalyzeFile(tu *ast.TranslationUnit) []FunctionResult {
	if e.Hooks != nil {
		defer e.Hooks.Dispatch(hooks.EndFile, tu)
	}
	e.defs = make(map[string]*ast.FunctionDef)
	for _, decl := range tu.Decls {
		switch d := decl.(type) {
		case *ast.FunctionDef:
			e.defs[d.Name] = d
		default:
			e.Hooks.Dispatch(hooks.Base, d)
		}
	}
	var results []FunctionResult
	for _, decl := range tu.Decls {
		fn, ok := decl.(*ast.FunctionDef)
		if !ok {
			continue
		}
		if e.oomExceeded() {
			break
		}
		returns := e.walkOne(fn)
		results = append(results, FunctionResult{Fn: fn, Returns: returns})
	}
	return results
}

func (e *Engine) walkOne(fn *ast.FunctionDef) []*state.Stree {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "internal bug: %v (walking %s, %s)\n", r, fn.Name, fn.NodePos())
			os.Exit(1)
		}
	}()
	return e.Walk.WalkFunction(fn, e.initialTree(fn))
}

// Run analyzes every translation unit in units once, or twice when
// two-pass mode is requested (the first
// pass populates the fact database's return_states/caller_info tables so
// the second pass's call sites can consult summaries computed for
// functions defined later in the same file set, not just earlier ones).
func (e *Engine) Run(units []*ast.TranslationUnit, twoPass bool) [][]FunctionResult {
	passes := 1
	if twoPass && e.Facts != nil {
		passes = 2
	}
	var out [][]FunctionResult
	for p := 0; p < passes; p++ {
		e.oomTripped = false
		var passResults []FunctionResult
		for _, tu := range units {
			passResults = append(passResults, e.AnalyzeFile(tu)...)
		}
		out = append(out, passResults)
	}
	return out
}
