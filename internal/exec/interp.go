package exec

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
)

type ctrlKind int

const (
	ctrlReturn ctrlKind = iota
	ctrlBreak
	ctrlContinue
)

type ctrlSignal struct {
	kind  ctrlKind
	value any
}

// runtimeError is the panic payload for any evaluation failure that should
// surface to the caller as an execution error rather than a Go panic.
type runtimeError struct{ err error }

func throwf(format string, args ...any) {
	panic(runtimeError{err: fmt.Errorf(format, args...)})
}

// closure is a user-defined function literal captured with its defining
// scope, the sandbox's only form of user-defined callable.
type closure struct {
	params []string
	body   *ast.BlockStmt
	env    *env
	in     *interpreter
}

func (c *closure) call(args []any) any {
	scope := newEnv(c.env)
	for i, p := range c.params {
		if i < len(args) {
			scope.define(p, args[i])
		} else {
			scope.define(p, nil)
		}
	}
	result, err := c.in.run(scope, c.body)
	if err != nil {
		panic(runtimeError{err: err})
	}
	return result
}

// interpreter evaluates one parsed script body against a helper table and a
// cancellation context checked at every statement and loop iteration.
type interpreter struct {
	ctx     context.Context
	helpers map[string]func(args []any) any
}

// parseBody parses code as the body of a synthetic function, so the sandbox
// accepts an ordinary statement list rather than a full source file.
func parseBody(code string) (*ast.BlockStmt, error) {
	src := "package sandbox\nfunc __run() {\n" + code + "\n}\n"
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "sandbox.go", src, 0)
	if err != nil {
		return nil, err
	}
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == "__run" {
			return fn.Body, nil
		}
	}
	return nil, fmt.Errorf("no executable statements found")
}

// run executes block's statements in scope e, returning whatever value a
// top-level return statement supplied (nil if none was reached).
func (in *interpreter) run(e *env, block *ast.BlockStmt) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case ctrlSignal:
				if v.kind == ctrlReturn {
					result = v.value
					return
				}
				err = fmt.Errorf("break/continue used outside a loop")
			case runtimeError:
				err = v.err
			default:
				panic(r)
			}
		}
	}()
	in.execStmts(e, block.List)
	return nil, nil
}

func (in *interpreter) checkDeadline() {
	if err := in.ctx.Err(); err != nil {
		panic(runtimeError{err: err})
	}
}

func (in *interpreter) execStmts(e *env, stmts []ast.Stmt) {
	for _, s := range stmts {
		in.checkDeadline()
		in.execStmt(e, s)
	}
}

func (in *interpreter) execStmt(e *env, stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		in.evalExpr(e, s.X)

	case *ast.AssignStmt:
		in.execAssign(e, s)

	case *ast.IncDecStmt:
		cur, _ := toFloat(in.evalExpr(e, s.X))
		delta := 1.0
		if s.Tok == token.DEC {
			delta = -1.0
		}
		in.assignTo(e, s.X, cur+delta)

	case *ast.IfStmt:
		scope := newEnv(e)
		if s.Init != nil {
			in.execStmt(scope, s.Init)
		}
		if truthy(in.evalExpr(scope, s.Cond)) {
			in.execStmts(newEnv(scope), s.Body.List)
		} else if s.Else != nil {
			in.execStmt(scope, s.Else)
		}

	case *ast.BlockStmt:
		in.execStmts(newEnv(e), s.List)

	case *ast.ForStmt:
		in.execFor(e, s)

	case *ast.RangeStmt:
		in.execRange(e, s)

	case *ast.ReturnStmt:
		var v any
		if len(s.Results) == 1 {
			v = in.evalExpr(e, s.Results[0])
		} else if len(s.Results) > 1 {
			vals := make([]any, len(s.Results))
			for i, r := range s.Results {
				vals[i] = in.evalExpr(e, r)
			}
			v = vals
		}
		panic(ctrlSignal{kind: ctrlReturn, value: v})

	case *ast.BranchStmt:
		switch s.Tok {
		case token.BREAK:
			panic(ctrlSignal{kind: ctrlBreak})
		case token.CONTINUE:
			panic(ctrlSignal{kind: ctrlContinue})
		default:
			throwf("unsupported branch statement")
		}

	case *ast.DeclStmt:
		gen, ok := s.Decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.VAR {
			throwf("unsupported declaration")
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, name := range vs.Names {
				var v any
				if i < len(vs.Values) {
					v = in.evalExpr(e, vs.Values[i])
				}
				e.define(name.Name, v)
			}
		}

	case *ast.EmptyStmt:
		// no-op

	default:
		throwf("unsupported statement type %T", stmt)
	}
}

func (in *interpreter) execAssign(e *env, s *ast.AssignStmt) {
	if s.Tok == token.DEFINE {
		for i, lhs := range s.Lhs {
			id, ok := lhs.(*ast.Ident)
			if !ok {
				throwf("invalid assignment target")
			}
			var v any
			if i < len(s.Rhs) {
				v = in.evalExpr(e, s.Rhs[i])
			}
			e.define(id.Name, v)
		}
		return
	}

	if s.Tok == token.ASSIGN {
		values := make([]any, len(s.Rhs))
		for i, r := range s.Rhs {
			values[i] = in.evalExpr(e, r)
		}
		for i, lhs := range s.Lhs {
			if i < len(values) {
				in.assignTo(e, lhs, values[i])
			}
		}
		return
	}

	// Compound assignment: +=, -=, *=, /=, %=
	if len(s.Lhs) != 1 || len(s.Rhs) != 1 {
		throwf("unsupported multi-target compound assignment")
	}
	cur := in.evalExpr(e, s.Lhs[0])
	rhs := in.evalExpr(e, s.Rhs[0])
	var op token.Token
	switch s.Tok {
	case token.ADD_ASSIGN:
		op = token.ADD
	case token.SUB_ASSIGN:
		op = token.SUB
	case token.MUL_ASSIGN:
		op = token.MUL
	case token.QUO_ASSIGN:
		op = token.QUO
	case token.REM_ASSIGN:
		op = token.REM
	default:
		throwf("unsupported assignment operator %s", s.Tok)
	}
	in.assignTo(e, s.Lhs[0], applyBinaryOp(op, cur, rhs))
}

func (in *interpreter) assignTo(e *env, target ast.Expr, v any) {
	switch t := target.(type) {
	case *ast.Ident:
		e.assign(t.Name, v)
	case *ast.IndexExpr:
		base := in.evalExpr(e, t.X)
		key := in.evalExpr(e, t.Index)
		switch container := base.(type) {
		case []any:
			idx, ok := toFloat(key)
			if !ok || int(idx) < 0 || int(idx) >= len(container) {
				throwf("index out of range")
			}
			container[int(idx)] = v
		case map[string]any:
			container[toString(key)] = v
		default:
			throwf("cannot index into %T", base)
		}
	default:
		throwf("invalid assignment target %T", target)
	}
}

func (in *interpreter) execFor(e *env, s *ast.ForStmt) {
	scope := newEnv(e)
	if s.Init != nil {
		in.execStmt(scope, s.Init)
	}
	for {
		in.checkDeadline()
		if s.Cond != nil && !truthy(in.evalExpr(scope, s.Cond)) {
			return
		}
		if in.execLoopBody(newEnv(scope), s.Body) {
			return
		}
		if s.Post != nil {
			in.execStmt(scope, s.Post)
		}
	}
}

func (in *interpreter) execRange(e *env, s *ast.RangeStmt) {
	scope := newEnv(e)
	subject := in.evalExpr(scope, s.X)

	bind := func(iterScope *env, k, v any) {
		if s.Key != nil {
			if id, ok := s.Key.(*ast.Ident); ok && id.Name != "_" {
				if s.Tok == token.DEFINE {
					iterScope.define(id.Name, k)
				} else {
					iterScope.assign(id.Name, k)
				}
			}
		}
		if s.Value != nil {
			if id, ok := s.Value.(*ast.Ident); ok && id.Name != "_" {
				if s.Tok == token.DEFINE {
					iterScope.define(id.Name, v)
				} else {
					iterScope.assign(id.Name, v)
				}
			}
		}
	}

	switch coll := subject.(type) {
	case []any:
		for i, v := range coll {
			in.checkDeadline()
			iterScope := newEnv(scope)
			bind(iterScope, int64(i), v)
			if in.execLoopBody(iterScope, s.Body) {
				return
			}
		}
	case map[string]any:
		for _, k := range sortedKeys(coll) {
			in.checkDeadline()
			iterScope := newEnv(scope)
			bind(iterScope, k, coll[k])
			if in.execLoopBody(iterScope, s.Body) {
				return
			}
		}
	case string:
		for i, r := range coll {
			in.checkDeadline()
			iterScope := newEnv(scope)
			bind(iterScope, int64(i), string(r))
			if in.execLoopBody(iterScope, s.Body) {
				return
			}
		}
	default:
		throwf("cannot range over %T", subject)
	}
}

// execLoopBody runs one loop iteration, catching break/continue locally and
// re-panicking anything else (return, or an actual error) to the caller.
func (in *interpreter) execLoopBody(scope *env, body *ast.BlockStmt) (brk bool) {
	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(ctrlSignal); ok {
				switch sig.kind {
				case ctrlBreak:
					brk = true
					return
				case ctrlContinue:
					return
				}
			}
			panic(r)
		}
	}()
	in.execStmts(scope, body.List)
	return false
}

func (in *interpreter) evalExpr(e *env, expr ast.Expr) any {
	switch x := expr.(type) {
	case *ast.ParenExpr:
		return in.evalExpr(e, x.X)

	case *ast.Ident:
		switch x.Name {
		case "true":
			return true
		case "false":
			return false
		case "nil":
			return nil
		}
		if v, ok := e.get(x.Name); ok {
			return v
		}
		throwf("undefined identifier %q", x.Name)
		return nil

	case *ast.BasicLit:
		return literalValue(x)

	case *ast.UnaryExpr:
		v := in.evalExpr(e, x.X)
		switch x.Op {
		case token.SUB:
			f, ok := toFloat(v)
			if !ok {
				throwf("cannot negate %T", v)
			}
			return -f
		case token.NOT:
			return !truthy(v)
		default:
			throwf("unsupported unary operator %s", x.Op)
		}

	case *ast.BinaryExpr:
		if x.Op == token.LAND {
			return truthy(in.evalExpr(e, x.X)) && truthy(in.evalExpr(e, x.Y))
		}
		if x.Op == token.LOR {
			return truthy(in.evalExpr(e, x.X)) || truthy(in.evalExpr(e, x.Y))
		}
		return applyBinaryOp(x.Op, in.evalExpr(e, x.X), in.evalExpr(e, x.Y))

	case *ast.CallExpr:
		return in.evalCall(e, x)

	case *ast.FuncLit:
		params := make([]string, 0)
		if x.Type.Params != nil {
			for _, f := range x.Type.Params.List {
				for _, n := range f.Names {
					params = append(params, n.Name)
				}
				// go/parser reads untyped `func(a, b)` as two unnamed
				// parameters of types a and b; take those idents as names.
				if id, ok := f.Type.(*ast.Ident); ok && len(f.Names) == 0 {
					params = append(params, id.Name)
				}
			}
		}
		return &closure{params: params, body: x.Body, env: e, in: in}

	case *ast.IndexExpr:
		base := in.evalExpr(e, x.X)
		key := in.evalExpr(e, x.Index)
		return indexValue(base, key)

	case *ast.SliceExpr:
		return in.evalSlice(e, x)

	case *ast.CompositeLit:
		return in.evalComposite(e, x)

	case *ast.SelectorExpr:
		throwf("member access is not supported; use get(obj, %q) instead", x.Sel.Name)

	default:
		throwf("unsupported expression type %T", expr)
	}
	return nil
}

func literalValue(lit *ast.BasicLit) any {
	switch lit.Kind {
	case token.INT:
		n, err := strconv.ParseInt(lit.Value, 0, 64)
		if err != nil {
			throwf("invalid integer literal %q", lit.Value)
		}
		return n
	case token.FLOAT:
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			throwf("invalid float literal %q", lit.Value)
		}
		return f
	case token.STRING:
		s, err := strconv.Unquote(lit.Value)
		if err != nil {
			throwf("invalid string literal %q", lit.Value)
		}
		return s
	case token.CHAR:
		r, _, _, err := strconv.UnquoteChar(lit.Value[1:len(lit.Value)-1], '\'')
		if err != nil {
			throwf("invalid char literal %q", lit.Value)
		}
		return int64(r)
	default:
		throwf("unsupported literal kind %v", lit.Kind)
		return nil
	}
}

func (in *interpreter) evalCall(e *env, call *ast.CallExpr) any {
	args := make([]any, len(call.Args))
	for i, a := range call.Args {
		args[i] = in.evalExpr(e, a)
	}

	if id, ok := call.Fun.(*ast.Ident); ok {
		if v, bound := e.get(id.Name); bound {
			if cl, ok := v.(*closure); ok {
				return cl.call(args)
			}
		}
		if h, ok := in.helpers[id.Name]; ok {
			return h(args)
		}
		throwf("unknown function %q", id.Name)
	}

	fn := in.evalExpr(e, call.Fun)
	if cl, ok := fn.(*closure); ok {
		return cl.call(args)
	}
	throwf("value is not callable")
	return nil
}

func indexValue(base, key any) any {
	switch container := base.(type) {
	case []any:
		idx, ok := toFloat(key)
		if !ok {
			throwf("array index must be a number")
		}
		i := int(idx)
		if i < 0 || i >= len(container) {
			return nil
		}
		return container[i]
	case map[string]any:
		v, ok := container[toString(key)]
		if !ok {
			return nil
		}
		return v
	case string:
		idx, ok := toFloat(key)
		if !ok {
			throwf("string index must be a number")
		}
		runes := []rune(container)
		i := int(idx)
		if i < 0 || i >= len(runes) {
			return nil
		}
		return string(runes[i])
	default:
		throwf("cannot index into %T", base)
		return nil
	}
}

func (in *interpreter) evalSlice(e *env, x *ast.SliceExpr) any {
	base := in.evalExpr(e, x.X)
	length := 0
	switch t := base.(type) {
	case []any:
		length = len(t)
	case string:
		length = len([]rune(t))
	default:
		throwf("cannot slice %T", base)
	}

	low, high := 0, length
	if x.Low != nil {
		f, _ := toFloat(in.evalExpr(e, x.Low))
		low = int(f)
	}
	if x.High != nil {
		f, _ := toFloat(in.evalExpr(e, x.High))
		high = int(f)
	}
	if low < 0 {
		low = 0
	}
	if high > length {
		high = length
	}
	if low > high {
		low = high
	}

	switch t := base.(type) {
	case []any:
		out := make([]any, high-low)
		copy(out, t[low:high])
		return out
	case string:
		return string([]rune(t)[low:high])
	default:
		return nil
	}
}

func (in *interpreter) evalComposite(e *env, x *ast.CompositeLit) any {
	switch x.Type.(type) {
	case *ast.MapType:
		out := make(map[string]any, len(x.Elts))
		for _, elt := range x.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				throwf("map literal requires key: value elements")
			}
			key := toString(in.evalExpr(e, kv.Key))
			out[key] = in.evalExpr(e, kv.Value)
		}
		return out
	default:
		out := make([]any, len(x.Elts))
		for i, elt := range x.Elts {
			out[i] = in.evalExpr(e, elt)
		}
		return out
	}
}

func applyBinaryOp(op token.Token, a, b any) any {
	if op == token.ADD {
		as, aIsStr := a.(string)
		bs, bIsStr := b.(string)
		if aIsStr || bIsStr {
			if aIsStr && bIsStr {
				return as + bs
			}
			throwf("cannot add %T and %T", a, b)
		}
	}
	if op == token.EQL {
		return equalValues(a, b)
	}
	if op == token.NEQ {
		return !equalValues(a, b)
	}
	if op == token.LSS || op == token.LEQ || op == token.GTR || op == token.GEQ {
		cmp, ok := compareValues(a, b)
		if !ok {
			throwf("cannot compare %T and %T", a, b)
		}
		switch op {
		case token.LSS:
			return cmp < 0
		case token.LEQ:
			return cmp <= 0
		case token.GTR:
			return cmp > 0
		default:
			return cmp >= 0
		}
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		throwf("cannot apply %s to %T and %T", op, a, b)
	}
	switch op {
	case token.ADD:
		return af + bf
	case token.SUB:
		return af - bf
	case token.MUL:
		return af * bf
	case token.QUO:
		if bf == 0 {
			throwf("division by zero")
		}
		return af / bf
	case token.REM:
		if bf == 0 {
			throwf("division by zero")
		}
		return float64(int64(af) % int64(bf))
	default:
		throwf("unsupported binary operator %s", op)
		return nil
	}
}
