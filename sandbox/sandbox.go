// Package sandbox evaluates untrusted Lua snippets with gopher-lua.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/ast"
	"github.com/yuin/gopher-lua/parse"
)

// Timeout bounds a single evaluation
const Timeout = 5 * time.Second

// MaxOutput caps the captured output in bytes
const MaxOutput = 1900

// MaxString caps strings built by string.rep
const MaxString = 1 << 20

var (
	ErrTimeout = errors.New("script took too long")
)

// ScriptError is a compile or runtime failure inside the script
type ScriptError struct {
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// removed from the base library after it is opened
var forbiddenGlobals = []string{
	"load", "loadstring", "dofile", "loadfile", "require", "module",
	"getmetatable", "setmetatable", "rawget", "rawset", "rawequal",
	"collectgarbage", "newproxy", "_G", "_printregs",
}

// Eval evaluates source in this process and returns everything it printed
// followed by its return values. vars is exposed to the script as the global
// table "ctx". Run should be preferred for untrusted input.
func Eval(ctx context.Context, source string, vars map[string]any) (string, error) {
	chunk, err := parse.Parse(strings.NewReader(source), "tag")
	if err != nil {
		return "", &ScriptError{Message: "syntax error: " + firstLine(err.Error())}
	}
	if err := checkStmts(chunk); err != nil {
		return "", err
	}
	proto, err := lua.Compile(chunk, "tag")
	if err != nil {
		return "", &ScriptError{Message: "compile error: " + firstLine(err.Error())}
	}

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	L := lua.NewState(lua.Options{
		SkipOpenLibs:    true,
		CallStackSize:   128,
		RegistrySize:    1024 * 16,
		RegistryMaxSize: 1024 * 256,
	})
	defer L.Close()

	openSafeLibs(L)

	var out outputBuffer
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		n := L.GetTop()
		parts := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		out.line(strings.Join(parts, "\t"))
		return 0
	}))
	L.SetGlobal("ctx", toLua(L, vars))

	L.SetContext(ctx)
	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		return "", &ScriptError{Message: runtimeMessage(err)}
	}

	for i := 1; i <= L.GetTop(); i++ {
		if v := L.Get(i); v != lua.LNil {
			out.line(L.ToStringMeta(v).String())
		}
	}
	return out.String(), nil
}

func openSafeLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range forbiddenGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	str := L.GetGlobal(lua.StringLibName).(*lua.LTable)
	str.RawSetString("rep", L.NewFunction(strRep))
	if format, ok := str.RawGetString("format").(*lua.LFunction); ok && format.IsG {
		str.RawSetString("format", L.NewFunction(checkedFormat(format.GFunction)))
	}
}

func strRep(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	if n <= 0 || s == "" {
		L.Push(lua.LString(""))
		return 1
	}
	if len(s) > MaxString/n {
		L.RaiseError("string.rep result is too large")
		return 0
	}
	L.Push(lua.LString(strings.Repeat(s, n)))
	return 1
}

// checkedFormat refuses widths and precisions over two digits, like the reference Lua
func checkedFormat(format lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if !validFormat(L.CheckString(1)) {
			L.RaiseError("invalid format (width or precision too long)")
			return 0
		}
		return format(L)
	}
}

func validFormat(f string) bool {
	digits := func(i int) (int, int) {
		start := i
		for i < len(f) && f[i] >= '0' && f[i] <= '9' {
			i++
		}
		return i, i - start
	}

	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			continue
		}
		i++
		if i < len(f) && f[i] == '%' {
			continue
		}
		for i < len(f) && strings.IndexByte("-+ #0", f[i]) >= 0 {
			i++
		}
		var n int
		if i, n = digits(i); n > 2 {
			return false
		}
		if i < len(f) && f[i] == '.' {
			if i, n = digits(i + 1); n > 2 {
				return false
			}
		}
	}
	return true
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(x)
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case []string:
		t := L.NewTable()
		for _, s := range x {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, item := range x {
			t.Append(toLua(L, item))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, item := range x {
			t.RawSetString(k, toLua(L, item))
		}
		return t
	}
	return lua.LString(fmt.Sprint(v))
}

type outputBuffer struct {
	b strings.Builder
}

func (o *outputBuffer) line(s string) {
	if o.b.Len() >= MaxOutput {
		return
	}
	if o.b.Len() > 0 {
		o.b.WriteByte('\n')
	}
	o.b.WriteString(s)
}

func (o *outputBuffer) String() string {
	s := o.b.String()
	if len(s) > MaxOutput {
		s = s[:MaxOutput]
	}
	return s
}

func runtimeMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return firstLine(apiErr.Object.String())
	}
	return firstLine(err.Error())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// checkStmts rejects any constant index whose key begins with an underscore
func checkStmts(stmts []ast.Stmt) error {
	for _, s := range stmts {
		if err := checkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func checkStmt(s ast.Stmt) error {
	switch st := s.(type) {
	case *ast.AssignStmt:
		return checkExprs(append(append([]ast.Expr{}, st.Lhs...), st.Rhs...))
	case *ast.LocalAssignStmt:
		return checkExprs(st.Exprs)
	case *ast.FuncCallStmt:
		return checkExpr(st.Expr)
	case *ast.DoBlockStmt:
		return checkStmts(st.Stmts)
	case *ast.WhileStmt:
		if err := checkExpr(st.Condition); err != nil {
			return err
		}
		return checkStmts(st.Stmts)
	case *ast.RepeatStmt:
		if err := checkExpr(st.Condition); err != nil {
			return err
		}
		return checkStmts(st.Stmts)
	case *ast.IfStmt:
		if err := checkExpr(st.Condition); err != nil {
			return err
		}
		if err := checkStmts(st.Then); err != nil {
			return err
		}
		return checkStmts(st.Else)
	case *ast.NumberForStmt:
		if err := checkExprs([]ast.Expr{st.Init, st.Limit, st.Step}); err != nil {
			return err
		}
		return checkStmts(st.Stmts)
	case *ast.GenericForStmt:
		if err := checkExprs(st.Exprs); err != nil {
			return err
		}
		return checkStmts(st.Stmts)
	case *ast.FuncDefStmt:
		if st.Name != nil {
			if err := checkName(st.Name.Method); err != nil {
				return err
			}
			if err := checkExprs([]ast.Expr{st.Name.Func, st.Name.Receiver}); err != nil {
				return err
			}
		}
		return checkExpr(st.Func)
	case *ast.ReturnStmt:
		return checkExprs(st.Exprs)
	}
	return nil
}

func checkExprs(exprs []ast.Expr) error {
	for _, e := range exprs {
		if err := checkExpr(e); err != nil {
			return err
		}
	}
	return nil
}

func checkName(name string) error {
	if strings.HasPrefix(name, "_") {
		return &ScriptError{Message: fmt.Sprintf("access to %q is not allowed", name)}
	}
	return nil
}

func checkExpr(e ast.Expr) error {
	switch ex := e.(type) {
	case nil:
		return nil
	case *ast.AttrGetExpr:
		if key, ok := ex.Key.(*ast.StringExpr); ok {
			if err := checkName(key.Value); err != nil {
				return err
			}
		}
		return checkExprs([]ast.Expr{ex.Object, ex.Key})
	case *ast.FuncCallExpr:
		if err := checkName(ex.Method); err != nil {
			return err
		}
		if err := checkExprs([]ast.Expr{ex.Func, ex.Receiver}); err != nil {
			return err
		}
		return checkExprs(ex.Args)
	case *ast.TableExpr:
		for _, f := range ex.Fields {
			if err := checkExprs([]ast.Expr{f.Key, f.Value}); err != nil {
				return err
			}
		}
	case *ast.LogicalOpExpr:
		return checkExprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.RelationalOpExpr:
		return checkExprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.StringConcatOpExpr:
		return checkExprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.ArithmeticOpExpr:
		return checkExprs([]ast.Expr{ex.Lhs, ex.Rhs})
	case *ast.UnaryMinusOpExpr:
		return checkExpr(ex.Expr)
	case *ast.UnaryNotOpExpr:
		return checkExpr(ex.Expr)
	case *ast.UnaryLenOpExpr:
		return checkExpr(ex.Expr)
	case *ast.FunctionExpr:
		return checkStmts(ex.Stmts)
	}
	return nil
}
