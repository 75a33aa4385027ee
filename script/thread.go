/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package script

import (
	"strings"
	"time"

	"github.com/Comcast/tempo/builtins"
	"github.com/Comcast/tempo/core"

	"github.com/rs/zerolog"
)

// MaxStack limits the depth of the frame stack, which grows with the
// nesting of blocks and expressions.
var MaxStack = 1000

type state int

const (
	sDead state = iota
	sComplete

	// Statements
	sBody
	sBlock
	sOneStatement
	sNoStatement
	sIfCondition
	sIfTrueStatement
	sWhileCondition
	sWhileStatement
	sTryStatement
	sAssignToVar
	sResult
	sReturnValue

	// Expressions
	sExpression
	sSubExpression
	sGroupedExpression
	sExprFirstTerm
	sExprLeftSide
	sExprRightSide
	sSimpleTerm
	sFuncArg
	sFuncExec
	sTermResult
)

var stateNames = map[state]string{
	sDead:              "dead",
	sComplete:          "complete",
	sBody:              "body",
	sBlock:             "block",
	sOneStatement:      "oneStatement",
	sNoStatement:       "noStatement",
	sIfCondition:       "ifCondition",
	sIfTrueStatement:   "ifTrueStatement",
	sWhileCondition:    "whileCondition",
	sWhileStatement:    "whileStatement",
	sTryStatement:      "tryStatement",
	sAssignToVar:       "assignToVar",
	sResult:            "result",
	sReturnValue:       "returnValue",
	sExpression:        "expression",
	sSubExpression:     "subExpression",
	sGroupedExpression: "groupedExpression",
	sExprFirstTerm:     "exprFirstTerm",
	sExprLeftSide:      "exprLeftSide",
	sExprRightSide:     "exprRightSide",
	sSimpleTerm:        "simpleTerm",
	sFuncArg:           "funcArg",
	sFuncExec:          "funcExec",
	sTermResult:        "termResult",
}

func (s state) String() string {
	if name, have := stateNames[s]; have {
		return name
	}
	return "unknown"
}

// registers are saved by push and restored by pop.
type registers struct {
	skipping bool

	// flow is true while the rest of an if/else chain is still
	// eligible to run.
	flow bool

	precedence int
	op         core.Operator

	// identifier is the variable being assigned or the function
	// being called.
	identifier string
	declare    bool
	fnPos      int
	args       []core.Value
}

type frame struct {
	registers
	ret    state
	pos    int
	result core.Value
}

// Thread is one execution of a script.
//
// A Thread is a state machine over an explicit stack of frames, so
// it can stop in the middle of any statement or expression when an
// asynchronous builtin is called and continue from there when the
// builtin finishes.
type Thread struct {
	registers

	ctx  *Context
	cur  *core.Cursor
	mode core.EvalMode
	done func(core.Value)

	state     state
	stack     []frame
	result    core.Value
	older     core.Value
	poppedPos int

	// call is the outstanding asynchronous builtin, and child is a
	// nested thread started by eval().
	call  *builtins.Call
	child *Thread

	// MaxBlockTime is how long the thread runs before it lets the
	// Scheduler do something else.  Synchronous threads fail
	// instead.  Zero means no limit.
	MaxBlockTime time.Duration

	// MaxRunTime limits the total run time.  Zero means no limit.
	MaxRunTime time.Duration

	started     time.Time
	resuming    bool
	resumed     bool
	aborted     bool
	abortResult core.Value
	finished    bool
	yield       func()
}

func newThread(ctx *Context, code string, mode core.EvalMode, done func(core.Value)) *Thread {
	cur := core.NewCursor(code)
	cur.Mode = ctx.OperatorMode
	if ctx.Sched != nil {
		cur.Now = ctx.Sched.Now
	}
	return &Thread{
		ctx:          ctx,
		cur:          cur,
		mode:         mode,
		done:         done,
		MaxBlockTime: ctx.MaxBlockTime,
		MaxRunTime:   ctx.MaxRunTime,
	}
}

// Finished reports whether the thread has terminated.
func (t *Thread) Finished() bool {
	return t.finished
}

// Result is the final result once the thread has finished.
func (t *Thread) Result() core.Value {
	return t.result
}

func (t *Thread) now() time.Time {
	if t.ctx.Sched == nil {
		return time.Now()
	}
	return t.ctx.Sched.Now()
}

func (t *Thread) log() *zerolog.Logger {
	return &t.ctx.Log
}

// run starts the thread.
func (t *Thread) run() {
	t.started = t.now()
	t.log().Debug().Str("mode", t.mode.String()).Msgf("starting at %s", t.cur.Display(40))
	t.skipping = t.mode.Base() == core.SyntaxCheck
	t.state = sBody
	t.push(sComplete)
	t.resume()
}

// Abort terminates the thread.  An outstanding builtin or eval() is
// aborted first.  The thread's result is the given value or, if
// that's null, an Aborted error.
func (t *Thread) Abort(result core.Value) {
	if t.finished {
		return
	}
	if result.IsNull() {
		result = t.errorValue(core.Aborted, "Aborted script code")
	}
	t.aborted = true
	t.abortResult = result
	// Finishing the outstanding call resumes us, and resume
	// completes.
	if ch := t.child; ch != nil {
		t.child = nil
		ch.Abort(result)
	}
	if c := t.call; c != nil {
		t.call = nil
		c.Abort(result)
	}
	t.complete(result)
}

func (t *Thread) errorValue(kind core.ErrorKind, format string, args ...interface{}) core.Value {
	return core.FromError(core.Errorf(kind, t.cur.Pos, format, args...))
}

// resume continues the state machine.
//
// A builtin that finishes synchronously calls resume from within
// step.  In that case resume only notes that the loop should go on,
// so that a long chain of synchronous steps doesn't recurse.
func (t *Thread) resume() {
	if t.finished {
		return
	}
	if t.resuming {
		t.resumed = true
		return
	}
	if t.aborted {
		t.complete(t.abortResult)
		return
	}
	t.resuming = true
	t.stepLoop()
	t.resuming = false
}

func (t *Thread) stepLoop() {
	since := t.now()
	for {
		if t.aborted {
			t.complete(t.abortResult)
			return
		}
		now := t.now()
		if t.MaxRunTime > 0 && now.Sub(t.started) > t.MaxRunTime {
			t.complete(t.errorValue(core.Timeout, "Aborted because of overall execution limit"))
			return
		}
		if t.MaxBlockTime > 0 && now.Sub(since) > t.MaxBlockTime {
			if t.mode.Has(core.Synchronously) {
				t.complete(t.errorValue(core.Timeout, "Aborted because of synchronous execution limit"))
				return
			}
			t.yield = t.ctx.Sched.After(2*t.MaxBlockTime, func() {
				t.yield = nil
				t.resume()
			})
			return
		}
		if len(t.stack) > MaxStack {
			t.complete(t.errorValue(core.Syntax, "code nested too deeply"))
			return
		}
		t.resumed = false
		t.step()
		if !t.resumed || t.finished {
			return
		}
	}
}

func (t *Thread) complete(v core.Value) {
	if t.finished {
		return
	}
	t.finished = true
	t.resumed = false
	if t.yield != nil {
		t.yield()
		t.yield = nil
	}
	t.result = v
	t.state = sDead
	t.stack = nil
	t.log().Debug().Msgf("complete with %s", v)

	t.ctx.detach(t)
	if done := t.done; done != nil {
		t.done = nil
		done(v)
	}
	t.ctx.startQueued()
}

func (t *Thread) step() {
	switch t.state {
	case sComplete:
		t.complete(t.result)
	case sBody, sBlock:
		t.statement(t.state)
	case sOneStatement:
		t.state = sNoStatement
		t.statement(sOneStatement)
	case sNoStatement:
		t.cur.SkipNonCode()
		t.cur.NextIf(';')
		t.pop()
		t.resume()
	case sIfCondition:
		t.ifCondition()
	case sIfTrueStatement:
		t.ifTrueStatement()
	case sWhileCondition:
		t.whileCondition()
	case sWhileStatement:
		t.whileStatement()
	case sTryStatement:
		t.tryStatement()
	case sAssignToVar:
		t.assignToVar()
	case sResult:
		t.pop()
		t.checkAndResume()
	case sReturnValue:
		t.returnValue()
	case sExpression:
		t.precedence = 0
		t.subExpression()
	case sSubExpression:
		t.subExpression()
	case sGroupedExpression:
		t.groupedExpression()
	case sExprFirstTerm:
		if !t.skipping && t.op != core.OpNone {
			t.result = core.ApplyUnary(t.op, t.result)
		}
		t.state = sExprLeftSide
		t.resume()
	case sExprLeftSide:
		t.exprLeftSide()
	case sExprRightSide:
		if !t.skipping {
			t.result = core.Apply(t.op, t.older, t.result)
		}
		t.state = sExprLeftSide
		t.resume()
	case sSimpleTerm:
		t.simpleTerm()
	case sFuncArg:
		t.funcArg()
	case sFuncExec:
		t.funcExec()
	case sTermResult:
		t.pop()
		t.resume()
	default:
		t.complete(t.errorValue(core.Internal, "invalid state %s", t.state))
	}
}

// Stack

func (t *Thread) push(ret state) {
	t.pushAt(ret, t.cur.Pos)
}

func (t *Thread) pushAt(ret state, pos int) {
	t.stack = append(t.stack, frame{
		registers: t.registers,
		ret:       ret,
		pos:       pos,
		result:    t.result,
	})
}

// pop restores the registers and continues in the state given to
// push.  The pushed result becomes older.
func (t *Thread) pop() {
	n := len(t.stack)
	if n == 0 {
		t.complete(t.errorValue(core.Internal, "stack empty - cannot pop"))
		return
	}
	f := t.stack[n-1]
	t.stack = t.stack[:n-1]
	t.registers = f.registers
	t.poppedPos = f.pos
	t.older = f.result
	t.state = f.ret
}

// unwindTo discards the frames above the last one returning to ret
// and pops that one.
func (t *Thread) unwindTo(ret state) bool {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].ret == ret {
			t.stack = t.stack[:i+1]
			t.pop()
			return true
		}
	}
	return false
}

// skipUntil makes everything up to the last frame returning to ret
// skip.  A thrown value is stored as that frame's result.
func (t *Thread) skipUntil(ret state, thrown *core.Value) bool {
	for i := len(t.stack) - 1; i >= 0; i-- {
		if t.stack[i].ret != ret {
			continue
		}
		if thrown != nil {
			t.stack[i].result = *thrown
		}
		for j := i; j < len(t.stack); j++ {
			t.stack[j].skipping = true
		}
		t.skipping = true
		return true
	}
	return false
}

// Errors

func (t *Thread) syntax(format string, args ...interface{}) {
	t.throw(t.errorValue(core.Syntax, format, args...))
}

// checkAndResume throws the result if it's an error.
func (t *Thread) checkAndResume() {
	if t.result.IsError() && !t.skipping {
		t.throw(t.result)
		return
	}
	t.resume()
}

// throw ends the thread for fatal errors and for errors outside of
// any try statement.  Other errors skip ahead to the catch.
func (t *Thread) throw(err core.Value) {
	t.result = err
	if err.ErrorKind().Fatal() {
		t.complete(err)
		return
	}
	if !t.skipping && !t.skipUntil(sTryStatement, &err) {
		t.complete(err)
		return
	}
	t.resume()
}

// Statements

// returnValue finishes a return statement once its expression has
// been evaluated.
func (t *Thread) returnValue() {
	if !t.atStatementEnd() {
		t.syntax("unexpected '%s' after return value", t.cur.Display(20))
		return
	}
	if t.skipping {
		t.pop()
		t.resume()
		return
	}
	if t.result.IsError() {
		t.throw(t.result)
		return
	}
	t.complete(t.result)
}

// atStatementEnd reports whether the code ahead ends a statement: end
// of code, ';', '}', a line break, or an 'else' or 'catch' keyword.
func (t *Thread) atStatementEnd() bool {
	cur := t.cur
	cur.SkipNonCode()
	if cur.EOT() || cur.C() == ';' || cur.C() == '}' {
		return true
	}
	for i := cur.Pos - 1; i >= 0; i-- {
		ch := cur.Src[i]
		if ch == '\n' {
			return true
		}
		if ch != ' ' && ch != '\t' && ch != '\r' {
			break
		}
	}
	at := cur.Pos
	defer func() { cur.Pos = at }()
	return cur.CheckForIdentifier("else") || cur.CheckForIdentifier("catch")
}

// statement starts the next statement.  kind is the state that
// called, which decides how the end of code, '}' and ';' are
// handled.
func (t *Thread) statement(kind state) {
	cur := t.cur
	cur.SkipNonCode()
	if cur.EOT() {
		if kind != sBody {
			t.syntax("unexpected end of code")
			return
		}
		t.complete(t.result)
		return
	}
	if cur.NextIf('{') {
		t.push(t.state)
		t.state = sBlock
		t.resume()
		return
	}
	if cur.NextIf('}') {
		if kind != sBlock {
			t.syntax("unexpected '}'")
			return
		}
		t.pop()
		t.resume()
		return
	}
	if cur.NextIf(';') {
		// Empty statement.
		t.resume()
		return
	}

	t.result = core.Value{}
	start := cur.Pos
	id, ok := cur.ParseIdentifier()
	if !ok {
		t.push(t.state)
		t.push(sResult)
		t.state = sExpression
		t.resume()
		return
	}
	cur.SkipNonCode()

	switch strings.ToLower(id) {
	case "if":
		if !cur.NextIf('(') {
			t.syntax("missing '(' after 'if'")
			return
		}
		t.push(t.state)
		t.push(sIfCondition)
		t.state = sExpression
		t.resume()
		return
	case "while":
		if !cur.NextIf('(') {
			t.syntax("missing '(' after 'while'")
			return
		}
		t.push(t.state)
		t.push(sWhileCondition)
		t.state = sExpression
		t.resume()
		return
	case "break":
		if !t.skipping && !t.skipUntil(sWhileStatement, nil) {
			t.syntax("'break' must be within 'while' statement")
			return
		}
		t.resume()
		return
	case "continue":
		if !t.skipping && !t.unwindTo(sWhileStatement) {
			t.syntax("'continue' must be within 'while' statement")
			return
		}
		t.resume()
		return
	case "return":
		if t.atStatementEnd() {
			if !t.skipping {
				t.complete(core.NullValue("return nothing").At(start))
				return
			}
			t.resume()
			return
		}
		t.push(t.state)
		t.push(sReturnValue)
		t.state = sExpression
		t.resume()
		return
	case "try":
		t.push(t.state)
		t.push(sTryStatement)
		t.state = sOneStatement
		t.resume()
		return
	case "catch":
		t.syntax("'catch' without preceding 'try'")
		return
	case "else":
		t.syntax("'else' without preceding 'if'")
		return
	case "var", "let":
		t.varDef(strings.EqualFold(id, "var"))
		return
	}

	// An assignment or an expression.
	if op := cur.ParseOperator(); op == core.OpAssign || op == core.OpAssignOrEq {
		t.identifier = id
		t.declare = false
		t.push(t.state)
		t.push(sAssignToVar)
		t.state = sExpression
		t.resume()
		return
	}
	cur.Pos = start
	t.push(t.state)
	t.push(sResult)
	t.state = sExpression
	t.resume()
}

func (t *Thread) varDef(declare bool) {
	cur := t.cur
	keyword := "let"
	if declare {
		keyword = "var"
	}
	name, ok := cur.ParseIdentifier()
	if !ok {
		t.syntax("missing variable name after '%s'", keyword)
		return
	}
	if _, reserved := core.Reserved(name); reserved || core.IsKeyword(name) {
		t.syntax("'%s' is a reserved word", name)
		return
	}
	at := cur.Pos
	switch op := cur.ParseOperator(); {
	case op == core.OpAssign || op == core.OpAssignOrEq:
		t.identifier = name
		t.declare = declare
		t.push(t.state)
		t.push(sAssignToVar)
		t.state = sExpression
		t.resume()
	case op == core.OpNone && declare:
		if !t.skipping {
			t.ctx.declare(name)
		}
		t.resume()
	case op == core.OpNone:
		t.syntax("missing assignment after 'let'")
	default:
		cur.Pos = at
		t.syntax("assignment or end of statement expected")
	}
}

func (t *Thread) assignToVar() {
	t.state = sResult
	if !t.skipping && !t.result.IsError() {
		if !t.ctx.assign(t.identifier, t.result, t.declare) {
			t.result = core.FromError(core.Errorf(core.NotFound, t.poppedPos,
				"no local variable '%s'", t.identifier))
		}
	}
	t.resume()
}

func (t *Thread) ifCondition() {
	cur := t.cur
	cur.SkipNonCode()
	if !cur.NextIf(')') {
		t.syntax("missing ')' after 'if' condition")
		return
	}
	if !t.skipping {
		// Errors count as false.
		t.skipping = !t.result.BoolValue()
		t.flow = t.skipping
	} else {
		t.flow = false
	}
	t.result = core.Value{}
	t.push(sIfTrueStatement)
	t.state = sOneStatement
	t.resume()
}

func (t *Thread) ifTrueStatement() {
	cur := t.cur
	cur.SkipNonCode()
	if !cur.CheckForIdentifier("else") {
		t.pop()
		t.resume()
		return
	}
	t.skipping = !t.flow
	cur.SkipNonCode()
	if cur.CheckForIdentifier("if") {
		cur.SkipNonCode()
		if !cur.NextIf('(') {
			t.syntax("missing '(' after 'else if'")
			return
		}
		t.push(sIfCondition)
		t.state = sExpression
		t.resume()
		return
	}
	t.state = sOneStatement
	t.resume()
}

func (t *Thread) whileCondition() {
	cur := t.cur
	cur.SkipNonCode()
	if !cur.NextIf(')') {
		t.syntax("missing ')' after 'while' condition")
		return
	}
	if !t.skipping {
		t.skipping = !t.result.BoolValue()
	}
	t.result = core.Value{}
	// The statement returns to the start of the condition.
	t.pushAt(sWhileStatement, t.poppedPos)
	t.state = sOneStatement
	t.resume()
}

func (t *Thread) whileStatement() {
	if t.skipping {
		t.pop()
		t.resume()
		return
	}
	t.cur.Pos = t.poppedPos
	t.push(sWhileCondition)
	t.state = sExpression
	t.resume()
}

func (t *Thread) tryStatement() {
	cur := t.cur
	cur.SkipNonCode()
	if !cur.CheckForIdentifier("catch") {
		t.syntax("missing 'catch' after 'try'")
		return
	}
	caught := t.older.IsError()
	t.skipping = !caught
	cur.SkipNonCode()
	if cur.CheckForIdentifier("as") {
		cur.SkipNonCode()
		name, ok := cur.ParseIdentifier()
		if !ok {
			t.syntax("missing error variable name after 'as'")
			return
		}
		if caught {
			t.ctx.assign(name, t.older, true)
		}
	}
	t.result = core.Value{}
	t.state = sOneStatement
	t.resume()
}

// Expressions

func (t *Thread) subExpression() {
	cur := t.cur
	cur.SkipNonCode()
	start := cur.Pos
	t.op = cur.ParseOperator()
	switch t.op {
	case core.OpNone, core.OpSubtract, core.OpNot:
	case core.OpAdd:
		t.op = core.OpNone
	default:
		cur.Pos = start
		t.syntax("invalid unary operator")
		return
	}
	if cur.NextIf('(') {
		t.push(sGroupedExpression)
		t.state = sExpression
		t.resume()
		return
	}
	t.push(sExprFirstTerm)
	t.state = sSimpleTerm
	t.resume()
}

func (t *Thread) groupedExpression() {
	cur := t.cur
	cur.SkipNonCode()
	if !cur.NextIf(')') {
		t.syntax("missing ')'")
		return
	}
	t.result = t.result.At(t.poppedPos - 1)
	t.state = sExprFirstTerm
	t.resume()
}

func (t *Thread) exprLeftSide() {
	cur := t.cur
	at := cur.Pos
	op := cur.ParseOperator()
	switch {
	case op == core.OpAssign:
		cur.Pos = at
		t.syntax("nested assignment not allowed")
		return
	case op == core.OpNone || op.Precedence() <= t.precedence:
		cur.Pos = at
		t.pop()
		t.resume()
		return
	case op == core.OpNot:
		cur.Pos = at
		t.syntax("NOT operator not allowed here")
		return
	}
	t.op = op
	t.push(sExprRightSide)
	t.precedence = op.Precedence()
	t.state = sSubExpression
	t.resume()
}

func (t *Thread) simpleTerm() {
	cur := t.cur
	start := cur.Pos
	var v core.Value
	switch ch := cur.C(); {
	case cur.EOT():
		t.syntax("missing term")
		return
	case ch == '"' || ch == '\'':
		v = cur.ParseStringLiteral()
	case ch == '{' || ch == '[':
		v = cur.ParseJSONLiteral()
	case cur.AtNumber():
		v = cur.ParseNumericLiteral()
	default:
		name, ok := cur.ParseIdentifier()
		if !ok {
			t.syntax("missing term")
			return
		}
		cur.SkipNonCode()
		if cur.NextIf('(') {
			t.identifier = name
			t.fnPos = start
			t.args = nil
			cur.SkipNonCode()
			if cur.NextIf(')') {
				t.state = sFuncExec
				t.resume()
				return
			}
			t.push(sFuncArg)
			t.state = sExpression
			t.resume()
			return
		}
		if !t.skipping {
			v = t.ctx.lookup(name)
		}
	}
	if v.IsError() && v.ErrorKind().Fatal() {
		t.throw(v)
		return
	}
	if t.skipping {
		v = core.NullValue("")
	}
	t.result = v.At(start)
	t.pop()
	t.resume()
}

func (t *Thread) funcArg() {
	cur := t.cur
	t.args = append(t.args, t.result)
	cur.SkipNonCode()
	if cur.NextIf(')') {
		t.state = sFuncExec
		t.resume()
		return
	}
	if cur.NextIf(',') {
		t.push(sFuncArg)
		t.state = sExpression
		t.resume()
		return
	}
	t.syntax("missing comma or closing ')'")
}

func (t *Thread) funcExec() {
	t.state = sTermResult
	if t.skipping {
		t.result = core.NullValue("").At(t.fnPos)
		t.resume()
		return
	}
	fn := t.ctx.function(t.identifier)
	if fn == nil {
		t.result = t.ctx.Registry.UnknownFunction(t.identifier, len(t.args)).At(t.fnPos)
		t.resume()
		return
	}
	pos := t.fnPos
	c := builtins.Invoke(t, fn, t.args, pos, func(v core.Value) {
		t.call = nil
		if !v.IsError() || v.Err().Pos < 0 {
			v = v.At(pos)
		}
		t.result = v
		t.resume()
	})
	if c != nil && !c.Finished() {
		t.call = c
	}
}

// The rest implements builtins.Env.

func (t *Thread) Scheduler() core.Scheduler {
	return t.ctx.Sched
}

func (t *Thread) Mode() core.EvalMode {
	return t.mode
}

func (t *Thread) Geo() *builtins.GeoLocation {
	return t.ctx.Location
}

func (t *Thread) Logger() *zerolog.Logger {
	return t.log()
}

func (t *Thread) LogLevelOffset() int {
	return t.ctx.logOffset
}

func (t *Thread) SetLogLevelOffset(offset int) {
	t.ctx.logOffset = offset
}

func (t *Thread) GetFrozen(v *core.Value) *core.FrozenResult {
	return nil
}

func (t *Thread) NewFreeze(existing *core.FrozenResult, v core.Value, until time.Time, update bool) *core.FrozenResult {
	return nil
}

func (t *Thread) Unfreeze(pos int) bool {
	return false
}

func (t *Thread) UpdateNextEval(at time.Time) {
}

// Eval runs code as a nested script that sees the arguments as arg1,
// arg2, ... plus the constants and functions of this thread's
// context, but not its variables.
func (t *Thread) Eval(code string, args []core.Value, done func(core.Value)) {
	sub := t.ctx.sub(code, args)
	mode := t.mode&^(core.StopAll|core.Concurrently) | core.KeepVars
	child := newThread(sub, code, mode, func(v core.Value) {
		t.child = nil
		if !v.IsOk() && !v.IsNull() {
			v = core.NullValue("eval() error: " + v.Err().Error() + " -> undefined")
		}
		done(v)
	})
	t.child = child
	sub.threads = append(sub.threads, child)
	child.run()
}
