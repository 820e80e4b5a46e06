package risa

import (
	"fmt"
)

// Precedence levels, ascending, per §4.3.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecComma
	PrecAssignment
	PrecTernary
	PrecOr
	PrecAnd
	PrecBitwiseOr
	PrecBitwiseXor
	PrecBitwiseAnd
	PrecEquality
	PrecComparison
	PrecShift
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type prefixFn func(c *Compiler, canAssign bool) byte
type infixFn func(c *Compiler, canAssign bool, left byte) byte

type rule struct {
	prefix     prefixFn
	infix      infixFn
	precedence Precedence
}

var rules map[TokenType]rule

func init() {
	rules = map[TokenType]rule{
		TokLeftParen:          {(*Compiler).compileGroupingOrLambda, (*Compiler).compileCall, PrecCall},
		TokComma:              {nil, (*Compiler).compileComma, PrecComma},
		TokMinus:               {(*Compiler).compileUnary, (*Compiler).compileBinary, PrecTerm},
		TokPlus:                {nil, (*Compiler).compileBinary, PrecTerm},
		TokSlash:               {nil, (*Compiler).compileBinary, PrecFactor},
		TokStar:                {nil, (*Compiler).compileBinary, PrecFactor},
		TokPercent:             {nil, (*Compiler).compileBinary, PrecFactor},
		TokTilde:               {(*Compiler).compileUnary, nil, PrecNone},
		TokQuestion:            {nil, (*Compiler).compileTernary, PrecTernary},
		TokBang:                {(*Compiler).compileUnary, nil, PrecNone},
		TokBangEqual:           {nil, (*Compiler).compileBinary, PrecEquality},
		TokEqualEqual:          {nil, (*Compiler).compileBinary, PrecEquality},
		TokGreater:             {nil, (*Compiler).compileBinary, PrecComparison},
		TokGreaterEqual:        {nil, (*Compiler).compileBinary, PrecComparison},
		TokGreaterGreater:      {nil, (*Compiler).compileBinary, PrecShift},
		TokLess:                {nil, (*Compiler).compileBinary, PrecComparison},
		TokLessEqual:           {nil, (*Compiler).compileBinary, PrecComparison},
		TokLessLess:            {nil, (*Compiler).compileBinary, PrecShift},
		TokAmpersand:           {nil, (*Compiler).compileBinary, PrecBitwiseAnd},
		TokAmpersandAmpersand:  {nil, (*Compiler).compileAnd, PrecAnd},
		TokPipe:                {nil, (*Compiler).compileBinary, PrecBitwiseOr},
		TokPipePipe:            {nil, (*Compiler).compileOr, PrecOr},
		TokCaret:               {nil, (*Compiler).compileBinary, PrecBitwiseXor},
		TokIdentifier:          {(*Compiler).compileIdentifier, nil, PrecNone},
		TokString:              {(*Compiler).compileString, nil, PrecNone},
		TokByte:                {(*Compiler).compileByte, nil, PrecNone},
		TokInt:                 {(*Compiler).compileInt, nil, PrecNone},
		TokFloat:               {(*Compiler).compileFloat, nil, PrecNone},
		TokTrue:                {(*Compiler).compileLiteral, nil, PrecNone},
		TokFalse:               {(*Compiler).compileLiteral, nil, PrecNone},
		TokNull:                {(*Compiler).compileLiteral, nil, PrecNone},
		TokLeftBracket:         {(*Compiler).compileArrayLiteral, (*Compiler).compileIndex, PrecCall},
		TokLeftBrace:           {(*Compiler).compileObjectLiteral, nil, PrecNone},
		TokClone:               {(*Compiler).compileCloneExpr, nil, PrecNone},
	}
}

func getRule(t TokenType) rule {
	if r, ok := rules[t]; ok {
		return r
	}
	return rule{nil, nil, PrecNone}
}

// local is a compile-time slot tracker (§4.3): name, scope depth, the
// register it lives in, and whether an inner closure captured it.
type local struct {
	name     string
	depth    int
	reg      byte
	captured bool
}

type compilerUpvalue struct {
	index   byte
	isLocal bool
}

// leap records a pending break/continue awaiting patch, tagged with the
// loop depth it targets and whether it's a break (jumps past the loop
// end) or a continue (jumps to the loop's post/head).
type leap struct {
	patchAt int
	depth   int
	isBreak bool
}

// Compiler is the single-pass, Pratt-style, register-targeted compiler
// (§4.3). Nested compilers for nested functions/lambdas chain through
// enclosing.
type Compiler struct {
	vm        *VM
	parser    *Parser
	source    string
	enclosing *Compiler

	function *FunctionData
	cluster  *Cluster

	regIndex   int
	locals     []local
	upvalues   []compilerUpvalue
	scopeDepth int

	loopDepth int
	leaps     []leap

	isScript  bool
	replMode  bool
	lastExprReg byte
}

const maxJumpWord = 1<<16 - 1

func newCompiler(vm *VM, parser *Parser, enclosing *Compiler, name *StringData, isScript bool) *Compiler {
	c := &Compiler{
		vm:        vm,
		parser:    parser,
		source:    parser.source,
		enclosing: enclosing,
		function:  &FunctionData{Name: name, Cluster: NewCluster()},
		isScript:  isScript,
	}
	c.cluster = c.function.Cluster
	if enclosing != nil {
		c.replMode = enclosing.replMode
	}
	// The VM places a callee frame's base one slot above the register
	// holding the callee, so register 0 is the first argument: parameters
	// occupy registers 0..arity-1 and locals and temporaries follow.
	// regIndex therefore starts at 0.
	return c
}

// Compile compiles top-level source into a script Function.
func Compile(vm *VM, source string, replMode bool) (*FunctionData, error) {
	var firstErr error
	parser := NewParser(source, func(msg string, tok Token) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s at %s: %s", ErrUnexpectedToken, parser0Location(source, tok), msg)
		}
	})

	c := newCompiler(vm, parser, nil, nil, true)
	c.replMode = replMode

	parser.Advance()
	for !parser.MatchToken(TokEOF) {
		c.compileDeclaration()
		if parser.IsPanicking() {
			parser.Sync()
		}
	}

	c.emitReturn(byte(RegisterNull))
	if parser.HadError {
		return nil, firstErr
	}
	return c.function, nil
}

func parser0Location(source string, tok Token) string {
	line, col := LineColumn(source, tok.Start)
	return fmt.Sprintf("%d:%d", line, col)
}

// ---- scope & register management ----

func (c *Compiler) scopeBegin() { c.scopeDepth++ }

func (c *Compiler) scopeEnd() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		if last.captured {
			c.emitInstr(OpCupval, 0, last.reg, 0, 0)
		}
		c.locals = c.locals[:len(c.locals)-1]
		c.registerFree()
	}
}

func (c *Compiler) registerReserve() (byte, bool) {
	if c.regIndex > 249 {
		c.parser.Error(fmt.Sprintf("%s: too many registers in use", ErrLimitExceeded))
		return 0, false
	}
	reg := byte(c.regIndex)
	c.regIndex++
	return reg, true
}

func (c *Compiler) registerFree() {
	if c.regIndex > 0 {
		c.regIndex--
	}
}

// ---- identifier / local / upvalue resolution ----

func (c *Compiler) addLocal(name string) (byte, bool) {
	if len(c.locals) >= RegisterCount {
		c.parser.Error(fmt.Sprintf("%s: too many locals in scope", ErrLimitExceeded))
		return 0, false
	}
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.parser.Error(fmt.Sprintf("%s: %q already declared in this scope", ErrDuplicateLocal, name))
			return 0, false
		}
	}
	reg, ok := c.registerReserve()
	if !ok {
		return 0, false
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, reg: reg})
	return reg, true
}

// resolveLocal searches innermost-scope-up; returns RegisterNull if absent.
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return RegisterNull
}

// resolveUpvalue recursively searches enclosing compilers, marking the
// captured local and adding a new upvalue entry; returns RegisterNull if
// absent anywhere in the chain.
func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return RegisterNull
	}

	if li := c.enclosing.resolveLocal(name); li != RegisterNull {
		c.enclosing.locals[li].captured = true
		return int(c.addUpvalue(c.enclosing.locals[li].reg, true))
	}

	if ui := c.enclosing.resolveUpvalue(name); ui != RegisterNull {
		return int(c.addUpvalue(byte(ui), false))
	}

	return RegisterNull
}

func (c *Compiler) addUpvalue(index byte, isLocal bool) byte {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return byte(i)
		}
	}
	if len(c.upvalues) >= RegisterCount {
		c.parser.Error(fmt.Sprintf("%s: too many upvalues in function", ErrLimitExceeded))
		return 0
	}
	c.upvalues = append(c.upvalues, compilerUpvalue{index: index, isLocal: isLocal})
	return byte(len(c.upvalues) - 1)
}

// ---- emission helpers ----

func (c *Compiler) currentIndex() uint32 { return c.parser.Previous.Index }

func (c *Compiler) emitByte(b byte) {
	c.cluster.Write(b, c.currentIndex())
}

func (c *Compiler) emitInstr(op OpCode, flags, a, b, cc byte) int {
	at := len(c.cluster.Bytecode)
	c.cluster.WriteInstruction(Encode(op, flags, a, b, cc), c.currentIndex())
	return at
}

func (c *Compiler) emitBlank() int {
	at := len(c.cluster.Bytecode)
	c.cluster.WriteInstruction([4]byte{}, c.currentIndex())
	return at
}

// emitConstant loads value v into a fresh register, choosing CNST or
// CNSTW depending on whether the constant index fits a byte.
func (c *Compiler) emitConstant(v Value) byte {
	dst, ok := c.registerReserve()
	if !ok {
		return 0
	}
	c.emitConstantInto(dst, v)
	return dst
}

func (c *Compiler) emitConstantInto(dst byte, v Value) {
	k := c.cluster.WriteConstant(v)
	if k <= 255 {
		c.emitInstr(OpCnst, 0, dst, byte(k), 0)
	} else if k <= 0xFFFF {
		lo, hi := EncodeBC(uint16(k))
		c.emitInstr(OpCnstw, 0, dst, lo, hi)
	} else {
		c.parser.Error(fmt.Sprintf("%s: constant pool exhausted", ErrLimitExceeded))
	}
}

// emitJump appends a blank placeholder for a forward jump and records its
// byte offset for later patching.
func (c *Compiler) emitJump() int { return c.emitBlank() }

// patchJump overwrites the 4-byte placeholder at 'at' with a JMP/JMPW
// whose distance is measured in instructions from the instruction right
// after the placeholder to the current end of the cluster. Per the
// resolved Open Question (§9), the policy is uniform: always a 4-byte
// placeholder, always all 4 bytes rewritten on patch.
func (c *Compiler) patchJump(at int) {
	distance := (len(c.cluster.Bytecode) - (at + instructionSize)) / instructionSize
	c.patchJumpDistance(at, distance, false)
}

func (c *Compiler) patchJumpDistance(at int, distance int, backward bool) {
	if distance > maxJumpWord {
		c.parser.Error(fmt.Sprintf("%s: jump distance too large", ErrLimitExceeded))
		return
	}
	op := OpJmp
	if backward {
		op = OpBjmp
	}
	var instr [4]byte
	if distance <= 255 {
		instr = Encode(op, 0, byte(distance), 0, 0)
	} else {
		if backward {
			op = OpBjmpw
		} else {
			op = OpJmpw
		}
		lo, hi := EncodeBC(uint16(distance))
		instr = Encode(op, 0, 0, lo, hi)
	}
	copy(c.cluster.Bytecode[at:at+instructionSize], instr[:])
}

// emitBackwardsJump emits a backward jump from the current position to
// 'to' (an instruction start byte offset). Like a forward jump, the
// distance counts from the instruction after the jump, since the VM has
// already advanced past it.
func (c *Compiler) emitBackwardsJump(to int) {
	at := c.emitBlank()
	distance := (at + instructionSize - to) / instructionSize
	c.patchJumpDistance(at, distance, true)
}

func (c *Compiler) emitReturn(src byte) {
	c.emitInstr(OpRet, 0, src, 0, 0)
}

// ---- declarations & statements ----

func (c *Compiler) compileDeclaration() {
	switch {
	case c.parser.MatchToken(TokVar):
		c.compileVarDeclaration()
	case c.parser.MatchToken(TokFunction):
		c.compileFunctionDeclaration()
	default:
		c.compileStatement()
	}
}

func (c *Compiler) compileVarDeclaration() {
	c.parser.Consume(TokIdentifier, "expected variable name")
	name := c.parser.Previous.Lexeme(c.source)

	isGlobal := c.scopeDepth == 0
	var localReg byte
	var globalK int
	if isGlobal {
		globalK = c.cluster.WriteConstant(DenseValue(c.vm.internDense(name)))
	} else {
		localReg, _ = c.addLocal(name)
	}

	var valueReg byte
	if c.parser.MatchToken(TokEqual) {
		valueReg = c.compileExpressionPrec(PrecAssignment)
	} else {
		valueReg, _ = c.registerReserve()
		c.emitInstr(OpNull, 0, valueReg, 0, 0)
	}

	c.parser.Consume(TokSemicolon, "expected ';' after variable declaration")

	if isGlobal {
		if globalK <= 255 {
			c.emitInstr(OpDglob, 0, byte(globalK), valueReg, 0)
		} else {
			c.parser.Error(fmt.Sprintf("%s: too many globals", ErrLimitExceeded))
		}
		c.registerFree()
	} else {
		// valueReg is a fresh register above localReg (the initializer's
		// result, or NULL); move it down into the local's slot.
		if valueReg != localReg {
			c.emitInstr(OpMov, 0, localReg, valueReg, 0)
			c.registerFree()
		}
	}
}

func (c *Compiler) compileFunctionDeclaration() {
	c.parser.Consume(TokIdentifier, "expected function name")
	name := c.parser.Previous.Lexeme(c.source)

	isGlobal := c.scopeDepth == 0
	var localReg byte
	var globalK int
	if isGlobal {
		globalK = c.cluster.WriteConstant(DenseValue(c.vm.internDense(name)))
	} else {
		localReg, _ = c.addLocal(name)
	}

	fnReg := c.compileFunctionBody(name, false)

	if isGlobal {
		c.emitInstr(OpDglob, 0, byte(globalK), fnReg, 0)
		c.registerFree()
	} else if fnReg != localReg {
		c.emitInstr(OpMov, 0, localReg, fnReg, 0)
		c.registerFree()
	}
}

// compileFunctionBody compiles `(params) { body }` (or `=> expr`) into a
// nested Function, then emits it as a constant in the enclosing cluster,
// followed by CLSR + UPVAL descriptors if it captured anything. Returns
// the register holding the resulting closure/function.
func (c *Compiler) compileFunctionBody(name string, isLambda bool) byte {
	nameStr := c.vm.internDense(name)
	inner := newCompiler(c.vm, c.parser, c, nameStr, false)
	inner.scopeBegin()

	// A lambda's '(' was already consumed by compileGroupingOrLambda.
	if !isLambda {
		c.parser.Consume(TokLeftParen, "expected '(' after function name")
	}
	arity := 0
	if !c.parser.Check(TokRightParen) {
		for {
			arity++
			if arity > 249 {
				c.parser.Error(fmt.Sprintf("%s: too many parameters", ErrLimitExceeded))
			}
			c.parser.Consume(TokIdentifier, "expected parameter name")
			inner.addLocal(c.parser.Previous.Lexeme(c.source))
			if !c.parser.MatchToken(TokComma) {
				break
			}
		}
	}
	c.parser.Consume(TokRightParen, "expected ')' after parameters")
	inner.function.Arity = arity

	if c.parser.MatchToken(TokEqualGreater) {
		reg := inner.compileExpressionPrec(PrecAssignment)
		// A lambda is an expression: its ';' belongs to the enclosing statement.
		if !isLambda {
			inner.parser.Consume(TokSemicolon, "expected ';' after arrow function body")
		}
		inner.emitReturn(reg)
	} else {
		c.parser.Consume(TokLeftBrace, "expected '{' before function body")
		inner.compileBlockBody()
		inner.emitReturn(byte(RegisterNull))
	}

	fnDense := &Dense{Kind: DenseFunction, Payload: inner.function}
	dst, _ := c.registerReserve()
	c.emitConstantInto(dst, DenseValue(fnDense))

	if len(inner.upvalues) > 0 {
		c.emitInstr(OpClsr, 0, dst, dst, byte(len(inner.upvalues)))
		for _, uv := range inner.upvalues {
			isLocal := byte(0)
			if uv.isLocal {
				isLocal = 1
			}
			c.emitInstr(OpUpval, 0, uv.index, isLocal, 0)
		}
	}

	return dst
}

func (c *Compiler) compileBlockBody() {
	for !c.parser.Check(TokRightBrace) && !c.parser.Check(TokEOF) {
		c.compileDeclaration()
		if c.parser.IsPanicking() {
			c.parser.Sync()
		}
	}
	c.parser.Consume(TokRightBrace, "expected '}' after block")
}

func (c *Compiler) compileStatement() {
	switch {
	case c.parser.MatchToken(TokIf):
		c.compileIfStatement()
	case c.parser.MatchToken(TokWhile):
		c.compileWhileStatement()
	case c.parser.MatchToken(TokFor):
		c.compileForStatement()
	case c.parser.MatchToken(TokReturn):
		c.compileReturnStatement()
	case c.parser.MatchToken(TokContinue):
		c.compileLeapStatement(false)
	case c.parser.MatchToken(TokBreak):
		c.compileLeapStatement(true)
	case c.parser.MatchToken(TokLeftBrace):
		c.scopeBegin()
		c.compileBlockBody()
		c.scopeEnd()
	default:
		c.compileExpressionStatement()
	}
}

func (c *Compiler) compileIfStatement() {
	c.parser.Consume(TokLeftParen, "expected '(' after 'if'")
	condReg := c.compileExpression()
	c.parser.Consume(TokRightParen, "expected ')' after condition")

	c.emitInstr(OpNtest, 0, condReg, 0, 0)
	c.registerFree()
	thenJump := c.emitJump()

	c.compileStatement()

	if c.parser.MatchToken(TokElse) {
		elseJump := c.emitJump()
		c.patchJump(thenJump)
		c.compileStatement()
		c.patchJump(elseJump)
	} else {
		c.patchJump(thenJump)
	}
}

func (c *Compiler) compileWhileStatement() {
	c.loopDepth++
	loopStart := len(c.cluster.Bytecode)

	c.parser.Consume(TokLeftParen, "expected '(' after 'while'")
	condReg := c.compileExpression()
	c.parser.Consume(TokRightParen, "expected ')' after condition")

	c.emitInstr(OpNtest, 0, condReg, 0, 0)
	c.registerFree()
	exitJump := c.emitJump()

	c.compileStatement()

	continueTarget := len(c.cluster.Bytecode)
	c.emitBackwardsJump(loopStart)
	c.patchJump(exitJump)

	c.patchLeaps(exitJump+instructionSize, continueTarget)
	c.loopDepth--
}

func (c *Compiler) compileForStatement() {
	c.scopeBegin()
	c.loopDepth++

	c.parser.Consume(TokLeftParen, "expected '(' after 'for'")

	if c.parser.MatchToken(TokSemicolon) {
		// no initializer
	} else if c.parser.MatchToken(TokVar) {
		c.compileVarDeclaration()
	} else {
		c.compileExpressionStatement()
	}

	loopStart := len(c.cluster.Bytecode)
	exitJump := -1
	if !c.parser.Check(TokSemicolon) {
		condReg := c.compileExpression()
		c.emitInstr(OpNtest, 0, condReg, 0, 0)
		c.registerFree()
		exitJump = c.emitJump()
	}
	c.parser.Consume(TokSemicolon, "expected ';' after loop condition")

	bodyJump := -1
	postStart := -1
	if !c.parser.Check(TokRightParen) {
		bodyJump = c.emitJump()
		postStart = len(c.cluster.Bytecode)
		postReg := c.compileExpression()
		c.registerFree()
		_ = postReg
		c.emitBackwardsJump(loopStart)
		loopStart = postStart
		c.patchJump(bodyJump)
	}
	c.parser.Consume(TokRightParen, "expected ')' after for clauses")

	c.compileStatement()
	continueTarget := len(c.cluster.Bytecode)
	c.emitBackwardsJump(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
	}
	c.patchLeaps(len(c.cluster.Bytecode), continueTarget)

	c.loopDepth--
	c.scopeEnd()
}

// patchLeaps resolves any pending break/continue recorded at or below
// the current loop depth: breaks jump forward to the current end of the
// cluster, so callers run this once the loop's exit point is reached
// (breakTarget is not used); continues jump to continueTarget (the
// post/head re-test point).
func (c *Compiler) patchLeaps(breakTarget, continueTarget int) {
	remaining := c.leaps[:0]
	for _, lp := range c.leaps {
		if lp.depth < c.loopDepth {
			remaining = append(remaining, lp)
			continue
		}
		if lp.isBreak {
			c.patchJump(lp.patchAt)
			_ = breakTarget
		} else {
			distance := (lp.patchAt + instructionSize - continueTarget) / instructionSize
			c.patchJumpDistance(lp.patchAt, distance, true)
		}
	}
	c.leaps = remaining
}

func (c *Compiler) compileLeapDepth() int {
	depth := 1
	if c.parser.Check(TokInt) {
		c.parser.Advance()
		n := 0
		fmt.Sscanf(c.parser.Previous.Lexeme(c.source), "%d", &n)
		depth = n
		if depth == 0 {
			depth = c.loopDepth
		}
	}
	return depth
}

func (c *Compiler) compileLeapStatement(isBreak bool) {
	if c.loopDepth == 0 {
		kind := "continue"
		if isBreak {
			kind = "break"
		}
		c.parser.Error(fmt.Sprintf("%s outside of a loop", kind))
	}

	depth := c.compileLeapDepth()
	c.parser.Consume(TokSemicolon, "expected ';' after leap statement")

	if len(c.leaps) >= RegisterCount {
		c.parser.Error(fmt.Sprintf("%s: too many pending leaps", ErrLimitExceeded))
		return
	}

	targetDepth := c.loopDepth - depth + 1
	at := c.emitBlank()
	c.leaps = append(c.leaps, leap{patchAt: at, depth: targetDepth, isBreak: isBreak})
}

func (c *Compiler) compileReturnStatement() {
	if c.isScript && c.enclosing == nil {
		c.parser.Error(ErrReturnAtTopLevel.Error())
	}

	if c.parser.MatchToken(TokSemicolon) {
		c.emitReturn(byte(RegisterNull))
		return
	}

	reg := c.compileExpression()
	c.parser.Consume(TokSemicolon, "expected ';' after return value")
	c.emitReturn(reg)
	c.registerFree()
}

func (c *Compiler) compileExpressionStatement() {
	reg := c.compileExpression()
	c.parser.Consume(TokSemicolon, "expected ';' after expression")
	if c.replMode && c.scopeDepth == 0 {
		c.emitInstr(OpAcc, 0, reg, 0, 0)
	}
	c.registerFree()
}

// ---- expressions ----

func (c *Compiler) compileExpression() byte {
	return c.compileExpressionPrec(PrecAssignment)
}

func (c *Compiler) compileExpressionPrec(min Precedence) byte {
	return c.compileExpressionPrecedence(min)
}

func (c *Compiler) compileExpressionPrecedence(precedence Precedence) byte {
	c.parser.Advance()
	r := getRule(c.parser.Previous.Type)
	if r.prefix == nil {
		c.parser.Error(fmt.Sprintf("%s: expected expression", ErrUnexpectedToken))
		reg, _ := c.registerReserve()
		c.emitInstr(OpNull, 0, reg, 0, 0)
		return reg
	}

	canAssign := precedence <= PrecAssignment
	left := r.prefix(c, canAssign)

	for {
		nr := getRule(c.parser.Current.Type)
		if precedence > nr.precedence {
			break
		}
		c.parser.Advance()
		left = nr.infix(c, canAssign, left)
	}

	if canAssign && c.parser.Check(TokEqual) {
		c.parser.Error(ErrInvalidAssignmentTarget.Error())
	}

	return left
}

func (c *Compiler) compileComma(canAssign bool, left byte) byte {
	c.registerFree()
	return c.compileExpressionPrecedence(PrecComma + 1)
}

func (c *Compiler) compileByte(canAssign bool) byte {
	lex := c.parser.Previous.Lexeme(c.source)
	lex = lex[:len(lex)-1] // drop 'b' suffix
	var n uint64
	fmt.Sscanf(lex, "%d", &n)
	return c.emitConstant(ByteValue(byte(n)))
}

func (c *Compiler) compileInt(canAssign bool) byte {
	lex := c.parser.Previous.Lexeme(c.source)
	var n int64
	fmt.Sscanf(lex, "%d", &n)
	return c.emitConstant(IntValue(n))
}

func (c *Compiler) compileFloat(canAssign bool) byte {
	lex := c.parser.Previous.Lexeme(c.source)
	if lex[len(lex)-1] == 'f' || lex[len(lex)-1] == 'F' {
		lex = lex[:len(lex)-1]
	}
	var f float64
	fmt.Sscanf(lex, "%g", &f)
	return c.emitConstant(FloatValue(f))
}

func (c *Compiler) compileString(canAssign bool) byte {
	s := c.parser.Previous.StringValue(c.source)
	return c.emitConstant(DenseValue(c.vm.internDense(s)))
}

func (c *Compiler) compileLiteral(canAssign bool) byte {
	reg, _ := c.registerReserve()
	switch c.parser.Previous.Type {
	case TokTrue:
		c.emitInstr(OpTrue, 0, reg, 0, 0)
	case TokFalse:
		c.emitInstr(OpFalse, 0, reg, 0, 0)
	case TokNull:
		c.emitInstr(OpNull, 0, reg, 0, 0)
	}
	return reg
}

func (c *Compiler) compileIdentifier(canAssign bool) byte {
	name := c.parser.Previous.Lexeme(c.source)

	var opGet, opSet OpCode
	var arg int

	if li := c.resolveLocal(name); li != RegisterNull {
		opGet, opSet = OpMov, OpMov
		arg = int(c.locals[li].reg)
	} else if ui := c.resolveUpvalue(name); ui != RegisterNull {
		opGet, opSet = OpGupval, OpSupval
		arg = ui
	} else {
		opGet, opSet = OpGglob, OpSglob
		arg = c.cluster.WriteConstant(DenseValue(c.vm.internDense(name)))
	}

	if canAssign && c.matchAssignOp() {
		return c.compileAssignment(opSet, arg, opGet)
	}

	dst, _ := c.registerReserve()
	switch opGet {
	case OpMov:
		c.emitInstr(OpMov, 0, dst, byte(arg), 0)
	case OpGupval:
		c.emitInstr(OpGupval, 0, dst, byte(arg), 0)
	case OpGglob:
		if arg <= 255 {
			c.emitInstr(OpGglob, 0, dst, byte(arg), 0)
		} else {
			c.parser.Error(fmt.Sprintf("%s: too many globals", ErrLimitExceeded))
		}
	}
	return dst
}

// matchAssignOp consumes a plain '=' or a compound assignment operator,
// remembering which it was for compileAssignment.
var pendingCompoundOp TokenType

func (c *Compiler) matchAssignOp() bool {
	switch c.parser.Current.Type {
	case TokEqual, TokPlusEqual, TokMinusEqual, TokStarEqual, TokSlashEqual,
		TokPercentEqual, TokCaretEqual, TokAmpersandEqual, TokPipeEqual,
		TokLessLessEqual, TokGreaterGreaterEqual:
		pendingCompoundOp = c.parser.Current.Type
		c.parser.Advance()
		return true
	default:
		return false
	}
}

func compoundBinOp(t TokenType) (OpCode, bool) {
	switch t {
	case TokPlusEqual:
		return OpAdd, true
	case TokMinusEqual:
		return OpSub, true
	case TokStarEqual:
		return OpMul, true
	case TokSlashEqual:
		return OpDiv, true
	case TokPercentEqual:
		return OpMod, true
	case TokCaretEqual:
		return OpBxor, true
	case TokAmpersandEqual:
		return OpBand, true
	case TokPipeEqual:
		return OpBor, true
	case TokLessLessEqual:
		return OpShl, true
	case TokGreaterGreaterEqual:
		return OpShr, true
	default:
		return 0, false
	}
}

func (c *Compiler) compileAssignment(opSet OpCode, arg int, opGet OpCode) byte {
	op := pendingCompoundOp
	valueReg := c.compileExpressionPrec(PrecAssignment)

	if binOp, isCompound := compoundBinOp(op); isCompound {
		combined, _ := c.registerReserve()
		// left operand is the current value of the target
		switch opGet {
		case OpMov:
			c.emitInstr(binOp, 0, combined, byte(arg), valueReg)
		case OpGupval:
			tmp, _ := c.registerReserve()
			c.emitInstr(OpGupval, 0, tmp, byte(arg), 0)
			c.emitInstr(binOp, 0, combined, tmp, valueReg)
			c.registerFree()
		case OpGglob:
			tmp, _ := c.registerReserve()
			c.emitInstr(OpGglob, 0, tmp, byte(arg), 0)
			c.emitInstr(binOp, 0, combined, tmp, valueReg)
			c.registerFree()
		}
		c.registerFree() // valueReg
		valueReg = combined
	}

	switch opSet {
	case OpMov:
		c.emitInstr(OpMov, 0, byte(arg), valueReg, 0)
	case OpSupval:
		c.emitInstr(OpSupval, 0, byte(arg), valueReg, 0)
	case OpSglob:
		if arg <= 255 {
			c.emitInstr(OpSglob, 0, byte(arg), valueReg, 0)
		} else {
			c.parser.Error(fmt.Sprintf("%s: too many globals", ErrLimitExceeded))
		}
	}
	return valueReg
}

func (c *Compiler) compileUnary(canAssign bool) byte {
	op := c.parser.Previous.Type
	srcReg := c.compileExpressionPrecedence(PrecUnary)
	dst := srcReg // the result is folded into the operand's register

	switch op {
	case TokMinus:
		c.emitInstr(OpNeg, 0, dst, srcReg, 0)
	case TokBang:
		c.emitInstr(OpNot, 0, dst, srcReg, 0)
	case TokTilde:
		c.emitInstr(OpBnot, 0, dst, srcReg, 0)
	}
	return dst
}

func binaryOpFor(t TokenType) OpCode {
	switch t {
	case TokPlus:
		return OpAdd
	case TokMinus:
		return OpSub
	case TokStar:
		return OpMul
	case TokSlash:
		return OpDiv
	case TokPercent:
		return OpMod
	case TokLessLess:
		return OpShl
	case TokGreaterGreater:
		return OpShr
	case TokAmpersand:
		return OpBand
	case TokCaret:
		return OpBxor
	case TokPipe:
		return OpBor
	case TokLess:
		return OpLt
	case TokLessEqual:
		return OpLte
	case TokEqualEqual:
		return OpEq
	case TokBangEqual:
		return OpNeq
	default:
		return OpAdd
	}
}

func (c *Compiler) compileBinary(canAssign bool, left byte) byte {
	op := c.parser.Previous.Type
	r := getRule(op)
	right := c.compileExpressionPrecedence(r.precedence + 1)

	// There is no GT/GTE opcode (§4.4): a > b compiles to LT(b, a) and
	// a >= b to LTE(b, a).
	// The result takes left's slot, which stays reserved; only right's
	// register is released.
	switch op {
	case TokGreater:
		c.emitInstr(OpLt, 0, left, right, left)
	case TokGreaterEqual:
		c.emitInstr(OpLte, 0, left, right, left)
	default:
		c.emitInstr(binaryOpFor(op), 0, left, left, right)
	}
	c.registerFree() // right
	return left
}

func (c *Compiler) compileTernary(canAssign bool, cond byte) byte {
	// Per the resolved Open Question: both branches compile into the
	// SAME destination register (the one reserved for the condition,
	// which is freed and re-reserved as the shared result slot).
	c.emitInstr(OpNtest, 0, cond, 0, 0)
	c.registerFree()
	thenJump := c.emitJump()

	dst, _ := c.registerReserve()
	thenReg := c.compileExpressionPrec(PrecAssignment)
	if thenReg != dst {
		c.emitInstr(OpMov, 0, dst, thenReg, 0)
	}
	c.registerFree()

	elseJump := c.emitJump()
	c.patchJump(thenJump)

	c.parser.Consume(TokColon, "expected ':' in ternary expression")
	elseReg := c.compileExpressionPrec(PrecAssignment)
	if elseReg != dst {
		c.emitInstr(OpMov, 0, dst, elseReg, 0)
	}
	c.registerFree()
	c.patchJump(elseJump)

	return dst
}

func (c *Compiler) compileAnd(canAssign bool, left byte) byte {
	// Short circuit to the (falsy) left value without evaluating right.
	c.emitInstr(OpNtest, 0, left, 0, 0)
	endJump := c.emitJump()
	right := c.compileExpressionPrecedence(PrecAnd + 1)
	if right != left {
		c.emitInstr(OpMov, 0, left, right, 0)
		c.registerFree()
	}
	c.patchJump(endJump)
	return left
}

func (c *Compiler) compileOr(canAssign bool, left byte) byte {
	// Short circuit to the (truthy) left value without evaluating right.
	c.emitInstr(OpTest, 0, left, 0, 0)
	endJump := c.emitJump()
	right := c.compileExpressionPrecedence(PrecOr + 1)
	if right != left {
		c.emitInstr(OpMov, 0, left, right, 0)
		c.registerFree()
	}
	c.patchJump(endJump)
	return left
}

func (c *Compiler) compileGroupingOrLambda(canAssign bool) byte {
	// Disambiguate `(expr)` from `(params) => expr` by scanning ahead:
	// an empty `()`, or an identifier list followed by `)' then `=>`,
	// is a lambda.
	if c.looksLikeLambdaParams() {
		return c.compileLambda()
	}

	reg := c.compileExpression()
	c.parser.Consume(TokRightParen, "expected ')' after expression")
	return reg
}

func (c *Compiler) looksLikeLambdaParams() bool {
	save := *c.parser.lexer
	savedCur, savedPrev := c.parser.Current, c.parser.Previous

	depth := 1
	if c.parser.Current.Type == TokRightParen {
		// `()`: the closing paren is already the current token.
		depth = 0
	}
	isLambda := false
	for depth > 0 {
		tok := c.parser.lexer.Next()
		switch tok.Type {
		case TokLeftParen:
			depth++
		case TokRightParen:
			depth--
		case TokEOF:
			depth = 0
		}
	}
	next := c.parser.lexer.Next()
	if next.Type == TokEqualGreater {
		isLambda = true
	}

	*c.parser.lexer = save
	c.parser.Current, c.parser.Previous = savedCur, savedPrev
	return isLambda
}

func (c *Compiler) compileLambda() byte {
	return c.compileFunctionBody("", true)
}

func (c *Compiler) compileCloneExpr(canAssign bool) byte {
	srcReg := c.compileExpressionPrecedence(PrecUnary)
	dst, _ := c.registerReserve()
	c.emitInstr(OpClone, 0, dst, srcReg, 0)
	c.registerFree()
	return dst
}

func (c *Compiler) compileCall(canAssign bool, callee byte) byte {
	argc := c.compileArguments()
	c.emitInstr(OpCall, 0, callee, byte(argc), 0)
	for i := 0; i < argc; i++ {
		c.registerFree()
	}
	return callee
}

func (c *Compiler) compileArguments() int {
	argc := 0
	if !c.parser.Check(TokRightParen) {
		for {
			c.compileExpressionPrec(PrecAssignment + 1)
			argc++
			if argc > 249 {
				c.parser.Error(fmt.Sprintf("%s: too many arguments", ErrLimitExceeded))
			}
			if !c.parser.MatchToken(TokComma) {
				break
			}
		}
	}
	c.parser.Consume(TokRightParen, "expected ')' after arguments")
	return argc
}

func (c *Compiler) compileArrayLiteral(canAssign bool) byte {
	dst, _ := c.registerReserve()
	c.emitInstr(OpArr, 0, dst, 0, 0)

	if !c.parser.Check(TokRightBracket) {
		for {
			valReg := c.compileExpressionPrec(PrecAssignment + 1)
			c.emitInstr(OpParr, 0, dst, valReg, 0)
			c.registerFree()
			if !c.parser.MatchToken(TokComma) {
				break
			}
		}
	}
	c.parser.Consume(TokRightBracket, "expected ']' after array literal")
	return dst
}

func (c *Compiler) compileObjectLiteral(canAssign bool) byte {
	dst, _ := c.registerReserve()
	c.emitInstr(OpObj, 0, dst, 0, 0)

	if !c.parser.Check(TokRightBrace) {
		for {
			var keyName string
			if c.parser.Check(TokString) {
				c.parser.Advance()
				keyName = c.parser.Previous.StringValue(c.source)
			} else {
				c.parser.Consume(TokIdentifier, "expected object key")
				keyName = c.parser.Previous.Lexeme(c.source)
			}
			c.parser.Consume(TokColon, "expected ':' after object key")

			keyK := c.cluster.WriteConstant(DenseValue(c.vm.internDense(keyName)))
			valReg := c.compileExpressionPrec(PrecAssignment + 1)

			if keyK <= 255 {
				c.emitInstr(OpSet, TypeFlagLeftConst, dst, byte(keyK), valReg)
			} else {
				c.parser.Error(fmt.Sprintf("%s: too many constants", ErrLimitExceeded))
			}
			c.registerFree()

			if !c.parser.MatchToken(TokComma) {
				break
			}
		}
	}
	c.parser.Consume(TokRightBrace, "expected '}' after object literal")
	return dst
}

func (c *Compiler) compileIndex(canAssign bool, collection byte) byte {
	keyReg := c.compileExpression()
	c.parser.Consume(TokRightBracket, "expected ']' after index")

	if canAssign && c.matchAssignOp() {
		op := pendingCompoundOp
		valueReg := c.compileExpressionPrec(PrecAssignment)

		if binOp, isCompound := compoundBinOp(op); isCompound {
			cur, _ := c.registerReserve()
			c.emitInstr(OpGet, 0, cur, collection, keyReg)
			combined, _ := c.registerReserve()
			c.emitInstr(binOp, 0, combined, cur, valueReg)
			c.registerFree()
			c.registerFree()
			c.emitInstr(OpSet, 0, collection, keyReg, combined)
			c.registerFree() // valueReg
			c.registerFree() // keyReg
			return combined
		}

		c.emitInstr(OpSet, 0, collection, keyReg, valueReg)
		c.registerFree() // valueReg
		c.registerFree() // keyReg
		return valueReg
	}

	dst, _ := c.registerReserve()
	c.emitInstr(OpGet, 0, dst, collection, keyReg)
	c.registerFree() // keyReg
	return dst
}
