package dfb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/host"
)

// Reg identifies a register inside one function under construction.
type Reg int

// Builder assembles a DFB program image. It is the companion of Parse,
// used by tests and by tooling that generates program fixtures.
type Builder struct {
	strings   []string
	stringIdx map[string]uint32
	types     []uint32
	typeIdx   map[string]uint32
	kernels   []uint32
	kernelIdx map[string]uint32
	funcs     []*FunctionBuilder
	expects   []diag.Expectation
}

// NewBuilder creates an empty program builder.
func NewBuilder() *Builder {
	return &Builder{
		stringIdx: make(map[string]uint32),
		typeIdx:   make(map[string]uint32),
		kernelIdx: make(map[string]uint32),
	}
}

func (b *Builder) intern(s string) uint32 {
	if idx, ok := b.stringIdx[s]; ok {
		return idx
	}
	idx := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.stringIdx[s] = idx
	return idx
}

func (b *Builder) typeRef(name string) uint32 {
	if idx, ok := b.typeIdx[name]; ok {
		return idx
	}
	idx := uint32(len(b.types))
	b.types = append(b.types, b.intern(name))
	b.typeIdx[name] = idx
	return idx
}

func (b *Builder) kernelRef(name string) uint32 {
	if idx, ok := b.kernelIdx[name]; ok {
		return idx
	}
	idx := uint32(len(b.kernels))
	b.kernels = append(b.kernels, b.intern(name))
	b.kernelIdx[name] = idx
	return idx
}

// Function starts a new function. Argument types claim the first
// registers; use ArgReg to reference them.
func (b *Builder) Function(name string, argTypes, resultTypes []string) *FunctionBuilder {
	fb := &FunctionBuilder{
		b:       b,
		nameIdx: b.intern(name),
		numRegs: len(argTypes),
	}
	for _, t := range argTypes {
		fb.argTypes = append(fb.argTypes, b.typeRef(t))
	}
	for _, t := range resultTypes {
		fb.resultTypes = append(fb.resultTypes, b.typeRef(t))
	}
	b.funcs = append(b.funcs, fb)
	return fb
}

// ExpectError declares that running (or loading) this program emits an
// error diagnostic containing msg at the given line.
func (b *Builder) ExpectError(line int, msg string) {
	b.expects = append(b.expects, diag.Expectation{
		Severity: diag.SeverityError,
		Line:     line,
		Message:  msg,
	})
}

// ExpectWarning declares an expected warning diagnostic.
func (b *Builder) ExpectWarning(line int, msg string) {
	b.expects = append(b.expects, diag.Expectation{
		Severity: diag.SeverityWarning,
		Line:     line,
		Message:  msg,
	})
}

// FunctionBuilder accumulates one function body.
type FunctionBuilder struct {
	b           *Builder
	nameIdx     uint32
	argTypes    []uint32
	resultTypes []uint32
	numRegs     int
	resultRegs  []Reg
	ops         []encodedOp
}

type encodedOp struct {
	kernelIdx uint32
	line, col int
	operands  []Reg
	results   []Reg
	attrs     []host.Attribute
}

// ArgReg returns the register holding argument i.
func (fb *FunctionBuilder) ArgReg(i int) Reg {
	if i < 0 || i >= len(fb.argTypes) {
		panic(fmt.Sprintf("dfb: argument %d out of range", i))
	}
	return Reg(i)
}

// NewReg allocates a fresh register. Exactly one op must produce it.
func (fb *FunctionBuilder) NewReg() Reg {
	r := Reg(fb.numRegs)
	fb.numRegs++
	return r
}

// Op appends an operation at the given source line/column.
func (fb *FunctionBuilder) Op(kernel string, line, col int, operands, results []Reg, attrs ...host.Attribute) {
	for i, a := range attrs {
		// String payloads go through the string table; intern now, while
		// the table is still being built.
		if a.Kind == host.AttrStr {
			attrs[i].Int = int64(fb.b.intern(a.Str))
		}
	}
	fb.ops = append(fb.ops, encodedOp{
		kernelIdx: fb.b.kernelRef(kernel),
		line:      line,
		col:       col,
		operands:  operands,
		results:   results,
		attrs:     attrs,
	})
}

// Return designates the registers holding the function's results, one per
// declared result type.
func (fb *FunctionBuilder) Return(regs ...Reg) {
	if len(regs) != len(fb.resultTypes) {
		panic(fmt.Sprintf("dfb: %d result registers for %d result types", len(regs), len(fb.resultTypes)))
	}
	fb.resultRegs = regs
}

// Build encodes the program image.
func (b *Builder) Build() []byte {
	var out bytes.Buffer
	out.Write(Magic[:])
	var ver [4]byte
	binary.LittleEndian.PutUint32(ver[:], FormatVersion)
	out.Write(ver[:])

	writeSection(&out, sectionStrings, func(w *bytes.Buffer) {
		writeLEBu(w, uint32(len(b.strings)))
		for _, s := range b.strings {
			writeLEBu(w, uint32(len(s)))
			w.WriteString(s)
		}
	})
	writeSection(&out, sectionTypes, func(w *bytes.Buffer) {
		writeLEBu(w, uint32(len(b.types)))
		for _, idx := range b.types {
			writeLEBu(w, idx)
		}
	})
	writeSection(&out, sectionKernels, func(w *bytes.Buffer) {
		writeLEBu(w, uint32(len(b.kernels)))
		for _, idx := range b.kernels {
			writeLEBu(w, idx)
		}
	})
	writeSection(&out, sectionFunctions, func(w *bytes.Buffer) {
		writeLEBu(w, uint32(len(b.funcs)))
		for _, fb := range b.funcs {
			fb.encode(w)
		}
	})
	if len(b.expects) > 0 {
		writeSection(&out, sectionExpects, func(w *bytes.Buffer) {
			writeLEBu(w, uint32(len(b.expects)))
			for _, e := range b.expects {
				w.WriteByte(byte(e.Severity))
				writeLEBu(w, uint32(e.Line))
				writeLEBu(w, uint32(len(e.Message)))
				w.WriteString(e.Message)
			}
		})
	}
	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, encode func(*bytes.Buffer)) {
	var payload bytes.Buffer
	encode(&payload)
	out.WriteByte(id)
	writeLEBu(out, uint32(payload.Len()))
	out.Write(payload.Bytes())
}

func (fb *FunctionBuilder) encode(w *bytes.Buffer) {
	writeLEBu(w, fb.nameIdx)
	writeLEBu(w, uint32(len(fb.argTypes)))
	for _, t := range fb.argTypes {
		writeLEBu(w, t)
	}
	writeLEBu(w, uint32(len(fb.resultTypes)))
	for _, t := range fb.resultTypes {
		writeLEBu(w, t)
	}
	writeLEBu(w, uint32(fb.numRegs))
	if len(fb.resultRegs) != len(fb.resultTypes) {
		panic("dfb: Return not called with one register per result type")
	}
	for _, r := range fb.resultRegs {
		writeLEBu(w, uint32(r))
	}
	writeLEBu(w, uint32(len(fb.ops)))
	for _, op := range fb.ops {
		writeLEBu(w, op.kernelIdx)
		writeLEBu(w, uint32(op.line))
		writeLEBu(w, uint32(op.col))
		writeLEBu(w, uint32(len(op.operands)))
		for _, r := range op.operands {
			writeLEBu(w, uint32(r))
		}
		writeLEBu(w, uint32(len(op.results)))
		for _, r := range op.results {
			writeLEBu(w, uint32(r))
		}
		writeLEBu(w, uint32(len(op.attrs)))
		for _, a := range op.attrs {
			encodeAttr(w, a)
		}
	}
}

func encodeAttr(w *bytes.Buffer, a host.Attribute) {
	switch a.Kind {
	case host.AttrI1:
		w.WriteByte(attrTagI1)
		if a.Bool {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case host.AttrI32:
		w.WriteByte(attrTagI32)
		writeLEBs(w, int32(a.Int))
	case host.AttrI64:
		w.WriteByte(attrTagI64)
		writeLEBs64(w, a.Int)
	case host.AttrF32:
		w.WriteByte(attrTagF32)
		writeFloat32(w, float32(a.Float))
	case host.AttrF64:
		w.WriteByte(attrTagF64)
		writeFloat64(w, a.Float)
	case host.AttrStr:
		w.WriteByte(attrTagStr)
		writeLEBu(w, uint32(a.Int))
	default:
		panic(fmt.Sprintf("dfb: unknown attribute kind %d", a.Kind))
	}
}

// Attribute constructors used with FunctionBuilder.Op.

// I1Attr builds a boolean attribute.
func I1Attr(v bool) host.Attribute { return host.Attribute{Kind: host.AttrI1, Bool: v} }

// I32Attr builds a 32-bit integer attribute.
func I32Attr(v int32) host.Attribute { return host.Attribute{Kind: host.AttrI32, Int: int64(v)} }

// I64Attr builds a 64-bit integer attribute.
func I64Attr(v int64) host.Attribute { return host.Attribute{Kind: host.AttrI64, Int: v} }

// F32Attr builds a 32-bit float attribute.
func F32Attr(v float32) host.Attribute { return host.Attribute{Kind: host.AttrF32, Float: float64(v)} }

// F64Attr builds a 64-bit float attribute.
func F64Attr(v float64) host.Attribute { return host.Attribute{Kind: host.AttrF64, Float: v} }

// StrAttr builds a string attribute.
func StrAttr(v string) host.Attribute { return host.Attribute{Kind: host.AttrStr, Str: v} }
