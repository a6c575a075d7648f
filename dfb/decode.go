package dfb

import (
	"bytes"
	"fmt"

	"github.com/flowrt/flow-runtime/alloc"
	"github.com/flowrt/flow-runtime/diag"
	"github.com/flowrt/flow-runtime/errors"
	"github.com/flowrt/flow-runtime/host"
)

// Parse decodes a DFB program, binding every op to a kernel in the
// registry and copying the input into allocator-owned storage. A
// successfully parsed program counts as one live object in acct until
// Close; a nil acct skips the accounting.
//
// On any failure Parse emits an error diagnostic through handler and
// returns a nil program, with nothing charged to acct. Callers must not
// execute anything after a nil result; a malformed input may be an
// intentional negative test whose expected diagnostics are checked at
// the end of the run.
func Parse(data []byte, registry *host.KernelRegistry, handler diag.Handler, allocator alloc.Allocator, acct *host.Accounting) (*Program, error) {
	p, err := parse(data, registry, allocator)
	if err != nil {
		if handler != nil {
			handler(diag.Diagnostic{
				Severity: diag.SeverityError,
				Message:  err.Error(),
			})
		}
		return nil, errors.Load("parse program", err)
	}
	if acct != nil {
		p.acct = acct
		acct.AddObject()
	}
	return p, nil
}

type decoder struct {
	r       *bytes.Reader
	strings []string
	kernels []string
	bound   []host.Kernel
}

func parse(data []byte, registry *host.KernelRegistry, allocator alloc.Allocator) (_ *Program, err error) {
	if len(data) < 8 || !bytes.Equal(data[:4], Magic[:]) {
		return nil, fmt.Errorf("invalid DFB magic number")
	}
	version := uint32(data[4]) | uint32(data[5])<<8 | uint32(data[6])<<16 | uint32(data[7])<<24
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported DFB version %d", version)
	}

	// The program owns a private copy of its bytes so later mutation of
	// the caller's buffer cannot alias decoded state. On failure the
	// storage goes back to the allocator; a rejected program must leave
	// no trace in the run's resource accounting.
	storage := allocator.Allocate(len(data))
	copy(storage, data)
	defer func() {
		if err != nil {
			allocator.Deallocate(storage)
		}
	}()

	p := &Program{
		allocator: allocator,
		data:      storage,
		byName:    make(map[string]*Function),
	}
	d := &decoder{r: bytes.NewReader(storage[8:])}

	var lastSection byte
	for d.r.Len() > 0 {
		id, err := d.r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("section header: %w", err)
		}
		if id <= lastSection {
			return nil, fmt.Errorf("section %d appears out of order", id)
		}
		lastSection = id

		size, err := readLEBu(d.r)
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		if int(size) > d.r.Len() {
			return nil, fmt.Errorf("section %d truncated: %d bytes declared, %d remain", id, size, d.r.Len())
		}
		payload := make([]byte, size)
		if _, err := d.r.Read(payload); err != nil {
			return nil, fmt.Errorf("section %d payload: %w", id, err)
		}
		sr := bytes.NewReader(payload)

		switch id {
		case sectionStrings:
			err = d.parseStrings(sr)
		case sectionTypes:
			err = d.parseTypes(sr, p)
		case sectionKernels:
			err = d.parseKernels(sr, registry)
		case sectionFunctions:
			err = d.parseFunctions(sr, p)
		case sectionExpects:
			// Consumed by ScanExpectations, not by the loader.
		default:
			err = fmt.Errorf("unknown section id 0x%02x", id)
		}
		if err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (d *decoder) readString(r *bytes.Reader) (string, error) {
	idx, err := readLEBu(r)
	if err != nil {
		return "", err
	}
	if int(idx) >= len(d.strings) {
		return "", fmt.Errorf("string index %d out of range (%d strings)", idx, len(d.strings))
	}
	return d.strings[idx], nil
}

func (d *decoder) parseStrings(r *bytes.Reader) error {
	count, err := readLEBu(r)
	if err != nil {
		return fmt.Errorf("string table: %w", err)
	}
	d.strings = make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := readLEBu(r)
		if err != nil {
			return fmt.Errorf("string %d length: %w", i, err)
		}
		if int(n) > r.Len() {
			return fmt.Errorf("string %d truncated", i)
		}
		buf := make([]byte, n)
		if _, err := r.Read(buf); err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		d.strings = append(d.strings, string(buf))
	}
	return nil
}

func (d *decoder) parseTypes(r *bytes.Reader, p *Program) error {
	count, err := readLEBu(r)
	if err != nil {
		return fmt.Errorf("type table: %w", err)
	}
	p.types = make([]TypeName, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := d.readString(r)
		if err != nil {
			return fmt.Errorf("type %d: %w", i, err)
		}
		p.types = append(p.types, TypeName(name))
	}
	return nil
}

// parseKernels resolves every named kernel against the registry up front,
// so a program referencing a missing implementation fails at load time
// instead of producing silently unresolvable ops later.
func (d *decoder) parseKernels(r *bytes.Reader, registry *host.KernelRegistry) error {
	count, err := readLEBu(r)
	if err != nil {
		return fmt.Errorf("kernel table: %w", err)
	}
	d.kernels = make([]string, 0, count)
	d.bound = make([]host.Kernel, 0, count)
	for i := uint32(0); i < count; i++ {
		name, err := d.readString(r)
		if err != nil {
			return fmt.Errorf("kernel %d: %w", i, err)
		}
		var k host.Kernel
		if registry != nil {
			var ok bool
			if k, ok = registry.Lookup(name); !ok {
				return fmt.Errorf("unknown kernel '%s'", name)
			}
		}
		d.kernels = append(d.kernels, name)
		d.bound = append(d.bound, k)
	}
	return nil
}

func (d *decoder) parseFunctions(r *bytes.Reader, p *Program) error {
	count, err := readLEBu(r)
	if err != nil {
		return fmt.Errorf("function table: %w", err)
	}
	for i := uint32(0); i < count; i++ {
		fn, err := d.parseFunction(r, p)
		if err != nil {
			return fmt.Errorf("function %d: %w", i, err)
		}
		p.functions = append(p.functions, fn)
		if fn.name != "" {
			if _, dup := p.byName[fn.name]; dup {
				return fmt.Errorf("function '%s' declared twice", fn.name)
			}
			p.byName[fn.name] = fn
		}
	}
	return nil
}

func (d *decoder) parseFunction(r *bytes.Reader, p *Program) (*Function, error) {
	name, err := d.readString(r)
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	fn := &Function{name: name}

	if fn.argTypes, err = d.parseTypeList(r, p); err != nil {
		return nil, fmt.Errorf("argument types: %w", err)
	}
	if fn.resultTypes, err = d.parseTypeList(r, p); err != nil {
		return nil, fmt.Errorf("result types: %w", err)
	}

	numRegs, err := readLEBu(r)
	if err != nil {
		return nil, fmt.Errorf("register count: %w", err)
	}
	fn.numRegs = int(numRegs)
	if fn.numRegs < len(fn.argTypes) {
		return nil, fmt.Errorf("%d registers cannot hold %d arguments", fn.numRegs, len(fn.argTypes))
	}

	fn.resultRegs = make([]int, len(fn.resultTypes))
	for i := range fn.resultRegs {
		reg, err := readLEBu(r)
		if err != nil {
			return nil, fmt.Errorf("result register %d: %w", i, err)
		}
		if int(reg) >= fn.numRegs {
			return nil, fmt.Errorf("result register %d out of range", reg)
		}
		fn.resultRegs[i] = int(reg)
	}

	opCount, err := readLEBu(r)
	if err != nil {
		return nil, fmt.Errorf("op count: %w", err)
	}
	for i := uint32(0); i < opCount; i++ {
		op, err := d.parseOp(r, fn)
		if err != nil {
			return nil, fmt.Errorf("op %d: %w", i, err)
		}
		fn.ops = append(fn.ops, op)
	}

	return fn, d.checkSingleAssignment(fn)
}

func (d *decoder) parseTypeList(r *bytes.Reader, p *Program) ([]TypeName, error) {
	count, err := readLEBu(r)
	if err != nil {
		return nil, err
	}
	types := make([]TypeName, 0, count)
	for i := uint32(0); i < count; i++ {
		idx, err := readLEBu(r)
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(p.types) {
			return nil, fmt.Errorf("type index %d out of range (%d types)", idx, len(p.types))
		}
		types = append(types, p.types[idx])
	}
	return types, nil
}

func (d *decoder) parseOp(r *bytes.Reader, fn *Function) (progOp, error) {
	var op progOp

	kidx, err := readLEBu(r)
	if err != nil {
		return op, fmt.Errorf("kernel index: %w", err)
	}
	if int(kidx) >= len(d.kernels) {
		return op, fmt.Errorf("kernel index %d out of range (%d kernels)", kidx, len(d.kernels))
	}
	op.kernelName = d.kernels[kidx]
	op.kernel = d.bound[kidx]

	line, err := readLEBu(r)
	if err != nil {
		return op, fmt.Errorf("location line: %w", err)
	}
	col, err := readLEBu(r)
	if err != nil {
		return op, fmt.Errorf("location column: %w", err)
	}
	op.loc = diag.Location{Line: int(line), Col: int(col)}

	if op.operands, err = d.parseRegList(r, fn); err != nil {
		return op, fmt.Errorf("operands: %w", err)
	}
	if op.results, err = d.parseRegList(r, fn); err != nil {
		return op, fmt.Errorf("results: %w", err)
	}

	attrCount, err := readLEBu(r)
	if err != nil {
		return op, fmt.Errorf("attribute count: %w", err)
	}
	for i := uint32(0); i < attrCount; i++ {
		attr, err := d.parseAttr(r)
		if err != nil {
			return op, fmt.Errorf("attribute %d: %w", i, err)
		}
		op.attrs = append(op.attrs, attr)
	}
	return op, nil
}

func (d *decoder) parseRegList(r *bytes.Reader, fn *Function) ([]int, error) {
	count, err := readLEBu(r)
	if err != nil {
		return nil, err
	}
	regs := make([]int, 0, count)
	for i := uint32(0); i < count; i++ {
		reg, err := readLEBu(r)
		if err != nil {
			return nil, err
		}
		if int(reg) >= fn.numRegs {
			return nil, fmt.Errorf("register %d out of range (%d registers)", reg, fn.numRegs)
		}
		regs = append(regs, int(reg))
	}
	return regs, nil
}

func (d *decoder) parseAttr(r *bytes.Reader) (host.Attribute, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return host.Attribute{}, err
	}
	switch tag {
	case attrTagI1:
		b, err := r.ReadByte()
		if err != nil {
			return host.Attribute{}, err
		}
		return host.Attribute{Kind: host.AttrI1, Bool: b != 0}, nil
	case attrTagI32:
		v, err := readLEBs(r)
		if err != nil {
			return host.Attribute{}, err
		}
		return host.Attribute{Kind: host.AttrI32, Int: int64(v)}, nil
	case attrTagI64:
		v, err := readLEBs64(r)
		if err != nil {
			return host.Attribute{}, err
		}
		return host.Attribute{Kind: host.AttrI64, Int: v}, nil
	case attrTagF32:
		v, err := readFloat32(r)
		if err != nil {
			return host.Attribute{}, err
		}
		return host.Attribute{Kind: host.AttrF32, Float: float64(v)}, nil
	case attrTagF64:
		v, err := readFloat64(r)
		if err != nil {
			return host.Attribute{}, err
		}
		return host.Attribute{Kind: host.AttrF64, Float: v}, nil
	case attrTagStr:
		s, err := d.readString(r)
		if err != nil {
			return host.Attribute{}, err
		}
		return host.Attribute{Kind: host.AttrStr, Str: s}, nil
	default:
		return host.Attribute{}, fmt.Errorf("unknown attribute tag 0x%02x", tag)
	}
}

// checkSingleAssignment verifies that every register is produced exactly
// once: by being a function argument or by exactly one op result. The
// executor relies on this to resolve each async value once.
func (d *decoder) checkSingleAssignment(fn *Function) error {
	produced := make([]int, fn.numRegs)
	for i := 0; i < len(fn.argTypes); i++ {
		produced[i]++
	}
	for _, op := range fn.ops {
		for _, r := range op.results {
			produced[r]++
		}
	}
	for reg, n := range produced {
		if n == 0 {
			return fmt.Errorf("register %d in function '%s' is never produced", reg, fn.name)
		}
		if n > 1 {
			return fmt.Errorf("register %d in function '%s' produced %d times", reg, fn.name, n)
		}
	}
	return nil
}
