package abi

import (
	"github.com/sunholo/sigcore/internal/backend"
)

// EmitEntryPoints declares and defines the fixed runtime surface against a
// backend: sizing and layout queries answered from compile-time constants,
// the per-driver tick functions (each delegating to the evaluation body
// with only its own driver's mask bit raised), and GetClassData returning
// the interned metadata blob. The initialization and evaluation bodies
// themselves are emitted by the pipeline's emission passes; initName and
// evalName reference them by symbol.
//
// omitTicks suppresses the per-driver tick functions for hosts that drive
// the instance exclusively through Evaluate.
func EmitEntryPoints(b backend.Backend, m *ClassMetadata, layout Layout, omitTicks bool) error {
	i64 := b.IntType(64)
	ptr := b.PointerType(b.IntType(8))

	sizeFn := b.DeclareFunction(m.Entries.GetSize, nil, i64)
	b.DefineFunction(sizeFn, func(e backend.Emitter) {
		e.Return(e.Constant(i64, layout.Size()))
	})
	b.FinalizeFunction(sizeFn)

	offFn := b.DeclareFunction(m.Entries.GetSymbolOffset, []backend.TypeToken{i64}, i64)
	b.DefineFunction(offFn, func(e backend.Emitter) {
		idx := e.Local(i64, "i")
		cases := make(map[int]func(), layout.SymbolSlots)
		for i := 0; i < layout.SymbolSlots; i++ {
			off, _ := layout.SymbolOffset(i)
			cases[i] = func() { e.Return(e.Constant(i64, off)) }
		}
		e.Switch(idx, cases, func() { e.Return(e.Constant(i64, 0)) })
	})
	b.FinalizeFunction(offFn)

	valFn := b.DeclareFunction(m.Entries.GetValue, []backend.TypeToken{ptr, i64}, ptr)
	b.DefineFunction(valFn, func(e backend.Emitter) {
		inst := e.Local(ptr, "instance")
		slot := e.Local(i64, "slot")
		base := e.Constant(i64, uint64(layout.StateBytes+layout.MaskBytes))
		scaled := e.Arith("Mul", slot, e.Constant(i64, pointerSize))
		off := e.Arith("Add", base, scaled)
		addr := e.Arith("Add", e.Bitcast(inst, i64), off)
		e.Return(e.Bitcast(addr, ptr))
	})
	b.FinalizeFunction(valFn)

	cfgFn := b.DeclareFunction(m.Entries.SetConfigurationSlot, []backend.TypeToken{i64, ptr}, nil)
	b.DefineFunction(cfgFn, func(e backend.Emitter) {
		slot := e.Local(i64, "slot")
		data := e.Local(ptr, "data")
		g := b.GlobalVariable("configuration_slots", ptr, nil)
		addr := e.Arith("Add", e.Bitcast(g, i64), e.Arith("Mul", slot, e.Constant(i64, pointerSize)))
		e.Store(e.Bitcast(addr, ptr), data)
	})
	b.FinalizeFunction(cfgFn)

	if !omitTicks {
		for _, tick := range m.Ticks {
			emitTick(b, m, tick)
		}
	}

	blob, err := m.Marshal()
	if err != nil {
		return err
	}
	classFn := b.DeclareFunction(m.Entries.GetClassData, nil, ptr)
	b.DefineFunction(classFn, func(e backend.Emitter) {
		data := b.InternBlob(uintptr(MetadataVersion), blob)
		e.Return(data)
	})
	b.FinalizeFunction(classFn)
	return nil
}

// emitTick defines one per-driver entry point: raise the driver's mask
// bits, run the evaluation body once per requested super-frame, clear the
// mask again.
func emitTick(b backend.Backend, m *ClassMetadata, tick TickEntry) {
	i64 := b.IntType(64)
	ptr := b.PointerType(b.IntType(8))
	fn := b.DeclareFunction(tick.Symbol, []backend.TypeToken{ptr, ptr, i64}, nil)
	b.DefineFunction(fn, func(e backend.Emitter) {
		inst := e.Local(ptr, "instance")
		_ = e.Local(ptr, "output")
		frames := e.Local(i64, "frames")
		mask := e.Load(inst, i64)
		e.Store(inst, e.Arith("Or", mask, e.Constant(i64, 1)))
		remaining := e.Local(i64, "remaining")
		e.Store(remaining, frames)
		e.Loop(func(brk backend.LoopLabel) {
			left := e.Load(remaining, i64)
			done := e.Compare("Eq", left, e.Constant(i64, 0))
			e.If(done, func() { e.Break(brk) }, nil)
			e.ExternalCall(m.Entries.Evaluate, []backend.ValueToken{inst}, nil)
			e.Store(remaining, e.Arith("Sub", left, e.Constant(i64, 1)))
		})
		e.Store(inst, mask)
	})
	b.FinalizeFunction(fn)
}
