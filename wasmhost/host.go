// Package wasmhost instantiates a published WASM blueprint module and
// exposes the system-service surface (field reads and writes through
// lock handles, logging, event emission, cost metering) to it as a set of "env" imports, grounded
// on the teacher's wasmer-go host-function bindings for its heavy VM
// tier (spec §5, "WASM host interface").
package wasmhost

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/synnergy-network/corevm/core"
	"github.com/synnergy-network/corevm/pkg/utils"
)

// Instance wraps one running WASM blueprint invocation.
type Instance struct {
	instance *wasmer.Instance
	memory   *wasmer.Memory
}

// Context carries the host-call state a single WASM invocation needs:
// the current object, the System service it is bound to, and the cost
// meter to charge for each host call.
type Context struct {
	System   *core.System
	Object   core.NodeID
	charge   func(units uint64) error
	instance *Instance // bound once Instantiate has created the Instance
}

// allowedImportModule is the only WASM import namespace a published
// blueprint module may declare; anything else (wasi_snapshot_preview1,
// raw syscalls, etc.) is rejected before instantiation so a blueprint
// can never reach outside the deterministic host surface (spec §5
// Non-goals: "no ambient IO").
const allowedImportModule = "env"

// Instantiate compiles and links code against the host surface bound
// to ctx. It fails with WasmUnsupported if the module declares any
// import outside the "env" namespace.
func Instantiate(code []byte, ctx *Context, chargeFn func(units uint64) error) (*Instance, error) {
	ctx.charge = chargeFn
	if err := ctx.System.Kernel().DispatchWasmInstantiate(len(code)); err != nil {
		return nil, err
	}
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	module, err := wasmer.NewModule(store, code)
	if err != nil {
		return nil, utils.System("WasmCompilationFailed", err.Error())
	}
	for _, imp := range module.Imports() {
		if imp.Module() != allowedImportModule {
			return nil, utils.System("WasmUnsupported", fmt.Sprintf("import from disallowed module: %s", imp.Module()))
		}
	}

	imports := registerHost(store, ctx)
	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return nil, utils.System("WasmInstantiationFailed", err.Error())
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, utils.System("WasmUnsupported", "module does not export linear memory")
	}
	in := &Instance{instance: instance, memory: mem}
	ctx.instance = in
	return in, nil
}

// Invoke calls the named export with no arguments beyond what the
// blueprint reads back out through host_read, matching the teacher's
// "_start" entrypoint convention for its heavy VM tier.
func (in *Instance) Invoke(export string) error {
	fn, err := in.instance.Exports.GetFunction(export)
	if err != nil {
		return utils.Application("MethodNotFound", "WASM export not found: "+export)
	}
	_, err = fn()
	if err != nil {
		return utils.Wrap(err, "wasm trap")
	}
	return nil
}

func (in *Instance) read(ptr, ln int32) []byte {
	data := in.memory.Data()
	out := make([]byte, ln)
	copy(out, data[ptr:ptr+ln])
	return out
}

func (in *Instance) write(ptr int32, data []byte) {
	copy(in.memory.Data()[ptr:], data)
}

// registerHost binds the System service's field/log/event surface as
// "env" imports, one function per host call a compiled blueprint may
// invoke.
func registerHost(store *wasmer.Store, ctx *Context) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	hostConsumeCostUnits := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			units := uint64(args[0].I32())
			if err := ctx.charge(units); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	hostFieldRead := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			handle := core.LockHandle(args[0].I32())
			dstPtr := args[1].I32()
			value, err := ctx.System.ReadField(handle)
			if err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			if ctx.instance != nil {
				ctx.instance.write(dstPtr, value)
			}
			return []wasmer.Value{wasmer.NewI32(int32(len(value)))}, nil
		},
	)

	hostFieldWrite := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(wasmer.I32),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			handle := core.LockHandle(args[0].I32())
			ptr, ln := args[1].I32(), args[2].I32()
			if ctx.instance == nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			if err := ctx.System.WriteField(handle, ctx.instance.read(ptr, ln)); err != nil {
				return []wasmer.Value{wasmer.NewI32(-1)}, nil
			}
			return []wasmer.Value{wasmer.NewI32(0)}, nil
		},
	)

	hostLog := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			level, ptr, ln := args[0].I32(), args[1].I32(), args[2].I32()
			if ctx.instance == nil {
				return []wasmer.Value{}, nil
			}
			ctx.System.Log(levelFromCode(level), string(ctx.instance.read(ptr, ln)))
			return []wasmer.Value{}, nil
		},
	)

	hostEmitEvent := wasmer.NewFunction(
		store,
		wasmer.NewFunctionType(
			wasmer.NewValueTypes(wasmer.I32, wasmer.I32, wasmer.I32, wasmer.I32),
			wasmer.NewValueTypes(),
		),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			namePtr, nameLen, payloadPtr, payloadLen := args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32()
			if ctx.instance == nil {
				return []wasmer.Value{}, nil
			}
			name := string(ctx.instance.read(namePtr, nameLen))
			payload := ctx.instance.read(payloadPtr, payloadLen)
			ctx.System.EmitEvent(ctx.Object, name, payload)
			return []wasmer.Value{}, nil
		},
	)

	imports.Register(allowedImportModule, map[string]wasmer.IntoExtern{
		"host_consume_cost_units": hostConsumeCostUnits,
		"host_field_read":         hostFieldRead,
		"host_field_write":        hostFieldWrite,
		"host_log":                hostLog,
		"host_emit_event":         hostEmitEvent,
	})
	return imports
}

func levelFromCode(code int32) core.LogLevel {
	switch code {
	case 0:
		return core.LogError
	case 1:
		return core.LogWarn
	case 2:
		return core.LogInfo
	case 3:
		return core.LogDebug
	default:
		return core.LogTrace
	}
}

// Instrument is the WASM prepare+instrument step of spec §5: for now
// it validates the module compiles and leaves bytecode unchanged,
// since cost-unit metering is charged per host call rather than
// injected per basic block. A package author's code is rejected here
// if it fails to parse as a valid module at all.
func Instrument(code []byte) ([]byte, error) {
	engine := wasmer.NewEngine()
	store := wasmer.NewStore(engine)
	if _, err := wasmer.NewModule(store, code); err != nil {
		return nil, utils.System("WasmInstrumentationFailed", err.Error())
	}
	return code, nil
}
