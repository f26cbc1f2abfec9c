package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/synnergy-network/corevm/pkg/utils"
)

// CostingModule meters execution against a fee reserve, charging cost
// units for invocation, substate I/O and royalties, and enforces the
// system-loan rule that lets a transaction run before any vault has
// locked fee payment (spec §4.4, §5).
type CostingModule struct {
	CostUnitPrice   Decimal
	SystemLoanUnits uint64

	reserve      Decimal // XRD locked via lock_fee, FORCE_WRITE on the paying vault
	consumed     uint64  // cost units consumed so far
	loanRepaid   bool
	royaltyOwed  map[NodeID]Decimal
	metricUnits  prometheus.Counter
	metricVaults prometheus.Counter
}

func NewCostingModule(price Decimal, systemLoanUnits uint64) *CostingModule {
	return &CostingModule{
		CostUnitPrice:   price,
		SystemLoanUnits: systemLoanUnits,
		reserve:         DecimalZero(),
		royaltyOwed:     make(map[NodeID]Decimal),
		metricUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corevm_cost_units_consumed_total",
			Help: "Cumulative cost units consumed across invocations.",
		}),
		metricVaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corevm_fee_locks_total",
			Help: "Number of lock_fee calls observed.",
		}),
	}
}

func (m *CostingModule) Name() string { return "CostingModule" }

// LockFee debits amount straight out of payingVault's balance and adds
// it to the reserve, with FORCE_WRITE semantics: the reservation
// survives even if the transaction later aborts, since the network
// must still be paid for the work it already did (spec §4.2, §5,
// Linearity testable property — fee currency always comes out of a
// real vault balance, never manufactured).
func (m *CostingModule) LockFee(payingVault *Vault, amount Decimal) error {
	if amount.IsNegative() || amount.IsZero() {
		return utils.Application("InvalidArgument", "lock_fee amount must be positive")
	}
	if amount.Cmp(payingVault.available()) > 0 {
		return utils.Application("InsufficientBalance", "vault does not hold enough to lock the requested fee")
	}
	payingVault.Container.Amount = payingVault.Container.Amount.Sub(amount)
	m.reserve = m.reserve.Add(amount)
	m.metricVaults.Inc()
	return nil
}

// ChargeCostUnits consumes units against the reserve, failing once the
// reserve (plus the unpaid system loan) is exhausted.
func (m *CostingModule) ChargeCostUnits(units uint64) error {
	m.consumed += units
	m.metricUnits.Add(float64(units))
	cost := m.CostUnitPrice.MulByCostUnits(m.consumed)
	if !m.loanRepaid && m.consumed <= m.SystemLoanUnits {
		return nil
	}
	m.loanRepaid = true
	if cost.Cmp(m.reserve) > 0 {
		return utils.System("OutOfFees", "fee reserve exhausted")
	}
	return nil
}

// ChargeRoyalty accrues a royalty owed to a package/component in the
// module's per-owner table. Nothing in this module settles the accrued
// amounts against the fee reserve.
func (m *CostingModule) ChargeRoyalty(owner NodeID, amount Decimal) {
	owed, ok := m.royaltyOwed[owner]
	if !ok {
		owed = DecimalZero()
	}
	m.royaltyOwed[owner] = owed.Add(amount)
}

func (m *CostingModule) OnInit(k *Kernel) error     { return nil }
func (m *CostingModule) OnTeardown(k *Kernel) error { return nil }
func (m *CostingModule) BeforeInvoke(k *Kernel, actor Actor) error {
	return m.ChargeCostUnits(10) // flat per-invocation overhead
}
func (m *CostingModule) AfterInvoke(k *Kernel, actor Actor) error        { return nil }
func (m *CostingModule) OnAllocateNodeID(k *Kernel, id NodeID) error     { return nil }
func (m *CostingModule) OnCreateNode(k *Kernel, id NodeID) error         { return m.ChargeCostUnits(50) }
func (m *CostingModule) OnDropNode(k *Kernel, id NodeID) error           { return nil }
func (m *CostingModule) OnOpenSubstate(k *Kernel, bytes int) error       { return m.ChargeCostUnits(uint64(bytes) / 100) }
func (m *CostingModule) OnCloseSubstate(k *Kernel, bytes int) error      { return m.ChargeCostUnits(uint64(bytes) / 50) }
func (m *CostingModule) OnConsumeCostUnits(k *Kernel, units uint64) error { return m.ChargeCostUnits(units) }
func (m *CostingModule) OnWasmInstantiate(k *Kernel, codeLen int) error  { return m.ChargeCostUnits(uint64(codeLen) / 10) }
func (m *CostingModule) OnEmitEvent(k *Kernel, ev Event) error           { return m.ChargeCostUnits(uint64(len(ev.Payload))) }
func (m *CostingModule) OnEmitLog(k *Kernel, entry LogEntry) error       { return m.ChargeCostUnits(uint64(len(entry.Message))) }

// AuthModule walks the auth-zone stack evaluating access rules before
// privileged invocations are allowed to proceed (spec §5, "Auth
// algebra"). Evaluation itself lives in auth.go; this module only owns
// the zone stack's lifecycle across frames.
type AuthModule struct {
	zones []*AuthZone
}

func NewAuthModule() *AuthModule { return &AuthModule{} }

func (m *AuthModule) Name() string { return "AuthModule" }

func (m *AuthModule) PushZone(z *AuthZone) { m.zones = append(m.zones, z) }
func (m *AuthModule) PopZone() *AuthZone {
	if len(m.zones) == 0 {
		return nil
	}
	z := m.zones[len(m.zones)-1]
	m.zones = m.zones[:len(m.zones)-1]
	return z
}
func (m *AuthModule) CurrentZone() *AuthZone {
	if len(m.zones) == 0 {
		return nil
	}
	return m.zones[len(m.zones)-1]
}

// BeforeInvoke pushes a fresh zone for the callee and seeds it with the
// virtual package-of-direct-caller/global-caller badges derived from
// the calling frame's actor (the frame that is still current, since
// Invoke runs this hook before pushing the new frame).
func (m *AuthModule) BeforeInvoke(k *Kernel, actor Actor) error {
	zone := NewAuthZone()
	caller := k.currentFrame().actor
	var zeroID NodeID
	if caller.PackageAddress != zeroID {
		zone.AddVirtualProofSource(virtualResourcePackageOfDirectCaller,
			NonFungibleLocalID("#"+caller.PackageAddress.Hex()+"#"))
	}
	if caller.ObjectID != nil {
		zone.AddVirtualProofSource(virtualResourceGlobalCaller,
			NonFungibleLocalID("#"+caller.ObjectID.Hex()+"#"))
	}
	m.PushZone(zone)
	return nil
}
func (m *AuthModule) AfterInvoke(k *Kernel, actor Actor) error       { m.PopZone(); return nil }
func (m *AuthModule) OnInit(k *Kernel) error                         { return nil }
func (m *AuthModule) OnTeardown(k *Kernel) error                     { return nil }
func (m *AuthModule) OnAllocateNodeID(k *Kernel, id NodeID) error    { return nil }
func (m *AuthModule) OnCreateNode(k *Kernel, id NodeID) error        { return nil }
func (m *AuthModule) OnDropNode(k *Kernel, id NodeID) error          { return nil }
func (m *AuthModule) OnOpenSubstate(k *Kernel, bytes int) error      { return nil }
func (m *AuthModule) OnCloseSubstate(k *Kernel, bytes int) error     { return nil }
func (m *AuthModule) OnConsumeCostUnits(k *Kernel, units uint64) error { return nil }
func (m *AuthModule) OnWasmInstantiate(k *Kernel, codeLen int) error { return nil }
func (m *AuthModule) OnEmitEvent(k *Kernel, ev Event) error          { return nil }
func (m *AuthModule) OnEmitLog(k *Kernel, entry LogEntry) error      { return nil }

// TransactionLimitModule enforces the transaction-wide ceilings of
// spec §4.4: cumulative substate I/O, WASM memory pages and call
// depth. Call-depth is already enforced by the kernel directly; this
// module owns the byte and memory ceilings.
type TransactionLimitModule struct {
	MaxReadBytes     int
	MaxWriteBytes    int
	MaxWasmMemPages  int
	wasmPagesInUse   int
}

func NewTransactionLimitModule(maxRead, maxWrite, maxWasmPages int) *TransactionLimitModule {
	return &TransactionLimitModule{MaxReadBytes: maxRead, MaxWriteBytes: maxWrite, MaxWasmMemPages: maxWasmPages}
}

func (m *TransactionLimitModule) Name() string { return "TransactionLimitModule" }
func (m *TransactionLimitModule) OnInit(k *Kernel) error                        { return nil }
func (m *TransactionLimitModule) OnTeardown(k *Kernel) error                    { return nil }
func (m *TransactionLimitModule) BeforeInvoke(k *Kernel, actor Actor) error     { return nil }
func (m *TransactionLimitModule) AfterInvoke(k *Kernel, actor Actor) error      { return nil }
func (m *TransactionLimitModule) OnAllocateNodeID(k *Kernel, id NodeID) error   { return nil }
func (m *TransactionLimitModule) OnCreateNode(k *Kernel, id NodeID) error       { return nil }
func (m *TransactionLimitModule) OnDropNode(k *Kernel, id NodeID) error        { return nil }
func (m *TransactionLimitModule) OnConsumeCostUnits(k *Kernel, units uint64) error { return nil }
func (m *TransactionLimitModule) OnEmitEvent(k *Kernel, ev Event) error        { return nil }
func (m *TransactionLimitModule) OnEmitLog(k *Kernel, entry LogEntry) error    { return nil }

func (m *TransactionLimitModule) OnOpenSubstate(k *Kernel, bytes int) error {
	read, _ := k.Track().ReadWriteBytes()
	if read > m.MaxReadBytes {
		return utils.System("TransactionLimitExceeded", "cumulative substate read bytes exceeded")
	}
	return nil
}

func (m *TransactionLimitModule) OnCloseSubstate(k *Kernel, bytes int) error {
	_, write := k.Track().ReadWriteBytes()
	if write > m.MaxWriteBytes {
		return utils.System("TransactionLimitExceeded", "cumulative substate write bytes exceeded")
	}
	return nil
}

// OnWasmInstantiate is a no-op here: WASM memory growth is metered
// separately through GrowWasmMemory as the instance actually grows its
// linear memory, not at instantiation time.
func (m *TransactionLimitModule) OnWasmInstantiate(k *Kernel, codeLen int) error { return nil }

// GrowWasmMemory records WASM linear-memory growth, failing once the
// configured page ceiling would be exceeded.
func (m *TransactionLimitModule) GrowWasmMemory(pages int) error {
	if m.wasmPagesInUse+pages > m.MaxWasmMemPages {
		return utils.System("TransactionLimitExceeded", "WASM memory page limit exceeded")
	}
	m.wasmPagesInUse += pages
	return nil
}

// ExecutionTraceEntry records one invocation for post-hoc inspection,
// e.g. by a wallet computing a resource-movement preview before
// signing (spec §7).
type ExecutionTraceEntry struct {
	Depth int
	Actor Actor
}

// ExecutionTraceModule buffers a flat invocation trace.
type ExecutionTraceModule struct {
	Entries []ExecutionTraceEntry
}

func NewExecutionTraceModule() *ExecutionTraceModule { return &ExecutionTraceModule{} }
func (m *ExecutionTraceModule) Name() string         { return "ExecutionTraceModule" }
func (m *ExecutionTraceModule) BeforeInvoke(k *Kernel, actor Actor) error {
	m.Entries = append(m.Entries, ExecutionTraceEntry{Depth: k.Depth(), Actor: actor})
	return nil
}
func (m *ExecutionTraceModule) AfterInvoke(k *Kernel, actor Actor) error       { return nil }
func (m *ExecutionTraceModule) OnInit(k *Kernel) error                        { return nil }
func (m *ExecutionTraceModule) OnTeardown(k *Kernel) error                    { return nil }
func (m *ExecutionTraceModule) OnAllocateNodeID(k *Kernel, id NodeID) error   { return nil }
func (m *ExecutionTraceModule) OnCreateNode(k *Kernel, id NodeID) error       { return nil }
func (m *ExecutionTraceModule) OnDropNode(k *Kernel, id NodeID) error         { return nil }
func (m *ExecutionTraceModule) OnOpenSubstate(k *Kernel, bytes int) error     { return nil }
func (m *ExecutionTraceModule) OnCloseSubstate(k *Kernel, bytes int) error    { return nil }
func (m *ExecutionTraceModule) OnConsumeCostUnits(k *Kernel, units uint64) error { return nil }
func (m *ExecutionTraceModule) OnWasmInstantiate(k *Kernel, codeLen int) error { return nil }
func (m *ExecutionTraceModule) OnEmitEvent(k *Kernel, ev Event) error         { return nil }
func (m *ExecutionTraceModule) OnEmitLog(k *Kernel, entry LogEntry) error     { return nil }

// Event is a schema-validated value emitted by a blueprint during
// execution (spec §5, "events").
type Event struct {
	Emitter NodeID
	Name    string
	Payload []byte
}

// EventModule buffers events emitted during a transaction. Events
// returns the buffer as it stands, whether or not the transaction has
// committed.
type EventModule struct {
	events []Event
}

func NewEventModule() *EventModule { return &EventModule{} }
func (m *EventModule) Name() string { return "EventModule" }

func (m *EventModule) Emit(emitter NodeID, name string, payload []byte) {
	m.events = append(m.events, Event{Emitter: emitter, Name: name, Payload: payload})
}
func (m *EventModule) Events() []Event { return m.events }

func (m *EventModule) BeforeInvoke(k *Kernel, actor Actor) error      { return nil }
func (m *EventModule) AfterInvoke(k *Kernel, actor Actor) error       { return nil }
func (m *EventModule) OnInit(k *Kernel) error                         { return nil }
func (m *EventModule) OnTeardown(k *Kernel) error                     { return nil }
func (m *EventModule) OnAllocateNodeID(k *Kernel, id NodeID) error    { return nil }
func (m *EventModule) OnCreateNode(k *Kernel, id NodeID) error        { return nil }
func (m *EventModule) OnDropNode(k *Kernel, id NodeID) error          { return nil }
func (m *EventModule) OnOpenSubstate(k *Kernel, bytes int) error      { return nil }
func (m *EventModule) OnCloseSubstate(k *Kernel, bytes int) error     { return nil }
func (m *EventModule) OnConsumeCostUnits(k *Kernel, units uint64) error { return nil }
func (m *EventModule) OnWasmInstantiate(k *Kernel, codeLen int) error { return nil }

// OnEmitEvent is the module's own dispatch target: System.EmitEvent
// routes here instead of calling Emit directly, so every module in the
// stack observes the emission (costing charges for its payload size,
// for instance) before it lands in the buffer.
func (m *EventModule) OnEmitEvent(k *Kernel, ev Event) error {
	m.events = append(m.events, ev)
	return nil
}
func (m *EventModule) OnEmitLog(k *Kernel, entry LogEntry) error { return nil }

// LogLevel mirrors the handful of severities a blueprint can log at.
type LogLevel string

const (
	LogError LogLevel = "ERROR"
	LogWarn  LogLevel = "WARN"
	LogInfo  LogLevel = "INFO"
	LogDebug LogLevel = "DEBUG"
	LogTrace LogLevel = "TRACE"
)

// LogEntry is a single buffered log line emitted by a blueprint.
type LogEntry struct {
	Level   LogLevel
	Message string
}

// LoggerModule buffers blueprint log lines for the duration of the
// transaction and mirrors each to the process logger immediately,
// following the teacher's practice of logging through logrus at the
// same call site the event occurs rather than batching to stdout.
type LoggerModule struct {
	entries []LogEntry
	log     *logrus.Entry
}

func NewLoggerModule(log *logrus.Entry) *LoggerModule {
	return &LoggerModule{log: log}
}

func (m *LoggerModule) Name() string { return "LoggerModule" }

func (m *LoggerModule) Log(level LogLevel, message string) {
	m.entries = append(m.entries, LogEntry{Level: level, Message: message})
	if m.log == nil {
		return
	}
	switch level {
	case LogError:
		m.log.Error(message)
	case LogWarn:
		m.log.Warn(message)
	case LogInfo:
		m.log.Info(message)
	case LogDebug:
		m.log.Debug(message)
	default:
		m.log.Trace(message)
	}
}

func (m *LoggerModule) Entries() []LogEntry { return m.entries }

func (m *LoggerModule) BeforeInvoke(k *Kernel, actor Actor) error      { return nil }
func (m *LoggerModule) AfterInvoke(k *Kernel, actor Actor) error       { return nil }
func (m *LoggerModule) OnInit(k *Kernel) error                         { return nil }
func (m *LoggerModule) OnTeardown(k *Kernel) error                     { return nil }
func (m *LoggerModule) OnAllocateNodeID(k *Kernel, id NodeID) error    { return nil }
func (m *LoggerModule) OnCreateNode(k *Kernel, id NodeID) error        { return nil }
func (m *LoggerModule) OnDropNode(k *Kernel, id NodeID) error          { return nil }
func (m *LoggerModule) OnOpenSubstate(k *Kernel, bytes int) error      { return nil }
func (m *LoggerModule) OnCloseSubstate(k *Kernel, bytes int) error     { return nil }
func (m *LoggerModule) OnConsumeCostUnits(k *Kernel, units uint64) error { return nil }
func (m *LoggerModule) OnWasmInstantiate(k *Kernel, codeLen int) error { return nil }
func (m *LoggerModule) OnEmitEvent(k *Kernel, ev Event) error          { return nil }

// OnEmitLog is the module's own dispatch target: System.Log routes
// here instead of calling Log directly, consistent with EventModule's
// OnEmitEvent dispatch pattern.
func (m *LoggerModule) OnEmitLog(k *Kernel, entry LogEntry) error {
	m.Log(entry.Level, entry.Message)
	return nil
}
