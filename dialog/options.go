package dialog

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmorenobl/soni-sub010/dialog/emit"
)

// Config collects everything needed to wire an Engine: compiled flows,
// registered validators and actions, the NLU provider, the checkpoint
// store, and the tunable deployment-level budgets/caps (step/turn
// budgets, pruning caps, response separator). Build one with NewConfig
// and the With* options below, then pass it to NewEngine.
type Config struct {
	Flows      map[string]*CompiledFlow
	Validators map[string]ValidatorFunc
	Actions    *ActionRegistry
	NLU        NLUProvider
	Store      Store

	Emitter  emit.Emitter
	Registry prometheus.Registerer

	StepBudget        int
	TurnBudget        int
	HistoryWindow     int
	ResponseSeparator string
	ResponseCap       int
	PruneCaps         PruneCaps
	Migrators         map[int]func(DialogueState) DialogueState

	idGen func() string
}

// Option configures a Config during construction.
type Option func(*Config)

// NewConfig builds a Config from the required compiled flows and actions,
// applying sane defaults, then layering opts on top.
func NewConfig(flows map[string]*CompiledFlow, actions *ActionRegistry, opts ...Option) *Config {
	c := &Config{
		Flows:             flows,
		Validators:        map[string]ValidatorFunc{},
		Actions:           actions,
		Emitter:           emit.NewNullEmitter(),
		StepBudget:        1000,
		TurnBudget:        8,
		HistoryWindow:     20,
		ResponseSeparator: " ",
		ResponseCap:       50,
		PruneCaps:         DefaultPruneCaps(),
		idGen:             uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithValidators(v map[string]ValidatorFunc) Option {
	return func(c *Config) { c.Validators = v }
}

func WithNLUProvider(p NLUProvider) Option {
	return func(c *Config) { c.NLU = p }
}

func WithStore(s Store) Option {
	return func(c *Config) { c.Store = s }
}

func WithEmitter(e emit.Emitter) Option {
	return func(c *Config) { c.Emitter = e }
}

func WithMetricsRegistry(r prometheus.Registerer) Option {
	return func(c *Config) { c.Registry = r }
}

func WithStepBudget(n int) Option {
	return func(c *Config) { c.StepBudget = n }
}

func WithTurnBudget(n int) Option {
	return func(c *Config) { c.TurnBudget = n }
}

func WithHistoryWindow(n int) Option {
	return func(c *Config) { c.HistoryWindow = n }
}

func WithResponseFormat(separator string, cap int) Option {
	return func(c *Config) { c.ResponseSeparator = separator; c.ResponseCap = cap }
}

func WithPruneCaps(caps PruneCaps) Option {
	return func(c *Config) { c.PruneCaps = caps }
}

func WithSchemaMigrators(m map[int]func(DialogueState) DialogueState) Option {
	return func(c *Config) { c.Migrators = m }
}

// WithInstanceIDGenerator overrides the flow-instance id generator, mainly
// for tests wanting deterministic ids instead of uuid.NewString.
func WithInstanceIDGenerator(gen func() string) Option {
	return func(c *Config) { c.idGen = gen }
}

// Engine is the fully wired dialogue core: one Orchestrator plus the
// checkpoint store and metrics it drives process_turn calls through.
type Engine struct {
	cfg     *Config
	orch    *Orchestrator
	store   Store
	metrics *Metrics
	flowMgr *FlowManager

	locksOnce     sync.Once
	locksInstance *turnLocks
}

// NewEngine wires every component built from cfg into a ready-to-use
// Engine. NLU must be set (a turn cannot run without a provider); Store
// may be nil, in which case every Run starts from a fresh state and the
// state a turn produces is not kept.
func NewEngine(cfg *Config) *Engine {
	var metrics *Metrics
	if cfg.Registry != nil {
		metrics = NewMetrics(cfg.Registry)
	}

	flowMgr := NewFlowManager(cfg.idGen, nil)
	scope := NewScopeManager(cfg.Flows)
	subgraph := NewSubgraphExecutor(cfg.Flows, cfg.Validators, cfg.Actions, flowMgr, cfg.Emitter, cfg.StepBudget, metrics)
	cmdExec := NewCommandExecutor(&HandlerDeps{Flows: cfg.Flows, FlowMgr: flowMgr, Validators: cfg.Validators})
	orch := NewOrchestrator(scope, cmdExec, subgraph, cfg.NLU, cfg.Emitter, cfg.TurnBudget, cfg.HistoryWindow)

	return &Engine{cfg: cfg, orch: orch, store: cfg.Store, metrics: metrics, flowMgr: flowMgr}
}
