package observability

const (
	MetricPrefix = "jokusoramame"
)

// Metric names
const (
	EventsDispatchedTotal = MetricPrefix + ".events.dispatched_total"
	HandlerFailuresTotal  = MetricPrefix + ".handlers.failures_total"
	CommandsInvokedTotal  = MetricPrefix + ".commands.invoked_total"
	XPAwardedTotal        = MetricPrefix + ".levelling.xp_awarded_total"
	WorkerRunsTotal       = MetricPrefix + ".workers.runs_total"
	WorkerRunDuration     = MetricPrefix + ".workers.run_duration"
)

// Label keys
const (
	LabelKind    = "kind"
	LabelPlugin  = "plugin"
	LabelCommand = "command"
	LabelOutcome = "outcome"
	LabelWorker  = "worker"
	LabelResult  = "result"
)

// Worker run results
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultPanic = "panic"
)
