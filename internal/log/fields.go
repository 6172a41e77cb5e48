package log

import (
	"maps"
	"slices"
)

// Attribute keys shared by every component.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTxID          = "tx_id"
	FieldTxKind        = "tx_kind"
	FieldTxDesc        = "tx_description"
	FieldAmountCents   = "amount_cents"
	FieldCategory      = "category"
	FieldIntent        = "intent"
	FieldEventID       = "event_id"
	FieldEventType     = "event_type"
	FieldSymbol        = "symbol"
	FieldSheetsRef     = "sheets_ref"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentBroker    = "broker"
	ComponentAssistant = "assistant"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentCLI       = "cli"
)

const (
	OpCreate   = "create"
	OpDelete   = "delete"
	OpUpdate   = "update"
	OpAppend   = "append"
	OpSync     = "sync"
	OpParse    = "parse"
	OpPublish  = "publish"
	OpRestore  = "restore"
	OpSeed     = "seed"
	OpExport   = "export"
	OpTrade    = "trade"
	OpQuote    = "quote"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// ErrorTypeNetwork marks failures to reach a remote service.
const ErrorTypeNetwork = "network_error"

// LogFields collects attributes for one record.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError records err's message; a nil err adds nothing.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithTransaction(id int64, kind, desc string, amountCents int64, category string) LogFields {
	f[FieldTxID] = id
	f[FieldTxKind] = kind
	f[FieldTxDesc] = desc
	f[FieldAmountCents] = amountCents
	f[FieldCategory] = category
	return f
}

func (f LogFields) WithEvent(id, eventType string) LogFields {
	f[FieldEventID] = id
	f[FieldEventType] = eventType
	return f
}

// WithHTTPRequest adds the request line. Empty user agent and referer are
// left out.
func (f LogFields) WithHTTPRequest(method, path, query, userAgent, referer string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if query != "" {
		f[FieldQuery] = query
	}
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	if referer != "" {
		f[FieldReferer] = referer
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens f into slog key/value arguments, sorted by key so records
// are stable across runs.
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for _, k := range slices.Sorted(maps.Keys(f)) {
		out = append(out, k, f[k])
	}
	return out
}
