package log

// Field names shared by every component.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldQuery      = "query"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldSuccess    = "success"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"

	FieldExpenseID = "expense_id"
	FieldDateKey   = "date_key"
	FieldAmount    = "amount"
	FieldHolidayID = "holiday_id"
	FieldYear      = "year"
	FieldMonth     = "month"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentStorage   = "storage"
	ComponentEvents    = "events"
	ComponentMirror    = "mirror"
	ComponentRateLimit = "rate_limit"
)

const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeBadRequest = "bad_request_error"
	ErrorTypeInternal   = "internal_error"
)

// Fields collects key/value pairs for a single record.
type Fields map[string]any

func NewFields() Fields { return make(Fields) }

func (f Fields) WithRequestID(id string) Fields {
	f[FieldRequestID] = id
	return f
}

func (f Fields) WithError(err error) Fields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f Fields) WithErrorType(kind string) Fields {
	f[FieldErrorType] = kind
	return f
}

// WithLedgerDay records the day and amount a write touched.
func (f Fields) WithLedgerDay(date, amount string) Fields {
	f[FieldDateKey] = date
	if amount != "" {
		f[FieldAmount] = amount
	}
	return f
}

func (f Fields) WithHTTPRequest(method, path, query, clientIP string) Fields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldClientIP] = clientIP
	return f
}

func (f Fields) WithHTTPResponse(status int, durationMs int64) Fields {
	f[FieldStatusCode] = status
	f[FieldDuration] = durationMs
	f[FieldSuccess] = status < 400
	return f
}

// Args flattens the fields for slog.
func (f Fields) Args() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
