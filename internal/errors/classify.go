package errors

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// QueryContext carries the request fields attached to every error classified
// at the query boundary. Query text is truncated before it lands in the
// error context.
type QueryContext struct {
	Symbol    string
	Timeframe string
	Mode      string
	Query     string
}

const maxQueryContextLen = 500

// ClickHouse server error codes relevant to classification.
const (
	chUnknownIdentifier    = 47
	chUnknownTable         = 60
	chSyntaxError          = 62
	chUnknownDatabase      = 81
	chTimeoutExceeded      = 159
	chUnknownUser          = 192
	chWrongPassword        = 193
	chRequiredPassword     = 194
	chQuotaExceeded        = 201
	chTooManyQueries       = 202
	chSocketTimeout        = 209
	chNetworkError         = 210
	chMemoryLimitExceeded  = 241
	chAccessDenied         = 497
	chAuthenticationFailed = 516
)

// Classify maps a native error observed at the query-execution boundary into
// a classified error. Already-classified errors pass through unchanged, so
// the mapping is idempotent. Anything unrecognized becomes a non-retryable
// QueryExecution error: an error of unknown nature is never retried.
func Classify(err error, qctx QueryContext) *ClassifiedError {
	if err == nil {
		return nil
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	ce = classifyNative(err)
	ce.Err = err

	if qctx.Symbol != "" {
		ce.Context["symbol"] = qctx.Symbol
	}
	if qctx.Timeframe != "" {
		ce.Context["timeframe"] = qctx.Timeframe
	}
	if qctx.Mode != "" {
		ce.Context["mode"] = qctx.Mode
	}
	if qctx.Query != "" {
		q := qctx.Query
		if len(q) > maxQueryContextLen {
			q = q[:maxQueryContextLen]
		}
		ce.Context["query"] = q
	}
	return ce
}

func classifyNative(err error) *ClassifiedError {
	var ex *clickhouse.Exception
	if errors.As(err, &ex) {
		ce := classifyException(ex)
		ce.Context["original_error"] = "clickhouse.Exception"
		ce.Context["server_code"] = ex.Code
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, "query deadline exceeded", nil)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Newf(KindTimeout, "network timeout: %v", err)
		}
		return Newf(KindNetwork, "network error: %v", err)
	}

	return classifyByMessage(err)
}

func classifyException(ex *clickhouse.Exception) *ClassifiedError {
	switch ex.Code {
	case chAuthenticationFailed, chAccessDenied, chUnknownUser, chWrongPassword, chRequiredPassword:
		return Newf(KindAuthentication, "authentication failed: %s", ex.Message)
	case chQuotaExceeded, chTooManyQueries:
		return Newf(KindRateLimit, "rate limit exceeded: %s", ex.Message)
	case chTimeoutExceeded, chSocketTimeout:
		return Newf(KindTimeout, "query timed out: %s", ex.Message)
	case chNetworkError:
		return Newf(KindNetwork, "server network error: %s", ex.Message)
	case chUnknownTable, chUnknownDatabase:
		return Newf(KindQueryExecution, "resource not found: %s (check clickhouse.database and clickhouse.table settings)", ex.Message)
	case chSyntaxError, chUnknownIdentifier, chMemoryLimitExceeded:
		return Newf(KindQueryExecution, "query rejected by server: %s", ex.Message)
	default:
		return Newf(KindQueryExecution, "server error %d: %s", ex.Code, ex.Message)
	}
}

// classifyByMessage is the last-resort mapping for wrapped or third-party
// errors that expose nothing but their text.
func classifyByMessage(err error) *ClassifiedError {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "rate limit", "too many requests", "quota exceeded"):
		return Newf(KindRateLimit, "rate limited: %v", err)
	case containsAny(msg, "timeout", "deadline exceeded"):
		return Newf(KindTimeout, "timed out: %v", err)
	case containsAny(msg, "connection refused", "connection reset", "broken pipe", "no route to host", "service unavailable", "eof"):
		return Newf(KindNetwork, "transient network failure: %v", err)
	case containsAny(msg, "unauthorized", "forbidden", "authentication", "access denied", "invalid credentials"):
		return Newf(KindAuthentication, "authentication failed: %v", err)
	default:
		return Newf(KindQueryExecution, "query failed: %v", err)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
