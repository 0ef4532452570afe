// Package obs holds the service's observability plumbing: the shared JSON
// line logger, the Prometheus registry and HTTP instrumentation, and the
// build info gauge. Everything here is process-global; packages log and
// count through obs instead of owning their own sinks.
package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

// One JSON object per line on stdout. No prefix, no flags: every field,
// including the timestamp, belongs to the caller's payload.
var sharedLogger = sync.OnceValue(func() *log.Logger {
	return log.New(os.Stdout, "", 0)
})

// Logger returns the process-wide line logger. Tests may redirect it with
// SetOutput.
func Logger() *log.Logger {
	return sharedLogger()
}

// LogRequest marshals the entry and emits it as a single JSON line. A
// marshal failure is reported in-band so the line count stays truthful.
func LogRequest(entry map[string]any) {
	data, err := json.Marshal(entry)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"log entry not serializable"}`)
		return
	}
	Logger().Println(string(data))
}
