package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
)

// EnvLevel is consulted when no level is configured.
const EnvLevel = "GOMEMO_LOG"

// DefaultLevel is used when neither a configured level nor EnvLevel is set.
const DefaultLevel = "warn"

// Init sets up Apex with a Handler writing to w. level may be empty, in
// which case GOMEMO_LOG and then DefaultLevel apply.
func Init(level string, w io.Writer) error {
	if level == "" {
		level = os.Getenv(EnvLevel)
	}
	if level == "" {
		level = DefaultLevel
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	log.SetHandler(NewHandler(w))
	log.SetLevel(lvl)
	return nil
}

// Handler writes one line per entry: timestamp, level initial, message,
// then the fields as sorted name=value pairs.
type Handler struct {
	mu sync.Mutex
	w  io.Writer
}

// NewHandler returns a Handler writing to w.
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w}
}

// HandleLog implements the log.Handler interface
func (h *Handler) HandleLog(e *log.Entry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %.1s %s", e.Timestamp.Format(time.DateTime), strings.ToUpper(e.Level.String()), e.Message)
	for _, name := range e.Fields.Names() {
		fmt.Fprintf(&b, " %s=%v", name, e.Fields.Get(name))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}
