package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/lazypower/mem/internal/engine"
	"github.com/lazypower/mem/internal/store"
	"github.com/rs/zerolog"
)

// DefaultContextLimit is how many memories the start and compact hooks inject.
const DefaultContextLimit = 10

// Handler runs assistant hook events against an open store.
type Handler struct {
	DB           *store.DB
	Engine       *engine.Engine
	Out          io.Writer
	Log          zerolog.Logger
	ContextLimit int

	now   func() time.Time
	getwd func() (string, error)
}

// New creates a Handler writing hook responses to out.
func New(db *store.DB, out io.Writer, log zerolog.Logger) *Handler {
	return &Handler{
		DB:           db,
		Engine:       engine.New(db, log),
		Out:          out,
		Log:          log,
		ContextLimit: DefaultContextLimit,
		now:          time.Now,
		getwd:        osGetwd,
	}
}

// Handle reads HookInput from stdin and dispatches on event. Malformed or
// empty stdin degrades to an empty input rather than failing the hook.
func (h *Handler) Handle(ctx context.Context, event string, stdin io.Reader) error {
	input := h.decodeInput(stdin)

	switch event {
	case "start":
		return h.handleStart(ctx, input)
	case "stop":
		return h.handleStop(ctx, input)
	case "compact":
		return h.handleCompact(ctx, input)
	case "end":
		return h.handleEnd(ctx, input)
	default:
		return fmt.Errorf("unknown hook event: %s", event)
	}
}

func (h *Handler) decodeInput(stdin io.Reader) *HookInput {
	var input HookInput
	if stdin == nil {
		return &input
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		h.Log.Warn().Err(err).Msg("read hook stdin")
		return &input
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &input
	}
	if err := json.Unmarshal(data, &input); err != nil {
		h.Log.Warn().Err(err).Msg("failed to parse hook stdin JSON")
		return &HookInput{}
	}
	return &input
}

func (h *Handler) contextLimit() int {
	if h.ContextLimit <= 0 {
		return DefaultContextLimit
	}
	return h.ContextLimit
}
