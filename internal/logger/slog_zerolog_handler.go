package logger

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
)

// zlHandler bridges slog onto zerolog so the service can hand out
// *slog.Logger while keeping zerolog's output format. Request-scoped
// fields (request_id, component) travel in the context and are attached
// by FromContext on every record.
type zlHandler struct {
	zl     *zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&zlHandler{zl: zl})
}

func (h *zlHandler) Enabled(_ context.Context, l slog.Level) bool {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.GlobalLevel() <= zerolog.DebugLevel
	case l >= slog.LevelError:
		return zerolog.GlobalLevel() <= zerolog.ErrorLevel
	case l == slog.LevelWarn:
		return zerolog.GlobalLevel() <= zerolog.WarnLevel
	default:
		return zerolog.GlobalLevel() <= zerolog.InfoLevel
	}
}

func (h *zlHandler) Handle(ctx context.Context, r slog.Record) error {
	base := FromContext(ctx, h.zl)

	var ev *zerolog.Event
	switch {
	case r.Level <= slog.LevelDebug:
		ev = base.Debug()
	case r.Level == slog.LevelWarn:
		ev = base.Warn()
	case r.Level >= slog.LevelError:
		ev = base.Error()
	default:
		ev = base.Info()
	}

	for _, a := range h.attrs {
		ev = addAttr(ev, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = addAttr(ev, h.groups, a)
		return true
	})

	ev.Msg(r.Message)
	return nil
}

func (h *zlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := &zlHandler{zl: h.zl, groups: h.groups}
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return cp
}

func (h *zlHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := &zlHandler{zl: h.zl, attrs: h.attrs}
	cp.groups = append(append([]string{}, h.groups...), name)
	return cp
}

// addAttr flattens grouped attrs into dotted keys, which keeps the JSON
// output one level deep the way the rest of the service logs.
func addAttr(ev *zerolog.Event, groups []string, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		sub := groups
		if a.Key != "" {
			sub = append(append([]string{}, groups...), a.Key)
		}
		for _, ga := range a.Value.Group() {
			ev = addAttr(ev, sub, ga)
		}
		return ev
	}

	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return ev.Str(key, a.Value.String())
	case slog.KindInt64:
		return ev.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, a.Value.Float64())
	case slog.KindBool:
		return ev.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		return ev.Dur(key, a.Value.Duration())
	case slog.KindTime:
		return ev.Time(key, a.Value.Time())
	default:
		return ev.Interface(key, a.Value.Any())
	}
}
