package logging

import (
	"time"

	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

type (
	// ZerologEvent implements logiface.Event, wrapping a zerolog event.
	ZerologEvent struct {
		logiface.UnimplementedEvent
		Z   *zerolog.Event
		msg string
		lvl logiface.Level
	}

	// ZerologLogger implements logiface.EventFactory and logiface.Writer.
	ZerologLogger struct {
		Z zerolog.Logger
	}
)

var (
	// compile time assertions

	_ logiface.Event                       = (*ZerologEvent)(nil)
	_ logiface.EventFactory[*ZerologEvent] = (*ZerologLogger)(nil)
	_ logiface.Writer[*ZerologEvent]       = (*ZerologLogger)(nil)
)

// NewZerolog wraps z as a generic logiface logger. Levels above error never
// exit or panic, unlike zerolog's own Fatal and Panic.
func NewZerolog(z zerolog.Logger, level logiface.Level) *logiface.Logger[logiface.Event] {
	impl := &ZerologLogger{Z: z}
	return logiface.New[*ZerologEvent](
		logiface.WithEventFactory[*ZerologEvent](impl),
		logiface.WithWriter[*ZerologEvent](impl),
		logiface.WithLevel[*ZerologEvent](level),
	).Logger()
}

func (x *ZerologEvent) Level() logiface.Level {
	if x != nil {
		return x.lvl
	}
	return logiface.LevelDisabled
}

func (x *ZerologEvent) AddField(key string, val any) {
	x.Z.Interface(key, val)
}

func (x *ZerologEvent) AddMessage(msg string) bool {
	x.msg = msg
	return true
}

func (x *ZerologEvent) AddError(err error) bool {
	x.Z.Err(err)
	return true
}

func (x *ZerologEvent) AddString(key string, val string) bool {
	x.Z.Str(key, val)
	return true
}

func (x *ZerologEvent) AddInt(key string, val int) bool {
	x.Z.Int(key, val)
	return true
}

func (x *ZerologEvent) AddInt64(key string, val int64) bool {
	x.Z.Int64(key, val)
	return true
}

func (x *ZerologEvent) AddUint64(key string, val uint64) bool {
	x.Z.Uint64(key, val)
	return true
}

func (x *ZerologEvent) AddBool(key string, val bool) bool {
	x.Z.Bool(key, val)
	return true
}

func (x *ZerologEvent) AddDuration(key string, val time.Duration) bool {
	x.Z.Dur(key, val)
	return true
}

func (x *ZerologLogger) NewEvent(level logiface.Level) *ZerologEvent {
	if !level.Enabled() {
		return nil
	}
	r := ZerologEvent{lvl: level}
	switch level {
	case logiface.LevelTrace:
		r.Z = x.Z.Trace()
	case logiface.LevelDebug:
		r.Z = x.Z.Debug()
	case logiface.LevelInformational:
		r.Z = x.Z.Info()
	case logiface.LevelNotice, logiface.LevelWarning:
		r.Z = x.Z.Warn()
	case logiface.LevelError:
		r.Z = x.Z.Error()
	case logiface.LevelCritical, logiface.LevelAlert:
		r.Z = x.Z.WithLevel(zerolog.FatalLevel)
	case logiface.LevelEmergency:
		r.Z = x.Z.WithLevel(zerolog.PanicLevel)
	default:
		// levels beyond trace map to zerolog's numeric levels (9 -> -2, etc)
		r.Z = x.Z.WithLevel(zerolog.Level(7 - level))
	}
	return &r
}

func (x *ZerologLogger) Write(event *ZerologEvent) error {
	event.Z.Msg(event.msg)
	return nil
}
