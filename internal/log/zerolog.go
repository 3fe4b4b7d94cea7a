package log

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// zerologAdapter backs Modular with a github.com/rs/zerolog.Logger.
type zerologAdapter struct {
	l zerolog.Logger
}

// New builds the root Modular logger, writing leveled, structured lines to w.
func New(w io.Writer, level string) Modular {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return &zerologAdapter{l: zerolog.New(w).Level(lvl).With().Timestamp().Logger()}
}

func (z *zerologAdapter) With(keyValues ...any) Modular {
	ctx := z.l.With()
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, keyValues[i+1])
	}
	return &zerologAdapter{l: ctx.Logger()}
}

func (z *zerologAdapter) Errorf(format string, v ...any) { z.l.Error().Msg(fmt.Sprintf(format, v...)) }
func (z *zerologAdapter) Warnf(format string, v ...any)  { z.l.Warn().Msg(fmt.Sprintf(format, v...)) }
func (z *zerologAdapter) Infof(format string, v ...any)  { z.l.Info().Msg(fmt.Sprintf(format, v...)) }
func (z *zerologAdapter) Debugf(format string, v ...any) { z.l.Debug().Msg(fmt.Sprintf(format, v...)) }

func (z *zerologAdapter) Errorln(msg string) { z.l.Error().Msg(msg) }
func (z *zerologAdapter) Warnln(msg string)  { z.l.Warn().Msg(msg) }
func (z *zerologAdapter) Infoln(msg string)  { z.l.Info().Msg(msg) }
func (z *zerologAdapter) Debugln(msg string) { z.l.Debug().Msg(msg) }
