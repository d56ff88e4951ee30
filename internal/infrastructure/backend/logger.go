package backend

import (
	"fmt"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/microsoft/durabletask-go/backend"
	"github.com/rs/zerolog"
)

// taskHubLogger routes durabletask's logging through zerolog
type taskHubLogger struct {
	logger zerolog.Logger
}

var _ backend.Logger = (*taskHubLogger)(nil)

func NewTaskHubLogger(logger *observability.Logger) backend.Logger {
	return &taskHubLogger{logger: logger.Logger.With().Str("component", "taskhub").Logger()}
}

func (l *taskHubLogger) Debug(v ...any) { l.logger.Debug().Msg(fmt.Sprint(v...)) }

func (l *taskHubLogger) Debugf(format string, v ...any) { l.logger.Debug().Msgf(format, v...) }

func (l *taskHubLogger) Info(v ...any) { l.logger.Info().Msg(fmt.Sprint(v...)) }

func (l *taskHubLogger) Infof(format string, v ...any) { l.logger.Info().Msgf(format, v...) }

func (l *taskHubLogger) Warn(v ...any) { l.logger.Warn().Msg(fmt.Sprint(v...)) }

func (l *taskHubLogger) Warnf(format string, v ...any) { l.logger.Warn().Msgf(format, v...) }

func (l *taskHubLogger) Error(v ...any) { l.logger.Error().Msg(fmt.Sprint(v...)) }

func (l *taskHubLogger) Errorf(format string, v ...any) { l.logger.Error().Msgf(format, v...) }
