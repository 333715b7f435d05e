package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger routes gorm's statement log into zerolog at debug level
type gormLogger struct {
	logger zerolog.Logger
}

func newGormLogger(logger zerolog.Logger) gormlogger.Interface {
	return gormLogger{logger: logger}
}

func (l gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	l.logger.Debug().Msgf(msg, data...)
}

func (l gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	l.logger.Warn().Msgf(msg, data...)
}

func (l gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	l.logger.Error().Msgf(msg, data...)
}

func (l gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	sql, rows := fc()
	event := l.logger.Debug().Dur("elapsed", time.Since(begin)).Int64("rows", rows)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		event = event.Err(err)
	}
	event.Msg(sql)
}
