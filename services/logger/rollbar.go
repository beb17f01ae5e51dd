// Package logsvc reports log entries to rollbar and prints them to a standard logger.
package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
	levelFatal
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// RollbarLogger reports to rollbar and prints to std.
// Reporting needs a rollbar token, and is always off in test mode.
type RollbarLogger struct {
	std       *log.Logger
	minLevel  level
	canReport bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	l := &RollbarLogger{
		std:       std,
		minLevel:  levelInfo,
		canReport: conf.RollbarToken != "" && !conf.TestMode,
	}
	if conf.Debug {
		l.minLevel = levelDebug
	}

	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(l.canReport)
	return l
}

// Enable turns rollbar reporting on or off. It stays off without a token.
func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled && l.canReport)
}

// Close waits for queued items to be reported.
func (l *RollbarLogger) Close() {
	rollbar.Close()
}

// splitArgs separates the user the entry is about (the first user.User found) from the other args.
func splitArgs(args []interface{}) (*user.User, []interface{}) {
	var usr *user.User
	rest := make([]interface{}, 0, len(args))
	for _, arg := range args {
		if u, ok := arg.(user.User); ok {
			if usr == nil {
				usr = &u
			}
			continue
		}
		rest = append(rest, arg)
	}
	return usr, rest
}

func (l *RollbarLogger) log(lvl level, msg string, args []interface{}) {
	if lvl < l.minLevel {
		return
	}
	usr, rest := splitArgs(args)

	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Name, usr.Email)
	} else {
		rollbar.ClearPerson()
	}
	items := append([]interface{}{msg}, rest...)
	switch lvl {
	case levelDebug:
		rollbar.Debug(items...)
	case levelInfo:
		rollbar.Info(items...)
	case levelWarn:
		rollbar.Warning(items...)
	case levelError:
		rollbar.Error(items...)
	case levelFatal:
		rollbar.Critical(items...)
	}

	l.std.Printf("%s: %s", levelNames[lvl], msg)
	if usr != nil {
		l.std.Printf("  user: %s <%s>", usr.ID, usr.Email)
	}
	for _, arg := range rest {
		l.std.Printf("  %+v", arg)
	}
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(levelDebug, msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(levelInfo, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(levelWarn, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(levelError, msg, args) }

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(levelFatal, msg, args)
	rollbar.Close()
	l.std.Fatal(msg)
}
