// Copyright 2024 The execore Authors
// This file is part of execore.

// Package log is a small log15-style structured logger in the idiom of
// erigon-lib/log/v3: leveled methods taking alternating key-value pairs,
// a package-level root logger, and New() for scoped child loggers that
// carry a fixed set of context fields.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

type Lvl int

const (
	LvlError Lvl = iota
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlError:
		return "EROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DBUG"
	case LvlTrace:
		return "TRCE"
	default:
		return "????"
	}
}

// Logger is a context-carrying structured logger.
type Logger interface {
	New(ctx ...interface{}) Logger
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	mu  *sync.Mutex
	out io.Writer
	lvl Lvl
}

var root = &logger{mu: &sync.Mutex{}, out: os.Stderr, lvl: LvlInfo}

// Root returns the package-wide root logger.
func Root() Logger { return root }

// New returns a logger scoped with the current global level/output plus the
// additional context fields provided.
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

// SetLevel controls the root logger's verbosity threshold.
func SetLevel(l Lvl) { root.lvl = l }

func (l *logger) New(ctx ...interface{}) Logger {
	nctx := make([]interface{}, 0, len(l.ctx)+len(ctx))
	nctx = append(nctx, l.ctx...)
	nctx = append(nctx, ctx...)
	return &logger{ctx: nctx, mu: l.mu, out: l.out, lvl: l.lvl}
}

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if lvl > l.lvl {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s [%s] %s", time.Now().Format("01-02|15:04:05.000"), lvl, msg)
	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.out)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }

// package-level convenience wrappers mirroring erigon-lib/log/v3's free functions.
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
