// Package log provides named, leveled loggers for solrpi.
//
// Key Features
//
//   - Per service loggers via ForService(name)
//   - Every line carries the service as `[name>]`
//     (example: `INFO [lifecycle>] request complete`)
//   - Level helpers: Infof, Warnf, Errorf, Debugf
//   - Debug logging can be enabled globally (SetGlobalDebug) or per service
//     (EnableDebugFor / DisableDebugFor)
//   - Structured fields through With(key, value, ...)
//   - Central output writer (SetOutput) that existing loggers follow
//
// The loggers are backed by a single zap console core. Debug gating happens
// in this package so a service can be made verbose without touching the
// others.
//
// Basic Usage
//
//	log.SetGlobalDebug(true)
//	l := log.ForService("backend")
//	l.Infof("connected to %s", url)
//	l.With("code", 1400000101).Errorf("select failed: %v", err)
//
// Testing
//
// Tests can redirect output by calling SetOutput with a bytes.Buffer and
// assert on its contents.
package log
