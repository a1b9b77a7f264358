// Package logging configures the loggers of litemap.
//
// Packages obtain their logger from the dragonboat logger facade
// (logger.GetLogger("store"), ...). Init replaces the facade's default backend
// with zap, writing one line per message:
//
//	2025/01/01 12:00:00	INFO	store   	closed store ./db/litemap.db
package logging
