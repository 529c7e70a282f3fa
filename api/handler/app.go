// Package handler implements the admin/control HTTP API's individual
// route handlers. Grounded on the teacher's api/handler package (one
// file per route, a shared App/Scraper-style dependency bundle passed
// into each constructor).
package handler

import (
	"log/slog"
	"time"

	"github.com/hybridguard/filterengine/coordinator"
	"github.com/hybridguard/filterengine/navguard"
	"github.com/hybridguard/filterengine/rulesource"
	"github.com/hybridguard/filterengine/stats"
	"github.com/hybridguard/filterengine/store"
	"github.com/hybridguard/filterengine/threat"
)

// App bundles every collaborator the admin API's handlers need.
// Guardian may be nil when no NavigationGuardian is wired (e.g. a
// headless CI run of /scan only).
type App struct {
	Store       store.Store
	DefaultSrc  *rulesource.Default
	CustomSrc   *rulesource.Custom
	StatsStore  *stats.Store
	Analyzer    *threat.Analyzer
	Guardian    *navguard.Guardian
	Coordinator *coordinator.Coordinator
	Settings    func() coordinator.Settings

	StartTime time.Time
	Version   string
	Logger    *slog.Logger
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}
