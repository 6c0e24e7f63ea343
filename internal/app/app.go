// Package app is the composition root: it owns the HTTP client, the store,
// the services and the command table the REPL dispatches into. Collaborators
// are constructed explicitly and injected; nothing here is package-global
// state.
package app

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"fbaudio/internal/catalog"
	"fbaudio/internal/config"
	"fbaudio/internal/downloads"
	"fbaudio/internal/library"
	"fbaudio/internal/playback"
	"fbaudio/internal/searchcache"
	"fbaudio/internal/store"
	"fbaudio/internal/watch"
)

type commandHandler func(context.Context, []string) (CommandResult, error)

type command struct {
	usage   string
	summary string
	handler commandHandler
}

// CommandResult is what a dispatched command hands back to the REPL.
type CommandResult struct {
	Message string
	Quit    bool
}

// App wires the library subsystem together for an interactive session.
type App struct {
	config     config.Config
	db         *sql.DB
	httpClient *http.Client
	store      *store.Store
	catalog    *catalog.Client
	library    *library.Service
	downloads  *downloads.Service
	player     playback.Port
	watcher    *watch.Watcher
	commands   map[string]*command
	out        *os.File

	libraryChanged chan struct{}
}

// Dependencies allows tests to substitute collaborators.
type Dependencies struct {
	HTTPClient *http.Client
	Catalog    *catalog.Client
	Player     playback.Port
	Sleep      downloads.SleepFunc
}

// New constructs the application. The db handle backs the search cache and
// may be nil to disable caching.
func New(cfg config.Config, db *sql.DB) (*App, error) {
	return NewWithDependencies(cfg, db, Dependencies{})
}

func NewWithDependencies(cfg config.Config, db *sql.DB, deps Dependencies) (*App, error) {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: !cfg.TLSVerify},
		}
		if proxyURL := strings.TrimSpace(cfg.Proxy); proxyURL != "" {
			if parsed, err := url.Parse(proxyURL); err == nil {
				transport.Proxy = http.ProxyURL(parsed)
			}
		}
		timeout := time.Duration(cfg.HTTPTimeoutSec) * time.Second
		httpClient = &http.Client{Timeout: timeout, Transport: transport}
	}

	catalogClient := deps.Catalog
	if catalogClient == nil {
		catalogClient = catalog.NewClient(httpClient, cfg.BaseURL)
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	var cache *searchcache.Cache
	if db != nil {
		cache = searchcache.New(db)
	}

	player := deps.Player
	if player == nil {
		player = playback.Noop{}
	}

	a := &App{
		config:     cfg,
		db:         db,
		httpClient: httpClient,
		store:      st,
		catalog:    catalogClient,
		library:    library.NewService(st, catalogClient, cache),
		downloads:  downloads.NewService(cfg, st, httpClient, deps.Sleep),
		player:     player,
		out:        os.Stdout,

		libraryChanged: make(chan struct{}, 1),
	}
	a.registerCommands()

	watcher, err := watch.New(st.AudioRoot(), 500*time.Millisecond, a.notifyLibraryChanged)
	if err != nil {
		log.Printf("audio watcher unavailable: %v", err)
	} else {
		a.watcher = watcher
	}

	return a, nil
}

// notifyLibraryChanged coalesces watcher callbacks into the pending signal.
func (a *App) notifyLibraryChanged() {
	log.Printf("audio directory changed on disk")
	select {
	case a.libraryChanged <- struct{}{}:
	default:
	}
}

// LibraryChanged signals that downloaded audio changed on disk outside the
// application, e.g. a file manager deleting a talk directory. Receivers
// should re-list downloaded talks. Signals coalesce; at most one is pending.
func (a *App) LibraryChanged() <-chan struct{} { return a.libraryChanged }

// Library exposes the facade for in-process consumers beyond the REPL.
func (a *App) Library() *library.Service { return a.library }

// Downloads exposes the download coordinator.
func (a *App) Downloads() *downloads.Service { return a.downloads }

// Close releases background resources.
func (a *App) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			log.Printf("close watcher: %v", err)
		}
	}
}

func (a *App) fail(format string, args ...any) (CommandResult, error) {
	return CommandResult{}, fmt.Errorf(format, args...)
}

func shortBlurb(blurb string) string {
	blurb = strings.TrimSpace(blurb)
	if len(blurb) > 160 {
		return blurb[:157] + "..."
	}
	return blurb
}

func talkLine(id, title, speaker, year string) string {
	parts := []string{fmt.Sprintf("[%s] %s", id, title)}
	if speaker != "" {
		parts = append(parts, speaker)
	}
	if year != "" {
		parts = append(parts, year)
	}
	return strings.Join(parts, " - ")
}
