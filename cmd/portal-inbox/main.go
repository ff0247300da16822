// Command portal-inbox is a terminal inbox for portal notifications with
// realtime delivery.
//
//	portal-inbox          open the inbox
//	portal-inbox login    store the portal URL and session token
//	portal-inbox logout   forget the token and the cached inbox
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/nhle/portal-inbox/internal/app"
	"github.com/nhle/portal-inbox/internal/credential"
	"github.com/nhle/portal-inbox/internal/model"
	"github.com/nhle/portal-inbox/internal/session"
	"github.com/nhle/portal-inbox/internal/store"
	"github.com/nhle/portal-inbox/internal/theme"
	"github.com/nhle/portal-inbox/internal/ui/login"
)

func main() {
	cfgPath := flag.String("config", model.DefaultConfigPath(), "path to config file")
	logPath := flag.String("log", "", "log file (default: next to the config file)")
	flag.Usage = usage
	flag.Parse()

	cfg, err := model.LoadConfig(*cfgPath)
	if err != nil {
		fatal(err)
	}
	theme.Apply(cfg.Display.Theme)

	switch cmd := flag.Arg(0); cmd {
	case "", "run":
		err = run(cfg, *logPath, *cfgPath)
	case "login":
		err = runLogin(cfg, *cfgPath)
	case "logout":
		err = runLogout(cfg)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func run(cfg *model.AppConfig, logPath, cfgPath string) error {
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(cfgPath), "portal-inbox.log")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := tea.LogToFile(logPath, "portal-inbox")
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	token, err := credential.Token()
	if err != nil {
		log.Printf("reading session token: %v", err)
	}

	cache, closeCache := openCache(cfg)
	defer closeCache()

	bridge := app.NewBridge()
	sess, err := session.New(cfg, token, session.Deps{Store: cache, Alerter: bridge})
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Start(context.Background()); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	p := tea.NewProgram(app.New(sess, bridge, cfg), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

func runLogin(cfg *model.AppConfig, cfgPath string) error {
	res, err := login.New(cfg).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := login.Save(res, cfg, cfgPath); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s.\n", res.Recipient)
	return nil
}

func runLogout(cfg *model.AppConfig) error {
	if err := credential.DeleteToken(); err != nil {
		return err
	}

	cache, closeCache := openCache(cfg)
	defer closeCache()
	if cache != nil {
		if err := cache.Clear(context.Background()); err != nil {
			return fmt.Errorf("clearing cached inbox: %w", err)
		}
	}

	fmt.Println("Signed out.")
	return nil
}

// openCache opens the local inbox cache. The cache is optional: on
// failure the error is logged and a nil store is returned.
func openCache(cfg *model.AppConfig) (store.Store, func()) {
	if err := os.MkdirAll(filepath.Dir(cfg.Cache.Path), 0o755); err != nil {
		log.Printf("creating cache directory: %v", err)
		return nil, func() {}
	}
	st, err := store.NewSQLiteStore(cfg.Cache.Path)
	if err != nil {
		log.Printf("opening inbox cache: %v", err)
		return nil, func() {}
	}
	return st, func() {
		if err := st.Close(); err != nil {
			log.Printf("closing inbox cache: %v", err)
		}
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] [run|login|logout]\n\nFlags:\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
