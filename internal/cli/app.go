package cli

import (
	"fmt"

	"commitlens/internal/api"
	"commitlens/internal/config"
	"commitlens/internal/forge"
	"commitlens/internal/logging"
	"commitlens/internal/session"
	"commitlens/internal/storage"
)

// app wires the shared collaborators for every command.
type app struct {
	cfg    *config.Config
	log    logging.Logger
	kv     *storage.KV
	store  *session.Store
	client *api.Client
	forge  forge.Forge
}

// newApp loads configuration and opens the state database. console enables
// console logging when the config allows it; the TUI never logs to the
// terminal.
func newApp(console bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.Logging.Console = cfg.Logging.Console && console

	log, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	f, err := forge.New(cfg.OAuth.Provider)
	if err != nil {
		return nil, err
	}

	kv, err := storage.Open(cfg.Storage.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	client, err := api.New(cfg.API.BaseURL, cfg.API.Timeout, log)
	if err != nil {
		kv.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		kv:     kv,
		store:  session.NewStore(kv, log),
		client: client,
		forge:  f,
	}, nil
}

func (a *app) authOpts() forge.AuthOpts {
	return forge.AuthOpts{
		ClientID:    a.cfg.OAuth.ClientID,
		RedirectURL: a.cfg.OAuth.RedirectURL,
		Scopes:      a.cfg.OAuth.Scopes,
	}
}

func (a *app) Close() error {
	return a.kv.Close()
}
