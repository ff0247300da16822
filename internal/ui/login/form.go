// Package login collects the portal address and session token and stores
// them: the address in the config file, the token in the system keyring.
package login

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/portal-inbox/internal/credential"
	"github.com/nhle/portal-inbox/internal/model"
)

// Result is what the form collected.
type Result struct {
	BaseURL   string
	Token     string
	Recipient string
}

// Form wraps the huh form and the values it binds to.
type Form struct {
	form    *huh.Form
	baseURL string
	token   string
}

// New builds the login form, prefilled with the configured base URL.
func New(cfg *model.AppConfig) *Form {
	f := &Form{baseURL: cfg.Server.BaseURL}
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Portal URL").
				Description("Root URL of the portal (e.g., https://portal.example.edu)").
				Placeholder("https://portal.example.edu").
				Value(&f.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Session token").
				Description("Copy it from the portal's profile page").
				EchoMode(huh.EchoModePassword).
				Value(&f.token).
				Validate(validateToken),
		),
	)
	return f
}

// Run shows the form in the terminal and blocks until it completes.
func (f *Form) Run() (Result, error) {
	if err := f.form.Run(); err != nil {
		return Result{}, err
	}
	return f.result()
}

func (f *Form) result() (Result, error) {
	token := strings.TrimSpace(f.token)
	recipient, err := credential.RecipientID(token)
	if err != nil {
		return Result{}, err
	}
	return Result{
		BaseURL:   strings.TrimRight(strings.TrimSpace(f.baseURL), "/"),
		Token:     token,
		Recipient: recipient,
	}, nil
}

// Save stores the token in the keyring and the base URL in the config
// file at cfgPath.
func Save(res Result, cfg *model.AppConfig, cfgPath string) error {
	if err := credential.SetToken(res.Token); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	cfg.Server.BaseURL = res.BaseURL
	if err := model.SaveConfig(cfgPath, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("URL must include http(s) scheme and host (e.g., https://portal.example.edu)")
	}
	return nil
}

func validateToken(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("token is required")
	}
	if _, err := credential.RecipientID(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("not a portal session token: %w", err)
	}
	return nil
}
