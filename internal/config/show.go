package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated summary
// to w. This powers "config show". The client secret is never printed.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.Path)

	secret := "(not set)"
	if r.Auth.ClientSecret != "" {
		secret = "(set)"
	}

	ew.printf("[auth]\n")
	ew.printf("  client_id        = %q\n", r.Auth.ClientID)
	ew.printf("  client_secret    = %s\n", secret)
	ew.printf("  redirect_uri     = %q\n\n", r.Auth.RedirectURI)

	ew.printf("[vault]\n")
	ew.printf("  dir              = %q\n", r.Vault.Dir)
	ew.printf("  locale           = %q\n\n", r.Vault.Locale)

	ew.printf("[sync]\n")
	ew.printf("  interval_seconds = %d\n", r.Sync.IntervalSeconds)
	ew.printf("  remote_dir       = %q\n", r.Sync.RemoteDir)
	ew.printf("  watch            = %t\n\n", r.Sync.Watch)

	ew.printf("[logging]\n")
	ew.printf("  log_level        = %q\n\n", r.Logging.LogLevel)

	ew.printf("[network]\n")
	ew.printf("  timeout          = %q\n\n", r.Network.Timeout)

	ew.printf("# Data files\n")
	ew.printf("#   token  = %s\n", r.TokenPath)
	ew.printf("#   ledger = %s\n", r.LedgerPath)
	ew.printf("#   lock   = %s\n", r.LockPath)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
