package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/howeyc/gopass"
	"golang.org/x/time/rate"

	"github.com/wgbowley/PassEM/internal/audit"
	"github.com/wgbowley/PassEM/internal/auth"
	"github.com/wgbowley/PassEM/internal/config"
	cr "github.com/wgbowley/PassEM/internal/crypto"
	"github.com/wgbowley/PassEM/internal/platform"
	"github.com/wgbowley/PassEM/internal/vault"
)

func main() {
	// keep passphrases and keys out of core files
	_ = platform.Harden()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code. Every resource it opens is released
// before it returns.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		return fail(stderr, err)
	}
	log, logCloser, err := cfg.NewLogger()
	if err != nil {
		return fail(stderr, err)
	}
	defer logCloser.Close()

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fail(stderr, err)
	}
	defer closeStore()

	journal, err := audit.Open(cfg.AuditFile)
	if err != nil {
		return fail(stderr, err)
	}
	defer journal.Close()

	hashParams, err := cr.ScryptFromLog(cfg.MasterHashLogN, 8, 1, cr.KeySize)
	if err != nil {
		return fail(stderr, err)
	}
	opts := []vault.Option{
		vault.WithLogger(log),
		vault.WithAuditLog(journal),
		vault.WithIDLength(cfg.IDLength),
		vault.WithAuthenticator(auth.Authenticator{Params: hashParams}),
	}
	if cfg.AuthRatePerSec > 0 {
		opts = append(opts, vault.WithAuthLimiter(rate.NewLimiter(rate.Limit(cfg.AuthRatePerSec), cfg.AuthBurst)))
	}

	a := &app{
		mgr:       vault.New(store, opts...),
		out:       stdout,
		prompt:    promptPassphrase,
		auditPath: cfg.AuditFile,
	}
	err = a.run(ctx, args[0], args[1:])
	if errors.Is(err, errUsage) {
		usage(stderr)
		return 2
	}
	if err != nil {
		return fail(stderr, err)
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprint(w, `vaultctl commands:

  init                                     create the vault (asks for the master passphrase twice)
  login                                    check the master passphrase
  list    [--show]                         list records, passwords hidden unless --show
  get     --id <ID>                        print one record
  add     --name N --url U --pass <P|gen:N>
  edit    --id <ID> [--name N] [--url U] [--pass <P|gen:N>]
  delete  --id <ID>
  gen     [--len 20]                       print a random password (at most 256 chars)
  audit                                    verify the audit journal

Settings come from the environment or .env: VAULT_BACKEND (file|bolt|mongo),
VAULT_PATH, MONGO_URI, MONGO_DB, MONGO_COLLECTION, VAULT_NAME, ID_LENGTH,
MASTER_HASH_LOG_N, AUTH_RATE_PER_SEC, AUTH_BURST, LOG_LEVEL, LOG_FILE,
AUDIT_FILE.

Examples:
  vaultctl init
  vaultctl add --name email --url mail.example.com --pass gen:24
  vaultctl get --id Jx3...
`)
}

func promptPassphrase(prompt string) ([]byte, error) {
	return gopass.GetPasswdPrompt(prompt, false, os.Stdin, os.Stderr)
}

func fail(w io.Writer, err error) int {
	fmt.Fprintln(w, "error:", describe(err))
	return 1
}
