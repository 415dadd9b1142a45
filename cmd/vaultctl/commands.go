package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wgbowley/PassEM/internal/audit"
	"github.com/wgbowley/PassEM/internal/auth"
	cr "github.com/wgbowley/PassEM/internal/crypto"
	"github.com/wgbowley/PassEM/internal/document"
	"github.com/wgbowley/PassEM/internal/vault"
)

var (
	errUsage   = errors.New("usage")
	errDenied  = errors.New("invalid credentials or record not found")
	errNoMatch = errors.New("passphrases do not match")
)

type app struct {
	mgr       *vault.Manager
	out       io.Writer
	prompt    func(string) ([]byte, error)
	auditPath string
}

// describe hides which of a wrong passphrase or a missing record caused a
// failure.
func describe(err error) error {
	if errors.Is(err, vault.ErrAuthentication) || errors.Is(err, vault.ErrNotFound) {
		return errDenied
	}
	return err
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "init":
		return a.cmdInit(ctx)
	case "login":
		_, err := a.unlock(ctx)
		if err == nil {
			fmt.Fprintln(a.out, "Authorized.")
		}
		return err
	case "list":
		return a.cmdList(ctx, args)
	case "get":
		return a.cmdGet(ctx, args)
	case "add":
		return a.cmdAdd(ctx, args)
	case "edit":
		return a.cmdEdit(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "gen":
		return a.cmdGen(args)
	case "audit":
		return a.cmdAudit()
	default:
		return errUsage
	}
}

// unlock prompts for the master passphrase and checks it. The caller owns
// the returned passphrase for one command only.
func (a *app) unlock(ctx context.Context) (string, error) {
	pw, err := a.prompt("Master passphrase: ")
	if err != nil {
		return "", err
	}
	defer cr.Zero(pw)
	pass := string(pw)
	if !a.mgr.CheckAuthorization(ctx, pass) {
		return "", errDenied
	}
	return pass, nil
}

func (a *app) cmdInit(ctx context.Context) error {
	exists, err := a.mgr.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return vault.ErrAlreadyExists
	}
	pw, err := a.prompt("New master passphrase: ")
	if err != nil {
		return err
	}
	defer cr.Zero(pw)
	again, err := a.prompt("Repeat master passphrase: ")
	if err != nil {
		return err
	}
	defer cr.Zero(again)
	if string(pw) != string(again) {
		return errNoMatch
	}
	if err := auth.ValidatePassphrase(string(pw)); err != nil {
		return err
	}
	if _, err := a.mgr.InitializeVault(ctx, string(pw)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Vault created.")
	return nil
}

type listedRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Password string `json:"password,omitempty"`
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	show := fs.Bool("show", false, "include passwords")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	pass, err := a.unlock(ctx)
	if err != nil {
		return err
	}
	res, err := a.mgr.LoadAll(ctx, pass)
	if err != nil {
		return err
	}

	out := make([]listedRecord, 0, len(res.Records))
	for id, r := range res.Records {
		lr := listedRecord{ID: id, Name: r.Name, URL: r.URL}
		if *show {
			lr.Password = r.Password
		}
		out = append(out, lr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	if err := a.printJSON(out); err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		fmt.Fprintf(a.out, "%d record(s) could not be decrypted: %s\n", len(res.Failed), strings.Join(res.Failed, ", "))
	}
	return nil
}

func (a *app) cmdGet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	id := fs.String("id", "", "record id")
	if err := fs.Parse(args); err != nil || *id == "" {
		return errUsage
	}
	pass, err := a.unlock(ctx)
	if err != nil {
		return err
	}
	rec, err := a.mgr.GetRecord(ctx, pass, *id)
	if err != nil {
		return err
	}
	return a.printJSON(rec)
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	name := fs.String("name", "", "record name")
	url := fs.String("url", "", "site url")
	pw := fs.String("pass", "", "password or gen:N to generate N chars")
	if err := fs.Parse(args); err != nil || *name == "" || *pw == "" {
		return errUsage
	}
	secret, err := resolvePassword(*pw)
	if err != nil {
		return err
	}
	pass, err := a.unlock(ctx)
	if err != nil {
		return err
	}
	id, err := a.mgr.AddRecord(ctx, pass, document.Record{Name: *name, URL: *url, Password: secret})
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Added record id:", id)
	return nil
}

// cmdEdit keeps the fields that are not given.
func (a *app) cmdEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ContinueOnError)
	id := fs.String("id", "", "record id")
	name := fs.String("name", "", "new name")
	url := fs.String("url", "", "new url")
	pw := fs.String("pass", "", "new password or gen:N")
	if err := fs.Parse(args); err != nil || *id == "" {
		return errUsage
	}
	pass, err := a.unlock(ctx)
	if err != nil {
		return err
	}
	rec, err := a.mgr.GetRecord(ctx, pass, *id)
	if err != nil {
		return err
	}
	if *name != "" {
		rec.Name = *name
	}
	if *url != "" {
		rec.URL = *url
	}
	if *pw != "" {
		if rec.Password, err = resolvePassword(*pw); err != nil {
			return err
		}
	}
	if err := a.mgr.EditRecord(ctx, pass, *id, rec); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Updated record id:", *id)
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	id := fs.String("id", "", "record id")
	if err := fs.Parse(args); err != nil || *id == "" {
		return errUsage
	}
	if _, err := a.unlock(ctx); err != nil {
		return err
	}
	if err := a.mgr.DeleteRecord(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Deleted record id:", *id)
	return nil
}

func (a *app) cmdGen(args []string) error {
	fs := flag.NewFlagSet("gen", flag.ContinueOnError)
	n := fs.Int("len", defaultGenLength, "password length")
	if err := fs.Parse(args); err != nil || *n <= 0 || *n > maxGenLength {
		return errUsage
	}
	pw, err := genPassword(*n)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, pw)
	return nil
}

// cmdAudit needs no passphrase: journal entries hold ids and actions only.
func (a *app) cmdAudit() error {
	entries, err := audit.ReadEntries(a.auditPath)
	if err != nil {
		return err
	}
	if err := audit.VerifyEntries(entries); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d audit entries, chain intact.\n", len(entries))
	return nil
}

func (a *app) printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

const (
	defaultGenLength = 20
	maxGenLength     = 256
	genAlphabet      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()-_=+[]{}"
)

// resolvePassword expands gen:N into a generated password. A bare "gen:"
// uses the default length.
func resolvePassword(p string) (string, error) {
	arg, ok := strings.CutPrefix(p, "gen:")
	if !ok {
		return p, nil
	}
	n := defaultGenLength
	if arg != "" {
		var err error
		if n, err = strconv.Atoi(arg); err != nil || n <= 0 || n > maxGenLength {
			return "", errUsage
		}
	}
	return genPassword(n)
}

func genPassword(n int) (string, error) {
	cutoff := 256 - 256%len(genAlphabet)
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) < cutoff && len(out) < n {
				out = append(out, genAlphabet[int(b)%len(genAlphabet)])
			}
		}
	}
	return string(out), nil
}
