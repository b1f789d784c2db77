package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/umd/pkg/api/client"
	"github.com/splax/umd/pkg/config"
)

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
	SessionID  string `json:"session_id"`
	Token      string `json:"token"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "session":
		err = commandSession(args)
	case "users":
		err = commandUsers(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var apiErr apiclient.APIError
		if errors.As(err, &apiErr) {
			printFieldErrors(os.Stderr, apiErr.Fields)
		}
		os.Exit(1)
	}
}

func commandSession(args []string) error {
	fs := flag.NewFlagSet("session", flag.ExitOnError)
	apiBase := fs.String("api", "", "Dashboard base URL (default http://localhost:3000)")
	fs.Parse(args)

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sess, err := client.OpenSession(ctx)
	if err != nil {
		return err
	}
	cfg.SessionID = sess.ID
	cfg.Token = sess.Token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("session started: %s\n", sess.ID)
	return nil
}

func commandUsers(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: umdctl users [list|add|delete|stats|validate]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return usersList(args[1:])
	case "add":
		return usersAdd(args[1:])
	case "delete":
		return usersDelete(args[1:])
	case "stats":
		return usersStats(args[1:])
	case "validate":
		return usersValidate(args[1:])
	default:
		return fmt.Errorf("unknown users command: %s", sub)
	}
}

func usersList(args []string) error {
	fs := flag.NewFlagSet("users list", flag.ExitOnError)
	limit := fs.Int("limit", 0, "Maximum number of users to display")
	fs.Parse(args)

	client, token, err := sessionClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	list, err := client.ListUsers(ctx, token)
	if err != nil {
		return err
	}
	count := len(list)
	if *limit > 0 && *limit < count {
		count = *limit
	}
	out := newTable(os.Stdout)
	fmt.Fprintln(out, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range list[:count] {
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	return out.Flush()
}

func usersAdd(args []string) error {
	fs := flag.NewFlagSet("users add", flag.ExitOnError)
	input := userFlags(fs)
	fs.Parse(args)

	client, token, err := sessionClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	user, err := client.AddUser(ctx, token, *input)
	if err != nil {
		return err
	}
	fmt.Printf("user added: %d (%s)\n", user.ID, user.Name)
	return nil
}

func usersDelete(args []string) error {
	fs := flag.NewFlagSet("users delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "User identifier")
	fs.Parse(args)
	if *id <= 0 {
		return errors.New("--id is required")
	}

	client, token, err := sessionClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := client.DeleteUser(ctx, token, *id); err != nil {
		if apiclient.IsNotFound(err) {
			fmt.Printf("user %d not found\n", *id)
			return nil
		}
		return err
	}
	fmt.Println("user deleted")
	return nil
}

func usersStats(args []string) error {
	fs := flag.NewFlagSet("users stats", flag.ExitOnError)
	roles := fs.String("roles", "", "Comma separated roles to count (default: server setting)")
	fs.Parse(args)

	client, token, err := sessionClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stats, err := client.UserStats(ctx, token, config.SplitList(*roles))
	if err != nil {
		return err
	}
	out := newTable(os.Stdout)
	fmt.Fprintf(out, "Total\t%d\n", stats.Total)
	for _, rc := range stats.ByRole {
		fmt.Fprintf(out, "%s\t%d\n", rc.Role, rc.Count)
	}
	return out.Flush()
}

func usersValidate(args []string) error {
	fs := flag.NewFlagSet("users validate", flag.ExitOnError)
	input := userFlags(fs)
	fs.Parse(args)

	client, token, err := sessionClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	result, err := client.ValidateUser(ctx, token, *input)
	if err != nil {
		return err
	}
	if result.Valid {
		fmt.Println("valid")
		return nil
	}
	printFieldErrors(os.Stdout, result.Errors)
	return errors.New("input rejected")
}

func userFlags(fs *flag.FlagSet) *apiclient.CreateUserInput {
	input := &apiclient.CreateUserInput{}
	fs.StringVar(&input.Name, "name", "", "Full name")
	fs.StringVar(&input.Email, "email", "", "Email address")
	fs.StringVar(&input.Role, "role", "", "Role (Admin|Editor|Viewer)")
	return input
}

func sessionClient() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, "", errors.New("please start a session first using 'umdctl session'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func printFieldErrors(w io.Writer, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %s\n", name, fields[name])
	}
}

// tableWriter aligns columns on a terminal and keeps plain tabs otherwise.
type tableWriter interface {
	io.Writer
	Flush() error
}

type plainWriter struct{ io.Writer }

func (plainWriter) Flush() error { return nil }

func newTable(f *os.File) tableWriter {
	if term.IsTerminal(int(f.Fd())) {
		return tabwriter.NewWriter(f, 0, 4, 2, ' ', 0)
	}
	return plainWriter{f}
}

func loadConfig() (cliConfig, error) {
	fallback := config.GetString("UMD_API_URL", "http://localhost:3000")
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: fallback}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = fallback
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "umdctl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("umdctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	umdctl session [--api http://localhost:3000]
	umdctl users list [--limit N]
	umdctl users add --name <name> --email <email> --role Admin|Editor|Viewer
	umdctl users delete --id <id>
	umdctl users stats [--roles Admin,Editor]
	umdctl users validate --name <name> --email <email> --role <role>
	umdctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
