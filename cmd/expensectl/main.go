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
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/expensetracker/pkg/api/client"
)

const defaultAPIBase = "http://localhost:8000"

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	Username    string `json:"username,omitempty"`
}

var (
	buildVersion = "dev"

	stdout io.Writer = os.Stdout
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	switch cmd {
	case "register":
		return commandRegister(args)
	case "login":
		return commandLogin(args)
	case "logout":
		return commandLogout()
	case "whoami":
		return commandWhoami()
	case "passwd":
		return commandPasswd(args)
	case "expense":
		return commandExpense(args)
	case "version", "--version", "-v":
		printVersion()
		return nil
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func readSecret(prompt, given string) (string, error) {
	if secret := strings.TrimSpace(given); secret != "" {
		return secret, nil
	}
	fmt.Print(prompt)
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func newClient(cfg cliConfig, override string) (*apiclient.Client, cliConfig, error) {
	if strings.TrimSpace(override) != "" {
		cfg.APIBaseURL = override
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	return client, cfg, err
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" || strings.TrimSpace(*email) == "" {
		return errors.New("--username and --email are required")
	}
	secret, err := readSecret("Password: ", *password)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, cfg, err := newClient(cfg, *apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	user, err := client.Register(ctx, *username, *email, secret)
	if err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "registered %s (id %d)\n", user.Username, user.ID)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBase+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	secret, err := readSecret("Password: ", *password)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, cfg, err := newClient(cfg, *apiBase)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	token, err := client.Login(ctx, *username, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = token.AccessToken
	cfg.Username = *username
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "login successful")
	return nil
}

func commandLogout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.AccessToken = ""
	cfg.Username = ""
	return saveConfig(cfg)
}

func authedClient() (*apiclient.Client, cliConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	if cfg.AccessToken == "" {
		return nil, cfg, errors.New("not logged in; run expensectl login")
	}
	return newClient(cfg, "")
}

func commandWhoami() error {
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	user, err := client.Me(ctx, cfg.AccessToken)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s <%s> (id %d)\n", user.Username, user.Email, user.ID)
	return nil
}

func commandPasswd(args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	current := fs.String("current", "", "Current password (supply to avoid prompt)")
	next := fs.String("new", "", "New password (supply to avoid prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	oldSecret, err := readSecret("Current password: ", *current)
	if err != nil {
		return err
	}
	newSecret, err := readSecret("New password: ", *next)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	if err := client.ChangePassword(ctx, cfg.AccessToken, oldSecret, newSecret); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "password updated")
	return nil
}

func commandExpense(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: expensectl expense [list|add|show|rm]")
	}
	switch args[0] {
	case "list":
		return expenseList()
	case "add":
		return expenseAdd(args[1:])
	case "show":
		return expenseShow(args[1:])
	case "rm":
		return expenseRemove(args[1:])
	default:
		return fmt.Errorf("unknown expense command: %s", args[0])
	}
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func printExpenses(list []apiclient.Expense) {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, e := range list {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\n", e.ID, e.Date, e.Amount, deref(e.Category), deref(e.Description))
	}
	_ = tw.Flush()
}

func expenseList() error {
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	list, err := client.ListExpenses(ctx, cfg.AccessToken)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(stdout, "no expenses recorded")
		return nil
	}
	printExpenses(list)
	return nil
}

func expenseAdd(args []string) error {
	fs := flag.NewFlagSet("expense add", flag.ContinueOnError)
	amount := fs.Float64("amount", 0, "Amount spent")
	date := fs.String("date", time.Now().Format("2006-01-02"), "Date (YYYY-MM-DD)")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "", "Category")
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	e, err := client.CreateExpense(ctx, cfg.AccessToken, apiclient.ExpenseInput{
		Amount:      *amount,
		Date:        *date,
		Description: optional(*description),
		Category:    optional(*category),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "expense %d recorded\n", e.ID)
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expense id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid expense id %q", args[0])
	}
	return id, nil
}

func expenseShow(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	e, err := client.GetExpense(ctx, cfg.AccessToken, id)
	if err != nil {
		return err
	}
	printExpenses([]apiclient.Expense{*e})
	return nil
}

func expenseRemove(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	client, cfg, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext()
	defer cancel()
	e, err := client.DeleteExpense(ctx, cfg.AccessToken, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "expense %d removed (%.2f on %s)\n", e.ID, e.Amount, e.Date)
	return nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBase}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBase
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
	if override := strings.TrimSpace(os.Getenv("EXPENSECTL_CONFIG")); override != "" {
		return override, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "expensectl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("expensectl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	expensectl register --username alice --email alice@example.com [--password secret] [--api ` + defaultAPIBase + `]
	expensectl login --username alice [--password secret] [--api ` + defaultAPIBase + `]
	expensectl logout
	expensectl whoami
	expensectl passwd [--current secret] [--new secret]
	expensectl expense list
	expensectl expense add --amount 12.50 [--date 2024-01-31] [--description text] [--category food]
	expensectl expense show <id>
	expensectl expense rm <id>
	expensectl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
