package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/avilar/dealersync/internal/config"
	"github.com/avilar/dealersync/internal/profile"
)

func main() {
	addrFlag := flag.String("addr", "", "daemon address (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config: %v\n", err)
		os.Exit(1)
	}
	addr := cfg.HTTP.Addr
	if *addrFlag != "" {
		addr = *addrFlag
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := &client{base: "http://" + addr, http: &http.Client{Timeout: 30 * time.Second}}

	switch args[0] {
	case "status":
		cmdStatus(c, *jsonFlag)
	case "conversations":
		cmdConversations(c, *jsonFlag)
	case "sync":
		if len(args) >= 2 {
			cmdSyncOne(c, args[1], *jsonFlag)
		} else {
			cmdSyncAll(c, *jsonFlag)
		}
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: dealerctl send <conversation-id> <text>")
			os.Exit(1)
		}
		cmdSend(c, args[1], strings.Join(args[2:], " "))
	case "export":
		out := "conversations.xlsx"
		if len(args) >= 2 {
			out = args[1]
		}
		cmdExport(c, out)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: dealerctl [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                  Show session status")
	fmt.Fprintln(os.Stderr, "  conversations           List conversations")
	fmt.Fprintln(os.Stderr, "  sync                    Sync all conversations")
	fmt.Fprintln(os.Stderr, "  sync <id>               Sync one conversation")
	fmt.Fprintln(os.Stderr, "  send <id> <text>        Queue an outgoing message")
	fmt.Fprintln(os.Stderr, "  export [file]           Download the Excel export")
}

type client struct {
	base string
	http *http.Client
}

func (c *client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *client) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reqBody = &buf
	}
	req, err := http.NewRequest(method, c.base+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach daemon at %s: %w", c.base, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Message)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func cmdStatus(c *client, jsonOut bool) {
	var resp struct {
		State     string `json:"state"`
		Connected bool   `json:"connected"`
		Phone     string `json:"phone"`
	}
	if err := c.get("/api/session", &resp); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("State:     %s\n", resp.State)
	fmt.Printf("Connected: %v\n", resp.Connected)
	if resp.Phone != "" {
		fmt.Printf("Phone:     %s\n", resp.Phone)
	}
}

func cmdConversations(c *client, jsonOut bool) {
	var convs []struct {
		ID            string `json:"id"`
		PhoneNumber   string `json:"phone_number"`
		VehicleID     string `json:"vehicle_id"`
		LastMessageAt int64  `json:"last_message_at"`
	}
	if err := c.get("/api/conversations", &convs); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations found.")
		return
	}
	for _, conv := range convs {
		last := "never"
		if conv.LastMessageAt > 0 {
			last = time.UnixMilli(conv.LastMessageAt).Format("2006-01-02 15:04")
		}
		fmt.Printf("%-36s  %-16s  last: %s\n", conv.ID, conv.PhoneNumber, last)
	}
}

func cmdSyncOne(c *client, id string, jsonOut bool) {
	var res struct {
		Examined int `json:"examined"`
		Saved    int `json:"saved"`
		Skipped  int `json:"skipped"`
		Invalid  int `json:"invalid"`
		Failed   int `json:"failed"`
	}
	if err := c.post("/api/conversations/"+id+"/sync", nil, &res); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(res)
		return
	}
	fmt.Printf("Examined: %d  Saved: %d  Skipped: %d  Invalid: %d  Failed: %d\n",
		res.Examined, res.Saved, res.Skipped, res.Invalid, res.Failed)
}

func cmdSyncAll(c *client, jsonOut bool) {
	var res struct {
		Totals struct {
			Examined int `json:"examined"`
			Saved    int `json:"saved"`
			Skipped  int `json:"skipped"`
		} `json:"totals"`
		Errors map[string]string `json:"errors"`
	}
	if err := c.post("/api/sync", nil, &res); err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(res)
		return
	}
	fmt.Printf("Examined: %d  Saved: %d  Skipped: %d\n",
		res.Totals.Examined, res.Totals.Saved, res.Totals.Skipped)
	for id, msg := range res.Errors {
		fmt.Printf("failed: %s: %s\n", id, msg)
	}
}

func cmdSend(c *client, id, text string) {
	var resp struct {
		ClientMsgID string `json:"client_msg_id"`
	}
	body := map[string]string{"body": text}
	if err := c.post("/api/conversations/"+id+"/messages", body, &resp); err != nil {
		fatal(err)
	}
	fmt.Printf("Queued: %s\n", resp.ClientMsgID)
}

func cmdExport(c *client, out string) {
	resp, err := c.http.Get(c.base + "/api/export.xlsx")
	if err != nil {
		fatal(fmt.Errorf("cannot reach daemon at %s: %w", c.base, err))
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		fatal(fmt.Errorf("daemon returned %s", resp.Status))
	}

	f, err := os.Create(out)
	if err != nil {
		fatal(err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		fatal(err)
	}
	if err := f.Close(); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %s\n", out)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
