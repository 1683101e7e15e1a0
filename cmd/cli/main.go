package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	defaultServerURL = "http://localhost:12212"
	defaultPrinter   = "localhost:9100"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
)

func main() {
	var (
		serverURL   string
		printerAddr string
		output      string
		index       int
	)
	flag.StringVar(&serverURL, "server", defaultServerURL, "API URL")
	flag.StringVar(&serverURL, "s", defaultServerURL, "API URL (short)")
	flag.StringVar(&printerAddr, "printer", defaultPrinter, "printer host:port for send")
	flag.StringVar(&printerAddr, "p", defaultPrinter, "printer host:port (short)")
	flag.StringVar(&output, "o", "label.png", "output file for preview")
	flag.IntVar(&index, "index", 0, "label to return from preview when the file holds several")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() == 0 {
		printUsage()
		os.Exit(1)
	}

	args := flag.Args()
	var err error

	switch args[0] {
	case "send":
		if len(args) < 2 {
			err = fmt.Errorf("usage: zplctl send <file>")
			break
		}
		err = sendFile(printerAddr, args[1])
	case "preview":
		if len(args) < 2 {
			err = fmt.Errorf("usage: zplctl preview <file>")
			break
		}
		err = previewFile(serverURL, args[1], output, index)
	default:
		result := executeCommand(serverURL, strings.Join(args, " "))
		if ok, _ := result["success"].(bool); !ok {
			printError(result)
			os.Exit(1)
		}
		printSuccess(result)
		return
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `%s

Usage:
  zplctl [flags] <command>

Flags:
  -s, -server <url>      API URL (default: %s)
  -p, -printer <addr>    Printer address for send (default: %s)
  -o <file>              Output file for preview (default: label.png)
  -index <n>             Label to fetch from a multi-label preview

Commands:
  send <file>            Send a ZPL file to the printer port like a real client
  preview <file>         Render a ZPL file through the API without storing it
  status                 Show printer state and render slots
  printer start|stop     Start or stop the printer listener
  printer port <port>    Change the printer port
  job list               List recent jobs
  job status <id>        Show one job
  job clear              Forget finished jobs
  label list             List stored labels
  label show <id>        Show label metadata
  label delete <id>      Delete a stored label
  label clear            Delete every stored label
  label sync             Drop index entries whose image is missing
  settings               Show the current settings
  settings set <k> <v>   Change one setting
  help                   Show the server side help

Examples:
  zplctl send ./shipping.zpl
  zplctl -p 192.168.1.40:9100 send ./shipping.zpl
  zplctl -o out.png preview ./shipping.zpl
  zplctl settings set width 100
  zplctl settings set unit mm
`, headerStyle.Render("ZPL Printer CLI"), defaultServerURL, defaultPrinter)
}

// sendFile writes the file to the printer port and half-closes the connection
// so the printer sees end of stream right away
func sendFile(addr, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to printer: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send label data: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	fmt.Println(successStyle.Render("✓"), fmt.Sprintf("Sent %d bytes to %s", len(data), addr))
	return nil
}

func previewFile(serverURL, path, output string, index int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/render?index=%d", strings.TrimSuffix(serverURL, "/"), index)
	resp, err := http.Post(url, "text/plain", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var result map[string]interface{}
		if json.Unmarshal(body, &result) == nil {
			if msg, ok := result["error"].(string); ok {
				return fmt.Errorf("%s (%s)", msg, resp.Status)
			}
		}
		return fmt.Errorf("render failed: %s", resp.Status)
	}

	if err := os.WriteFile(output, body, 0644); err != nil {
		return err
	}

	fmt.Println(successStyle.Render("✓"), fmt.Sprintf("Wrote %s", output))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("  labels: %s, warnings: %s",
		resp.Header.Get("X-Label-Count"), resp.Header.Get("X-Label-Warnings"))))
	return nil
}

func executeCommand(serverURL, command string) map[string]interface{} {
	url := strings.TrimSuffix(serverURL, "/") + "/command"

	jsonData, err := json.Marshal(map[string]string{"command": command})
	if err != nil {
		return failed("failed to marshal request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return failed("failed to connect to server: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failed("failed to parse response: %v", err)
	}
	return result
}

func failed(format string, args ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf(format, args...),
	}
}

func printSuccess(result map[string]interface{}) {
	if msg, ok := result["message"].(string); ok && msg != "" {
		fmt.Println(successStyle.Render("✓"), msg)
	}

	if jobs, ok := result["jobs"].([]interface{}); ok {
		fmt.Println(headerStyle.Render("\nJobs:"))
		for _, j := range jobs {
			job, ok := j.(map[string]interface{})
			if !ok {
				continue
			}
			line := fmt.Sprintf("  %s  %-10v labels:%v warnings:%v  %v",
				keyStyle.Render(fmt.Sprint(job["id"])), job["status"], job["labels"], job["warnings"], job["remote"])
			if e, ok := job["error"].(string); ok && e != "" {
				line += " " + errorStyle.Render(e)
			}
			fmt.Println(line)
		}
	}

	if labels, ok := result["labels"].([]interface{}); ok {
		fmt.Println(headerStyle.Render("\nLabels:"))
		for _, l := range labels {
			label, ok := l.(map[string]interface{})
			if !ok {
				fmt.Printf("  %v\n", l)
				continue
			}
			fmt.Printf("  %s  %vx%v  job:%v\n",
				keyStyle.Render(fmt.Sprint(label["label_id"])), label["width"], label["height"], label["job_id"])
		}
	}

	if label, ok := result["label"].(map[string]interface{}); ok {
		fmt.Println(headerStyle.Render("\nLabel:"))
		printMap(label, "  ")
	}

	if settings, ok := result["settings"].(map[string]interface{}); ok {
		fmt.Println(headerStyle.Render("\nSettings:"))
		printMap(settings, "  ")
	}
}

func printMap(m map[string]interface{}, indent string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if sub, ok := m[k].(map[string]interface{}); ok {
			fmt.Printf("%s%s\n", indent, keyStyle.Render(k+":"))
			printMap(sub, indent+"  ")
			continue
		}
		fmt.Printf("%s%s %v\n", indent, keyStyle.Render(k+":"), m[k])
	}
}

func printError(result map[string]interface{}) {
	msg, _ := result["error"].(string)
	if msg == "" {
		msg, _ = result["message"].(string)
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), msg)
}
