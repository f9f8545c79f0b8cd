package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Taskweave server URL")
	user := flag.String("user", "cli-user", "User name for requests")
	flag.Parse()

	fmt.Println("Taskweave CLI")
	fmt.Printf("Server: %s | User: %s\n", *server, *user)
	fmt.Println("Type a request; it will be planned, executed, and streamed back.")
	fmt.Println("Type 'exit' or 'quit' to leave. Commands: /providers, /capabilities")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/providers" {
			fetchProviders(*server)
			continue
		}
		if input == "/capabilities" {
			fetchCapabilities(*server)
			continue
		}

		sendRequest(*server, *user, input)
	}
}

func fetchProviders(server string) {
	resp, err := http.Get(server + "/api/providers")
	if err != nil {
		printError("Failed to fetch providers: %v", err)
		return
	}
	defer resp.Body.Close()

	var providers []struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Healthy bool   `json:"healthy"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&providers); err != nil {
		printError("Failed to parse providers: %v", err)
		return
	}
	if len(providers) == 0 {
		fmt.Println("No providers configured.")
		return
	}
	fmt.Println("Providers:")
	for _, p := range providers {
		icon := "\033[31m✗\033[0m"
		if p.Healthy {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s (%s)\n", icon, p.ID, p.Name)
	}
}

func fetchCapabilities(server string) {
	resp, err := http.Get(server + "/api/capabilities")
	if err != nil {
		printError("Failed to fetch capabilities: %v", err)
		return
	}
	defer resp.Body.Close()

	var caps []string
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		printError("Failed to parse capabilities: %v", err)
		return
	}
	fmt.Println("Capabilities:")
	for _, c := range caps {
		fmt.Printf("  %s\n", c)
	}
}

func sendRequest(server, user, text string) {
	body, _ := json.Marshal(map[string]string{
		"user_id":   user,
		"user_name": user,
		"text":      text,
	})

	client := &http.Client{Timeout: 11 * time.Minute}
	resp, err := client.Post(
		server+"/api/gateway/rest/request",
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		printError("Request failed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return
	}

	var out struct {
		Messages []struct {
			Text  string `json:"text"`
			Final bool   `json:"final,omitempty"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		printError("Failed to parse response: %v", err)
		return
	}

	for _, m := range out.Messages {
		if m.Text == "" {
			continue
		}
		if m.Final {
			fmt.Printf("\033[36m%s\033[0m\n", m.Text)
		} else {
			fmt.Println(m.Text)
		}
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
