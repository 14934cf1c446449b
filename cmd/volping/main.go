// Periodically ping a volrender server

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Unix domain socket of the server, if not serving on TCP.
	socketPath = flag.String("socket", "", "")
)

const helpMessage = `

volping periodically requests the dataset list of a volrender server as a heartbeat.

Usage: volping [options] <delay in seconds> <volrender url>

  Example URL: http://localhost:8080

      -socket     =string   Connect through this Unix domain socket.
  -h, -help       (flag)    Show help message
`

var usage = func() {
	fmt.Print(helpMessage)
}

// newClient returns an HTTP client, dialing the given Unix socket if not empty.
func newClient(socket string) *http.Client {
	client := &http.Client{Timeout: 30 * time.Second}
	if socket != "" {
		client.Transport = &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		}
	}
	return client
}

// ping returns the number of datasets served at baseURL.
func ping(client *http.Client, baseURL string) (int, error) {
	resp, err := client.Get(baseURL + "/datasets")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bad response status %s", resp.Status)
	}
	var datasets []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&datasets); err != nil {
		return 0, fmt.Errorf("bad dataset list: %v", err)
	}
	return len(datasets), nil
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if *showHelp || flag.NArg() != 2 {
		flag.Usage()
		os.Exit(0)
	}
	args := flag.Args()

	pause, err := strconv.Atoi(args[0])
	if err != nil || pause <= 0 {
		fmt.Printf("error parsing pause time %q: %v\n", args[0], err)
		os.Exit(1)
	}
	baseURL := args[1]
	client := newClient(*socketPath)

	for t := range time.Tick(time.Duration(pause) * time.Second) {
		n, err := ping(client, baseURL)
		if err != nil {
			fmt.Printf("%s: error pinging %q: %v\n", t, baseURL, err)
			os.Exit(1)
		}
		fmt.Printf("%s: %d datasets\n", t.Format(time.RFC3339), n)
	}
}
