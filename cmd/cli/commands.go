package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	winnerSlot int
	score1     int
	score2     int
	rosterFile string
)

func init() {
	submitCmd.Flags().IntVar(&winnerSlot, "winner", 0, "Winning slot (1 or 2), derived from the score when 0")
	submitCmd.Flags().IntVar(&score1, "score1", 0, "Score of the first slot")
	submitCmd.Flags().IntVar(&score2, "score2", 0, "Score of the second slot")

	registerCmd.Flags().StringVar(&rosterFile, "file", "", "Roster file with one name[,rating] per line (stdin when empty)")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(tournamentsCmd)
	rootCmd.AddCommand(tournamentCmd)
	rootCmd.AddCommand(matchesCmd)
	rootCmd.AddCommand(standingsCmd)
	rootCmd.AddCommand(roundCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(nextRoundCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the health of the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/health", "", nil, false)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Get application metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/metrics", "", nil, false)
	},
}

var tournamentsCmd = &cobra.Command{
	Use:   "tournaments",
	Short: "List tournaments",
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/tournaments", "", nil, true)
	},
}

var tournamentCmd = &cobra.Command{
	Use:   "tournament [tournament-id]",
	Short: "Show a tournament with its teams and matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/tournaments/"+args[0], "", nil, true)
	},
}

var matchesCmd = &cobra.Command{
	Use:   "matches [tournament-id]",
	Short: "List the matches of a tournament",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/tournaments/"+args[0]+"/matches", "", nil, true)
	},
}

var standingsCmd = &cobra.Command{
	Use:   "standings [tournament-id]",
	Short: "Show Full Mix standings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodGet, "/tournaments/"+args[0]+"/standings", "", nil, true)
	},
}

var roundCmd = &cobra.Command{
	Use:   "round [tournament-id] [round]",
	Short: "Show a Full Mix round",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid round %q: %w", args[1], err)
		}
		return performRequest(http.MethodGet, "/tournaments/"+args[0]+"/rounds/"+args[1], "", nil, true)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit [match-id]",
	Short: "Submit or edit a match result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(map[string]int{
			"winner_slot": winnerSlot,
			"score_1":     score1,
			"score_2":     score2,
		})
		if err != nil {
			return err
		}
		return performRequest(http.MethodPost, "/matches/"+args[0]+"/result", "application/json", bytes.NewReader(body), true)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [tournament-id]",
	Short: "Register Full Mix participants from a roster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if rosterFile != "" {
			f, err := os.Open(rosterFile)
			if err != nil {
				return fmt.Errorf("failed to open roster: %w", err)
			}
			defer f.Close()
			in = f
		}
		return performRequest(http.MethodPost, "/tournaments/"+args[0]+"/participants", "text/plain", in, true)
	},
}

var nextRoundCmd = &cobra.Command{
	Use:   "next-round [tournament-id]",
	Short: "Open the next Full Mix round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return performRequest(http.MethodPost, "/tournaments/"+args[0]+"/rounds/next", "", nil, true)
	},
}

func newClient(auth bool) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar}
	if !auth || !guest {
		return client, nil
	}

	resp, err := client.Post(host+"/auth/guest", "application/json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to log in: status %d", resp.StatusCode)
	}
	return client, nil
}

func performRequest(method, endpoint, contentType string, body io.Reader, auth bool) error {
	client, err := newClient(auth)
	if err != nil {
		return err
	}

	url := host + endpoint
	fmt.Printf("Making request to %s %s\n", method, url)

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	fmt.Printf("Status Code: %d\n", resp.StatusCode)
	fmt.Println("Response Body:")
	fmt.Println(string(respBody))

	return nil
}
