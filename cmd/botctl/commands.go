package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type askResult struct {
	Answer         string  `json:"answer"`
	Confidence     float64 `json:"confidence"`
	Language       string  `json:"language_detected"`
	SessionID      string  `json:"session_id"`
	ConversationID *int64  `json:"conversation_id"`
	Error          bool    `json:"error"`
}

type conversation struct {
	ID               int64   `json:"id"`
	UserMessage      string  `json:"user_message"`
	BotResponse      string  `json:"bot_response"`
	LanguageDetected string  `json:"language_detected"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Feedback         int     `json:"feedback"`
	ForwardedToAdmin bool    `json:"forwarded_to_admin"`
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the assistant a question",
	Long: `Ask the assistant a question.

Examples:
  botctl ask "What are the hostel fees?"
  botctl ask --language hi "hostel ki fees kitni hai?"
  botctl ask --session my-session "When do admissions open?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		session, _ := cmd.Flags().GetString("session")

		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("question is required")
		}

		req := map[string]any{
			"question": question,
			"language": language,
		}
		if session != "" {
			req["session_id"] = session
		}

		resp, err := newAPIClient().post(cmd.Context(), "/ask", req)
		if err != nil {
			return err
		}

		var res askResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if res.Error {
			printWarning(out, "%s", res.Answer)
		} else {
			fmt.Fprintln(out, res.Answer)
		}
		fmt.Fprintln(out)
		printField(out, "language", "%s", res.Language)
		printField(out, "confidence", "%.2f", res.Confidence)
		printField(out, "session", "%s", res.SessionID)
		if res.ConversationID != nil {
			printField(out, "conversation", "%d", *res.ConversationID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("language", "auto", "language code, or auto to detect")
	askCmd.Flags().String("session", "", "session id to continue")
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <conversation-id> <up|down|none>",
	Short: "Vote on an answer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		vote, err := parseVote(args[1])
		if err != nil {
			return err
		}

		resp, err := newAPIClient().post(cmd.Context(), "/feedback", map[string]any{
			"conversation_id": id,
			"feedback":        vote,
		})
		if err != nil {
			return err
		}

		var res struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		printSuccess(cmd.OutOrStdout(), "%s", res.Message)
		return nil
	},
}

// --- forward ---

var forwardCmd = &cobra.Command{
	Use:   "forward <conversation-id>",
	Short: "Escalate an answer to the admin team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		note, _ := cmd.Flags().GetString("note")

		resp, err := newAPIClient().post(cmd.Context(), "/forward-to-admin", map[string]any{
			"conversation_id":    id,
			"additional_context": note,
		})
		if err != nil {
			return err
		}

		var res struct {
			Message string `json:"message"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		printSuccess(cmd.OutOrStdout(), "%s", res.Message)
		return nil
	},
}

func init() {
	forwardCmd.Flags().String("note", "", "extra context for the admin team")
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Show the turns of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		path := fmt.Sprintf("/sessions/%s/history?limit=%d", args[0], limit)
		resp, err := newAPIClient().get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var res struct {
			History []conversation `json:"history"`
		}
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(res.History) == 0 {
			printWarning(out, "no turns recorded for session %s", args[0])
			return nil
		}

		for _, turn := range res.History {
			fmt.Fprintf(out, "#%d [%s %.2f]\n", turn.ID, turn.LanguageDetected, turn.ConfidenceScore)
			printField(out, "Q", "%s", turn.UserMessage)
			printField(out, "A", "%s", turn.BotResponse)
			if turn.ForwardedToAdmin {
				printField(out, "forwarded", "yes")
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "maximum number of turns")
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := newAPIClient().get(cmd.Context(), "/health")
		if err != nil {
			return err
		}

		var res map[string]any
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printSuccess(out, "server %v", res["status"])
		if db, ok := res["database"]; ok {
			printField(out, "database", "%v", db)
		}
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", s)
	}
	return id, nil
}

func parseVote(s string) (int, error) {
	switch strings.ToLower(s) {
	case "up", "+1", "1":
		return 1, nil
	case "down", "-1":
		return -1, nil
	case "none", "0":
		return 0, nil
	default:
		return 0, fmt.Errorf("vote must be up, down or none, got %q", s)
	}
}
