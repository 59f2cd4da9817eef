package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mockmate/mockmate/internal/config"
	"github.com/mockmate/mockmate/pkg/live/session"
	"github.com/mockmate/mockmate/pkg/media"
	"github.com/mockmate/mockmate/pkg/score"
	"github.com/mockmate/mockmate/pkg/stats"
)

func newPracticeCmd() *cobra.Command {
	var (
		role      string
		company   string
		seniority string
		topics    []string
	)

	cmd := &cobra.Command{
		Use:   "practice",
		Short: "Run a live mock interview",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := session.Config{
				Role:        role,
				Company:     company,
				Seniority:   session.Seniority(seniority),
				FocusTopics: topics,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runPractice(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&role, "role", "", "job title to rehearse (required)")
	cmd.Flags().StringVar(&company, "company", "", "target company")
	cmd.Flags().StringVar(&seniority, "seniority", "mid", "junior, mid, senior, or lead")
	cmd.Flags().StringSliceVar(&topics, "topics", nil, "focus topics for the coach")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func runPractice(ctx context.Context, sessionCfg session.Config) error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(appCfg.Debug)

	devices, err := media.NewDeviceManager(media.DeviceOptions{
		CameraDevice: appCfg.CameraDevice,
	})
	if err != nil {
		return fmt.Errorf("init devices: %w", err)
	}
	defer devices.Close()

	store, err := stats.Open(appCfg.StatsDB)
	if err != nil {
		return fmt.Errorf("open stats store: %w", err)
	}
	defer store.Close()

	controller := session.NewController(
		session.DialAgent(appCfg.AgentURL),
		devices,
		session.Options{AgentURL: appCfg.AgentURL, Debug: appCfg.Debug},
	)

	go renderEvents(controller)

	startedAt := time.Now()
	if err := controller.Start(ctx, sessionCfg); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	logger.Info("session open", "role", sessionCfg.Role, "seniority", sessionCfg.Seniority)
	fmt.Println("Session started. Commands: [m]ute toggle, [q]uit and grade.")

	waitForFinish(controller)

	turns, elapsed, err := controller.Finish()
	if err != nil {
		// The session already ended on its own (error or remote close); the
		// transcript up to that point is still worth grading and recording.
		var ok bool
		turns, elapsed, ok = controller.Result()
		if !ok {
			logger.Warn("session ended without a result", "err", err)
			return nil
		}
	}
	fmt.Printf("\nSession finished after %s with %d turns.\n", elapsed, len(turns))

	overall := 0
	if appCfg.GeminiAPIKey != "" && len(turns) > 0 {
		if eval, err := gradeSession(ctx, appCfg, sessionCfg, turns, elapsed); err != nil {
			logger.Warn("scoring failed", "err", err)
		} else {
			overall = eval.OverallScore
			printEvaluation(eval)
		}
	}

	rec := stats.SessionRecord{
		ID:              controller.SessionID(),
		Role:            sessionCfg.Role,
		Company:         sessionCfg.Company,
		Seniority:       string(sessionCfg.Seniority),
		StartedAt:       startedAt,
		DurationSeconds: int(time.Since(startedAt) / time.Second),
		TurnCount:       len(turns),
		OverallScore:    overall,
	}
	if err := store.RecordSession(ctx, rec); err != nil {
		logger.Warn("record session", "err", err)
	}
	return nil
}

// waitForFinish blocks until the user asks to quit or the session ends on
// its own.
func waitForFinish(controller *session.Controller) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			switch strings.ToLower(line) {
			case "m", "mute":
				if controller.ToggleMute() {
					fmt.Println("-- muted --")
				} else {
					fmt.Println("-- unmuted --")
				}
			case "q", "quit", "finish":
				return
			}
		case <-ticker.C:
			switch controller.State() {
			case session.StateClosed, session.StateError:
				return
			}
		}
	}
}

// renderEvents prints the live session feed.
func renderEvents(controller *session.Controller) {
	for event := range controller.Events() {
		switch e := event.(type) {
		case *session.CaptionDeltaEvent:
			fmt.Printf("%s: %s\n", e.Speaker, e.Delta)
		case *session.TurnFinalizedEvent:
			fmt.Printf("[turn] %s: %s\n", e.Turn.Speaker, e.Turn.Text)
		case *session.CuePublishedEvent:
			fmt.Printf("** cue (%s): %s **\n", e.Cue.Sentiment, e.Cue.Text)
		case *session.InterruptedEvent:
			fmt.Println("-- coach interrupted --")
		case *session.ErrorEvent:
			fmt.Fprintf(os.Stderr, "session error: %s\n", e.Reason)
		}
	}
}

func gradeSession(ctx context.Context, appCfg config.Config, sessionCfg session.Config, turns []session.ConversationTurn, elapsed string) (*score.Evaluation, error) {
	scorer, err := score.NewScorer(ctx, appCfg.GeminiAPIKey, appCfg.ScoreModel)
	if err != nil {
		return nil, err
	}
	gradeCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	return scorer.Evaluate(gradeCtx, sessionCfg, turns, elapsed)
}

func printEvaluation(eval *score.Evaluation) {
	fmt.Printf("\nOverall: %d/10 (communication %d, technical depth %d, structure %d)\n",
		eval.OverallScore, eval.Communication, eval.TechnicalDepth, eval.Structure)
	for _, s := range eval.Strengths {
		fmt.Println("  + " + s)
	}
	for _, s := range eval.Improvements {
		fmt.Println("  - " + s)
	}
	if eval.Summary != "" {
		fmt.Println("\n" + eval.Summary)
	}
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
