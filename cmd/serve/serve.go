// Package serve implements the serve command, a GitHub webhook listener
// that reviews pull requests as they are opened or updated.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/spf13/cobra"

	reviewcmd "github.com/mjholt/reviewgate/cmd/review"
	"github.com/mjholt/reviewgate/internal/config"
	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/internal/report"
	engine "github.com/mjholt/reviewgate/internal/review"
	"github.com/mjholt/reviewgate/pkg/logger"
)

var (
	configFile string
	addr       string
	secretEnv  string
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a GitHub webhook server",
		Long: `Listen for GitHub pull_request webhooks and review each pull request as
it is opened, reopened, synchronized, or marked ready for review. The
review is posted back to the pull request along with a status check.

Webhook deliveries are authenticated with the HMAC secret read from the
environment variable named by --secret-env.`,
		Example: `  # Listen on the default address
  GITHUB_WEBHOOK_SECRET=... reviewgate serve

  # Custom address and config
  reviewgate serve --addr :9000 --config reviewgate.yaml`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&secretEnv, "secret-env", "GITHUB_WEBHOOK_SECRET", "Environment variable holding the webhook secret")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.GetGlobalLogger()

	cfg, err := reviewcmd.LoadConfigOrDefault(configFile)
	if err != nil {
		return reviewcmd.Operational(err)
	}
	secret := os.Getenv(secretEnv)
	if secret == "" {
		return reviewcmd.Operational(fmt.Errorf("webhook secret environment variable %s is not set", secretEnv))
	}

	server := NewServer(cfg, log, []byte(secret))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("webhook server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return reviewcmd.Operational(err)
		}
	case <-ctx.Done():
		log.Info("shutting down webhook server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return reviewcmd.Operational(err)
		}
	}
	return nil
}

// reviewableActions are the pull_request actions that trigger a review.
var reviewableActions = map[string]bool{
	"opened":           true,
	"reopened":         true,
	"synchronize":      true,
	"ready_for_review": true,
}

// Server handles GitHub webhook deliveries.
type Server struct {
	cfg    *config.Config
	log    logger.Logger
	secret []byte

	// review runs the full pipeline for one pull request and reports the
	// outcome back to GitHub.
	review func(ctx context.Context, owner, repo string, number int) (*models.Review, error)
}

// NewServer creates a webhook server around the standard review pipeline.
func NewServer(cfg *config.Config, log logger.Logger, secret []byte) *Server {
	s := &Server{cfg: cfg, log: log, secret: secret}
	s.review = s.reviewPullRequest
	return s
}

// Handler returns the HTTP handler for the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhooks/github", s.handleWebhook)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, s.secret)
	if err != nil {
		s.log.Warn("rejected webhook delivery", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	eventType := github.WebHookType(r)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	switch e := event.(type) {
	case *github.PingEvent:
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	case *github.PullRequestEvent:
		s.handlePullRequest(w, r, e)
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "event": eventType})
	}
}

func (s *Server) handlePullRequest(w http.ResponseWriter, r *http.Request, e *github.PullRequestEvent) {
	action := e.GetAction()
	if !reviewableActions[action] {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored", "action": action})
		return
	}

	owner := e.GetRepo().GetOwner().GetLogin()
	repo := e.GetRepo().GetName()
	number := e.GetPullRequest().GetNumber()
	if owner == "" || repo == "" || number == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	s.log.Info("reviewing pull request", "owner", owner, "repo", repo, "number", number, "action", action)
	rev, err := s.review(r.Context(), owner, repo, number)
	if err != nil {
		s.log.Error("review failed", "owner", owner, "repo", repo, "number", number, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "review failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "reviewed",
		"decision": rev.Verdict.Decision,
		"findings": len(rev.Findings),
	})
}

func (s *Server) reviewPullRequest(ctx context.Context, owner, repo string, number int) (*models.Review, error) {
	target := reviewcmd.Target{Raw: fmt.Sprintf("%s/%s#%d", owner, repo, number)}
	pr, changes, fetch, gateway, err := reviewcmd.Gather(ctx, s.cfg, s.log, target)
	if err != nil {
		return nil, err
	}

	rev, err := engine.NewPipeline(s.cfg, s.log).Review(ctx, pr, changes, fetch)
	if err != nil {
		return nil, err
	}

	if err := gateway.PostReview(ctx, pr, rev, report.Markdown(rev, "")); err != nil {
		return nil, err
	}
	if err := gateway.UpdateStatusCheck(ctx, pr, rev); err != nil {
		return nil, err
	}
	return rev, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
