package authctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/app"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/config"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/di"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tools/common"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tools/ui"
)

const toolName = "authctl"

// Bootstrap builds the application graph a command runs against.
type Bootstrap func(ctx context.Context, envFile string) (*app.App, error)

// PasswordReader prompts for a secret without echoing it.
type PasswordReader func(prompt string) (string, error)

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

type runner struct {
	opts         *options
	bootstrap    Bootstrap
	readPassword PasswordReader
	now          func() time.Time
	runUI        func(title string, timeout time.Duration, message func(error) string, action func(context.Context) ([]string, error)) ([]string, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&runner{
		bootstrap:    defaultBootstrap,
		readPassword: terminalPasswordReader,
		now:          time.Now,
		runUI:        ui.Run,
	})
}

func newRootCommand(r *runner) *cobra.Command {
	r.opts = &options{}
	cmd := &cobra.Command{
		Use:           toolName,
		Short:         "Account and token lifecycle tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&r.opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&r.opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&r.opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newRegisterCommand(r),
		newLoginCommand(r),
		newValidateCommand(r),
		newLogoutCommand(r),
		newResetRequestCommand(r),
		newResetCompleteCommand(r),
		newConfirmRequestCommand(r),
		newConfirmEmailCommand(r),
		newTokensCommand(r),
		newHealthCommand(r),
		newErrorsCommand(r),
	)
	return cmd
}

func defaultBootstrap(_ context.Context, envFile string) (*app.App, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return di.InitializeApp(cfg)
}

// appHolder hands the bootstrapped app from the action goroutine back to the
// command, which owns shutdown.
type appHolder struct {
	mu  sync.Mutex
	app *app.App
}

func (h *appHolder) set(a *app.App) {
	h.mu.Lock()
	h.app = a
	h.mu.Unlock()
}

func (h *appHolder) get() *app.App {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.app
}

func (r *runner) run(cmd *cobra.Command, title string, fn func(ctx context.Context, a *app.App) ([]string, error)) error {
	holder := &appHolder{}
	action := func(ctx context.Context) ([]string, error) {
		a, err := r.bootstrap(ctx, r.opts.envFile)
		if err != nil {
			return nil, &bootstrapError{err: err}
		}
		holder.set(a)
		return fn(ctx, a)
	}

	start := r.now()
	var (
		details []string
		err     error
	)
	if r.opts.ci {
		ctx, cancel := context.WithTimeout(cmd.Context(), r.opts.timeout)
		details, err = action(ctx)
		cancel()
	} else {
		details, err = r.runUI(title, r.opts.timeout, userMessage, action)
	}
	code := exitCode(err)
	message := ""
	if err != nil {
		message = userMessage(err)
	}

	a := holder.get()
	r.finish(cmd.Context(), a, title, start, err, message)

	if r.opts.ci {
		if printErr := common.PrintCIResult(cmd.OutOrStdout(), title, code, details, message); printErr != nil && err == nil {
			return printErr
		}
	}
	if err != nil {
		return &ExitError{Code: code, Message: message}
	}
	return nil
}

// finish records the run and releases the app. Metrics go out before the app
// closes because Close flushes the exporters.
func (r *runner) finish(parent context.Context, a *app.App, title string, start time.Time, runErr error, message string) {
	ctx := context.WithoutCancel(parent)
	status := "success"
	if runErr != nil {
		status = "failure"
	}
	observability.RecordToolCommandRun(ctx, toolName, title, status)
	observability.RecordToolCommandDuration(ctx, toolName, title, status, r.now().Sub(start))
	if a == nil {
		return
	}

	logger := a.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if runErr != nil {
		logger.Error("authctl command failed",
			"command", title,
			"reason", service.FailureReason(runErr),
			"exit_code", exitCode(runErr),
		)
		if a.ErrorLogs != nil {
			if err := a.ErrorLogs.Create(ctx, title, message); err != nil {
				logger.Warn("record error log failed", "command", title, "error", err)
			}
		}
	}

	closeCtx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		logger.Warn("app shutdown incomplete", "command", title, "error", err)
	}
}

func (r *runner) promptPassword(prompt string) (string, error) {
	pw, err := r.readPassword(prompt)
	if err != nil {
		return "", &ExitError{Code: 1, Message: fmt.Sprintf("read password: %v", err)}
	}
	return pw, nil
}

func newRegisterCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "register <email>",
		Short: "Create an account and send a confirmation link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := r.promptPassword("Password: ")
			if err != nil {
				return err
			}
			return r.run(cmd, "register", func(ctx context.Context, a *app.App) ([]string, error) {
				account, err := a.Auth.Register(ctx, args[0], password)
				if err != nil {
					return nil, err
				}
				return []string{
					"account_id: " + strconv.FormatUint(uint64(account.ID), 10),
					"email: " + account.Email,
					"email_confirmed: " + strconv.FormatBool(account.EmailConfirmed),
				}, nil
			})
		},
	}
}

func newLoginCommand(r *runner) *cobra.Command {
	var rememberMe bool
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Verify credentials and issue a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := r.promptPassword("Password: ")
			if err != nil {
				return err
			}
			return r.run(cmd, "login", func(ctx context.Context, a *app.App) ([]string, error) {
				res, err := a.Auth.Login(ctx, args[0], password, rememberMe)
				if err != nil {
					return nil, err
				}
				return []string{
					"account_id: " + strconv.FormatUint(uint64(res.AccountID), 10),
					"expires_at: " + res.ExpiresAt.UTC().Format(time.RFC3339),
					"remember_me: " + strconv.FormatBool(res.RememberMe),
					"token: " + res.Token,
				}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&rememberMe, "remember-me", false, "issue a long-lived session")
	return cmd
}

func newValidateCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <token>",
		Short: "Resolve a session token to its account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "validate", func(ctx context.Context, a *app.App) ([]string, error) {
				id, err := a.Auth.ValidateToken(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return []string{"account_id: " + strconv.FormatUint(uint64(id), 10)}, nil
			})
		},
	}
}

func newLogoutCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout <token>",
		Short: "Revoke a session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "logout", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.Logout(ctx, args[0]); err != nil {
					return nil, err
				}
				return []string{"session revoked"}, nil
			})
		},
	}
}

func newResetRequestCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-request <email>",
		Short: "Send a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "reset-request", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.RequestPasswordReset(ctx, args[0]); err != nil {
					return nil, err
				}
				return []string{"if the account exists, a reset link has been sent"}, nil
			})
		},
	}
}

func newResetCompleteCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-complete <token>",
		Short: "Redeem a reset token and set a new password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := r.promptPassword("New password: ")
			if err != nil {
				return err
			}
			return r.run(cmd, "reset-complete", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.CompletePasswordReset(ctx, args[0], password); err != nil {
					return nil, err
				}
				return []string{"password updated"}, nil
			})
		},
	}
}

func newConfirmRequestCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-request <email>",
		Short: "Send an email confirmation link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "confirm-request", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.RequestEmailConfirmation(ctx, args[0]); err != nil {
					return nil, err
				}
				return []string{"if the account needs confirming, a link has been sent"}, nil
			})
		},
	}
}

func newConfirmEmailCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "confirm-email <token>",
		Short: "Redeem an email confirmation token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.run(cmd, "confirm-email", func(ctx context.Context, a *app.App) ([]string, error) {
				if err := a.Auth.ConfirmEmail(ctx, args[0]); err != nil {
					return nil, err
				}
				return []string{"email confirmed"}, nil
			})
		},
	}
}
