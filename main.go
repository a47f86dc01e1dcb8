package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"hfllm/config"
	"hfllm/internal/credentials"
	"hfllm/internal/llm"
	"hfllm/internal/session"
	"hfllm/internal/terminal"
	"hfllm/internal/transport"
	"hfllm/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const version = "0.1.0"

// errUsage marks failures whose guidance has already been printed.
var errUsage = errors.New("usage")

// app holds the process collaborators so they can be replaced in tests.
type app struct {
	tokens       credentials.Provider
	newTransport func(cfg *config.Config) transport.Transport
	clearScreen  func(out io.Writer) error
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
}

func defaultApp() *app {
	return &app{
		tokens: credentials.NewHFCache(),
		newTransport: func(cfg *config.Config) transport.Transport {
			return transport.NewHTTP(cfg.HTTP.ResponseHeaderTimeout)
		},
		clearScreen: terminal.Clear,
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
	}
}

// options are the flags that do not map onto config keys.
type options struct {
	configPath string
	prompt     string
	chat       bool
	noColor    bool
}

func (a *app) newRootCmd(ctx context.Context) *cobra.Command {
	var opts options
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "hfllm",
		Short:         "A CLI to access LLMs hosted on Hugging Face",
		Long:          "hfllm streams chat completions from the Hugging Face inference router, as a one-shot prompt or an interactive chat.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.execute(ctx, opts, v)
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	flags := cmd.Flags()
	flags.StringP("model-name", "m", "", "Specify the Hugging Face Hub ID of the model to use.")
	flags.StringP("provider", "r", "", "Specify the provider to use.")
	flags.IntP("max-tokens", "t", 2048, "Specify the maximum number of tokens for the model's response.")
	flags.String("backend", config.BackendRouter, "Inference backend: router or ollama.")
	flags.String("log-level", "", "Log level (debug, info, warn, error).")
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "Specify the prompt to use.")
	flags.BoolVarP(&opts.chat, "chat", "c", false, "Start a chat session with the model.")
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file.")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable coloured output.")

	for key, flag := range map[string]string{
		"endpoint.model":      "model-name",
		"endpoint.provider":   "provider",
		"endpoint.max_tokens": "max-tokens",
		"endpoint.backend":    "backend",
		"logging.level":       "log-level",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return cmd
}

func (a *app) execute(ctx context.Context, opts options, v *viper.Viper) error {
	cfg, err := config.LoadConfig(opts.configPath, v)
	if err != nil {
		return err
	}
	if opts.noColor {
		cfg.Output.Color = false
	}

	closeLog := logging.InitLogger(cfg.Logging)
	defer closeLog()

	client, err := a.newClient(cfg)
	if err != nil {
		return err
	}

	printer := terminal.NewPrinter(a.stdout, cfg.Output.Color, cfg.Output.FragmentColor)
	s := session.New(client, a.stdin, printer, func() error { return a.clearScreen(a.stdout) })
	log := logrus.WithFields(logrus.Fields{"session": s.ID(), "backend": cfg.Endpoint.Backend})

	switch {
	case opts.chat:
		log.Info("Starting interactive chat")
		return s.RunInteractive(ctx)
	case opts.prompt != "":
		log.Info("Sending single prompt")
		return s.RunOnce(ctx, opts.prompt)
	default:
		fmt.Fprintln(a.stderr, "Please provide either a prompt or use chat mode.")
		return errUsage
	}
}

// newClient resolves the credential before anything touches the network.
func (a *app) newClient(cfg *config.Config) (llm.Client, error) {
	if cfg.Endpoint.Backend == config.BackendOllama {
		oc, err := llm.NewOllamaClient(cfg.Ollama, cfg.Endpoint.Model)
		if err != nil {
			return nil, err
		}
		return oc, nil
	}

	token, ok := a.tokens.Token()
	if !ok {
		fmt.Fprintln(a.stderr, "Token not found, please run `huggingface-cli login`")
		return nil, credentials.ErrNoToken
	}
	rc := llm.NewRouterClient(a.newTransport(cfg), token, cfg.Endpoint, cfg.HTTP.MaxErrorBody)
	logrus.WithFields(logrus.Fields{"url": rc.URL(), "model": cfg.Endpoint.Model}).Debug("Using inference endpoint")
	return rc, nil
}

// run executes the command line and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	cmd := a.newRootCmd(ctx)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, credentials.ErrNoToken) && !errors.Is(err, errUsage) {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := defaultApp().run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
