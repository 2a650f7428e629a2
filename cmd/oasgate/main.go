package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasgate"
	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/gate"
)

func main() {
	root := &cobra.Command{
		Use:   "oasgate",
		Short: "Serve and inspect OpenAPI contracts",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

// fileConfig is the optional YAML config file. Flags override its values.
type fileConfig struct {
	Contract     string `yaml:"contract"`
	Addr         string `yaml:"addr"`
	Development  bool   `yaml:"development"`
	Strict       bool   `yaml:"strict"`
	MockFallback bool   `yaml:"mockFallback"`
	Seed         *int64 `yaml:"seed"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{Addr: ":8080", MockFallback: true}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	var configPath string
	var contractPath string
	var addr string
	var development bool
	var strict bool
	var seed int64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a mocked API from a contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFileConfig(configPath)
			if err != nil {
				return err
			}
			if contractPath != "" {
				cfg.Contract = contractPath
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("development") {
				cfg.Development = development
			}
			if cmd.Flags().Changed("strict") {
				cfg.Strict = strict
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			if cfg.Contract == "" {
				return fmt.Errorf("a contract is required (--contract or config file)")
			}
			return runServe(cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to oasgate.yaml config")
	cmd.Flags().StringVar(&contractPath, "contract", "", "OpenAPI contract file or URL")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&development, "development", false, "Enable development mode (diagnostic error bodies)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Reject undeclared parameters")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Deterministic mock generation seed")

	return cmd
}

func runServe(cfg *fileConfig) error {
	logger := gate.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	opts := []gate.Option{
		gate.WithContractFile(cfg.Contract),
		gate.WithDevelopment(cfg.Development),
		gate.WithStrict(cfg.Strict),
		gate.WithMockFallback(cfg.MockFallback),
		gate.WithLogger(logger),
	}
	if cfg.Seed != nil {
		opts = append(opts, gate.WithMockSeed(*cfg.Seed))
	}

	g, err := gate.New(opts...)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := g.Wait(ctx); err != nil {
		return fmt.Errorf("contract load: %w", err)
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Mount("/", g)

	logger.Info("serving contract", "contract", cfg.Contract, "addr", cfg.Addr)
	return http.ListenAndServe(cfg.Addr, r)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the oasgate version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), oasgate.UserAgent())
		},
	}
}

func newCheckCmd() *cobra.Command {
	var contractPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load a contract and report its operations and bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, contractPath)
		},
	}

	cmd.Flags().StringVar(&contractPath, "contract", "", "OpenAPI contract file or URL")
	_ = cmd.MarkFlagRequired("contract")

	return cmd
}

func runCheck(cmd *cobra.Command, contractPath string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	doc, err := contract.Load(ctx, contractPath)
	if err != nil {
		return fmt.Errorf("load contract: %w", err)
	}
	c, err := contract.New(doc)
	if err != nil {
		return fmt.Errorf("index contract: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d path templates\n\n", len(c.Templates()))

	c.Operations(func(op *contract.Operation) bool {
		mockable := "   "
		if _, ok := op.SuccessStatus(); ok {
			mockable = "mockable"
		}
		fmt.Fprintf(out, "%-7s %-32s -> %s.%s  %s\n",
			op.Method, op.Path.Template, op.Binding.Module, op.Binding.Function, mockable)
		return true
	})

	return nil
}
