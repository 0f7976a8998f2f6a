package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"imagequeue/internal/bootstrap"
	"imagequeue/internal/infra"
	"imagequeue/internal/infra/credentials"
	"imagequeue/internal/jobs"
)

const usage = `usage: jobctl <command> [flags]

commands:
  create      -prompt TEXT [-subject REF] [-owner REF]
  status      -id JOB_ID
  process     -id JOB_ID
  clear-queue
  purge       [-older-than 24h]
  gemini-key  [-key KEY] [-model MODEL]
`

func main() {
	_ = godotenv.Load()
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		exitWithError(err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(strings.TrimSpace(usage))
	}
	cmd, args := args[0], args[1:]
	switch cmd {
	case "create", "status", "process", "clear-queue", "purge", "gemini-key":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	var (
		idFlag      = fs.String("id", "", "job id")
		promptFlag  = fs.String("prompt", "", "prompt text")
		subjectFlag = fs.String("subject", "", "subject reference")
		ownerFlag   = fs.String("owner", "", "owner reference")
		olderFlag   = fs.Duration("older-than", 0, "purge jobs created before now minus this duration")
		keyFlag     = fs.String("key", "", "gemini api key (falls back to GEMINI_API_KEY)")
		modelFlag   = fs.String("model", "", "gemini model recorded with the key")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		return err
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "jobctl").Str("op", cmd).Logger()

	backend, err := bootstrap.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer backend.Close()

	if cmd == "gemini-key" {
		return setGeminiKey(ctx, backend, *keyFlag, *modelFlag, out)
	}

	var service *jobs.Service
	if cmd == "process" {
		artifacts, err := bootstrap.OpenArtifacts(ctx, cfg)
		if err != nil {
			return fmt.Errorf("configure artifact storage: %w", err)
		}
		service = bootstrap.NewService(cfg, backend, artifacts.Store, bootstrap.NewGenerator(ctx, cfg, backend, logger), logger)
	} else {
		service = jobs.NewService(backend.Jobs, nil, nil, nil, logger)
	}

	switch cmd {
	case "create":
		job, err := service.CreateJob(ctx, jobs.CreateJobInput{
			SubjectRef: *subjectFlag,
			OwnerRef:   *ownerFlag,
			Prompt:     *promptFlag,
		})
		if err != nil {
			return err
		}
		view, err := service.GetStatus(ctx, job.ID)
		if err != nil {
			return err
		}
		return printJSON(out, view)
	case "status":
		if *idFlag == "" {
			return errors.New("-id is required")
		}
		view, err := service.GetStatus(ctx, *idFlag)
		if err != nil {
			return err
		}
		return printJSON(out, view)
	case "process":
		if *idFlag == "" {
			return errors.New("-id is required")
		}
		view, err := service.Process(ctx, *idFlag)
		if err != nil {
			return err
		}
		return printJSON(out, view)
	case "clear-queue":
		n, err := service.ClearQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d pending jobs failed\n", n)
		return nil
	case "purge":
		ttl := *olderFlag
		if ttl == 0 {
			ttl = cfg.JobRetention
		}
		n, err := service.Purge(ctx, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d jobs older than %s deleted\n", n, ttl)
		return nil
	}
	return nil
}

func setGeminiKey(ctx context.Context, backend *bootstrap.Backend, key, model string, out io.Writer) error {
	if backend.SQL == nil {
		return errors.New("gemini-key requires STORE_BACKEND=postgres")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if key == "" {
		return errors.New("GEMINI API key is required via -key or environment")
	}
	execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := credentials.NewStore(backend.SQL).SetGeminiAPIKey(execCtx, key, model); err != nil {
		return fmt.Errorf("failed to persist gemini api key: %w", err)
	}
	fmt.Fprintln(out, "GEMINI API key stored successfully")
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
