package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/EanHD/kai/internal/orchestrator"
	"github.com/EanHD/kai/internal/session"
)

func main() {
	// Load .env if present; real env vars still win
	_ = godotenv.Load()

	fs := flag.NewFlagSet("kai", flag.ExitOnError)
	enableStreaming := fs.Bool("stream", true, "Stream answers as they are generated")
	resume := fs.Bool("resume", true, "Resume the most recent session")
	costLimit := fs.Float64("cost-limit", 0, "Per-session external spend limit in USD (0 = from config)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatalf("flag parsing failed: %v", err)
	}

	// Keep stdout clean for answers
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := prepareRuntimeEnv(ctx, *costLimit)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	sess := env.resumeOrCreate(*resume)
	fmt.Printf("kai ready (session %s). Type a question, or /help.\n", sess.ID[:8])

	runREPL(ctx, env, sess, *enableStreaming)
}

func runREPL(ctx context.Context, env *runtimeEnv, sess *session.Session, streaming bool) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if done := runCommand(ctx, env, sess, line); done {
				break
			}
			continue
		}

		answerQuery(ctx, env.Orchestrator, sess, line, streaming)

		if err := env.Sessions.Save(sess); err != nil {
			log.Printf("session save failed: %v", err)
		}
	}
}

func answerQuery(ctx context.Context, o *orchestrator.Orchestrator, sess *session.Session, query string, streaming bool) {
	if streaming {
		ch, err := o.ProcessQueryStream(ctx, query, sess, orchestrator.SourceCLI)
		if err != nil {
			fmt.Printf("(cancelled: %v)\n", err)
			return
		}
		for chunk := range ch {
			fmt.Print(chunk)
		}
		fmt.Println()
		return
	}

	out, err := o.ProcessQuery(ctx, query, sess, orchestrator.SourceCLI)
	if err != nil {
		fmt.Printf("(cancelled: %v)\n", err)
		return
	}
	fmt.Println(out.FinalAnswer)
	if out.ShortSummary != "" {
		fmt.Printf("-- %s\n", out.ShortSummary)
	}
}

// runCommand handles slash commands; returns true when the REPL should
// exit.
func runCommand(ctx context.Context, env *runtimeEnv, sess *session.Session, line string) bool {
	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println("commands: /cost /health /override /new /quit")

	case "/cost":
		summary := env.Orchestrator.CostSummary(sess.ID)
		fmt.Printf("session spend: $%.4f of $%.2f (soft cap: %v, hard cap: %v)\n",
			summary["total_cost"], summary["limit"],
			summary["soft_cap_reached"], summary["hard_cap_reached"])

	case "/health":
		for name, ok := range env.Orchestrator.Health(ctx) {
			fmt.Printf("%-10s %v\n", name, ok)
		}

	case "/override":
		env.Orchestrator.Tracker().EnableManualOverride(true)
		fmt.Println("manual cost override enabled for critical queries")

	case "/new":
		fresh := session.New(sess.CostLimit)
		*sess = *fresh
		fmt.Printf("started session %s\n", sess.ID[:8])

	default:
		fmt.Println("unknown command; try /help")
	}
	return false
}
