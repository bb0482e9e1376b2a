// Command llmroute is a minimal chat CLI over the routing library. It
// reads provider API keys from the environment, sends one prompt, and
// prints the answer plus routing metadata.
//
//	GROQ_API_KEY=... CEREBRAS_API_KEY=... llmroute -model best-large "why is the sky blue?"
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/blueberrycongee/llmroute"
	"github.com/blueberrycongee/llmroute/pkg/provider"
	"github.com/blueberrycongee/llmroute/providers"
)

// envKeys maps provider kinds to the environment variables that carry
// their API keys.
var envKeys = map[provider.Kind]string{
	provider.KindGroq:       "GROQ_API_KEY",
	provider.KindCerebras:   "CEREBRAS_API_KEY",
	provider.KindSambaNova:  "SAMBANOVA_API_KEY",
	provider.KindTogether:   "TOGETHER_API_KEY",
	provider.KindOpenRouter: "OPENROUTER_API_KEY",
}

func main() {
	model := flag.String("model", "best", "model name, alias, or generic tier token")
	strategy := flag.String("strategy", "priority", "routing strategy: priority, least-used, lowest-latency")
	stream := flag.Bool("stream", false, "stream the response")
	timeout := flag.Duration("timeout", 60*time.Second, "per-call upstream deadline")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: llmroute [flags] <prompt>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	prompt := strings.Join(flag.Args(), " ")

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	opts := []llmroute.Option{
		llmroute.WithStrategy(*strategy),
		llmroute.WithTimeout(*timeout),
		llmroute.WithLogger(logger),
	}
	priority := 0
	for _, kind := range providers.Kinds() {
		key := os.Getenv(envKeys[kind])
		if key == "" {
			continue
		}
		opts = append(opts, llmroute.WithProvider(llmroute.ProviderConfig{
			Type:     kind,
			APIKey:   key,
			Priority: priority,
		}))
		priority++
	}

	r, err := llmroute.New(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "llmroute:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx := context.Background()
	req := &llmroute.ChatRequest{
		Model:    *model,
		Messages: []llmroute.ChatMessage{llmroute.Text("user", prompt)},
	}

	if *stream {
		if err := runStream(ctx, r, req); err != nil {
			fmt.Fprintln(os.Stderr, "llmroute:", err)
			os.Exit(1)
		}
		return
	}

	resp, meta, err := r.ChatCompletionWithMetadata(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "llmroute:", err)
		os.Exit(1)
	}

	for _, choice := range resp.Choices {
		fmt.Println(choice.Message.TextContent())
	}
	fmt.Fprintf(os.Stderr, "[%s/%s, %dms, %d retries]\n",
		meta.Provider, meta.ModelID, meta.LatencyMS, meta.RetryCount)
}

func runStream(ctx context.Context, r *llmroute.Router, req *llmroute.ChatRequest) error {
	stream, err := r.ChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		for _, choice := range chunk.Choices {
			fmt.Print(choice.Delta.Content)
		}
	}
	fmt.Println()

	meta := stream.Metadata()
	fmt.Fprintf(os.Stderr, "[%s/%s, %d retries]\n", meta.Provider, meta.ModelID, meta.RetryCount)
	return nil
}
