package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"normativa-rag/internal/chunker"
	"normativa-rag/internal/config"
	"normativa-rag/internal/embedding"
	"normativa-rag/internal/eval"
	"normativa-rag/internal/extract"
	"normativa-rag/internal/index"
	"normativa-rag/internal/models"
	"normativa-rag/internal/provider"
	"normativa-rag/internal/rag"
	"normativa-rag/internal/store"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	_ = godotenv.Load()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	ingest := flag.Bool("ingest", false, "Ingest documents and build the index")
	query := flag.String("query", "", "Question to answer")
	providerName := flag.String("provider", "mock", "Provider: chatgpt, deepseek, mock or compare")
	pair := flag.String("pair", "chatgpt,deepseek", "Providers for comparison mode")
	runEval := flag.Bool("eval", false, "Run the quality evaluation over the gold set")
	k := flag.Int("k", 0, "Number of fragments to retrieve (0 = config default)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *k == 0 {
		*k = cfg.TopK
	}

	ctx := context.Background()

	switch {
	case *ingest:
		runIngest(ctx, cfg)
	case *runEval:
		runEvaluation(ctx, cfg, *providerName, *k)
	case *query != "":
		answerQuery(ctx, cfg, *query, *providerName, *pair, *k)
	default:
		log.Fatal().Msg("Nothing to do: pass -ingest, -eval, or -query")
	}
}

func runIngest(ctx context.Context, cfg *config.Config) {
	docs, err := extract.Dir(cfg.Data.RawDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error extracting documents")
	}
	if len(docs) == 0 {
		log.Fatal().Str("dir", cfg.Data.RawDir).Msg("No readable documents found")
	}

	ch := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	var fragments []models.Fragment
	for _, doc := range docs {
		frags, err := ch.Chunk(doc)
		if err != nil {
			// One bad document must not block the rest of the run.
			log.Warn().Err(err).Str("document", doc.ID).Msg("Skipping document")
			continue
		}
		fragments = append(fragments, frags...)
	}
	log.Info().Int("documents", len(docs)).Int("fragments", len(fragments)).Msg("Chunking complete")

	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	vectors, err := embedding.EmbedFragments(ctx, embedder, fragments)
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating embeddings")
	}

	ix, err := index.Build(embedding.Fingerprint(&cfg.Embedding), fragments, vectors)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building index")
	}
	if err := ix.Save(cfg.Data.IndexDir); err != nil {
		log.Fatal().Err(err).Msg("Error saving index")
	}
	log.Info().Str("dir", cfg.Data.IndexDir).Str("model", ix.Model).Int("dimension", ix.Dimension).Msg("Index saved")

	st, err := store.New(&cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing store backend")
	}
	if st != nil {
		if err := st.Init(ctx, ix.Dimension); err != nil {
			log.Fatal().Err(err).Msg("Error preparing store backend")
		}
		if err := st.Upsert(ctx, ix.Fragments, ix.Vectors); err != nil {
			log.Fatal().Err(err).Msg("Error pushing fragments to store backend")
		}
		log.Info().Str("type", cfg.Store.Type).Int("fragments", len(ix.Fragments)).Msg("Store backend updated")
	}
}

func newRetriever(cfg *config.Config) (rag.Retriever, error) {
	embedder, err := embedding.NewEmbedder(&cfg.Embedding)
	if err != nil {
		return nil, err
	}

	if cfg.Store.Type != "local" && cfg.Store.Type != "" {
		st, err := store.New(&cfg.Store)
		if err != nil {
			return nil, err
		}
		return store.NewRetriever(st, embedder), nil
	}

	ix, err := index.Load(cfg.Data.IndexDir)
	if err != nil {
		return nil, err
	}
	return index.NewRetriever(ix, embedder, embedding.Fingerprint(&cfg.Embedding))
}

func answerQuery(ctx context.Context, cfg *config.Config, query, providerName, pair string, k int) {
	retriever, err := newRetriever(cfg)
	if err != nil {
		if errors.Is(err, index.ErrIndexNotFound) {
			log.Fatal().Err(err).Msg("No index available; run with -ingest first")
		}
		log.Fatal().Err(err).Msg("Error preparing retriever")
	}
	svc := rag.NewService(retriever, cfg)

	if providerName == "compare" {
		names := strings.SplitN(pair, ",", 2)
		if len(names) != 2 {
			log.Fatal().Str("pair", pair).Msg("Comparison mode needs two provider names, e.g. -pair chatgpt,deepseek")
		}
		sideA, sideB, err := svc.Compare(ctx, query, strings.TrimSpace(names[0]), strings.TrimSpace(names[1]), k)
		if err != nil {
			log.Fatal().Err(err).Msg("Error running comparison")
		}
		fmt.Printf("Consulta: %s\n\n", query)
		printSide(sideA)
		printSide(sideB)
		return
	}

	resp, err := svc.Ask(ctx, query, providerName, k)
	if err != nil {
		log.Fatal().Err(err).Msg("Error answering query")
	}
	fmt.Printf("Consulta: %s\n\n", query)
	printResponse(resp)
}

func printSide(side rag.ComparisonSide) {
	fmt.Printf("===== %s =====\n", side.Provider)
	if side.Err != nil {
		fmt.Printf("Error: %v\n\n", side.Err)
		return
	}
	printResponse(side.Response)
}

func printResponse(resp *models.ProviderResponse) {
	fmt.Printf("[%s] %s\n", resp.Provider, resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Printf("\nCitas: %s\n", strings.Join(resp.Citations, ", "))
	}
	fmt.Printf("Recuperacion: %s | Generacion: %s | Costo estimado: $%.6f\n\n",
		resp.RetrievalLatency.Round(time.Millisecond),
		resp.GenerationLatency.Round(time.Millisecond),
		resp.CostUSD)
}

func runEvaluation(ctx context.Context, cfg *config.Config, providerName string, k int) {
	retriever, err := newRetriever(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error preparing retriever")
	}
	svc := rag.NewService(retriever, cfg)

	p, err := provider.New(providerName, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating provider")
	}

	evaluator := eval.New(svc, cfg.Eval.K)
	if k > 0 {
		evaluator = eval.New(svc, k)
	}
	summary, err := evaluator.Run(ctx, p, cfg.Eval.GoldPath, cfg.Eval.OutDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error running evaluation")
	}
	fmt.Printf("Resumen evaluacion: provider=%s n=%d exact_match=%.3f citation_coverage=%.3f avg_latency=%.3fs avg_cost=$%.6f failures=%d\n",
		summary.Provider, summary.Total, summary.ExactMatchRate, summary.CitationCoverage,
		summary.AvgLatencySecs, summary.AvgCostUSD, summary.Failures)
}
