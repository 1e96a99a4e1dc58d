// Command orchestratord runs the orchestrator HTTP/WebSocket API and
// its worker pool in a single process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldstack/orchestrator/pkg/agentrt"
	"github.com/fieldstack/orchestrator/pkg/api"
	"github.com/fieldstack/orchestrator/pkg/config"
	"github.com/fieldstack/orchestrator/pkg/events"
	"github.com/fieldstack/orchestrator/pkg/masking"
	"github.com/fieldstack/orchestrator/pkg/model"
	"github.com/fieldstack/orchestrator/pkg/orchestrator"
	"github.com/fieldstack/orchestrator/pkg/statusbus"
	"github.com/fieldstack/orchestrator/pkg/store/postgres"
	"github.com/fieldstack/orchestrator/pkg/synth"
	"github.com/fieldstack/orchestrator/pkg/tool"
	"github.com/fieldstack/orchestrator/pkg/tool/datatool"
	"github.com/fieldstack/orchestrator/pkg/tool/httptool"
	"github.com/fieldstack/orchestrator/pkg/tool/llmtool"
	"github.com/fieldstack/orchestrator/pkg/tool/mcptool"
	"github.com/fieldstack/orchestrator/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// mcpToolAdapters wires the non-data MCP-backed tools (entity_nlp,
// geocode, web_search, vector_search) the same way pkg/tool/datatool
// wires the data.* family: one symbolic tool name per MCP server.
func mcpToolAdapters(client *mcptool.Client) map[model.ToolName]tool.Adapter {
	servers := map[model.ToolName]string{
		model.ToolEntityNLP:    "entity-nlp-server",
		model.ToolGeocode:      "geocode-server",
		model.ToolWebSearch:    "web-search-server",
		model.ToolVectorSearch: "vector-search-server",
	}
	adapters := make(map[model.ToolName]tool.Adapter, len(servers))
	for name, serverID := range servers {
		adapters[name] = &mcptool.ToolAdapter{
			Client:       client,
			ServerID:     serverID,
			MCPToolName:  "query",
			IsIdempotent: true,
		}
	}
	return adapters
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory (agents/playbooks/graphs YAML plus .env overlay)")
	flag.Parse()

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))

	slog.Info("orchestratord starting", "version", version.Full())

	ctx := context.Background()

	dbCfg, err := postgres.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := postgres.NewClient(ctx, dbCfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("error closing database client", "error", err)
		}
	}()
	slog.Info("connected to postgres", "database", dbCfg.Database)

	backups := postgres.NewBackupStore(dbClient)
	configStore, err := config.LoadDir(ctx, *configDir, backups)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	slog.Info("configuration loaded", "config_dir", *configDir)

	jobs := postgres.NewJobStore(dbClient)
	invocations := postgres.NewInvocationStore(dbClient)
	artifacts := postgres.NewArtifactStore(dbClient)

	bus := statusbus.New()
	userIndex := statusbus.NewJobUserIndex()
	sink := statusbus.NewSink(bus, userIndex)

	maskingService := masking.NewService(&masking.SensitiveKeyMasker{})

	llmAddr := getEnv("LLM_SERVICE_ADDR", "localhost:9090")
	llmClient, err := llmtool.NewClient(llmAddr)
	if err != nil {
		log.Fatalf("failed to construct llm tool client: %v", err)
	}

	mcpClient := mcptool.NewClient("orchestratord", "1.0.0")
	httpClient := httptool.NewClient(30 * time.Second)

	adapters := map[model.ToolName]tool.Adapter{
		model.ToolLLM:             llmClient,
		model.ToolDataRetrieval:   datatool.NewAdapter(mcpClient, "data.retrieval"),
		model.ToolDataAggregation: datatool.NewAdapter(mcpClient, "data.aggregation"),
		model.ToolDataSpatial:     datatool.NewAdapter(mcpClient, "data.spatial"),
		model.ToolDataAnalytics:   datatool.NewAdapter(mcpClient, "data.analytics"),
		model.ToolCustomHTTP:      httptool.NewAdapter(httpClient, "GET"),
	}
	for name, adapter := range mcpToolAdapters(mcpClient) {
		adapters[name] = adapter
	}

	authChecker := config.NewAuthChecker(configStore)
	broker := tool.NewBroker(adapters, authChecker, sink, maskingService)

	poolCfg := orchestrator.DefaultConfig()
	for _, toolName := range []model.ToolName{model.ToolLLM, model.ToolWebSearch, model.ToolCustomHTTP} {
		broker.SetConcurrencyLimit(toolName, poolCfg.PerAgentToolConcurrency)
	}

	runtime := agentrt.New(broker, sink)
	synthesizer := synth.New(broker)
	scheduler := orchestrator.NewScheduler(runtime, synthesizer, invocations, artifacts, sink, poolCfg)

	podID := getEnv("POD_ID", "orchestratord-0")
	pool := orchestrator.NewWorkerPool(podID, jobs, poolCfg, scheduler, sink)
	pool.Start(ctx)
	defer pool.Stop()

	engine := orchestrator.NewEngine(configStore, jobs, pool)
	engine.SetJobUserIndex(userIndex)

	connManager := events.NewConnectionManager(bus, 10*time.Second)

	server := api.NewServer(engine, configStore, artifacts, connManager)

	slog.Info("starting orchestratord", "http_port", httpPort, "pod_id", podID)
	if err := server.Start(":" + httpPort); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
