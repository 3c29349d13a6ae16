package commands

import (
	"log/slog"
	"time"

	"formrunner/lib/configutil"
	"formrunner/lib/htmlutil"
	"formrunner/lib/restyutil"
	"formrunner/lib/runstore"
	"formrunner/lib/scrapers/goodsave"
	"formrunner/lib/serviceutil"

	"github.com/spf13/cobra"
)

type Config struct {
	Url               string                        `json:"url"`
	FormPostUrl       string                        `json:"form_post_url"`
	HeadersList       []goodsave.HeaderSet          `json:"headers_list"`
	DataParams        map[string]htmlutil.AttrQuery `json:"data_params"`
	BaseResponses     []goodsave.ResponseSet        `json:"base_responses"`
	TestMode          bool                          `json:"test_mode"`
	RecentHeadersFile string                        `json:"recent_headers_file"`
	PayloadFile       string                        `json:"payload_file"`
	HistoryDb         string                        `json:"history_db"`
	TimeoutSeconds    int                           `json:"timeout_seconds"`
}

var runConfig *string
var runTest *bool

func init() {
	runConfig = runCmd.Flags().String("config", "config.json5", "The run configuration to use.")
	runTest = runCmd.Flags().Bool("test", false, "Scrape and persist the payload but skip the POST.")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [--config <path/to/config.json5>] [--test]",
	Short: "Executes one fetch/scrape/submit run against the configured form.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config](*runConfig)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		goodsave.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/formrunner"))

		client, err := goodsave.NewClient(cmd.Context(), goodsave.ClientOptions{
			Url:               cfg.Url,
			HeaderPool:        cfg.HeadersList,
			RecentHeadersFile: cfg.RecentHeadersFile,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			serviceutil.Fatal("failed to initialize client", err)
		}

		base, err := goodsave.PickResponseSet(cfg.BaseResponses)
		if err != nil {
			serviceutil.Fatal("failed to pick a response set", err)
		}

		payloadFile := cfg.PayloadFile
		if payloadFile == "" {
			payloadFile = goodsave.DefaultPayloadFile
		}

		pipeline := goodsave.Pipeline{
			Client:          client,
			Spec:            cfg.DataParams,
			Base:            base,
			TestMode:        cfg.TestMode || *runTest,
			FallbackPostUrl: cfg.FormPostUrl,
			PayloadFile:     payloadFile,
		}

		started := time.Now()
		result, err := pipeline.Run(cmd.Context())
		if err != nil {
			serviceutil.Fatal("run failed", err)
		}

		if cfg.HistoryDb != "" {
			recordRun(cmd, cfg.HistoryDb, started, result)
		}

		slog.Info(
			"run finished",
			"posted", result.Posted,
			"status", result.StatusCode,
			"seconds", time.Since(started).Seconds(),
		)
	},
}

func recordRun(cmd *cobra.Command, path string, started time.Time, result goodsave.Result) {
	db, err := runstore.Open(path)
	if err != nil {
		slog.Warn("failed to open run history", "path", path, "err", err)
		return
	}
	defer db.Close()

	err = runstore.NewStore(db).Record(cmd.Context(), runstore.Run{
		StartedAt:  started,
		Posted:     result.Posted,
		StatusCode: result.StatusCode,
		Target:     result.Target.String(),
		Payload:    result.Payload,
	})
	if err != nil {
		slog.Warn("failed to record run", "path", path, "err", err)
	}
}
