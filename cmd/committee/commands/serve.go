package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-committee/internal/api"
	"github.com/wonny/aegis-committee/internal/pipeline"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "읽기 전용 리포트 API 서버 시작",
	Long: `발행된 리포트와 저장된 시장 데이터를 조회하는 API 서버를 시작합니다.

Endpoints:
  GET  /health                    - Health check
  GET  /api/reports               - 발행된 날짜 목록
  GET  /api/reports/latest        - 최신 리포트
  GET  /api/reports/{date}        - 날짜별 리포트 (Redis 캐시)
  GET  /api/market/{date}         - 시장/수급 저장 데이터
  GET  /api/rolling/{column}      - 수급 누적 합계 (?window=20)
  GET  /api/status                - 최근 실행 및 소스 상태

Example:
  go run ./cmd/committee serve
  go run ./cmd/committee serve --port 8080`,
	RunE: runServe,
}

var servePort string

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "", "API 서버 포트 (default PORT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Committee API Server ===")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}

	app, log, err := buildAppWith(cfg, pipeline.BuildOptions{NoLLM: true})
	if err != nil {
		return err
	}
	defer app.Close()

	server := api.NewFromComponents(app, log)
	fmt.Printf("\n✅ Server running on http://localhost%s\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop")

	return server.Serve(cmd.Context())
}
