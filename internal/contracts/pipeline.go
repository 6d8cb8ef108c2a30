package contracts

// Pipeline Stage 정의 (SSOT)
// 모든 로그, 리포트, run_log row에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   S0 → S1 → S2 → S3 → S4 → S5 → S6
//   Acquire  Signals  Snapshot  Persist  Committee  Validate  Publish

// Stage represents a pipeline stage
type Stage string

const (
	// StageAcquire S0: 필드 수집, 폴백, 소스 상태 기록
	// 위치: internal/s0_data/
	StageAcquire Stage = "S0_ACQUIRE"

	// StageSignals S1: 파생 시그널 (earnings/breadth/liquidity)
	// 위치: internal/s1_signals/
	StageSignals Stage = "S1_SIGNALS"

	// StageSnapshot S2: 스냅샷 조립 및 스키마 검증
	// 위치: internal/s2_snapshot/
	StageSnapshot Stage = "S2_SNAPSHOT"

	// StagePersist S3: SQLite 저장 (best-effort), 롤링 합계
	// 위치: internal/s3_store/
	StagePersist Stage = "S3_PERSIST"

	// StageCommittee S4: 에이전트 의견 생성 및 합의 도출
	// 위치: internal/s4_committee/
	StageCommittee Stage = "S4_COMMITTEE"

	// StageValidate S5: 출력 불변식 검증 (실패 시 전달 차단)
	// 위치: internal/s5_validate/
	StageValidate Stage = "S5_VALIDATE"

	// StagePublish S6: 리포트 파일 작성
	// 위치: internal/pipeline/
	StagePublish Stage = "S6_PUBLISH"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StageAcquire:
		return "S0"
	case StageSignals:
		return "S1"
	case StageSnapshot:
		return "S2"
	case StagePersist:
		return "S3"
	case StageCommittee:
		return "S4"
	case StageValidate:
		return "S5"
	case StagePublish:
		return "S6"
	default:
		return "UNKNOWN"
	}
}

// Description returns Korean description of the stage
func (s Stage) Description() string {
	switch s {
	case StageAcquire:
		return "데이터 수집/폴백"
	case StageSignals:
		return "파생 시그널 계산"
	case StageSnapshot:
		return "스냅샷 조립"
	case StagePersist:
		return "저장/롤링 합계"
	case StageCommittee:
		return "위원회 합의"
	case StageValidate:
		return "출력 검증"
	case StagePublish:
		return "리포트 발행"
	default:
		return "알 수 없음"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageAcquire,
		StageSignals,
		StageSnapshot,
		StagePersist,
		StageCommittee,
		StageValidate,
		StagePublish,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// PipelineResult represents the result of a pipeline stage execution
type PipelineResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
