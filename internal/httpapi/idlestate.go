package httpapi

// IdleState is the wire shape of GET /debug/idle_state, per spec.md
// §6. Age fields are seconds since each task last ran; the scheduler
// computes them at request time from its own per-task timestamps.
type IdleState struct {
	NodePort                    int     `json:"node_port"`
	NodeRole                    string  `json:"node_role"`
	AdvertisedURL               string  `json:"advertised_url"`
	DBPath                      string  `json:"db_path"`
	MainCycleIntervalSec        int     `json:"main_cycle_interval_sec"`
	IdleSuiteIntervalSec        int     `json:"idle_suite_interval_sec"`
	LastMainCycleAgeSec         float64 `json:"last_main_cycle_age_sec"`
	LastIdleLearningAgeSec      float64 `json:"last_idle_learning_age_sec"`
	LastCodeIntrospectionAgeSec float64 `json:"last_code_introspection_age_sec"`
	LastDataQualityAgeSec       float64 `json:"last_data_quality_age_sec"`
	LastFragmentAuditAgeSec     float64 `json:"last_fragment_audit_age_sec"`
	LastHealthSnapshotAgeSec    float64 `json:"last_health_snapshot_age_sec"`
	LastSelfChecksAgeSec        float64 `json:"last_self_checks_age_sec"`
}
