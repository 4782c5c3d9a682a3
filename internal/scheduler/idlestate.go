package scheduler

import (
	"time"

	"github.com/axiom-network/axiomd/internal/httpapi"
)

// IdleState implements httpapi.IdleStateProvider. ok is false until
// Run has started, matching /debug/idle_state's documented 503 for a
// not-yet-initialized node.
func (s *Scheduler) IdleState() (httpapi.IdleState, bool) {
	s.mu.Lock()
	initialized := s.initialized
	lastMainCycle := s.lastMainCycle
	s.mu.Unlock()

	if !initialized {
		return httpapi.IdleState{}, false
	}

	now := time.Now()
	age := func(t time.Time) float64 {
		if t.IsZero() {
			return -1
		}
		return now.Sub(t).Seconds()
	}

	return httpapi.IdleState{
		NodePort:                    s.cfg.Port,
		NodeRole:                    s.cfg.Role,
		AdvertisedURL:               s.cfg.AdvertisedURL,
		DBPath:                      s.cfg.DBPath,
		MainCycleIntervalSec:        int(s.cfg.MainCycleInterval.Seconds()),
		IdleSuiteIntervalSec:        int(s.cfg.IdleSuiteInterval.Seconds()),
		LastMainCycleAgeSec:         age(lastMainCycle),
		LastIdleLearningAgeSec:      age(s.idleLearning.lastRunAt()),
		LastCodeIntrospectionAgeSec: age(s.codeIntrospection.lastRunAt()),
		LastDataQualityAgeSec:       age(s.dataQuality.lastRunAt()),
		LastFragmentAuditAgeSec:     age(s.auditor.LastRunAt()),
		LastHealthSnapshotAgeSec:    age(s.healthSnapshot.lastRunAt()),
		LastSelfChecksAgeSec:        age(s.selfChecks.lastRunAt()),
	}, true
}
