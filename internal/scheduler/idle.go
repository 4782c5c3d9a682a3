package scheduler

import (
	"context"
	"time"
)

// runIdleSuite runs the seven idle tasks spec.md §4.7 lists, in fixed
// order, each gated by its own throttle. A task more recent than its
// interval is skipped, logged at debug level at most once per 60s per
// task. The suite stops after the currently running task if ctx is
// canceled mid-suite, never abandoning a task half-finished.
//
// Tasks 1 and 2 (relationship refresh, conversation-pattern compile)
// share one throttle and report under one age in /debug/idle_state,
// matching spec.md §6's single "last_idle_learning_age_sec" field.
func (s *Scheduler) runIdleSuite(ctx context.Context) {
	now := time.Now()
	tag := s.tag()
	s.log.Debug("idle suite starting", "tag", tag)

	if ctx.Err() != nil {
		return
	}
	if s.idleLearning.due(now) {
		if err := s.relationship.Refresh(ctx); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "relationship_refresh", "error", err)
		} else if err := s.pattern.Compile(ctx); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "conversation_pattern_compile", "error", err)
		} else {
			s.idleLearning.markRun(now)
		}
	} else if s.idleLearning.shouldLogSkip(now) {
		s.log.Debug("idle task skipped, not yet due", "tag", tag, "task", "idle_learning")
	}

	if ctx.Err() != nil {
		return
	}
	if s.codeIntrospection.due(now) {
		if err := s.introspector.Introspect(ctx); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "code_introspection", "error", err)
		} else {
			s.codeIntrospection.markRun(now)
		}
	} else if s.codeIntrospection.shouldLogSkip(now) {
		s.log.Debug("idle task skipped, not yet due", "tag", tag, "task", "code_introspection")
	}

	if ctx.Err() != nil {
		return
	}
	if s.dataQuality.due(now) {
		if err := s.quality.Sample(ctx); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "data_quality_sampling", "error", err)
		} else {
			s.dataQuality.markRun(now)
		}
	} else if s.dataQuality.shouldLogSkip(now) {
		s.log.Debug("idle task skipped, not yet due", "tag", tag, "task", "data_quality_sampling")
	}

	if ctx.Err() != nil {
		return
	}
	if s.auditor.Due(now) {
		peers, err := s.peerList(ctx)
		if err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "fragment_audit", "error", err)
		} else if _, err := s.auditor.RunOnce(ctx, s.log.With("tag", tag), peers, now); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "fragment_audit", "error", err)
		}
	} else if s.fragmentAuditSkipLog.shouldLogSkip(now) {
		s.log.Debug("idle task skipped, not yet due", "tag", tag, "task", "fragment_audit")
	}

	if ctx.Err() != nil {
		return
	}
	if s.healthSnapshot.due(now) {
		if err := s.runHealthSnapshot(ctx); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "health_snapshot", "error", err)
		} else {
			s.healthSnapshot.markRun(now)
		}
	} else if s.healthSnapshot.shouldLogSkip(now) {
		s.log.Debug("idle task skipped, not yet due", "tag", tag, "task", "health_snapshot")
	}

	if ctx.Err() != nil {
		return
	}
	if s.selfChecks.due(now) {
		if err := s.selfChecker.Check(ctx); err != nil {
			s.log.Warn("idle task failed", "tag", tag, "task", "self_checks", "error", err)
		} else {
			s.selfChecks.markRun(now)
		}
	} else if s.selfChecks.shouldLogSkip(now) {
		s.log.Debug("idle task skipped, not yet due", "tag", tag, "task", "self_checks")
	}

	s.log.Debug("idle suite finished", "tag", tag)
}

// peerList returns the current peer list, or nil (not an error) if no
// registry is wired.
func (s *Scheduler) peerList(ctx context.Context) ([]string, error) {
	if s.registry == nil {
		return nil, nil
	}
	return s.registry.List(ctx)
}

// runHealthSnapshot emits a warning if the blocks table is non-empty
// while the ledger holds no facts, per spec.md §4.7 task 6. The block
// count includes genesis, so a node with an empty ledger warns even
// before its chain advances past height 0.
func (s *Scheduler) runHealthSnapshot(ctx context.Context) error {
	blockCount, err := s.chain.BlockCount(ctx)
	if err != nil {
		return err
	}
	factCount, err := s.ledger.FactCount(ctx)
	if err != nil {
		return err
	}
	if blockCount > 0 && factCount == 0 {
		s.log.Warn("health snapshot: chain has blocks but ledger has no facts", "tag", s.tag(),
			"block_count", blockCount, "fact_count", factCount)
	}
	return nil
}
