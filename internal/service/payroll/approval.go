package payroll

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cmlabs-hris/payroll-engine-go/internal/domain/payroll"
)

func (s *PayrollServiceImpl) AdvanceStatus(ctx context.Context, actor payroll.Actor, req payroll.AdvanceStatusRequest) (payroll.PayrollRunResponse, error) {
	if err := requireActor(actor); err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	run, err := s.runs.GetByID(ctx, req.RunID)
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}

	updated, err := s.advance(ctx, actor, run, payroll.RunStatus(req.Status))
	if err != nil {
		return payroll.PayrollRunResponse{}, err
	}
	return mapRunResponse(updated, false), nil
}

// advance applies at most one forward step. Repeating a transition that has
// already happened returns the run unchanged.
func (s *PayrollServiceImpl) advance(ctx context.Context, actor payroll.Actor, run payroll.PayrollRun, target payroll.RunStatus) (payroll.PayrollRun, error) {
	noop, err := PlanTransition(run.Status, target)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	if !s.authz.CanTransition(actor, run.SiteID, target) {
		return payroll.PayrollRun{}, payroll.ErrRunForbidden
	}
	if noop {
		return run, nil
	}

	updated, err := s.runs.Transition(ctx, run.ID, run.Status, target, actor.UserID)
	if errors.Is(err, payroll.ErrRunStatusChanged) {
		// Lost a race; fine if the winner already moved the run where we wanted it
		current, getErr := s.runs.GetByID(ctx, run.ID)
		if getErr != nil {
			return payroll.PayrollRun{}, getErr
		}
		if done, planErr := PlanTransition(current.Status, target); planErr == nil && done {
			return current, nil
		}
		return payroll.PayrollRun{}, err
	}
	if err != nil {
		return payroll.PayrollRun{}, err
	}

	slog.Info("payroll run status changed",
		"run_id", updated.ID,
		"site_id", updated.SiteID,
		"from", string(run.Status),
		"to", string(updated.Status),
		"actor_id", actor.UserID,
	)
	return updated, nil
}

// PlanTransition decides whether moving from current to target is a legal
// single step (false, nil), an already-applied step (true, nil), or illegal.
func PlanTransition(current, target payroll.RunStatus) (bool, error) {
	if !target.IsValid() || target == payroll.RunStatusDraft {
		return false, payroll.ErrIllegalTransition
	}
	if current == payroll.RunStatusLocked {
		if target == payroll.RunStatusLocked {
			return true, nil
		}
		return false, payroll.ErrRunLocked
	}
	if current.Reached(target) {
		return true, nil
	}
	if next, ok := current.Next(); !ok || next != target {
		return false, payroll.ErrIllegalTransition
	}
	return false, nil
}
