package ingest

import (
	"context"
	"time"

	"github.com/korzhev/alert_dispatch_system/internal/config"
	"github.com/korzhev/alert_dispatch_system/internal/service"
	"github.com/sirupsen/logrus"
)

// Reconciler периодически запускает sweep: освобождает команды, зависшие в
// busy без привязанной тревоги, и прогоняет накопившийся backlog через
// матчинг. Чинит любые промежуточные состояния, оставленные частичными
// сбоями или исчерпанными повторами.
type Reconciler struct {
	dispatch service.DispatchService
	logger   *logrus.Logger
	cfg      *config.Config
}

// NewReconciler создает новый Reconciler
func NewReconciler(dispatch service.DispatchService, logger *logrus.Logger, cfg *config.Config) *Reconciler {
	return &Reconciler{
		dispatch: dispatch,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start запускает горутину периодического sweep
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Infof("Starting dispatch reconciler with interval %v...", r.cfg.SweepInterval)
	go func() {
		ticker := time.NewTicker(r.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("Stopping dispatch reconciler.")
				return
			case <-ticker.C:
				result, err := r.dispatch.Sweep(ctx)
				if err != nil {
					r.logger.WithError(err).Error("Reconciliation sweep failed")
					continue
				}
				if result.AlertsAssigned > 0 || result.TeamsReleased > 0 {
					r.logger.WithFields(logrus.Fields{
						"alerts_assigned": result.AlertsAssigned,
						"teams_released":  result.TeamsReleased,
					}).Info("Reconciliation sweep repaired state")
				}
			}
		}
	}()
}
