package jobs

import (
	"github.com/emrgen/plm/internal/registry"
	"github.com/sirupsen/logrus"
)

// ReloadTask re-reads the flat configuration files so edits made while the
// server runs are picked up without a restart.
type ReloadTask struct {
	registry  *registry.Registry
	directory *registry.Directory
	cron      string
}

func NewReloadTask(schedule string, reg *registry.Registry, directory *registry.Directory) *ReloadTask {
	return &ReloadTask{
		registry:  reg,
		directory: directory,
		cron:      schedule,
	}
}

func (r *ReloadTask) Name() string {
	return "registry_reload"
}

func (r *ReloadTask) Schedule() string {
	return r.cron
}

func (r *ReloadTask) Run() {
	if err := r.registry.Reload(); err != nil {
		logrus.Warnf("reload registry: %v", err)
	}
	if err := r.directory.Reload(); err != nil {
		logrus.Warnf("reload account directory: %v", err)
	}
}
