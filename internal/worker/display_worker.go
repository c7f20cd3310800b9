package worker

import (
	"github.com/spec-kit/clinic-queue/internal/service"
)

// StartDisplayWorker registers display snapshot handlers.
func StartDisplayWorker(displayService *service.DisplayService) {
	if displayService == nil {
		return
	}
	displayService.RegisterHandlers()
}
