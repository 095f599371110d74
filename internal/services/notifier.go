package services

import "github.com/VincentPrime/endlessgrindbackend/internal/models"

type Notifier interface {
	PublishApplicationEvent(event models.ApplicationEvent)
}

type noopNotifier struct{}

func (noopNotifier) PublishApplicationEvent(models.ApplicationEvent) {}
