package listener

import (
	"evcore/internal"
	"evcore/internal/config"
	"evcore/ocpi/client"
	"fmt"
)

const (
	startEndpoint  = "/transactions/start"
	stopEndpoint   = "/transactions/stop"
	statusEndpoint = "/status"
)

// Listener implements EventHandler and pushes session events to an
// external roaming platform.
type Listener struct {
	client *client.Client
	logger internal.LogHandler
}

func NewListener(conf *config.Config, logger internal.LogHandler) *Listener {
	return &Listener{
		client: client.New(conf.Ocpi.Url, conf.Ocpi.Token),
		logger: logger,
	}
}

func (l *Listener) callback(endpoint string) func(resp []byte, err error) {
	return func(resp []byte, err error) {
		if err != nil {
			l.logger.Error(fmt.Sprintf("ocpi push to %s failed", endpoint), err)
		}
	}
}

func (l *Listener) OnStatusNotification(event *internal.EventMessage) {
	l.client.POST(statusEndpoint, event, l.callback(statusEndpoint))
}

func (l *Listener) OnTransactionStart(event *internal.EventMessage) {
	l.client.POST(startEndpoint, event, l.callback(startEndpoint))
}

func (l *Listener) OnTransactionStop(event *internal.EventMessage) {
	l.client.POST(stopEndpoint, event, l.callback(stopEndpoint))
}

func (l *Listener) OnAuthorize(_ *internal.EventMessage) {
}
