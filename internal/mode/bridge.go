package mode

import (
	"errors"

	"github.com/muurk/probewatch/internal/events"
	"github.com/muurk/probewatch/internal/web"
	"go.uber.org/zap"
)

// attachBridges couples the web server to link liveness: an address brings
// it up, a disconnect takes it down.
func (o *Orchestrator) attachBridges() error {
	up, err := o.deps.Bus.Register(events.AddressAcquired, o.onLinkUp)
	if err != nil {
		return err
	}
	down, err := o.deps.Bus.Register(events.LinkDisconnected, o.onLinkDown)
	if err != nil {
		_ = o.deps.Bus.Unregister(up)
		return err
	}

	o.webMu.Lock()
	o.bridges = []events.Handle{up, down}
	o.bridged = true
	o.webMu.Unlock()
	return nil
}

// detachWeb stops the web server and unregisters the bridges. Once it
// returns, a bridge callback still in flight can no longer start the
// server.
func (o *Orchestrator) detachWeb() {
	o.webMu.Lock()
	o.bridged = false
	o.stopWebLocked()
	handles := o.bridges
	o.bridges = nil
	o.webMu.Unlock()

	for _, h := range handles {
		if err := o.deps.Bus.Unregister(h); err != nil && !errors.Is(err, events.ErrNotRegistered) {
			o.log.Warn("Failed to unregister bridge", zap.Error(err))
		}
	}
}

func (o *Orchestrator) onLinkUp(events.Event) {
	o.webMu.Lock()
	defer o.webMu.Unlock()
	if !o.bridged || o.webH.Valid() {
		return
	}
	if err := o.startWebLocked(); err != nil {
		o.log.Error("Failed to start web server after reconnect", zap.Error(err))
	}
}

func (o *Orchestrator) onLinkDown(events.Event) {
	o.webMu.Lock()
	defer o.webMu.Unlock()
	if !o.bridged {
		return
	}
	o.stopWebLocked()
}

func (o *Orchestrator) startWeb() error {
	o.webMu.Lock()
	defer o.webMu.Unlock()
	if o.webH.Valid() {
		return nil
	}
	return o.startWebLocked()
}

func (o *Orchestrator) startWebLocked() error {
	h, err := o.deps.Web.Start()
	if err != nil {
		return err
	}
	o.webH = h
	return nil
}

func (o *Orchestrator) stopWebLocked() {
	if !o.webH.Valid() {
		return
	}
	if err := o.deps.Web.Stop(o.webH); err != nil {
		o.log.Warn("Failed to stop web server", zap.Error(err))
	}
	o.webH = web.Handle{}
}
