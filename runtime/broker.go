package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"salachat/contract"
	"salachat/domain"
	"salachat/ipc"
	"salachat/runtime/workers"
)

// Broker owns the server side of both planes: the control queue with
// its single handler, and one supervised broadcaster per active room.
type Broker struct {
	log             *slog.Logger
	arena           *ipc.Arena
	registry        *Registry
	supervisor      contract.ISupervisor
	censor          contract.Censor
	monitorInterval time.Duration
	cancel          context.CancelFunc
}

func NewBroker(log *slog.Logger, arena *ipc.Arena, registry *Registry,
	supervisor contract.ISupervisor, censor contract.Censor,
	monitorInterval time.Duration) *Broker {
	return &Broker{
		log:             log,
		arena:           arena,
		registry:        registry,
		supervisor:      supervisor,
		censor:          censor,
		monitorInterval: monitorInterval,
	}
}

// Start creates the control queue and launches the supervised workers.
// It does not block; the broker runs until Stop or parent cancellation.
func (b *Broker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	handle, _ := b.arena.Create()
	if handle != domain.ControlQueue {
		cancel()
		return fmt.Errorf("control queue must be the arena's first queue, got handle %d", handle)
	}

	spawn := func(roomIndex int, queue domain.QueueHandle) {
		broadcaster := workers.NewBroadcastWorker(b.log, b.registry, b.arena, roomIndex, queue, b.censor)
		b.supervisor.Start(runCtx, broadcaster)
	}

	control := workers.NewControlWorker(b.log, b.registry, b.arena, b.arena.Open(handle), spawn)
	b.supervisor.Start(runCtx, control)

	if b.monitorInterval > 0 {
		b.supervisor.Start(runCtx, workers.NewMonitorWorker(b.log, b.monitorInterval, b.Stats))
	}

	b.log.Info("Servidor de chat iniciado. Esperando clientes...")
	return nil
}

// Stop tears down every active room, then the control queue. Workers
// blocked on the destroyed queues observe ErrQueueRemoved and finish on
// their own; they are not joined (best-effort shutdown).
func (b *Broker) Stop() {
	b.log.Info("Cerrando servidor...")
	b.registry.TeardownAll()
	b.arena.DestroyAll()
	if b.cancel != nil {
		b.cancel()
	}
}

// Rooms exposes the registry snapshot for the debug endpoint.
func (b *Broker) Rooms() []domain.RoomView {
	return b.registry.Rooms()
}

// Stats feeds the monitor worker and the debug endpoint.
func (b *Broker) Stats() map[string]any {
	rooms, members := b.registry.Counts()
	queued := 0
	depths := b.arena.Depths()
	for _, d := range depths {
		queued += d
	}
	return map[string]any{
		"rooms":   rooms,
		"members": members,
		"queues":  len(depths),
		"queued":  queued,
	}
}
