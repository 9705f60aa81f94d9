package pipeline

import (
	"context"

	"go.uber.org/zap"

	"stockwatch/bus"
	"stockwatch/delta"
	"stockwatch/dispatch"
	"stockwatch/models"
	"stockwatch/orchestrator"
	"stockwatch/queue"
	"stockwatch/quote"
	"stockwatch/registry"
	"stockwatch/router"
	"stockwatch/secrets"
	"stockwatch/store"
	"stockwatch/stream"
)

// Options carries the injected collaborators and tuning knobs. Store, Bus
// and Notifier decide whether the pipeline runs against in-memory fakes or
// the real backends; the stage wiring is identical either way.
type Options struct {
	Store    store.Store
	Gateway  quote.Gateway
	Secrets  secrets.Source
	Bus      bus.Bus
	Notifier router.Notifier
	Log      *zap.SugaredLogger

	StreamBuffer     int
	Consumer         stream.ConsumerConfig
	Runner           orchestrator.RunnerConfig
	QueueMaxReceives int
	RouterRule       string
}

// Pipeline wires the stages together: seeder and orchestrator write through
// the change-emitting table, the delta calculator and event dispatcher
// consume the change feed, and routed events drain through the queue into
// the notifier.
type Pipeline struct {
	Table  *store.Table
	Topic  *stream.Topic
	Queue  *queue.MemoryQueue
	Runner *orchestrator.Runner
	Seeder *registry.Seeder

	deltaConsumer    *stream.Consumer
	dispatchConsumer *stream.Consumer
	router           *router.Router
	drainer          *router.Drainer
}

func New(opts Options) *Pipeline {
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = 1024
	}
	if opts.RouterRule == "" {
		opts.RouterRule = "stockwatch-price-events"
	}

	topic := stream.NewTopic(opts.Log)
	table := store.NewTable(opts.Store, topic)

	deltaSub := topic.Subscribe("delta-calculator", stream.Filter{
		Types: []models.RecordType{models.RecordTypePrice},
		Kinds: []models.ChangeKind{models.ChangeInsert, models.ChangeModify},
	}, opts.StreamBuffer)

	// No kind filter: the dispatcher keeps first PRICE writes quiet itself
	// while every DELTA write must publish.
	dispatchSub := topic.Subscribe("event-dispatcher", stream.Filter{
		Types: []models.RecordType{models.RecordTypePrice, models.RecordTypeDelta},
	}, opts.StreamBuffer)

	calculator := delta.NewCalculator(table, opts.Log)
	dispatcher := dispatch.NewDispatcher(opts.Bus, opts.Log)

	q := queue.NewMemoryQueue(opts.StreamBuffer, opts.QueueMaxReceives, nil, opts.Log)

	return &Pipeline{
		Table:  table,
		Topic:  topic,
		Queue:  q,
		Runner: orchestrator.NewRunner(table, opts.Gateway, opts.Secrets, opts.Runner, opts.Log),
		Seeder: registry.NewSeeder(table, opts.Log),

		deltaConsumer:    stream.NewConsumer(deltaSub, calculator.Handle, opts.Consumer, nil, opts.Log),
		dispatchConsumer: stream.NewConsumer(dispatchSub, dispatcher.Handle, opts.Consumer, nil, opts.Log),
		router: router.NewRouter(opts.Bus, q, opts.RouterRule, bus.Filter{
			Source: dispatch.Source,
		}, opts.Log),
		drainer: router.NewDrainer(q, opts.Notifier, opts.Log),
	}
}

// Start launches the change-stream consumers, the event router, and the
// queue drainer. All of them stop when the context is canceled.
func (p *Pipeline) Start(ctx context.Context) {
	go p.deltaConsumer.Run(ctx)
	go p.dispatchConsumer.Run(ctx)
	go p.router.Run(ctx)
	go p.drainer.Drain(ctx)
}
