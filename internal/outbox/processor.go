package outbox

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const queueName = "ledger_events"

// Processor relays committed ledger events to RabbitMQ. An event row is
// written in the same database transaction as the mutation it describes, so
// everything published here really happened.
type Processor struct {
	db       *sql.DB
	rabbitCh *amqp.Channel
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewProcessor(db *sql.DB, conn *amqp.Connection, logger *slog.Logger) (*Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, err
	}

	return &Processor{
		db:       db,
		rabbitCh: ch,
		interval: 2 * time.Second,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

func (p *Processor) Start() {
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.processEvents()
			case <-p.stop:
				return
			}
		}
	}()
}

func (p *Processor) Shutdown(ctx context.Context) error {
	close(p.stop)
	select {
	case <-p.done:
		return p.rabbitCh.Close()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) processEvents() {
	rows, err := p.db.Query(`
		SELECT id, type, payload FROM outbox_events
		WHERE status = 'pending'
		ORDER BY id
		LIMIT 10
	`)
	if err != nil {
		p.logger.Error("Outbox query failed", slog.String("error", err.Error()))
		return
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var eventType string
		var payload []byte
		if err := rows.Scan(&id, &eventType, &payload); err != nil {
			p.logger.Error("Outbox row scan failed", slog.String("error", err.Error()))
			continue
		}

		err = p.rabbitCh.Publish(
			"",
			queueName,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        payload,
				Type:        eventType,
			},
		)
		if err != nil {
			p.logger.Error("Outbox publish failed",
				slog.Int64("event_id", id),
				slog.String("error", err.Error()))
			continue
		}

		if _, err := p.db.Exec(`
			UPDATE outbox_events
			SET status = 'processed'
			WHERE id = $1
		`, id); err != nil {
			p.logger.Error("Outbox status update failed",
				slog.Int64("event_id", id),
				slog.String("error", err.Error()))
			continue
		}

		p.logger.Info("Outbox event published",
			slog.Int64("event_id", id),
			slog.String("type", eventType))
	}
}
